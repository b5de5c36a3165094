package bootstrap_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/toddfratello/pyomcore/block"
	"github.com/toddfratello/pyomcore/bootstrap"
	_ "github.com/toddfratello/pyomcore/chain/actions"
	"github.com/toddfratello/pyomcore/internal/testutil"
)

func TestInitializeBlockchainLaysOutRootdir(t *testing.T) {
	rootdir := t.TempDir()
	identity := []byte("bootstrap-owner")
	sgnr := testutil.NewFakeSigner(rootdir, identity)
	vc := testutil.NewFakeVCS()

	v, err := bootstrap.InitializeBlockchain(rootdir, sgnr, vc, identity, nil)
	if err != nil {
		t.Fatalf("InitializeBlockchain: %v", err)
	}
	if v.Nextidx != 1 {
		t.Errorf("Nextidx: got %d want 1", v.Nextidx)
	}
	if _, err := v.Store.ReadBlock(0); err != nil {
		t.Errorf("block 0 not readable: %v", err)
	}
}

func TestInitializeBlockchainRejectsExistingChain(t *testing.T) {
	rootdir := t.TempDir()
	identity := []byte("bootstrap-owner-2")
	sgnr := testutil.NewFakeSigner(rootdir, identity)
	vc := testutil.NewFakeVCS()

	if _, err := bootstrap.InitializeBlockchain(rootdir, sgnr, vc, identity, nil); err != nil {
		t.Fatalf("first InitializeBlockchain: %v", err)
	}
	if _, err := bootstrap.InitializeBlockchain(rootdir, sgnr, vc, identity, nil); err == nil {
		t.Error("expected error re-initializing a rootdir that already has blocks")
	}
}

func TestAddSmartContractWritesUUIDAndReturnsContract(t *testing.T) {
	rootdir := t.TempDir()
	identity := []byte("bootstrap-owner-3")
	sgnr := testutil.NewFakeSigner(rootdir, identity)
	vc := testutil.NewFakeVCS()

	v, err := bootstrap.InitializeBlockchain(rootdir, sgnr, vc, identity, nil)
	if err != nil {
		t.Fatalf("InitializeBlockchain: %v", err)
	}

	contract, err := bootstrap.AddSmartContract(v, "widget", "ignored-by-this-test", "uuid-1234", []block.Participant{{Gpg: v.Fpr}})
	if err != nil {
		t.Fatalf("AddSmartContract: %v", err)
	}
	if len(contract.Authors) != 1 || contract.Authors[0].Gpg != v.Fpr {
		t.Errorf("contract authors: got %+v", contract.Authors)
	}

	uuidPath := filepath.Join(rootdir, block.SmartContractsDirname, "widget", block.SmartContractUUIDFilename)
	data, err := os.ReadFile(uuidPath)
	if err != nil {
		t.Fatalf("read uuid file: %v", err)
	}
	if string(data) != "uuid-1234" {
		t.Errorf("uuid file content: got %q", data)
	}
}
