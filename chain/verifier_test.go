package chain_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/toddfratello/pyomcore/block"
	"github.com/toddfratello/pyomcore/bootstrap"
	"github.com/toddfratello/pyomcore/builder"
	"github.com/toddfratello/pyomcore/chain"
	_ "github.com/toddfratello/pyomcore/chain/actions"
	"github.com/toddfratello/pyomcore/fileref"
	"github.com/toddfratello/pyomcore/internal/testutil"
)

func newTestChain(t *testing.T) (*chain.Verifier, []byte) {
	t.Helper()
	rootdir := t.TempDir()
	identity := []byte("owner-identity-key")
	sgnr := testutil.NewFakeSigner(rootdir, identity)
	vc := testutil.NewFakeVCS()

	v, err := bootstrap.InitializeBlockchain(rootdir, sgnr, vc, identity, nil)
	if err != nil {
		t.Fatalf("InitializeBlockchain: %v", err)
	}
	return v, identity
}

func TestInitializeBlockchainProducesVerifiableBlockZero(t *testing.T) {
	v, _ := newTestChain(t)
	if v.Nextidx != 1 {
		t.Fatalf("Nextidx after genesis: got %d want 1", v.Nextidx)
	}
	if _, ok := v.KnownGPGKeys[v.Fpr]; !ok {
		t.Error("owner fingerprint not recorded as a known key")
	}
}

func TestVerifyBlockRejectsWrongIdx(t *testing.T) {
	v, _ := newTestChain(t)
	if err := v.VerifyBlock(5); err == nil {
		t.Error("expected error verifying out-of-order idx")
	}
}

func TestGetPrevHashChainsAcrossBlocks(t *testing.T) {
	v, _ := newTestChain(t)

	prev1, err := v.GetPrevHash(1)
	if err != nil {
		t.Fatalf("GetPrevHash(1): %v", err)
	}

	idx, err := builder.AppendBlock(v, block.Protoblock{})
	if err != nil {
		t.Fatalf("AppendBlock: %v", err)
	}
	if idx != 1 {
		t.Fatalf("AppendBlock idx: got %d want 1", idx)
	}

	blk, err := v.Store.ReadBlock(1)
	if err != nil {
		t.Fatalf("ReadBlock(1): %v", err)
	}
	if blk.Prev.SHA512 != prev1.SHA512 || blk.Prev.Filename != prev1.Filename {
		t.Errorf("block 1 prev does not match GetPrevHash(1): got %+v want %+v", blk.Prev, prev1)
	}
}

func TestAppendBlockWithImportGPGKeyUpdatesKnownKeys(t *testing.T) {
	v, _ := newTestChain(t)

	otherIdentity := []byte("second-participant-key")
	otherFpr, err := v.Signer.ImportKey(otherIdentity)
	if err != nil {
		t.Fatalf("ImportKey: %v", err)
	}
	keyfile := writeKeyfile(t, v.Rootdir, "other.key", otherIdentity)

	proto := block.Protoblock{Actions: []block.Action{
		block.ImportGPGKeyAction{Gpg: otherFpr, Keyfile: keyfile},
	}}
	if _, err := builder.AppendBlock(v, proto); err != nil {
		t.Fatalf("AppendBlock: %v", err)
	}
	if _, ok := v.KnownGPGKeys[otherFpr]; !ok {
		t.Error("import_gpg_key action did not register the new fingerprint")
	}
}

func TestAppendBlockDryRunFailureLeavesStateUntouched(t *testing.T) {
	v, _ := newTestChain(t)
	before := v.Nextidx

	proto := block.Protoblock{Actions: []block.Action{
		block.ImportGPGKeyAction{Gpg: "unknown-fpr-with-no-matching-key", Keyfile: block.NewFileref(0, "does/not/exist.key", "00")},
	}}
	if _, err := builder.AppendBlock(v, proto); err == nil {
		t.Fatal("expected AppendBlock to fail the dry run over a missing keyfile")
	}
	if v.Nextidx != before {
		t.Errorf("Nextidx changed despite failed dry run: got %d want %d", v.Nextidx, before)
	}
	if _, err := v.Store.ReadTriple(before); err == nil {
		t.Error("a block triple was written to disk despite a failed dry run")
	}
}

func writeKeyfile(t *testing.T, rootdir, rel string, content []byte) block.Fileref {
	t.Helper()
	full := filepath.Join(rootdir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ref, err := fileref.Create(rootdir, 0, rel)
	if err != nil {
		t.Fatalf("fileref.Create: %v", err)
	}
	return ref
}
