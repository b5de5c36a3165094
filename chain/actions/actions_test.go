package actions_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/toddfratello/pyomcore/block"
	"github.com/toddfratello/pyomcore/bootstrap"
	"github.com/toddfratello/pyomcore/builder"
	"github.com/toddfratello/pyomcore/chain"
	_ "github.com/toddfratello/pyomcore/chain/actions"
	"github.com/toddfratello/pyomcore/coordinator"
	"github.com/toddfratello/pyomcore/fileref"
	"github.com/toddfratello/pyomcore/internal/testutil"
)

func newChain(t *testing.T, name string) (*chain.Verifier, *testutil.FakeSigner, *testutil.FakeVCS) {
	t.Helper()
	rootdir := t.TempDir()
	identity := []byte(name)
	sgnr := testutil.NewFakeSigner(rootdir, identity)
	vc := testutil.NewFakeVCS()
	v, err := bootstrap.InitializeBlockchain(rootdir, sgnr, vc, identity, nil)
	if err != nil {
		t.Fatalf("InitializeBlockchain(%s): %v", name, err)
	}
	return v, sgnr, vc
}

func TestRemoveExtraConnectionFailsWithoutExistingConnection(t *testing.T) {
	v1, _, _ := newChain(t, "actions-remove-one")
	v2, _, _ := newChain(t, "actions-remove-two")

	if err := coordinator.RemoveExtraConnection(v1, v2); err == nil {
		t.Error("expected error removing a connection that was never added")
	}
}

func TestAnnulTransactionThenReinstateCycle(t *testing.T) {
	p1, _, _ := newChain(t, "actions-annul-one")
	p2, _, _ := newChain(t, "actions-annul-two")

	if err := coordinator.CreateTransaction([]coordinator.Participant{{V: p1}, {V: p2}}, time.Hour); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if err := coordinator.ConfirmTransactions(p1, p1, false); err != nil {
		t.Fatalf("self ConfirmTransactions(p1,p1): %v", err)
	}
	if err := coordinator.ConfirmTransactions(p2, p2, false); err != nil {
		t.Fatalf("self ConfirmTransactions(p2,p2): %v", err)
	}
	if err := coordinator.ConfirmTransactions(p1, p2, false); err != nil {
		t.Fatalf("ConfirmTransactions(p1,p2): %v", err)
	}
	if err := coordinator.ConfirmTransactions(p2, p1, false); err != nil {
		t.Fatalf("ConfirmTransactions(p2,p1): %v", err)
	}

	var hash string
	for h := range p1.Transactions {
		hash = h
	}
	if p1.Transactions[hash].State != chain.Confirmed {
		t.Fatalf("transaction not confirmed before annul: %s", p1.Transactions[hash].State)
	}

	annul := block.AnnulTransactionAction{
		Transaction: block.TxHashRef{SHA512: hash},
		Explanation: "participant withdrew after the fact",
	}
	if _, err := builder.AppendBlock(p1, block.Protoblock{Actions: []block.Action{annul}}); err != nil {
		t.Fatalf("AppendBlock(annul): %v", err)
	}
	if p1.Transactions[hash].State != chain.Annulled {
		t.Errorf("state after annul: got %s want ANNULLED", p1.Transactions[hash].State)
	}

	emptyAnnul := block.AnnulTransactionAction{Transaction: block.TxHashRef{SHA512: hash}}
	if _, err := builder.AppendBlock(p1, block.Protoblock{Actions: []block.Action{emptyAnnul}}); err == nil {
		t.Error("expected error annulling a non-CONFIRMED transaction")
	}

	reinstate := block.ReinstateTransactionAction{Transaction: block.TxHashRef{SHA512: hash}}
	if _, err := builder.AppendBlock(p1, block.Protoblock{Actions: []block.Action{reinstate}}); err != nil {
		t.Fatalf("AppendBlock(reinstate): %v", err)
	}
	if p1.Transactions[hash].State != chain.Confirmed {
		t.Errorf("state after reinstate: got %s want CONFIRMED", p1.Transactions[hash].State)
	}

	if _, err := builder.AppendBlock(p1, block.Protoblock{Actions: []block.Action{reinstate}}); err == nil {
		t.Error("expected error reinstating a transaction that is not ANNULLED")
	}
}

func TestLinkFileSucceedsAndFailsOnMissingContent(t *testing.T) {
	v, _, _ := newChain(t, "actions-link")

	rel := filepath.Join("docs", "notes.txt")
	abs := filepath.Join(v.Rootdir, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(abs, []byte("release notes"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	ref, err := fileref.Create(v.Rootdir, 0, rel)
	if err != nil {
		t.Fatalf("fileref.Create: %v", err)
	}

	link := block.LinkFileAction{File: ref}
	if _, err := builder.AppendBlock(v, block.Protoblock{Actions: []block.Action{link}}); err != nil {
		t.Fatalf("AppendBlock(link_file): %v", err)
	}

	missing := block.LinkFileAction{File: block.NewFileref(0, filepath.ToSlash(filepath.Join("docs", "missing.txt")), ref.SHA512)}
	if _, err := builder.AppendBlock(v, block.Protoblock{Actions: []block.Action{missing}}); err == nil {
		t.Error("expected error linking a file that does not exist")
	}
}

func TestVerifySignedTagSucceedsThenFailsWithoutTag(t *testing.T) {
	v, _, vc := newChain(t, "actions-tag")

	repoDir := filepath.Join(v.Rootdir, "smart_contracts", "widget")
	if err := os.MkdirAll(repoDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := vc.Init(repoDir); err != nil {
		t.Fatalf("vc.Init: %v", err)
	}
	vc.Commits[repoDir] = "deadbeef"
	vc.SignedTags[repoDir] = map[string]string{"deadbeef": v.Fpr}

	action := block.VerifySignedTagAction{
		Gpg:     v.Fpr,
		GitRepo: fileref.CreatePathref(0, "smart_contracts/widget"),
	}
	if _, err := builder.AppendBlock(v, block.Protoblock{Actions: []block.Action{action}}); err != nil {
		t.Fatalf("AppendBlock(verify_signed_tag): %v", err)
	}

	delete(vc.SignedTags, repoDir)
	if _, err := builder.AppendBlock(v, block.Protoblock{Actions: []block.Action{action}}); err == nil {
		t.Error("expected error once the signed tag is no longer present")
	}
}
