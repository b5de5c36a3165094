package coordinator_test

import (
	"testing"

	"github.com/toddfratello/pyomcore/block"
	"github.com/toddfratello/pyomcore/bootstrap"
	"github.com/toddfratello/pyomcore/builder"
	"github.com/toddfratello/pyomcore/chain"
	_ "github.com/toddfratello/pyomcore/chain/actions"
	"github.com/toddfratello/pyomcore/coordinator"
	"github.com/toddfratello/pyomcore/internal/testutil"
)

func newIdentifiedChain(t *testing.T, rootdir string, identity []byte) *chain.Verifier {
	t.Helper()
	sgnr := testutil.NewFakeSigner(rootdir, identity)
	vc := testutil.NewFakeVCS()
	v, err := bootstrap.InitializeBlockchain(rootdir, sgnr, vc, identity, nil)
	if err != nil {
		t.Fatalf("InitializeBlockchain: %v", err)
	}
	return v
}

// TestCreateBanDetectsForkAndAppendsBan builds two independent chains
// sharing a fingerprint (the "forker"), each with its own block 0 and
// block 1 (every block carries its own timestamp, so the two chains'
// blockrefs already differ at block 0), then has a third,
// uninvolved checker chain discover the fork and record a ban.
func TestCreateBanDetectsForkAndAppendsBan(t *testing.T) {
	forkerIdentity := []byte("coordinator-ban-forker")
	fork1 := newIdentifiedChain(t, t.TempDir(), forkerIdentity)
	fork2 := newIdentifiedChain(t, t.TempDir(), forkerIdentity)
	if fork1.Fpr != fork2.Fpr {
		t.Fatalf("forks do not share a fingerprint: %s vs %s", fork1.Fpr, fork2.Fpr)
	}

	if _, err := builder.AppendBlock(fork1, block.Protoblock{}); err != nil {
		t.Fatalf("AppendBlock(fork1 block 1): %v", err)
	}
	if _, err := builder.AppendBlock(fork2, block.Protoblock{}); err != nil {
		t.Fatalf("AppendBlock(fork2 block 1): %v", err)
	}

	checker := newIdentifiedChain(t, t.TempDir(), []byte("coordinator-ban-checker"))

	if err := coordinator.CreateBan(checker, fork1, fork2); err != nil {
		t.Fatalf("CreateBan: %v", err)
	}
	if !checker.IsBanned(fork1.Fpr) {
		t.Error("checker did not record the ban")
	}

	if err := coordinator.CreateBan(checker, fork1, fork2); err == nil {
		t.Error("expected error re-banning an already-banned fingerprint")
	}
}
