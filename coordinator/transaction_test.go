package coordinator_test

import (
	"testing"
	"time"

	"github.com/toddfratello/pyomcore/bootstrap"
	_ "github.com/toddfratello/pyomcore/chain/actions"
	"github.com/toddfratello/pyomcore/coordinator"
	"github.com/toddfratello/pyomcore/internal/testutil"
)

func newParticipant(t *testing.T, name string) coordinator.Participant {
	t.Helper()
	rootdir := t.TempDir()
	identity := []byte(name)
	sgnr := testutil.NewFakeSigner(rootdir, identity)
	vc := testutil.NewFakeVCS()
	v, err := bootstrap.InitializeBlockchain(rootdir, sgnr, vc, identity, nil)
	if err != nil {
		t.Fatalf("InitializeBlockchain(%s): %v", name, err)
	}
	return coordinator.Participant{V: v}
}

func TestCreateTransactionRegistersOnEveryParticipant(t *testing.T) {
	p1 := newParticipant(t, "participant-one")
	p2 := newParticipant(t, "participant-two")

	if err := coordinator.CreateTransaction([]coordinator.Participant{p1, p2}, 24*time.Hour); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	if len(p1.V.Transactions) != 1 {
		t.Errorf("participant one transactions: got %d want 1", len(p1.V.Transactions))
	}
	if len(p2.V.Transactions) != 1 {
		t.Errorf("participant two transactions: got %d want 1", len(p2.V.Transactions))
	}
	if p1.V.Nextidx != 2 {
		t.Errorf("participant one Nextidx: got %d want 2", p1.V.Nextidx)
	}

	// Each participant learned the other's key through the compound
	// register_transaction block, since neither knew it beforehand.
	if _, ok := p1.V.KnownGPGKeys[p2.V.Fpr]; !ok {
		t.Error("participant one did not learn participant two's key")
	}
	if _, ok := p2.V.KnownGPGKeys[p1.V.Fpr]; !ok {
		t.Error("participant two did not learn participant one's key")
	}
}

func TestCreateTransactionRejectsNoParticipants(t *testing.T) {
	if err := coordinator.CreateTransaction(nil, time.Hour); err == nil {
		t.Error("expected error with zero participants")
	}
}
