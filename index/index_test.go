package index_test

import (
	"testing"

	"github.com/toddfratello/pyomcore/events"
	"github.com/toddfratello/pyomcore/index"
	"github.com/toddfratello/pyomcore/internal/testutil"
)

func newIndex() (*index.Index, *events.Emitter) {
	e := events.NewEmitter()
	return index.New(testutil.NewMemDB(), e), e
}

func TestLatestBlockTracksBlockAppended(t *testing.T) {
	idx, e := newIndex()

	if _, ok, err := idx.LatestBlock("ABCD"); err != nil || ok {
		t.Fatalf("LatestBlock before any event: ok=%v err=%v", ok, err)
	}

	e.Emit(events.Event{Type: events.EventBlockAppended, Fpr: "ABCD", BlockIdx: 4})

	got, ok, err := idx.LatestBlock("ABCD")
	if err != nil {
		t.Fatalf("LatestBlock: %v", err)
	}
	if !ok || got != 4 {
		t.Errorf("LatestBlock: got (%d,%v) want (4,true)", got, ok)
	}
}

func TestTransactionStatusTracksRegisteredAndStatusChanges(t *testing.T) {
	idx, e := newIndex()

	e.Emit(events.Event{
		Type: events.EventTransactionRegistered, BlockIdx: 1,
		Data: map[string]any{"transaction": "deadbeef"},
	})
	status, ok, err := idx.GetTransactionStatus("deadbeef")
	if err != nil {
		t.Fatalf("GetTransactionStatus: %v", err)
	}
	if !ok || status.State != "pending" {
		t.Errorf("GetTransactionStatus after register: got %+v ok=%v", status, ok)
	}

	e.Emit(events.Event{
		Type: events.EventTransactionStatus, BlockIdx: 2,
		Data: map[string]any{"transaction": "deadbeef", "state": "confirmed"},
	})
	status, ok, err = idx.GetTransactionStatus("deadbeef")
	if err != nil {
		t.Fatalf("GetTransactionStatus: %v", err)
	}
	if !ok || status.State != "confirmed" || status.BlockIdx != 2 {
		t.Errorf("GetTransactionStatus after status change: got %+v", status)
	}
}

func TestTransactionSignersAccumulateAndDedupe(t *testing.T) {
	idx, e := newIndex()

	e.Emit(events.Event{Type: events.EventTransactionSigned, Fpr: "ABCD", Data: map[string]any{"transaction": "hash1"}})
	e.Emit(events.Event{Type: events.EventTransactionSigned, Fpr: "EF01", Data: map[string]any{"transaction": "hash1"}})
	e.Emit(events.Event{Type: events.EventTransactionSigned, Fpr: "ABCD", Data: map[string]any{"transaction": "hash1"}})

	signers, err := idx.GetTransactionSigners("hash1")
	if err != nil {
		t.Fatalf("GetTransactionSigners: %v", err)
	}
	if len(signers) != 2 {
		t.Errorf("signers: got %v want 2 distinct entries", signers)
	}
}

func TestIsBannedReflectsBanAddedEvent(t *testing.T) {
	idx, e := newIndex()

	banned, err := idx.IsBanned("DEAD")
	if err != nil {
		t.Fatalf("IsBanned: %v", err)
	}
	if banned {
		t.Fatal("expected not banned before any ban event")
	}

	e.Emit(events.Event{Type: events.EventBanAdded, Fpr: "DEAD"})

	banned, err = idx.IsBanned("DEAD")
	if err != nil {
		t.Fatalf("IsBanned: %v", err)
	}
	if !banned {
		t.Error("expected banned after ban_added event")
	}
}

func TestConnectionsAddedAndRemoved(t *testing.T) {
	idx, e := newIndex()

	e.Emit(events.Event{Type: events.EventConnectionAdded, Fpr: "ABCD"})
	e.Emit(events.Event{Type: events.EventConnectionAdded, Fpr: "EF01"})

	conns, err := idx.GetConnections()
	if err != nil {
		t.Fatalf("GetConnections: %v", err)
	}
	if len(conns) != 2 {
		t.Fatalf("GetConnections after two adds: got %v", conns)
	}

	e.Emit(events.Event{Type: events.EventConnectionRemoved, Fpr: "ABCD"})

	conns, err = idx.GetConnections()
	if err != nil {
		t.Fatalf("GetConnections: %v", err)
	}
	if len(conns) != 1 || conns[0] != "EF01" {
		t.Errorf("GetConnections after remove: got %v", conns)
	}
}
