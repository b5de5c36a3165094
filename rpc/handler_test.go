package rpc_test

import (
	"encoding/json"
	"testing"

	"github.com/toddfratello/pyomcore/bootstrap"
	_ "github.com/toddfratello/pyomcore/chain/actions"
	"github.com/toddfratello/pyomcore/index"
	"github.com/toddfratello/pyomcore/internal/testutil"
	"github.com/toddfratello/pyomcore/rpc"
)

func newTestHandler(t *testing.T) *rpc.Handler {
	t.Helper()
	rootdir := t.TempDir()
	identity := []byte("owner-identity-key")
	sgnr := testutil.NewFakeSigner(rootdir, identity)
	vc := testutil.NewFakeVCS()

	v, err := bootstrap.InitializeBlockchain(rootdir, sgnr, vc, identity, nil)
	if err != nil {
		t.Fatalf("InitializeBlockchain: %v", err)
	}
	idx := index.New(testutil.NewMemDB(), v.Events)
	return rpc.NewHandler(v, idx)
}

func TestDispatchGetBlockHeight(t *testing.T) {
	h := newTestHandler(t)
	resp := h.Dispatch(rpc.Request{ID: 1, Method: "getBlockHeight"})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	height, ok := resp.Result.(int64)
	if !ok {
		t.Fatalf("result type: got %T", resp.Result)
	}
	if height != 0 {
		t.Errorf("getBlockHeight: got %d want 0", height)
	}
}

func TestDispatchUnknownMethod(t *testing.T) {
	h := newTestHandler(t)
	resp := h.Dispatch(rpc.Request{ID: 1, Method: "doesNotExist"})
	if resp.Error == nil || resp.Error.Code != rpc.CodeMethodNotFound {
		t.Fatalf("expected CodeMethodNotFound, got %+v", resp.Error)
	}
}

func TestDispatchGetTransactionStatusMissingParams(t *testing.T) {
	h := newTestHandler(t)
	resp := h.Dispatch(rpc.Request{ID: 1, Method: "getTransactionStatus", Params: json.RawMessage(`{}`)})
	if resp.Error == nil || resp.Error.Code != rpc.CodeInvalidParams {
		t.Fatalf("expected CodeInvalidParams, got %+v", resp.Error)
	}
}

func TestDispatchGetTransactionStatusUnknownHash(t *testing.T) {
	h := newTestHandler(t)
	resp := h.Dispatch(rpc.Request{
		ID: 1, Method: "getTransactionStatus",
		Params: json.RawMessage(`{"hash":"nosuchhash"}`),
	})
	if resp.Error == nil || resp.Error.Code != rpc.CodeInvalidParams {
		t.Fatalf("expected CodeInvalidParams for unknown hash, got %+v", resp.Error)
	}
}

func TestDispatchIsBannedReturnsFalseForUnknownFpr(t *testing.T) {
	h := newTestHandler(t)
	resp := h.Dispatch(rpc.Request{
		ID: 1, Method: "isBanned",
		Params: json.RawMessage(`{"fpr":"DEADBEEF"}`),
	})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	m, ok := resp.Result.(map[string]bool)
	if !ok || m["banned"] {
		t.Errorf("isBanned: got %+v", resp.Result)
	}
}

func TestDispatchGetConnectionsEmpty(t *testing.T) {
	h := newTestHandler(t)
	resp := h.Dispatch(rpc.Request{ID: 1, Method: "getConnections"})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if conns, ok := resp.Result.([]string); ok && len(conns) != 0 {
		t.Errorf("getConnections: got %v want empty", conns)
	}
}
