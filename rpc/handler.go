package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/toddfratello/pyomcore/chain"
	"github.com/toddfratello/pyomcore/index"
)

// Handler holds all dependencies needed to serve RPC methods. It is
// read-only: a pyomcore node's chain only ever advances through builder
// and coordinator, so the query surface has no sendTx-style mutating
// method.
type Handler struct {
	v   *chain.Verifier
	idx *index.Index
}

// NewHandler creates an RPC Handler over v's own chain, answering queries
// through idx rather than replaying v on every request.
func NewHandler(v *chain.Verifier, idx *index.Index) *Handler {
	return &Handler{v: v, idx: idx}
}

// Dispatch routes an RPC request to the correct method.
func (h *Handler) Dispatch(req Request) Response {
	switch req.Method {
	case "getBlockHeight":
		return okResponse(req.ID, h.v.Nextidx-1)

	case "getTransactionStatus":
		return h.getTransactionStatus(req)

	case "getTransactionSigners":
		return h.getTransactionSigners(req)

	case "isBanned":
		return h.isBanned(req)

	case "getConnections":
		return h.getConnections(req)

	case "getLatestBlock":
		return h.getLatestBlock(req)

	default:
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
}

func (h *Handler) getTransactionStatus(req Request) Response {
	var params struct {
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
	}
	if params.Hash == "" {
		return errResponse(req.ID, CodeInvalidParams, "hash is required")
	}
	status, ok, err := h.idx.GetTransactionStatus(params.Hash)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	if !ok {
		return errResponse(req.ID, CodeInvalidParams, "no such transaction")
	}
	return okResponse(req.ID, status)
}

func (h *Handler) getTransactionSigners(req Request) Response {
	var params struct {
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
	}
	if params.Hash == "" {
		return errResponse(req.ID, CodeInvalidParams, "hash is required")
	}
	signers, err := h.idx.GetTransactionSigners(params.Hash)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, signers)
}

func (h *Handler) isBanned(req Request) Response {
	var params struct {
		Fpr string `json:"fpr"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
	}
	if params.Fpr == "" {
		return errResponse(req.ID, CodeInvalidParams, "fpr is required")
	}
	banned, err := h.idx.IsBanned(params.Fpr)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]bool{"banned": banned})
}

func (h *Handler) getConnections(req Request) Response {
	conns, err := h.idx.GetConnections()
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, conns)
}

func (h *Handler) getLatestBlock(req Request) Response {
	var params struct {
		Fpr string `json:"fpr"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
	}
	if params.Fpr == "" {
		return errResponse(req.ID, CodeInvalidParams, "fpr is required")
	}
	blockIdx, ok, err := h.idx.LatestBlock(params.Fpr)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	if !ok {
		return errResponse(req.ID, CodeInvalidParams, "no known blocks for fpr")
	}
	return okResponse(req.ID, blockIdx)
}
