// Package builder constructs and appends new blocks to a verifier's own
// chain: stamp the bookkeeping fields a caller should never set by hand
// (idx, prev, owner, timestamp, version/magic), dry-run the actions
// against a throwaway copy of the verifier's state, and only once that
// succeeds sign and write the block triple to disk.
package builder

import (
	"time"

	"github.com/toddfratello/pyomcore/block"
	"github.com/toddfratello/pyomcore/chain"
	"github.com/toddfratello/pyomcore/errs"
	"github.com/toddfratello/pyomcore/events"
)

// AppendBlock builds a full Block from proto's actions, verifies it
// against a cloned copy of v's state, and, only if that dry run
// succeeds, signs it and commits it to v for real. Returns the new
// block's index.
func AppendBlock(v *chain.Verifier, proto block.Protoblock) (int64, error) {
	idx := v.Nextidx
	if idx < 0 {
		return 0, errs.Newf(errs.Schema, "append_block: negative idx %d", idx)
	}
	prevRef, err := v.GetPrevHash(idx)
	if err != nil {
		return 0, err
	}

	blk := block.Block{
		PyomVersion: block.VersionNumber,
		Magic:       block.BlockMagic,
		Idx:         idx,
		Owner:       block.Owner{Gpg: v.Fpr},
		Prev:        prevRef,
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
		Actions:     proto.Actions,
	}

	dryRun := v.Clone()
	if err := dryRun.VerifyBlockBody(time.Now().UTC(), idx, &blk); err != nil {
		return 0, errs.Wrap(errs.Schema, "append_block: dry run failed", err)
	}

	blockContent, err := block.Encode(blk)
	if err != nil {
		return 0, errs.Wrap(errs.Schema, "append_block: encode block", err)
	}
	br := block.Blockref{
		PyomVersion: block.VersionNumber,
		Magic:       block.BlockrefMagic,
		Gpg:         v.Fpr,
		Idx:         idx,
		SHA512:      block.SHA512Hex(blockContent),
	}
	blockrefContent, err := block.Encode(br)
	if err != nil {
		return 0, errs.Wrap(errs.Schema, "append_block: encode blockref", err)
	}
	sigContent, signerFpr, err := v.Signer.SignDetached(blockrefContent)
	if err != nil {
		return 0, errs.Wrap(errs.SignatureInvalid, "append_block: sign blockref", err)
	}
	if signerFpr != v.Fpr {
		return 0, errs.Newf(errs.FprMismatch, "append_block: signed by %s, expected owner %s", signerFpr, v.Fpr)
	}

	if err := v.Store.WriteTriple(idx, blockContent, blockrefContent, sigContent); err != nil {
		return 0, err
	}

	if err := v.VerifyBlock(idx); err != nil {
		return 0, errs.Wrap(errs.Schema, "append_block: commit verification failed after write", err)
	}
	v.Emit(events.EventBlockAppended, v.Fpr, idx, nil)
	return idx, nil
}
