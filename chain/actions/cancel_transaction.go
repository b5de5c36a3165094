package actions

import (
	"github.com/toddfratello/pyomcore/block"
	"github.com/toddfratello/pyomcore/chain"
	"github.com/toddfratello/pyomcore/errs"
	"github.com/toddfratello/pyomcore/events"
	"github.com/toddfratello/pyomcore/fileref"
)

func init() {
	chain.Register(block.ActionCancelTransaction, verifyCancelTransaction)
}

// verifyCancelTransaction moves a still-pending transaction to
// Cancelled on proof that gpg never registered it: at least two
// sequentially-idxed blocks signed by gpg, none of which register the
// transaction, bracketing the transaction's timestamp window (the
// first strictly before transaction.timestamp, the last strictly after
// transaction.expiry). gpg must itself still be a pending participant.
func verifyCancelTransaction(ctx *chain.Context, action block.Action) error {
	a, ok := action.(block.CancelTransactionAction)
	if !ok {
		return errs.New(errs.Schema, "cancel_transaction: wrong action type")
	}
	v := ctx.V

	if err := v.VerifyFpr(a.Gpg); err != nil {
		return err
	}
	status, ok := v.Transactions[a.Transaction.SHA512]
	if !ok {
		return errs.Newf(errs.Schema, "cancel_transaction: unknown transaction %s", a.Transaction.SHA512)
	}
	if err := status.RequireStatePending("cancel_transaction"); err != nil {
		return err
	}
	if _, pending := status.PendingParticipants[a.Gpg]; !pending {
		return errs.Newf(errs.InvalidParticipant, "cancel_transaction: %s is not a pending participant", a.Gpg)
	}

	numBlocks := len(a.Blocks)
	if numBlocks < 2 {
		return errs.New(errs.Schema, "cancel_transaction: at least 2 evidence blocks required")
	}

	txTs, err := chain.ParseTimestamp(status.Transaction.Timestamp)
	if err != nil {
		return err
	}
	expiryTs, err := chain.ParseTimestamp(status.Transaction.Expiry)
	if err != nil {
		return err
	}

	var startIdx int64
	for i, triple := range a.Blocks {
		blockContent, err := fileref.Load(v.Locs, triple.Block)
		if err != nil {
			return err
		}
		blockrefContent, err := fileref.Load(v.Locs, triple.BlockRef)
		if err != nil {
			return err
		}
		sigContent, err := fileref.Load(v.Locs, triple.BlockSig)
		if err != nil {
			return err
		}
		blk, _, err := v.CheckBlockSig(a.Gpg, blockContent, blockrefContent, sigContent)
		if err != nil {
			return errs.Wrap(errs.SignatureInvalid, "cancel_transaction: evidence block", err)
		}
		if chain.BlockRegistersTransaction(a.Transaction.SHA512, blk) {
			return errs.Newf(errs.Schema, "cancel_transaction: evidence block %d registers transaction %s", i, a.Transaction.SHA512)
		}
		blockTs, err := chain.ParseTimestamp(blk.Timestamp)
		if err != nil {
			return err
		}

		if i == 0 {
			startIdx = blk.Idx
			if !blockTs.Before(txTs) {
				return errs.New(errs.BadTimestamp, "cancel_transaction: first evidence block is too recent")
			}
		} else if blk.Idx != startIdx+int64(i) {
			return errs.New(errs.LayoutCorruption, "cancel_transaction: evidence blocks are not in sequence")
		}
		if i == numBlocks-1 {
			if !expiryTs.Before(blockTs) {
				return errs.New(errs.BadTimestamp, "cancel_transaction: last evidence block is too old")
			}
		}
	}

	status.State = chain.Cancelled
	v.Emit(events.EventTransactionStatus, a.Gpg, ctx.BlockIdx, map[string]any{
		"transaction": a.Transaction.SHA512,
		"state":       status.State.String(),
	})
	return nil
}
