package actions

import (
	"github.com/toddfratello/pyomcore/block"
	"github.com/toddfratello/pyomcore/chain"
	"github.com/toddfratello/pyomcore/errs"
	"github.com/toddfratello/pyomcore/events"
	"github.com/toddfratello/pyomcore/fileref"
)

func init() {
	chain.Register(block.ActionSignTransaction, verifySignTransaction)
}

// verifySignTransaction records that gpg has co-signed a pending
// transaction. Block/BlockRef/BlockSig point at a copy of gpg's own
// signed block that registered the transaction; loading them and
// checking the blockref signature, the block's timestamp window and its
// matching register_transaction proves gpg's chain really carries the
// transaction, not just a bare claim in the action payload.
func verifySignTransaction(ctx *chain.Context, action block.Action) error {
	a, ok := action.(block.SignTransactionAction)
	if !ok {
		return errs.New(errs.Schema, "sign_transaction: wrong action type")
	}
	v := ctx.V

	if err := v.VerifyFpr(a.Gpg); err != nil {
		return err
	}
	status, ok := v.Transactions[a.Transaction.SHA512]
	if !ok {
		return errs.Newf(errs.Schema, "sign_transaction: unknown transaction %s", a.Transaction.SHA512)
	}
	if err := status.RequireStatePending("sign_transaction"); err != nil {
		return err
	}

	blockContent, err := fileref.Load(v.Locs, a.Block)
	if err != nil {
		return err
	}
	blockrefContent, err := fileref.Load(v.Locs, a.BlockRef)
	if err != nil {
		return err
	}
	sigContent, err := fileref.Load(v.Locs, a.BlockSig)
	if err != nil {
		return err
	}
	blk, br, err := v.CheckBlockSig(a.Gpg, blockContent, blockrefContent, sigContent)
	if err != nil {
		return errs.Wrap(errs.SignatureInvalid, "sign_transaction: evidence block", err)
	}
	blockTs, err := chain.ParseTimestamp(blk.Timestamp)
	if err != nil {
		return err
	}
	if err := chain.CheckTransactionTimestampWindow(blockTs, status.Transaction); err != nil {
		return err
	}
	if !chain.BlockRegistersTransaction(a.Transaction.SHA512, blk) {
		return errs.Newf(errs.Schema, "sign_transaction: evidence block does not register transaction %s", a.Transaction.SHA512)
	}

	if err := status.RemovePendingParticipant(a.Gpg); err != nil {
		return err
	}
	status.Signatures[a.Gpg] = &br

	v.Emit(events.EventTransactionSigned, a.Gpg, ctx.BlockIdx, map[string]any{
		"transaction": a.Transaction.SHA512,
	})
	return nil
}
