package actions

import (
	"github.com/toddfratello/pyomcore/block"
	"github.com/toddfratello/pyomcore/chain"
	"github.com/toddfratello/pyomcore/errs"
	"github.com/toddfratello/pyomcore/events"
)

func init() {
	chain.Register(block.ActionConfirmTransaction, verifyConfirmTransaction)
}

// verifyConfirmTransaction moves a transaction from Pending to Confirmed
// once every participant has signed. It carries no signature evidence
// of its own: the sign_transaction actions already on file are what
// prove consent, and this action only records that the list is now
// complete.
func verifyConfirmTransaction(ctx *chain.Context, action block.Action) error {
	a, ok := action.(block.ConfirmTransactionAction)
	if !ok {
		return errs.New(errs.Schema, "confirm_transaction: wrong action type")
	}
	v := ctx.V

	status, ok := v.Transactions[a.Transaction.SHA512]
	if !ok {
		return errs.Newf(errs.Schema, "confirm_transaction: unknown transaction %s", a.Transaction.SHA512)
	}
	if err := status.RequireStatePending("confirm_transaction"); err != nil {
		return err
	}
	if len(status.PendingParticipants) > 0 {
		return errs.Newf(errs.StateTransitionDenied, "confirm_transaction: %d participant(s) have not signed", len(status.PendingParticipants))
	}
	status.State = chain.Confirmed

	v.Emit(events.EventTransactionStatus, "", ctx.BlockIdx, map[string]any{
		"transaction": a.Transaction.SHA512,
		"state":       status.State.String(),
	})
	return nil
}
