package actions

import (
	"github.com/toddfratello/pyomcore/block"
	"github.com/toddfratello/pyomcore/chain"
	"github.com/toddfratello/pyomcore/errs"
	"github.com/toddfratello/pyomcore/events"
)

func init() {
	chain.Register(block.ActionReinstateTransaction, verifyReinstateTransaction)
}

// verifyReinstateTransaction undoes a prior annul_transaction, moving
// the transaction back to Confirmed.
func verifyReinstateTransaction(ctx *chain.Context, action block.Action) error {
	a, ok := action.(block.ReinstateTransactionAction)
	if !ok {
		return errs.New(errs.Schema, "reinstate_transaction: wrong action type")
	}
	v := ctx.V

	status, ok := v.Transactions[a.Transaction.SHA512]
	if !ok {
		return errs.Newf(errs.Schema, "reinstate_transaction: unknown transaction %s", a.Transaction.SHA512)
	}
	if err := status.RequireState(chain.Annulled, "reinstate_transaction"); err != nil {
		return err
	}
	status.State = chain.Confirmed

	v.Emit(events.EventTransactionStatus, "", ctx.BlockIdx, map[string]any{
		"transaction": a.Transaction.SHA512,
		"state":       status.State.String(),
	})
	return nil
}
