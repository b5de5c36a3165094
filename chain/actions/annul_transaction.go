package actions

import (
	"github.com/toddfratello/pyomcore/block"
	"github.com/toddfratello/pyomcore/chain"
	"github.com/toddfratello/pyomcore/errs"
	"github.com/toddfratello/pyomcore/events"
)

func init() {
	chain.Register(block.ActionAnnulTransaction, verifyAnnulTransaction)
}

// verifyAnnulTransaction moves a Confirmed transaction to Annulled. The
// action carries a human-readable explanation rather than cryptographic
// evidence; annulment is a statement by the chain owner, checked for
// soundness later by the dependency-graph no-cherry-pick rule rather
// than at the point it is recorded.
func verifyAnnulTransaction(ctx *chain.Context, action block.Action) error {
	a, ok := action.(block.AnnulTransactionAction)
	if !ok {
		return errs.New(errs.Schema, "annul_transaction: wrong action type")
	}
	v := ctx.V

	status, ok := v.Transactions[a.Transaction.SHA512]
	if !ok {
		return errs.Newf(errs.Schema, "annul_transaction: unknown transaction %s", a.Transaction.SHA512)
	}
	if err := status.RequireState(chain.Confirmed, "annul_transaction"); err != nil {
		return err
	}
	if a.Explanation == "" {
		return errs.New(errs.Schema, "annul_transaction: explanation required")
	}
	status.State = chain.Annulled

	v.Emit(events.EventTransactionStatus, "", ctx.BlockIdx, map[string]any{
		"transaction": a.Transaction.SHA512,
		"state":       status.State.String(),
		"explanation": a.Explanation,
	})
	return nil
}
