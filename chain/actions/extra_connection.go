package actions

import (
	"github.com/toddfratello/pyomcore/block"
	"github.com/toddfratello/pyomcore/chain"
	"github.com/toddfratello/pyomcore/errs"
	"github.com/toddfratello/pyomcore/events"
	"github.com/toddfratello/pyomcore/fileref"
)

func init() {
	chain.Register(block.ActionAddExtraConnection, verifyAddExtraConnection)
	chain.Register(block.ActionRemoveExtraConnection, verifyRemoveExtraConnection)
}

// verifyAddExtraConnection records that gpg's chain is now also reachable
// through the given blockref/signature, the mechanism the dependency
// checker uses to walk across chains it wouldn't otherwise discover from
// sign_transaction evidence alone.
func verifyAddExtraConnection(ctx *chain.Context, action block.Action) error {
	a, ok := action.(block.AddExtraConnectionAction)
	if !ok {
		return errs.New(errs.Schema, "add_extra_connection: wrong action type")
	}
	v := ctx.V

	if err := v.VerifyFpr(a.Gpg); err != nil {
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
	br, err := v.CheckBlockrefSig(a.Gpg, blockrefContent, sigContent)
	if err != nil {
		return err
	}
	v.ExtraConnections[a.Gpg] = br

	v.Emit(events.EventConnectionAdded, a.Gpg, ctx.BlockIdx, map[string]any{"idx": br.Idx})
	return nil
}

// verifyRemoveExtraConnection drops a previously added extra connection.
// Removing one that was never added is a hard error: unlike a no-op
// deletion, it signals the block was built against state this verifier
// never reached, the same class of problem a bad prev hash would catch.
func verifyRemoveExtraConnection(ctx *chain.Context, action block.Action) error {
	a, ok := action.(block.RemoveExtraConnectionAction)
	if !ok {
		return errs.New(errs.Schema, "remove_extra_connection: wrong action type")
	}
	v := ctx.V

	if _, exists := v.ExtraConnections[a.Gpg]; !exists {
		return errs.Newf(errs.NotFound, "remove_extra_connection: no extra connection for %s", a.Gpg)
	}
	delete(v.ExtraConnections, a.Gpg)

	v.Emit(events.EventConnectionRemoved, a.Gpg, ctx.BlockIdx, nil)
	return nil
}
