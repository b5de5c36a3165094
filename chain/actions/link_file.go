package actions

import (
	"github.com/toddfratello/pyomcore/block"
	"github.com/toddfratello/pyomcore/chain"
	"github.com/toddfratello/pyomcore/errs"
	"github.com/toddfratello/pyomcore/events"
	"github.com/toddfratello/pyomcore/fileref"
)

func init() {
	chain.Register(block.ActionLinkFile, verifyLinkFile)
}

// verifyLinkFile has no state to update; it exists purely to put an
// arbitrary piece of content under the chain's hash chain, so its only
// job is to prove File actually resolves and its digest matches.
func verifyLinkFile(ctx *chain.Context, action block.Action) error {
	a, ok := action.(block.LinkFileAction)
	if !ok {
		return errs.New(errs.Schema, "link_file: wrong action type")
	}
	v := ctx.V

	if _, err := fileref.Load(v.Locs, a.File); err != nil {
		return err
	}

	v.Emit(events.EventFileLinked, "", ctx.BlockIdx, map[string]any{"filename": a.File.Filename})
	return nil
}
