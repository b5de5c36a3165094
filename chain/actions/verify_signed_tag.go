package actions

import (
	"github.com/toddfratello/pyomcore/block"
	"github.com/toddfratello/pyomcore/chain"
	"github.com/toddfratello/pyomcore/errs"
	"github.com/toddfratello/pyomcore/events"
	"github.com/toddfratello/pyomcore/fileref"
)

func init() {
	chain.Register(block.ActionVerifySignedTag, verifyVerifySignedTag)
}

// verifyVerifySignedTag checks that gpg has a GPG-signed git tag
// pointing at the current commit of GitRepo, the mechanism a smart
// contract's authors use to prove they accept a given revision of its
// code without that revision needing a fileref of its own.
func verifyVerifySignedTag(ctx *chain.Context, action block.Action) error {
	a, ok := action.(block.VerifySignedTagAction)
	if !ok {
		return errs.New(errs.Schema, "verify_signed_tag: wrong action type")
	}
	v := ctx.V

	if err := v.VerifyFpr(a.Gpg); err != nil {
		return err
	}
	repoDir, err := fileref.ResolvePathref(v.Locs, a.GitRepo)
	if err != nil {
		return err
	}
	commitID, err := v.VCS.CurrentCommit(repoDir)
	if err != nil {
		return errs.Wrap(errs.IOError, "verify_signed_tag: current commit", err)
	}
	if err := v.VCS.VerifyTagSignature(repoDir, commitID, a.Gpg, v.Signer.HomeDir()); err != nil {
		return err
	}

	v.Emit(events.EventSignedTagVerified, a.Gpg, ctx.BlockIdx, map[string]any{
		"git_repo": repoDir,
		"commit":   commitID,
	})
	return nil
}
