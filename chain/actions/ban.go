package actions

import (
	"github.com/toddfratello/pyomcore/block"
	"github.com/toddfratello/pyomcore/chain"
	"github.com/toddfratello/pyomcore/errs"
	"github.com/toddfratello/pyomcore/events"
	"github.com/toddfratello/pyomcore/fileref"
)

func init() {
	chain.Register(block.ActionBan, verifyBan)
}

// verifyBan proves gpg signed two distinct blockrefs at the same idx:
// that is a fork, and a fork is the only admissible evidence for a ban.
// gpg's key is first imported from Keyfile exactly as import_gpg_key
// would, so the ban verifies without the key being known beforehand.
// The two blockref/signature pairs are loaded and independently checked
// against gpg; they must share an idx but differ in SHA-512.
func verifyBan(ctx *chain.Context, action block.Action) error {
	a, ok := action.(block.BanAction)
	if !ok {
		return errs.New(errs.Schema, "ban: wrong action type")
	}
	v := ctx.V

	if v.IsBanned(a.Gpg) {
		return errs.Newf(errs.AlreadyBanned, "ban: %s is already banned", a.Gpg)
	}
	if err := verifyImportGPGKey(ctx, block.ImportGPGKeyAction{Gpg: a.Gpg, Keyfile: a.Keyfile, GitRemoteURLs: a.GitRemoteURLs}); err != nil {
		return err
	}

	ref1Content, err := fileref.Load(v.Locs, a.BlockRef1)
	if err != nil {
		return err
	}
	sig1Content, err := fileref.Load(v.Locs, a.BlockSig1)
	if err != nil {
		return err
	}
	ref2Content, err := fileref.Load(v.Locs, a.BlockRef2)
	if err != nil {
		return err
	}
	sig2Content, err := fileref.Load(v.Locs, a.BlockSig2)
	if err != nil {
		return err
	}

	br1, err := v.CheckBlockrefSig(a.Gpg, ref1Content, sig1Content)
	if err != nil {
		return errs.Wrap(errs.SignatureInvalid, "ban: first blockref", err)
	}
	br2, err := v.CheckBlockrefSig(a.Gpg, ref2Content, sig2Content)
	if err != nil {
		return errs.Wrap(errs.SignatureInvalid, "ban: second blockref", err)
	}
	if br1.Idx != br2.Idx {
		return errs.Newf(errs.Schema, "ban: blockrefs are not a fork proof: idx %d != %d", br1.Idx, br2.Idx)
	}
	if br1.SHA512 == br2.SHA512 {
		return errs.New(errs.Schema, "ban: blockrefs are identical, not a fork proof")
	}

	v.Banned[a.Gpg] = a
	v.Emit(events.EventBanAdded, a.Gpg, ctx.BlockIdx, map[string]any{"idx": br1.Idx})
	return nil
}
