// Package actions registers the handler for every block.ActionType with
// the chain package's global registry. Each file is independent and
// self-registers from init(), mirroring how vm/modules registers opcode
// handlers with the executor.
package actions

import (
	"github.com/toddfratello/pyomcore/block"
	"github.com/toddfratello/pyomcore/chain"
	"github.com/toddfratello/pyomcore/errs"
	"github.com/toddfratello/pyomcore/events"
	"github.com/toddfratello/pyomcore/fileref"
)

func init() {
	chain.Register(block.ActionImportGPGKey, verifyImportGPGKey)
}

// verifyImportGPGKey loads the referenced key material, imports it into
// the verifier's signer, checks the resulting fingerprint matches the
// action's declared gpg field, and records the key (and the git remote
// URLs vouching for it) as known.
func verifyImportGPGKey(ctx *chain.Context, action block.Action) error {
	a, ok := action.(block.ImportGPGKeyAction)
	if !ok {
		return errs.New(errs.Schema, "import_gpg_key: wrong action type")
	}
	v := ctx.V

	keyData, err := fileref.Load(v.Locs, a.Keyfile)
	if err != nil {
		return err
	}
	fpr, err := v.Signer.ImportKey(keyData)
	if err != nil {
		return errs.Wrap(errs.Schema, "import_gpg_key: import failed", err)
	}
	if fpr != a.Gpg {
		return errs.Newf(errs.FprMismatch, "import_gpg_key: keyfile fpr %s does not match declared gpg %s", fpr, a.Gpg)
	}

	remotes := make(map[string]string, len(a.GitRemoteURLs))
	for name, url := range a.GitRemoteURLs {
		remotes[name] = url
	}
	v.KnownGPGKeys[a.Gpg] = remotes

	v.Emit(events.EventKeyImported, a.Gpg, ctx.BlockIdx, map[string]any{
		"git_remote_urls": remotes,
	})
	return nil
}
