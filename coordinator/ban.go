package coordinator

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/toddfratello/pyomcore/block"
	"github.com/toddfratello/pyomcore/builder"
	"github.com/toddfratello/pyomcore/chain"
	"github.com/toddfratello/pyomcore/errs"
	"github.com/toddfratello/pyomcore/fileref"
	"github.com/toddfratello/pyomcore/store"
)

// AddBan appends a ban action to v's chain, proving fpr forked by
// supplying two blockrefs+signatures at the same idx with different
// digests. keyContent is fpr's exported public key and remotes its
// known git remote URLs, both copied alongside the fork evidence so a
// reader of v's chain alone can independently re-verify the ban.
func AddBan(v *chain.Verifier, fpr string, idx int64, keyContent []byte, remotes map[string]string,
	refContent1, sigContent1, refContent2, sigContent2 []byte) error {

	banDir := filepath.Join(block.BannedDirname, fpr)
	fork1 := filepath.Join(banDir, "fork1")
	fork2 := filepath.Join(banDir, "fork2")

	relRef1 := filepath.Join(fork1, idxFilename(idx, block.BlockExtRef))
	relSig1 := filepath.Join(fork1, idxFilename(idx, block.BlockExtSig))
	relRef2 := filepath.Join(fork2, idxFilename(idx, block.BlockExtRef))
	relSig2 := filepath.Join(fork2, idxFilename(idx, block.BlockExtSig))
	relKey := filepath.Join(banDir, fpr+".key")

	for _, c := range []struct {
		rel     string
		content []byte
	}{
		{relRef1, refContent1}, {relSig1, sigContent1},
		{relRef2, refContent2}, {relSig2, sigContent2},
		{relKey, keyContent},
	} {
		if err := writeCopy(v.Rootdir, c.rel, c.content); err != nil {
			return err
		}
	}

	keyRef, err := fileref.Create(v.Rootdir, 0, relKey)
	if err != nil {
		return err
	}
	ref1, err := fileref.Create(v.Rootdir, 0, relRef1)
	if err != nil {
		return err
	}
	sig1, err := fileref.Create(v.Rootdir, 0, relSig1)
	if err != nil {
		return err
	}
	ref2, err := fileref.Create(v.Rootdir, 0, relRef2)
	if err != nil {
		return err
	}
	sig2, err := fileref.Create(v.Rootdir, 0, relSig2)
	if err != nil {
		return err
	}

	action := block.BanAction{
		Gpg:           fpr,
		Keyfile:       keyRef,
		GitRemoteURLs: remotes,
		BlockRef1:     ref1,
		BlockSig1:     sig1,
		BlockRef2:     ref2,
		BlockSig2:     sig2,
	}
	_, err = builder.AppendBlock(v, block.Protoblock{Actions: []block.Action{action}})
	return err
}

// idxFilename returns the bare filename (no directory prefix) a block
// triple member with the given extension would have for idx.
func idxFilename(idx int64, ext string) string {
	return filepath.Base(store.BlockPath(idx, ext))
}

// CreateBan walks two forked rootdirs belonging to the same fingerprint
// looking for the first block whose blockref digest diverges, then
// calls AddBan with that evidence. fork1 and fork2 are verifiers over
// the two forked rootdirs; only their stored blockrefs and signatures
// are read, and neither is replayed.
func CreateBan(v *chain.Verifier, fork1 *chain.Verifier, fork2 *chain.Verifier) error {
	if fork1.Fpr != fork2.Fpr {
		return errs.New(errs.Schema, "create_ban: fork1 and fork2 belong to different fingerprints")
	}
	fpr := fork1.Fpr
	if v.IsBanned(fpr) {
		return errs.Newf(errs.AlreadyBanned, "create_ban: %s is already banned", fpr)
	}

	numBlocks1, err := fork1.Store.MostRecentIdx()
	if err != nil {
		return err
	}
	numBlocks2, err := fork2.Store.MostRecentIdx()
	if err != nil {
		return err
	}
	limit := numBlocks1
	if numBlocks2 < limit {
		limit = numBlocks2
	}

	for idx := int64(0); idx <= limit; idx++ {
		_, refContent1, sigContent1, err := fork1.Store.ReadTriple(idx)
		if err != nil {
			return err
		}
		_, refContent2, sigContent2, err := fork2.Store.ReadTriple(idx)
		if err != nil {
			return err
		}
		var br1, br2 block.Blockref
		if err := json.Unmarshal(refContent1, &br1); err != nil {
			return errs.Wrap(errs.Schema, "create_ban: decode blockref1", err)
		}
		if err := json.Unmarshal(refContent2, &br2); err != nil {
			return errs.Wrap(errs.Schema, "create_ban: decode blockref2", err)
		}
		if br1.SHA512 != br2.SHA512 {
			keyContent, err := os.ReadFile(filepath.Join(fork1.Rootdir, block.Block0PubkeyFilename))
			if err != nil {
				return errs.Wrapf(errs.IOError, err, "create_ban: read %s", block.Block0PubkeyFilename)
			}
			remotes := map[string]string{}
			for name, url := range fork1.KnownGPGKeys[fpr] {
				remotes[name] = url
			}
			for name, url := range fork2.KnownGPGKeys[fpr] {
				remotes[name] = url
			}
			return AddBan(v, fpr, idx, keyContent, remotes, refContent1, sigContent1, refContent2, sigContent2)
		}
	}
	return errs.New(errs.NotFound, "create_ban: no fork found")
}

// AddExtraConnection copies thatV's blockref/signature at thatIdx into
// v's rootdir and appends an add_extra_connection action vouching for
// that peer's chain at that point.
func AddExtraConnection(v *chain.Verifier, thatV *chain.Verifier, thatIdx int64) error {
	subdir := mkUniquePath(filepath.Join(block.ExtraConnectionsDirname, thatV.Fpr))
	_, blockrefContent, sigContent, err := thatV.Store.ReadTriple(thatIdx)
	if err != nil {
		return err
	}
	relRef := filepath.Join(subdir, idxFilename(thatIdx, block.BlockExtRef))
	relSig := filepath.Join(subdir, idxFilename(thatIdx, block.BlockExtSig))
	if err := writeCopy(v.Rootdir, relRef, blockrefContent); err != nil {
		return err
	}
	if err := writeCopy(v.Rootdir, relSig, sigContent); err != nil {
		return err
	}
	refRef, err := fileref.Create(v.Rootdir, 0, relRef)
	if err != nil {
		return err
	}
	sigRef, err := fileref.Create(v.Rootdir, 0, relSig)
	if err != nil {
		return err
	}
	action := block.AddExtraConnectionAction{Gpg: thatV.Fpr, BlockRef: refRef, BlockSig: sigRef}
	_, err = builder.AppendBlock(v, block.Protoblock{Actions: []block.Action{action}})
	return err
}

// RemoveExtraConnection appends a remove_extra_connection action
// dropping v's previously recorded connection to thatV's chain.
func RemoveExtraConnection(v *chain.Verifier, thatV *chain.Verifier) error {
	action := block.RemoveExtraConnectionAction{Gpg: thatV.Fpr}
	_, err := builder.AppendBlock(v, block.Protoblock{Actions: []block.Action{action}})
	return err
}
