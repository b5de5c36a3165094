package coordinator

import (
	"encoding/json"

	"github.com/toddfratello/pyomcore/chain"
	"github.com/toddfratello/pyomcore/errs"
	"github.com/toddfratello/pyomcore/fileref"
)

// CopyBans pulls every ban recorded on any of peers' chains that mainV
// does not yet know about, and re-records it on mainV's own chain so a
// single party's ban list eventually propagates everywhere.
func CopyBans(mainV *chain.Verifier, peers []*chain.Verifier) error {
	for _, peer := range peers {
		for fpr, action := range peer.Banned {
			if mainV.IsBanned(fpr) {
				continue
			}
			locs := fileref.LocationArray{peer.Rootdir}
			keyContent, err := fileref.Load(locs, action.Keyfile)
			if err != nil {
				return err
			}
			refContent1, err := fileref.Load(locs, action.BlockRef1)
			if err != nil {
				return err
			}
			sigContent1, err := fileref.Load(locs, action.BlockSig1)
			if err != nil {
				return err
			}
			refContent2, err := fileref.Load(locs, action.BlockRef2)
			if err != nil {
				return err
			}
			sigContent2, err := fileref.Load(locs, action.BlockSig2)
			if err != nil {
				return err
			}
			var br1 struct {
				Idx int64 `json:"idx"`
			}
			if err := json.Unmarshal(refContent1, &br1); err != nil {
				return errs.Wrap(errs.Schema, "copy_bans: decode blockref", err)
			}
			if err := AddBan(mainV, fpr, br1.Idx, keyContent, action.GitRemoteURLs,
				refContent1, sigContent1, refContent2, sigContent2); err != nil {
				return err
			}
		}
	}
	return nil
}
