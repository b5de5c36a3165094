// Package depcheck walks the dependency graph a chain's extra
// connections and transaction signatures reach into, lazily replaying
// just enough of each referenced peer chain to confirm the evidence is
// real, and enforces the no-cherry-pick rule: an annulled transaction
// must be detached from every peer's current replay horizon before it
// can be considered safely undone.
package depcheck

import (
	"log"

	"github.com/toddfratello/pyomcore/block"
	"github.com/toddfratello/pyomcore/chain"
	"github.com/toddfratello/pyomcore/errs"
	"github.com/toddfratello/pyomcore/signer"
	"github.com/toddfratello/pyomcore/vcs"
)

// Locator resolves a fingerprint to the rootdir of its chain on disk.
// Evidence (sign_transaction, add_extra_connection) names a peer only
// by fingerprint; something outside the chain itself has to know where
// that fingerprint's files actually live.
type Locator interface {
	RootdirFor(fpr string) (string, bool)
}

// WorkItem is one piece of evidence still needing independent
// confirmation: fpr must have actually produced Blockref.
type WorkItem struct {
	Fpr      string
	Blockref block.Blockref
}

// Checker holds the lazily-replayed peer verifiers accumulated across a
// single dependency-chain check.
type Checker struct {
	locator   Locator
	signer    signer.Signer
	vcs       vcs.VCS
	verifiers map[string]*chain.Verifier
}

// New creates a Checker that resolves peer chains through locator.
func New(locator Locator, sgnr signer.Signer, vc vcs.VCS) *Checker {
	return &Checker{
		locator:   locator,
		signer:    sgnr,
		vcs:       vc,
		verifiers: make(map[string]*chain.Verifier),
	}
}

func (c *Checker) verifierFor(fpr string) (*chain.Verifier, error) {
	if v, ok := c.verifiers[fpr]; ok {
		return v, nil
	}
	rootdir, ok := c.locator.RootdirFor(fpr)
	if !ok {
		return nil, errs.Newf(errs.NotFound, "depcheck: no known location for %s", fpr)
	}
	v, err := chain.New(rootdir, c.signer, c.vcs)
	if err != nil {
		return nil, err
	}
	c.verifiers[fpr] = v
	return v, nil
}

// replayTo lazily advances v to idx inclusive. This is the horizon
// described in Open Question 2: only the prefix a piece of evidence
// actually points into gets replayed, never the peer's whole chain.
func replayTo(v *chain.Verifier, idx int64) error {
	for v.Nextidx <= idx {
		if err := v.VerifyBlock(v.Nextidx); err != nil {
			return err
		}
	}
	return nil
}

// CheckDependency confirms fpr's chain really produced br by replaying
// that chain up to br.Idx inclusive and comparing br's digest with the
// block actually stored at that idx.
func (c *Checker) CheckDependency(fpr string, br block.Blockref) error {
	v, err := c.verifierFor(fpr)
	if err != nil {
		return err
	}
	if err := replayTo(v, br.Idx); err != nil {
		return err
	}
	blockContent, _, _, err := v.Store.ReadTriple(br.Idx)
	if err != nil {
		return err
	}
	if block.SHA512Hex(blockContent) != br.SHA512 {
		return errs.Newf(errs.HashMismatch, "depcheck: %s block %d does not match the referenced blockref", fpr, br.Idx)
	}
	return nil
}

// IsDetached reports whether every signature behind status lies at or
// beyond its signer's current replay horizon: the signer's chain has
// moved on from (or never depended further on) the evidence confirming
// this transaction, so annulling it here cannot silently strand a
// cherry-picked confirmation on the other side. A signer whose chain
// hasn't been replayed at all is given the benefit of the doubt.
func (c *Checker) IsDetached(status *chain.TransactionStatus) bool {
	for fpr, br := range status.Signatures {
		v, ok := c.verifiers[fpr]
		if !ok {
			return true
		}
		if br.Idx < v.Nextidx {
			return false
		}
	}
	return true
}

// CheckDependencyChain walks every extra connection and transaction
// signature reachable from mainV, replaying each referenced peer lazily,
// and finally enforces the no-cherry-pick rule over every transaction
// mainV has annulled.
func CheckDependencyChain(mainV *chain.Verifier, locator Locator, sgnr signer.Signer, vc vcs.VCS) error {
	c := New(locator, sgnr, vc)
	c.verifiers[mainV.Fpr] = mainV

	var worklist []WorkItem
	for fpr, br := range mainV.ExtraConnections {
		worklist = append(worklist, WorkItem{Fpr: fpr, Blockref: br})
	}
	for _, status := range mainV.Transactions {
		if !status.IsConfirmed() {
			continue
		}
		for fpr, br := range status.Signatures {
			worklist = append(worklist, WorkItem{Fpr: fpr, Blockref: *br})
		}
	}

	seen := make(map[string]int64)
	for len(worklist) > 0 {
		item := worklist[0]
		worklist = worklist[1:]
		if prevIdx, ok := seen[item.Fpr]; ok && prevIdx >= item.Blockref.Idx {
			continue
		}
		seen[item.Fpr] = item.Blockref.Idx

		if err := c.CheckDependency(item.Fpr, item.Blockref); err != nil {
			if errs.Is(err, errs.NotFound) {
				log.Printf("depcheck: warning: missing blockchain: %s", item.Fpr)
				continue
			}
			return err
		}
		v := c.verifiers[item.Fpr]
		for peerFpr, peerBr := range v.ExtraConnections {
			worklist = append(worklist, WorkItem{Fpr: peerFpr, Blockref: peerBr})
		}
		for _, status := range v.Transactions {
			if !status.IsConfirmed() {
				continue
			}
			for peerFpr, peerBr := range status.Signatures {
				worklist = append(worklist, WorkItem{Fpr: peerFpr, Blockref: *peerBr})
			}
		}
	}

	for hash, status := range mainV.Transactions {
		if status.IsAnnulled() && !c.IsDetached(status) {
			return errs.Newf(errs.StateTransitionDenied,
				"depcheck: annulled transaction %s is not detached on every peer chain", hash)
		}
	}
	return nil
}
