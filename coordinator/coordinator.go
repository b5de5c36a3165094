// Package coordinator drives the cross-chain transaction protocol: a
// participant copies block evidence out of a counterparty's chain into
// its own rootdir, then appends an action referencing that copy through
// builder.AppendBlock. Most entry points append one block;
// CreateTransaction appends one per participant chain, CopyBans one per
// copied ban, and ConfirmTransactions none when it finds nothing to do.
package coordinator

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/toddfratello/pyomcore/block"
	"github.com/toddfratello/pyomcore/builder"
	"github.com/toddfratello/pyomcore/chain"
	"github.com/toddfratello/pyomcore/errs"
	"github.com/toddfratello/pyomcore/fileref"
	"github.com/toddfratello/pyomcore/store"
)

// writeCopy writes content to rootdir/relpath, creating parent
// directories as needed.
func writeCopy(rootdir, relpath string, content []byte) error {
	full := filepath.Join(rootdir, relpath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return errs.Wrapf(errs.IOError, err, "mkdir for %s", full)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return errs.Wrapf(errs.IOError, err, "write %s", full)
	}
	return nil
}

// mkUniquePath returns a fresh subdirectory name under parent, named
// from the current timestamp plus a short random suffix so concurrent
// callers never collide.
func mkUniquePath(parent string) string {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	return filepath.Join(parent, fmt.Sprintf("%d-%s", time.Now().UTC().UnixNano(), hex.EncodeToString(suffix)))
}

// copyBlockTriple copies the (block, blockref, signature) triple for
// thatIdx out of thatV's rootdir into a fresh subdirectory of thisV's
// rootdir, and returns filerefs over the three copies.
func copyBlockTriple(thisV *chain.Verifier, subdir string, thatV *chain.Verifier, thatIdx int64) (block.BlockTriple, error) {
	blockContent, blockrefContent, sigContent, err := thatV.Store.ReadTriple(thatIdx)
	if err != nil {
		return block.BlockTriple{}, err
	}
	name := store.BlockPath(thatIdx, block.BlockExtJSON)
	relBlock := filepath.Join(subdir, filepath.Base(name))
	relRef := filepath.Join(subdir, filepath.Base(store.BlockPath(thatIdx, block.BlockExtRef)))
	relSig := filepath.Join(subdir, filepath.Base(store.BlockPath(thatIdx, block.BlockExtSig)))

	if err := writeCopy(thisV.Rootdir, relBlock, blockContent); err != nil {
		return block.BlockTriple{}, err
	}
	if err := writeCopy(thisV.Rootdir, relRef, blockrefContent); err != nil {
		return block.BlockTriple{}, err
	}
	if err := writeCopy(thisV.Rootdir, relSig, sigContent); err != nil {
		return block.BlockTriple{}, err
	}

	blockRef, err := fileref.Create(thisV.Rootdir, 0, relBlock)
	if err != nil {
		return block.BlockTriple{}, err
	}
	refRef, err := fileref.Create(thisV.Rootdir, 0, relRef)
	if err != nil {
		return block.BlockTriple{}, err
	}
	sigRef, err := fileref.Create(thisV.Rootdir, 0, relSig)
	if err != nil {
		return block.BlockTriple{}, err
	}
	return block.BlockTriple{Block: blockRef, BlockRef: refRef, BlockSig: sigRef}, nil
}

// ConfirmTransactions looks for transactions in thisV that can be
// confirmed (or cancelled) because of what has happened in thatV. When
// confirmOnly is true it refuses to sign a transaction unless thatV is
// its last remaining pending participant, the behaviour
// sign_transactions.py relaxes by passing confirmOnly=false.
func ConfirmTransactions(thisV, thatV *chain.Verifier, confirmOnly bool) error {
	var actions []block.Action

	for hash, status := range thisV.Transactions {
		if !status.IsPending() {
			continue
		}
		if _, pending := status.PendingParticipants[thatV.Fpr]; !pending {
			continue
		}
		if thatStatus, ok := thatV.Transactions[hash]; ok {
			if confirmOnly && len(status.PendingParticipants) > 1 {
				return errs.New(errs.StateTransitionDenied,
					"confirm_transactions: not the last participant; use sign-only mode")
			}
			subdir := mkUniquePath(block.ConfirmationsDirname)
			triple, err := copyBlockTriple(thisV, subdir, thatV, thatStatus.BlockIdx)
			if err != nil {
				return err
			}
			actions = append(actions, block.SignTransactionAction{
				Gpg:         thatV.Fpr,
				Transaction: block.TxHashRef{SHA512: hash},
				Block:       triple.Block,
				BlockRef:    triple.BlockRef,
				BlockSig:    triple.BlockSig,
			})
			if len(status.PendingParticipants) == 1 {
				actions = append(actions, block.ConfirmTransactionAction{
					Transaction: block.TxHashRef{SHA512: hash},
				})
			}
			continue
		}

		// Not present in thatV: see whether enough time has passed on
		// thatV's chain to treat the transaction as expired.
		cancelAction, err := buildCancelForExpiry(thisV, thatV, hash, status)
		if err != nil {
			return err
		}
		if cancelAction != nil {
			actions = append(actions, *cancelAction)
		}
	}

	if len(actions) == 0 {
		return nil
	}
	_, err := builder.AppendBlock(thisV, block.Protoblock{Actions: actions})
	return err
}

// buildCancelForExpiry looks backwards through thatV's chain for proof
// that status's transaction has expired unconfirmed, and if so builds
// the cancel_transaction action with the block range bracketing the
// expiry as evidence. Returns nil, nil if there is not yet enough
// evidence to cancel.
func buildCancelForExpiry(thisV, thatV *chain.Verifier, hash string, status *chain.TransactionStatus) (*block.CancelTransactionAction, error) {
	txTimestamp, err := time.Parse(time.RFC3339Nano, status.Transaction.Timestamp)
	if err != nil {
		return nil, errs.Wrap(errs.BadTimestamp, "buildCancelForExpiry: transaction timestamp", err)
	}
	expiryTimestamp, err := time.Parse(time.RFC3339Nano, status.Transaction.Expiry)
	if err != nil {
		return nil, errs.Wrap(errs.BadTimestamp, "buildCancelForExpiry: transaction expiry", err)
	}

	thatIdx, err := thatV.Store.MostRecentIdx()
	if err != nil {
		return nil, err
	}
	var endIdx int64 = -1
	for {
		thatBlock, err := thatV.Store.ReadBlock(thatIdx)
		if err != nil {
			return nil, err
		}
		thatTimestamp, err := time.Parse(time.RFC3339Nano, thatBlock.Timestamp)
		if err != nil {
			return nil, errs.Wrap(errs.BadTimestamp, "buildCancelForExpiry: peer block timestamp", err)
		}
		if thatTimestamp.Before(expiryTimestamp) {
			break
		}
		endIdx = thatIdx
		if thatIdx == 0 {
			break
		}
		thatIdx--
	}
	if endIdx < 0 {
		return nil, nil
	}

	thatIdx = endIdx
	subdir := mkUniquePath(block.CancellationsDirname)
	var triples []block.BlockTriple
	for {
		triple, err := copyBlockTriple(thisV, subdir, thatV, thatIdx)
		if err != nil {
			return nil, err
		}
		triples = append([]block.BlockTriple{triple}, triples...)

		thatBlock, err := thatV.Store.ReadBlock(thatIdx)
		if err != nil {
			return nil, err
		}
		thatTimestamp, err := time.Parse(time.RFC3339Nano, thatBlock.Timestamp)
		if err != nil {
			return nil, errs.Wrap(errs.BadTimestamp, "buildCancelForExpiry: peer block timestamp", err)
		}
		if thatTimestamp.Before(txTimestamp) || thatIdx == 0 {
			break
		}
		thatIdx--
	}

	return &block.CancelTransactionAction{
		Gpg:         thatV.Fpr,
		Transaction: block.TxHashRef{SHA512: hash},
		Blocks:      triples,
	}, nil
}
