package chain

import (
	"os"
	"path/filepath"
	"time"

	"github.com/toddfratello/pyomcore/block"
	"github.com/toddfratello/pyomcore/errs"
	"github.com/toddfratello/pyomcore/events"
	"github.com/toddfratello/pyomcore/fileref"
	"github.com/toddfratello/pyomcore/signer"
	"github.com/toddfratello/pyomcore/store"
	"github.com/toddfratello/pyomcore/vcs"
)

// Verifier replays and checks one rootdir's blockchain directory,
// accumulating the derived state (known keys, transactions, bans,
// extra connections) that later blocks and other tools query.
type Verifier struct {
	Rootdir string
	Locs    fileref.LocationArray
	Nextidx int64
	Fpr     string

	Signer signer.Signer
	VCS    vcs.VCS
	Store  *store.Store
	Events *events.Emitter

	KnownGPGKeys     map[string]map[string]string
	Transactions     map[string]*TransactionStatus
	Banned           map[string]block.BanAction
	ExtraConnections map[string]block.Blockref
}

// New creates a Verifier rooted at rootdir, importing the chain owner's
// public key (block0_pubkey_filename) as its own fingerprint.
func New(rootdir string, sgnr signer.Signer, vc vcs.VCS) (*Verifier, error) {
	pubkeyPath := filepath.Join(rootdir, block.Block0PubkeyFilename)
	data, err := os.ReadFile(pubkeyPath)
	if err != nil {
		return nil, errs.Wrapf(errs.IOError, err, "read %s", pubkeyPath)
	}
	fpr, err := sgnr.ImportKey(data)
	if err != nil {
		return nil, errs.Wrapf(errs.Schema, err, "import owner key")
	}
	v := &Verifier{
		Rootdir:          rootdir,
		Locs:             fileref.LocationArray{rootdir},
		Fpr:              fpr,
		Signer:           sgnr,
		VCS:              vc,
		Store:            store.New(rootdir),
		Events:           events.NewEmitter(),
		KnownGPGKeys:     map[string]map[string]string{fpr: {}},
		Transactions:     map[string]*TransactionStatus{},
		Banned:           map[string]block.BanAction{},
		ExtraConnections: map[string]block.Blockref{},
	}
	return v, nil
}

// Clone returns a deep-enough copy of v for a dry-run verification pass:
// every mutable map is copied so a failed dry run leaves the real
// Verifier untouched, and no Emitter is attached, so a dry run publishes
// no events.
func (v *Verifier) Clone() *Verifier {
	c := &Verifier{
		Rootdir:          v.Rootdir,
		Locs:             v.Locs,
		Nextidx:          v.Nextidx,
		Fpr:              v.Fpr,
		Signer:           v.Signer,
		VCS:              v.VCS,
		Store:            v.Store,
		KnownGPGKeys:     make(map[string]map[string]string, len(v.KnownGPGKeys)),
		Transactions:     make(map[string]*TransactionStatus, len(v.Transactions)),
		Banned:           make(map[string]block.BanAction, len(v.Banned)),
		ExtraConnections: make(map[string]block.Blockref, len(v.ExtraConnections)),
	}
	for k, remotes := range v.KnownGPGKeys {
		cp := make(map[string]string, len(remotes))
		for rk, rv := range remotes {
			cp[rk] = rv
		}
		c.KnownGPGKeys[k] = cp
	}
	for k, ts := range v.Transactions {
		tsCopy := *ts
		pending := make(map[string]struct{}, len(ts.PendingParticipants))
		for p := range ts.PendingParticipants {
			pending[p] = struct{}{}
		}
		tsCopy.PendingParticipants = pending
		sigs := make(map[string]*block.Blockref, len(ts.Signatures))
		for sk, sv := range ts.Signatures {
			sigs[sk] = sv
		}
		tsCopy.Signatures = sigs
		c.Transactions[k] = &tsCopy
	}
	for k, b := range v.Banned {
		c.Banned[k] = b
	}
	for k, b := range v.ExtraConnections {
		c.ExtraConnections[k] = b
	}
	return c
}

// Emit publishes ev through v.Events if one is attached. Safe to call on
// a Verifier built without an Emitter (a dry-run clone, typically).
func (v *Verifier) Emit(typ events.EventType, fpr string, blockIdx int64, data map[string]any) {
	if v.Events == nil {
		return
	}
	v.Events.Emit(events.Event{Type: typ, Fpr: fpr, BlockIdx: blockIdx, Data: data})
}

// IsBanned reports whether fpr has been banned.
func (v *Verifier) IsBanned(fpr string) bool {
	_, ok := v.Banned[fpr]
	return ok
}

// VerifyFpr fails unless fpr belongs to an imported, known key.
func (v *Verifier) VerifyFpr(fpr string) error {
	if _, ok := v.KnownGPGKeys[fpr]; !ok {
		return errs.Newf(errs.UnknownKey, "unknown gpg key: %s", fpr)
	}
	return nil
}

// GetPrevHash returns the fileref that block idx's "prev" field must
// equal: a digest over public.key for block 0, or over the previous
// block's JSON file otherwise. Exported so builder can stamp a new
// block's Prev field before it exists on disk to be replayed.
func (v *Verifier) GetPrevHash(idx int64) (block.Fileref, error) {
	if idx == 0 {
		return fileref.Create(v.Rootdir, 0, block.Block0PubkeyFilename)
	}
	return fileref.Create(v.Rootdir, 0, store.BlockPath(idx-1, block.BlockExtJSON))
}

func sameFileref(a, b block.Fileref) bool {
	return a.Locidx == b.Locidx && a.Filename == b.Filename && a.SHA512 == b.SHA512
}

func checkValidBlockref(br block.Blockref, fpr string) error {
	if br.Magic != block.BlockrefMagic {
		return errs.New(errs.Schema, "bad pyom_blockref_magic")
	}
	if br.PyomVersion != block.VersionNumber {
		return errs.New(errs.Schema, "bad pyom version in blockref")
	}
	if br.Gpg != fpr {
		return errs.Newf(errs.FprMismatch, "fpr mismatch in blockref: expected %s got %s", fpr, br.Gpg)
	}
	if len(br.SHA512) != 128 {
		return errs.New(errs.Schema, "SHA-512 incorrect length in blockref")
	}
	return nil
}

// CheckBlockrefSig verifies that blockrefContent is signed by fpr and
// decodes it.
func (v *Verifier) CheckBlockrefSig(fpr string, blockrefContent, sigContent []byte) (block.Blockref, error) {
	signerFpr, err := v.Signer.VerifyDetached(blockrefContent, sigContent)
	if err != nil {
		return block.Blockref{}, errs.Wrap(errs.SignatureInvalid, "blockref has bad signature", err)
	}
	if signerFpr != fpr {
		return block.Blockref{}, errs.Newf(errs.SignatureInvalid, "blockref has bad signature: signed by %s, expected %s", signerFpr, fpr)
	}
	var br block.Blockref
	if err := decodeJSON(blockrefContent, &br); err != nil {
		return block.Blockref{}, errs.Wrap(errs.Schema, "decode blockref", err)
	}
	if err := checkValidBlockref(br, fpr); err != nil {
		return block.Blockref{}, err
	}
	return br, nil
}

// CheckBlockSig verifies the blockref/signature pair for a block and
// that the block's own fields are consistent with it, returning the
// decoded block.
func (v *Verifier) CheckBlockSig(fpr string, blockContent, blockrefContent, sigContent []byte) (*block.Block, block.Blockref, error) {
	br, err := v.CheckBlockrefSig(fpr, blockrefContent, sigContent)
	if err != nil {
		return nil, block.Blockref{}, err
	}
	var blk block.Block
	if err := decodeJSON(blockContent, &blk); err != nil {
		return nil, block.Blockref{}, errs.Wrap(errs.Schema, "decode block", err)
	}
	if br.Idx != blk.Idx {
		return nil, block.Blockref{}, errs.New(errs.Schema, "idx mismatch in blockref")
	}
	if br.SHA512 != block.SHA512Hex(blockContent) {
		return nil, block.Blockref{}, errs.New(errs.HashMismatch, "SHA-512 mismatch in blockref")
	}
	if blk.Magic != block.BlockMagic {
		return nil, block.Blockref{}, errs.New(errs.Schema, "bad pyom_block_magic")
	}
	if blk.Owner.Gpg != fpr {
		return nil, block.Blockref{}, errs.Newf(errs.FprMismatch, "bad owner: expected %s got %s", fpr, blk.Owner.Gpg)
	}
	return &blk, br, nil
}

// ParseTimestamp parses an ISO-8601/RFC3339 timestamp, per Open Question
// 3: timestamps are strings that must be parsed before comparison.
// Exported so chain/actions handlers can apply the same parsing rule the
// block-level replay in VerifyBlock uses.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errs.Wrapf(errs.BadTimestamp, err, "parse timestamp %q", s)
	}
	return t, nil
}

// CheckTransactionTimestampWindow enforces
// transaction.timestamp < blockTimestamp < transaction.expiry, the
// window register_transaction and sign_transaction both require the
// block carrying their evidence to fall inside.
func CheckTransactionTimestampWindow(blockTimestamp time.Time, tx *block.Transaction) error {
	txTs, err := ParseTimestamp(tx.Timestamp)
	if err != nil {
		return err
	}
	expiry, err := ParseTimestamp(tx.Expiry)
	if err != nil {
		return err
	}
	if !txTs.Before(blockTimestamp) {
		return errs.New(errs.BadTimestamp, "bad transaction timestamp: block is not after transaction.timestamp")
	}
	if !blockTimestamp.Before(expiry) {
		return errs.New(errs.BadTimestamp, "bad transaction expiry: block is not before transaction.expiry")
	}
	return nil
}

// VerifyBlock checks block idx (which must be the next expected index)
// and applies its actions, advancing Nextidx.
func (v *Verifier) VerifyBlock(idx int64) error {
	if idx != v.Nextidx {
		return errs.Newf(errs.LayoutCorruption, "unexpected idx: want %d got %d", v.Nextidx, idx)
	}
	v.Nextidx++

	blockContent, blockrefContent, sigContent, err := v.Store.ReadTriple(idx)
	if err != nil {
		return err
	}
	blk, _, err := v.CheckBlockSig(v.Fpr, blockContent, blockrefContent, sigContent)
	if err != nil {
		return err
	}
	if blk.PyomVersion != block.VersionNumber {
		return errs.New(errs.Schema, "bad pyom version in block")
	}
	prevRef, err := v.GetPrevHash(idx)
	if err != nil {
		return err
	}
	if !sameFileref(blk.Prev, prevRef) {
		return errs.New(errs.HashMismatch, "bad prev hash")
	}
	if blk.Idx != idx {
		return errs.New(errs.Schema, "bad index")
	}
	ts, err := ParseTimestamp(blk.Timestamp)
	if err != nil {
		return err
	}
	if !ts.Before(time.Now().UTC()) {
		return errs.New(errs.BadTimestamp, "timestamp is in the future")
	}
	if idx > 0 {
		prevBlk, err := v.Store.ReadBlock(idx - 1)
		if err != nil {
			return err
		}
		prevTs, err := ParseTimestamp(prevBlk.Timestamp)
		if err != nil {
			return err
		}
		if !prevTs.Before(ts) {
			return errs.New(errs.BadTimestamp, "invalid timestamp")
		}
	}
	return v.VerifyBlockBody(ts, idx, blk)
}

// VerifyBlockBody checks embedded filerefs and dispatches every action
// in blk. Exported so builder can run it against an unwritten
// protoblock-derived Block during a dry run.
func (v *Verifier) VerifyBlockBody(ts time.Time, idx int64, blk *block.Block) error {
	raw, err := block.Encode(*blk)
	if err != nil {
		return errs.Wrap(errs.Schema, "encode block body", err)
	}
	var doc any
	if err := decodeJSON(raw, &doc); err != nil {
		return errs.Wrap(errs.Schema, "decode block body", err)
	}
	if err := fileref.CheckAll(v.Locs, doc); err != nil {
		return err
	}
	return v.VerifyBlockActions(ts, idx, blk.Actions)
}

// VerifyBlockActions dispatches every action through the global
// chain/actions registry.
func (v *Verifier) VerifyBlockActions(ts time.Time, idx int64, actions []block.Action) error {
	ctx := &Context{V: v, BlockIdx: idx, BlockTimestamp: ts}
	for i, a := range actions {
		if err := globalRegistry.Execute(a.Type(), ctx, a); err != nil {
			return errs.Wrapf(errs.Schema, err, "action %d (%s)", i, a.Type())
		}
	}
	return nil
}

// BlockRegistersTransaction reports whether blk contains a
// register_transaction action for transactionHash.
func BlockRegistersTransaction(transactionHash string, blk *block.Block) bool {
	for _, a := range blk.Actions {
		if reg, ok := a.(block.RegisterTransactionAction); ok {
			if reg.Transaction.SHA512 == transactionHash {
				return true
			}
		}
	}
	return false
}
