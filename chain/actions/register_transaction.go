package actions

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/toddfratello/pyomcore/block"
	"github.com/toddfratello/pyomcore/chain"
	"github.com/toddfratello/pyomcore/errs"
	"github.com/toddfratello/pyomcore/events"
	"github.com/toddfratello/pyomcore/fileref"
)

func init() {
	chain.Register(block.ActionRegisterTransaction, verifyRegisterTransaction)
}

// verifyRegisterTransaction loads the transaction file, checks its
// magic/version, that the block carrying it falls inside the
// transaction's timestamp/expiry window, that every participant is a
// known and not-banned key, that every declared smart contract's uuid
// and author tags check out, rejects a transaction already registered
// under the same hash, and recursively validates every embedded
// fileref found anywhere in the transaction file.
func verifyRegisterTransaction(ctx *chain.Context, action block.Action) error {
	a, ok := action.(block.RegisterTransactionAction)
	if !ok {
		return errs.New(errs.Schema, "register_transaction: wrong action type")
	}
	v := ctx.V

	data, err := fileref.Load(v.Locs, a.Transaction)
	if err != nil {
		return err
	}
	var tx block.Transaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return errs.Wrap(errs.Schema, "register_transaction: decode transaction", err)
	}
	if tx.Magic != block.TransactionMagic {
		return errs.New(errs.Schema, "register_transaction: bad pyom_transaction_magic")
	}
	if tx.PyomVersion != block.VersionNumber {
		return errs.New(errs.Schema, "register_transaction: bad pyom version")
	}
	if tx.NumLocations != len(a.Locations) {
		return errs.Newf(errs.Schema, "register_transaction: num_locations %d does not match %d declared locations", tx.NumLocations, len(a.Locations))
	}

	hash := a.Transaction.SHA512
	if _, exists := v.Transactions[hash]; exists {
		return errs.Newf(errs.DuplicateTransaction, "register_transaction: transaction %s already registered", hash)
	}

	if err := chain.CheckTransactionTimestampWindow(ctx.BlockTimestamp, &tx); err != nil {
		return err
	}

	for _, p := range tx.Participants {
		if err := v.VerifyFpr(p.Gpg); err != nil {
			return err
		}
		if v.IsBanned(p.Gpg) {
			return errs.Newf(errs.AlreadyBanned, "register_transaction: banned participant %s", p.Gpg)
		}
	}
	for _, c := range tx.Contracts {
		if err := verifyTransactionContract(v, c); err != nil {
			return err
		}
	}

	var rawTx any
	if err := json.Unmarshal(data, &rawTx); err != nil {
		return errs.Wrap(errs.Schema, "register_transaction: re-decode transaction", err)
	}
	if err := fileref.CheckAll(v.Locs, rawTx); err != nil {
		return err
	}

	v.Transactions[hash] = chain.NewTransactionStatus(&tx, ctx.BlockIdx)
	v.Emit(events.EventTransactionRegistered, "", ctx.BlockIdx, map[string]any{"transaction": hash})
	return nil
}

// verifyTransactionContract checks a transaction's reference to a smart
// contract submodule: the contract directory's uuid file must hash to
// the declared uuid_hash, and the contract's current commit must carry
// a gpg-signed tag from every declared, known, not-banned author.
func verifyTransactionContract(v *chain.Verifier, c block.Contract) error {
	contractDir, err := fileref.ResolvePathref(v.Locs, c.Path)
	if err != nil {
		return err
	}
	uuidContent, err := os.ReadFile(filepath.Join(contractDir, block.SmartContractUUIDFilename))
	if err != nil {
		return errs.Wrapf(errs.IOError, err, "register_transaction: read %s", block.SmartContractUUIDFilename)
	}
	if block.SHA512Hex(uuidContent) != c.UUIDHash.SHA512 {
		return errs.New(errs.HashMismatch, "register_transaction: smart contract uuid mismatch")
	}
	commitID, err := v.VCS.CurrentCommit(contractDir)
	if err != nil {
		return errs.Wrap(errs.IOError, "register_transaction: current commit", err)
	}
	for _, author := range c.Authors {
		if err := v.VerifyFpr(author.Gpg); err != nil {
			return err
		}
		if v.IsBanned(author.Gpg) {
			return errs.Newf(errs.AlreadyBanned, "register_transaction: banned contract author %s", author.Gpg)
		}
		if err := v.VCS.VerifyTagSignature(contractDir, commitID, author.Gpg, v.Signer.HomeDir()); err != nil {
			return err
		}
	}
	return nil
}
