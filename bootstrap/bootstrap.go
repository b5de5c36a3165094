// Package bootstrap creates a brand-new chain rootdir (exporting the
// owner's public key, laying out the blockchain/ directory, and
// appending block 0) and adds smart contracts to an existing one.
package bootstrap

import (
	"os"
	"path/filepath"

	"github.com/toddfratello/pyomcore/block"
	"github.com/toddfratello/pyomcore/builder"
	"github.com/toddfratello/pyomcore/chain"
	"github.com/toddfratello/pyomcore/errs"
	"github.com/toddfratello/pyomcore/fileref"
	"github.com/toddfratello/pyomcore/signer"
	"github.com/toddfratello/pyomcore/vcs"
)

// InitializeBlockchain lays out a fresh rootdir for fpr's chain: the
// gnupg/ keyring directory, public.key holding the caller-supplied
// pubkeyArmored, an empty
// blockchain/ tree, and then appends block 0 (whose Prev digests
// public.key rather than a previous block). extraActions, if any, are
// included in block 0 — a new chain commonly self-registers its own
// genesis smart contract this way.
func InitializeBlockchain(rootdir string, sgnr signer.Signer, vc vcs.VCS, pubkeyArmored []byte, extraActions []block.Action) (*chain.Verifier, error) {
	if err := os.MkdirAll(filepath.Join(rootdir, block.GnupgDirname), 0o700); err != nil {
		return nil, errs.Wrapf(errs.IOError, err, "mkdir %s", block.GnupgDirname)
	}
	if err := os.MkdirAll(filepath.Join(rootdir, block.BlockchainDirname), 0o755); err != nil {
		return nil, errs.Wrapf(errs.IOError, err, "mkdir %s", block.BlockchainDirname)
	}
	pubkeyPath := filepath.Join(rootdir, block.Block0PubkeyFilename)
	if err := os.WriteFile(pubkeyPath, pubkeyArmored, 0o644); err != nil {
		return nil, errs.Wrapf(errs.IOError, err, "write %s", block.Block0PubkeyFilename)
	}

	v, err := chain.New(rootdir, sgnr, vc)
	if err != nil {
		return nil, err
	}
	if v.Nextidx != 0 {
		return nil, errs.New(errs.Schema, "initialize_blockchain: rootdir already has blocks")
	}
	if _, err := builder.AppendBlock(v, block.Protoblock{Actions: extraActions}); err != nil {
		return nil, errs.Wrap(errs.Schema, "initialize_blockchain: append block 0", err)
	}
	return v, nil
}

// AddSmartContract writes uuid to
// smart_contracts/<name>/pyom_smart_contract_uuid.txt under v's rootdir
// and returns a Contract entry (a pathref to that directory, the uuid
// file's digest and authors) for a caller to place in a transaction. It
// does not copy contractDir into the rootdir, emits no import_gpg_key,
// link_file or verify_signed_tag action, and appends no block.
func AddSmartContract(v *chain.Verifier, name string, contractDir string, uuid string, authors []block.Participant) (block.Contract, error) {
	destDir := filepath.Join(block.SmartContractsDirname, name)
	full := filepath.Join(v.Rootdir, destDir)
	if err := os.MkdirAll(full, 0o755); err != nil {
		return block.Contract{}, errs.Wrapf(errs.IOError, err, "mkdir %s", destDir)
	}
	uuidPath := filepath.Join(destDir, block.SmartContractUUIDFilename)
	if err := os.WriteFile(filepath.Join(v.Rootdir, uuidPath), []byte(uuid), 0o644); err != nil {
		return block.Contract{}, errs.Wrapf(errs.IOError, err, "write %s", uuidPath)
	}
	uuidRef, err := fileref.Create(v.Rootdir, 0, uuidPath)
	if err != nil {
		return block.Contract{}, err
	}

	return block.Contract{
		Path:     fileref.CreatePathref(0, destDir),
		UUIDHash: block.TxHashRef{SHA512: uuidRef.SHA512},
		Authors:  authors,
	}, nil
}
