// Command pyomcore is the thin CLI front door over a chain rootdir: each
// subcommand marshals its arguments into one core call (builder,
// coordinator, depcheck or bootstrap) and exits non-zero on any error,
// printing the originating error (including the block index a
// verification failure occurred at, where applicable) to stderr.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/toddfratello/pyomcore/block"
	"github.com/toddfratello/pyomcore/bootstrap"
	"github.com/toddfratello/pyomcore/builder"
	"github.com/toddfratello/pyomcore/chain"
	"github.com/toddfratello/pyomcore/config"
	"github.com/toddfratello/pyomcore/coordinator"
	"github.com/toddfratello/pyomcore/crypto/certgen"
	"github.com/toddfratello/pyomcore/depcheck"
	"github.com/toddfratello/pyomcore/errs"
	"github.com/toddfratello/pyomcore/keyring"
	"github.com/toddfratello/pyomcore/signer"
	"github.com/toddfratello/pyomcore/vcs"

	// Import every action handler to trigger its init() self-registration.
	_ "github.com/toddfratello/pyomcore/chain/actions"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfgPath := os.Getenv("PYOMCORE_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.json"
	}
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := dispatch(cfg, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: pyomcore <command> [args...]

commands:
  initialize_blockchain
  create_block <protoblock.json>
  add_smart_contract <name> <contract_dir> <uuid>
  create_transaction <other_rootdir>...
  add_ban <fork1_rootdir> <fork2_rootdir>
  copy_bans <other_rootdir>...
  add_extra_connection <other_rootdir> <idx>
  remove_extra_connection <other_rootdir>
  annul_transaction <hash> <explanation>
  reinstate_transaction <hash>
  confirm_transactions <other_rootdir>
  sign_transactions <other_rootdir>
  check_dependency_chain <other_rootdir>...
  verifier
  gencerts <dir> <name>`)
}

func dispatch(cfg *config.Config, cmd string, args []string) error {
	switch cmd {
	case "initialize_blockchain":
		return cmdInitializeBlockchain(cfg)
	case "create_block":
		return cmdCreateBlock(cfg, args)
	case "add_smart_contract":
		return cmdAddSmartContract(cfg, args)
	case "create_transaction":
		return cmdCreateTransaction(cfg, args)
	case "add_ban":
		return cmdAddBan(cfg, args)
	case "copy_bans":
		return cmdCopyBans(cfg, args)
	case "add_extra_connection":
		return cmdAddExtraConnection(cfg, args)
	case "remove_extra_connection":
		return cmdRemoveExtraConnection(cfg, args)
	case "annul_transaction":
		return cmdAnnulTransaction(cfg, args)
	case "reinstate_transaction":
		return cmdReinstateTransaction(cfg, args)
	case "confirm_transactions":
		return cmdConfirmTransactions(cfg, args, true)
	case "sign_transactions":
		return cmdConfirmTransactions(cfg, args, false)
	case "check_dependency_chain":
		return cmdCheckDependencyChain(cfg, args)
	case "verifier":
		return cmdVerifier(cfg)
	case "gencerts":
		return cmdGenCerts(args)
	default:
		usage()
		return errs.Newf(errs.Schema, "unknown command %q", cmd)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}

func gnupgHome(rootdir string) string {
	return rootdir + string(os.PathSeparator) + block.GnupgDirname
}

func openVerifier(rootdir string, sgnr signer.Signer, vc vcs.VCS) (*chain.Verifier, error) {
	v, err := chain.New(rootdir, sgnr, vc)
	if err != nil {
		return nil, err
	}
	topIdx, err := v.Store.MostRecentIdx()
	if err != nil {
		return nil, err
	}
	for v.Nextidx <= topIdx {
		if err := v.VerifyBlock(v.Nextidx); err != nil {
			return nil, fmt.Errorf("verify block %d: %w", v.Nextidx, err)
		}
	}
	return v, nil
}

func cmdInitializeBlockchain(cfg *config.Config) error {
	entity, err := signer.GenerateIdentity("pyomcore", "pyomcore@localhost")
	if err != nil {
		return err
	}
	password := os.Getenv("PYOMCORE_PASSWORD")
	if err := keyring.Save(cfg.KeystorePath, password, entity); err != nil {
		return err
	}
	sgnr, err := signer.New(gnupgHome(cfg.Rootdir))
	if err != nil {
		return err
	}
	sgnr.LoadIdentity(entity)
	pubkeyArmored, err := signer.ExportArmoredPublicKey(entity)
	if err != nil {
		return err
	}
	_, err = bootstrap.InitializeBlockchain(cfg.Rootdir, sgnr, vcs.New(), pubkeyArmored, nil)
	return err
}

func cmdCreateBlock(cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return errs.New(errs.Schema, "create_block requires <protoblock.json>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return errs.Wrap(errs.IOError, "create_block: read protoblock", err)
	}
	var proto block.Protoblock
	if err := json.Unmarshal(data, &proto); err != nil {
		return errs.Wrap(errs.Schema, "create_block: decode protoblock", err)
	}
	v, err := openOwnVerifier(cfg)
	if err != nil {
		return err
	}
	idx, err := builder.AppendBlock(v, proto)
	if err != nil {
		return err
	}
	fmt.Printf("appended block %d\n", idx)
	return nil
}

func cmdAddSmartContract(cfg *config.Config, args []string) error {
	if len(args) != 3 {
		return errs.New(errs.Schema, "add_smart_contract requires <name> <contract_dir> <uuid>")
	}
	v, err := openOwnVerifier(cfg)
	if err != nil {
		return err
	}
	_, err = bootstrap.AddSmartContract(v, args[0], args[1], args[2], []block.Participant{{Gpg: v.Fpr}})
	return err
}

func cmdCreateTransaction(cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return errs.New(errs.Schema, "create_transaction requires at least one peer rootdir")
	}
	v, err := openOwnVerifier(cfg)
	if err != nil {
		return err
	}
	participants := []coordinator.Participant{{V: v}}
	for _, rootdir := range args {
		peerV, err := openPeerVerifier(rootdir)
		if err != nil {
			return err
		}
		participants = append(participants, coordinator.Participant{V: peerV})
	}
	return coordinator.CreateTransaction(participants, cfg.TransactionExpiry)
}

func cmdAddBan(cfg *config.Config, args []string) error {
	if len(args) != 2 {
		return errs.New(errs.Schema, "add_ban requires <fork1_rootdir> <fork2_rootdir>")
	}
	v, err := openOwnVerifier(cfg)
	if err != nil {
		return err
	}
	fork1, err := openPeerVerifier(args[0])
	if err != nil {
		return err
	}
	fork2, err := openPeerVerifier(args[1])
	if err != nil {
		return err
	}
	return coordinator.CreateBan(v, fork1, fork2)
}

func cmdCopyBans(cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return errs.New(errs.Schema, "copy_bans requires at least one peer rootdir")
	}
	v, err := openOwnVerifier(cfg)
	if err != nil {
		return err
	}
	var peers []*chain.Verifier
	for _, rootdir := range args {
		peerV, err := openPeerVerifier(rootdir)
		if err != nil {
			return err
		}
		peers = append(peers, peerV)
	}
	return coordinator.CopyBans(v, peers)
}

func cmdAddExtraConnection(cfg *config.Config, args []string) error {
	if len(args) != 2 {
		return errs.New(errs.Schema, "add_extra_connection requires <other_rootdir> <idx>")
	}
	idx, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || idx < 0 {
		return errs.New(errs.Schema, "add_extra_connection: idx must be a non-negative integer")
	}
	v, err := openOwnVerifier(cfg)
	if err != nil {
		return err
	}
	peerV, err := openPeerVerifier(args[0])
	if err != nil {
		return err
	}
	return coordinator.AddExtraConnection(v, peerV, idx)
}

func cmdRemoveExtraConnection(cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return errs.New(errs.Schema, "remove_extra_connection requires <other_rootdir>")
	}
	v, err := openOwnVerifier(cfg)
	if err != nil {
		return err
	}
	peerV, err := openPeerVerifier(args[0])
	if err != nil {
		return err
	}
	return coordinator.RemoveExtraConnection(v, peerV)
}

func cmdAnnulTransaction(cfg *config.Config, args []string) error {
	if len(args) != 2 {
		return errs.New(errs.Schema, "annul_transaction requires <hash> <explanation>")
	}
	v, err := openOwnVerifier(cfg)
	if err != nil {
		return err
	}
	action := block.AnnulTransactionAction{
		Transaction: block.TxHashRef{SHA512: args[0]},
		Explanation: args[1],
	}
	_, err = builder.AppendBlock(v, block.Protoblock{Actions: []block.Action{action}})
	return err
}

func cmdReinstateTransaction(cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return errs.New(errs.Schema, "reinstate_transaction requires <hash>")
	}
	v, err := openOwnVerifier(cfg)
	if err != nil {
		return err
	}
	action := block.ReinstateTransactionAction{Transaction: block.TxHashRef{SHA512: args[0]}}
	_, err = builder.AppendBlock(v, block.Protoblock{Actions: []block.Action{action}})
	return err
}

// cmdConfirmTransactions backs both confirm_transactions and
// sign_transactions: the latter is the former with confirmOnly=false,
// relaxing the "last pending participant" restriction.
func cmdConfirmTransactions(cfg *config.Config, args []string, confirmOnly bool) error {
	if len(args) != 1 {
		return errs.New(errs.Schema, "confirm_transactions/sign_transactions requires <other_rootdir>")
	}
	v, err := openOwnVerifier(cfg)
	if err != nil {
		return err
	}
	peerV, err := openPeerVerifier(args[0])
	if err != nil {
		return err
	}
	return coordinator.ConfirmTransactions(v, peerV, confirmOnly)
}

// cliLocator resolves peer rootdirs named on the command line, falling
// back to the peers named in config for any fingerprint discovered only
// while replaying (an extra connection or signature naming a fpr this
// invocation never listed explicitly).
type cliLocator struct {
	rootdirs map[string]string
}

func (l cliLocator) RootdirFor(fpr string) (string, bool) {
	rootdir, ok := l.rootdirs[fpr]
	return rootdir, ok
}

func cmdCheckDependencyChain(cfg *config.Config, args []string) error {
	v, err := openOwnVerifier(cfg)
	if err != nil {
		return err
	}
	locator := cliLocator{rootdirs: map[string]string{}}
	for _, peer := range cfg.Peers {
		locator.rootdirs[peer.Fpr] = peer.Rootdir
	}
	for _, rootdir := range args {
		peerV, err := openPeerVerifier(rootdir)
		if err != nil {
			return err
		}
		locator.rootdirs[peerV.Fpr] = rootdir
	}
	return depcheck.CheckDependencyChain(v, locator, v.Signer, vcs.New())
}

// cmdGenCerts generates a self-signed CA and node certificate pair into
// dir, for operators who set cfg.TLS to secure the query RPC listener
// with mTLS rather than a plain bearer token.
func cmdGenCerts(args []string) error {
	if len(args) != 2 {
		return errs.New(errs.Schema, "gencerts requires <dir> <name>")
	}
	return certgen.GenerateAll(args[0], args[1], nil)
}

func cmdVerifier(cfg *config.Config) error {
	v, err := openOwnVerifier(cfg)
	if err != nil {
		return err
	}
	fmt.Printf("fpr=%s nextidx=%d\n", v.Fpr, v.Nextidx)
	return nil
}

// openOwnVerifier opens the node's own chain, unlocking its identity
// from cfg.KeystorePath so it can sign new blocks.
func openOwnVerifier(cfg *config.Config) (*chain.Verifier, error) {
	sgnr, err := signer.New(gnupgHome(cfg.Rootdir))
	if err != nil {
		return nil, err
	}
	password := os.Getenv("PYOMCORE_PASSWORD")
	entity, err := keyring.Load(cfg.KeystorePath, password)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "unlock identity", err)
	}
	sgnr.LoadIdentity(entity)
	return openVerifier(cfg.Rootdir, sgnr, vcs.New())
}

// openPeerVerifier opens a peer's chain read-only: no identity is
// loaded since this node never signs on a peer's behalf.
func openPeerVerifier(rootdir string) (*chain.Verifier, error) {
	sgnr, err := signer.New(gnupgHome(rootdir))
	if err != nil {
		return nil, err
	}
	return openVerifier(rootdir, sgnr, vcs.New())
}
