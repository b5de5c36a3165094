package coordinator

import (
	"os"
	"path/filepath"
	"time"

	"github.com/toddfratello/pyomcore/block"
	"github.com/toddfratello/pyomcore/builder"
	"github.com/toddfratello/pyomcore/chain"
	"github.com/toddfratello/pyomcore/errs"
	"github.com/toddfratello/pyomcore/fileref"
)

// Participant is one side of a cross-chain transaction: its own
// Verifier (so its chain can be queried for its current fingerprint
// and gpg key), plus any extra protoblock actions its own append should
// carry alongside register_transaction (a compound action such as
// add_smart_contract, say).
type Participant struct {
	V             *chain.Verifier
	ExtraActions  []block.Action
	ExtraContract *block.Contract
}

// CreateTransaction registers the same transaction independently on
// every participant's chain: each participant imports any co-
// participant's gpg key it doesn't already know, writes its own copy of
// the transaction file under transactions/<timestamp>/, and appends a
// register_transaction block referencing it.
func CreateTransaction(participants []Participant, expiryDelta time.Duration) error {
	if len(participants) == 0 {
		return errs.New(errs.Schema, "create_transaction: no participants")
	}
	timestamp := time.Now().UTC()
	expiry := timestamp.Add(expiryDelta)
	txDirName := timestamp.Format("20060102T150405.000000000Z")

	fprs := make([]string, len(participants))
	for i, p := range participants {
		fprs[i] = p.V.Fpr
	}

	for _, this := range participants {
		txDir := filepath.Join(block.TransactionsDirname, txDirName)

		var actions []block.Action
		actions = append(actions, this.ExtraActions...)

		var txParticipants []block.Participant
		for i, that := range participants {
			fpr := fprs[i]
			if fpr == this.V.Fpr {
				txParticipants = append(txParticipants, block.Participant{Gpg: fpr})
				continue
			}
			if _, known := this.V.KnownGPGKeys[fpr]; !known {
				keyDir := filepath.Join(txDir, fpr)
				keyPath := filepath.Join(keyDir, fpr+".key")
				keyContent, err := readOwnerKey(that.V.Rootdir)
				if err != nil {
					return err
				}
				if err := writeCopy(this.V.Rootdir, keyPath, keyContent); err != nil {
					return err
				}
				keyRef, err := fileref.Create(this.V.Rootdir, 0, keyPath)
				if err != nil {
					return err
				}
				actions = append(actions, block.ImportGPGKeyAction{
					Gpg:           fpr,
					Keyfile:       keyRef,
					GitRemoteURLs: that.V.KnownGPGKeys[fpr],
				})
			}
			txParticipants = append(txParticipants, block.Participant{Gpg: fpr})
		}

		var contracts []block.Contract
		if this.ExtraContract != nil {
			contracts = append(contracts, *this.ExtraContract)
		}

		locations := []block.Pathref{fileref.CreatePathref(0, txDir)}
		tx := block.Transaction{
			PyomVersion:  block.VersionNumber,
			Magic:        block.TransactionMagic,
			Timestamp:    timestamp.Format(time.RFC3339Nano),
			Expiry:       expiry.Format(time.RFC3339Nano),
			NumLocations: len(locations),
			Participants: txParticipants,
			Contracts:    contracts,
		}
		txContent, err := block.Encode(tx)
		if err != nil {
			return errs.Wrap(errs.Schema, "create_transaction: encode transaction", err)
		}
		txFilename := filepath.Join(txDir, "transaction.json")
		if err := writeCopy(this.V.Rootdir, txFilename, txContent); err != nil {
			return err
		}
		txRef, err := fileref.Create(this.V.Rootdir, 0, txFilename)
		if err != nil {
			return err
		}

		actions = append(actions, block.RegisterTransactionAction{
			Transaction: txRef,
			Locations:   locations,
		})

		if _, err := builder.AppendBlock(this.V, block.Protoblock{Actions: actions}); err != nil {
			return err
		}
	}
	return nil
}

func readOwnerKey(rootdir string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(rootdir, block.Block0PubkeyFilename))
	if err != nil {
		return nil, errs.Wrapf(errs.IOError, err, "read %s", block.Block0PubkeyFilename)
	}
	return data, nil
}
