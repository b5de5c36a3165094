// Package index maintains secondary query tables over a verifier's
// emitted events so the read-only query RPC can answer questions
// (transaction status, ban state, known connections, latest block) without
// replaying a chain on every request.
package index

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/toddfratello/pyomcore/errs"
	"github.com/toddfratello/pyomcore/events"
	"github.com/toddfratello/pyomcore/storage"
)

const (
	prefixTxStatus    = "idx:tx:status:"
	prefixTxSigner    = "idx:tx:signers:"
	prefixBan         = "idx:ban:"
	prefixConnection  = "idx:conn:"
	prefixLatestBlock = "idx:latest_block:"
)

// Index subscribes to a verifier's event emitter and keeps a set of
// queryable lookup tables in db up to date.
type Index struct {
	db      storage.DB
	emitter *events.Emitter
}

// New creates an Index backed by db and subscribes it to every event a
// verifier's block appends can raise.
func New(db storage.DB, emitter *events.Emitter) *Index {
	idx := &Index{db: db, emitter: emitter}
	emitter.Subscribe(events.EventBlockAppended, idx.onBlockAppended)
	emitter.Subscribe(events.EventTransactionRegistered, idx.onTransactionStatus)
	emitter.Subscribe(events.EventTransactionSigned, idx.onTransactionSigned)
	emitter.Subscribe(events.EventTransactionStatus, idx.onTransactionStatus)
	emitter.Subscribe(events.EventBanAdded, idx.onBanAdded)
	emitter.Subscribe(events.EventConnectionAdded, idx.onConnectionAdded)
	emitter.Subscribe(events.EventConnectionRemoved, idx.onConnectionRemoved)
	return idx
}

// TransactionStatus is the queryable summary of one transaction's state.
type TransactionStatus struct {
	BlockIdx int64  `json:"block_idx"`
	State    string `json:"state"`
}

// GetTransactionStatus returns the last known state for hash.
func (idx *Index) GetTransactionStatus(hash string) (TransactionStatus, bool, error) {
	var status TransactionStatus
	ok, err := idx.getJSON(prefixTxStatus+hash, &status)
	return status, ok, err
}

// GetTransactionSigners returns the set of fingerprints known to have
// signed hash so far.
func (idx *Index) GetTransactionSigners(hash string) ([]string, error) {
	return idx.getList(prefixTxSigner + hash)
}

// IsBanned reports whether fpr has a recorded ban.
func (idx *Index) IsBanned(fpr string) (bool, error) {
	_, err := idx.db.Get([]byte(prefixBan + fpr))
	if err != nil {
		if errs.Is(err, errs.NotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetConnections returns every fpr this chain has recorded an extra
// connection to.
func (idx *Index) GetConnections() ([]string, error) {
	return idx.getList(prefixConnection)
}

// LatestBlock returns the highest block index seen for fpr.
func (idx *Index) LatestBlock(fpr string) (int64, bool, error) {
	data, err := idx.db.Get([]byte(prefixLatestBlock + fpr))
	if err != nil {
		if errs.Is(err, errs.NotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	var blockIdx int64
	if err := json.Unmarshal(data, &blockIdx); err != nil {
		return 0, false, fmt.Errorf("index unmarshal latest_block: %w", err)
	}
	return blockIdx, true, nil
}

// ---- event handlers ----

func (idx *Index) onBlockAppended(ev events.Event) {
	data, err := json.Marshal(ev.BlockIdx)
	if err != nil {
		return
	}
	if err := idx.db.Set([]byte(prefixLatestBlock+ev.Fpr), data); err != nil {
		log.Printf("[index] latest_block write failed (fpr=%s): %v", ev.Fpr, err)
	}
}

func (idx *Index) onTransactionStatus(ev events.Event) {
	hash, _ := ev.Data["transaction"].(string)
	state, _ := ev.Data["state"].(string)
	if hash == "" {
		return
	}
	if state == "" {
		state = "pending"
	}
	status := TransactionStatus{BlockIdx: ev.BlockIdx, State: state}
	if err := idx.setJSON(prefixTxStatus+hash, status); err != nil {
		log.Printf("[index] transaction status write failed (hash=%s): %v", hash, err)
	}
}

func (idx *Index) onTransactionSigned(ev events.Event) {
	hash, _ := ev.Data["transaction"].(string)
	signer := ev.Fpr
	if hash == "" || signer == "" {
		return
	}
	if err := idx.addToList(prefixTxSigner+hash, signer); err != nil {
		log.Printf("[index] transaction signer write failed (hash=%s signer=%s): %v", hash, signer, err)
	}
}

func (idx *Index) onBanAdded(ev events.Event) {
	fpr := ev.Fpr
	if fpr == "" {
		return
	}
	if err := idx.db.Set([]byte(prefixBan+fpr), []byte("1")); err != nil {
		log.Printf("[index] ban write failed (fpr=%s): %v", fpr, err)
	}
}

func (idx *Index) onConnectionAdded(ev events.Event) {
	fpr := ev.Fpr
	if fpr == "" {
		return
	}
	if err := idx.addToList(prefixConnection, fpr); err != nil {
		log.Printf("[index] connection add failed (fpr=%s): %v", fpr, err)
	}
}

func (idx *Index) onConnectionRemoved(ev events.Event) {
	fpr := ev.Fpr
	if fpr == "" {
		return
	}
	if err := idx.removeFromList(prefixConnection, fpr); err != nil {
		log.Printf("[index] connection remove failed (fpr=%s): %v", fpr, err)
	}
}

// ---- storage helpers ----

func (idx *Index) getJSON(key string, v any) (bool, error) {
	data, err := idx.db.Get([]byte(key))
	if err != nil {
		if errs.Is(err, errs.NotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("index unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (idx *Index) setJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}

func (idx *Index) getList(key string) ([]string, error) {
	data, err := idx.db.Get([]byte(key))
	if err != nil {
		if errs.Is(err, errs.NotFound) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("index unmarshal: %w", err)
	}
	return ids, nil
}

func (idx *Index) addToList(key, value string) error {
	ids, err := idx.getList(key)
	if err != nil {
		return fmt.Errorf("read list: %w", err)
	}
	for _, id := range ids {
		if id == value {
			return nil
		}
	}
	ids = append(ids, value)
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}

func (idx *Index) removeFromList(key, value string) error {
	ids, err := idx.getList(key)
	if err != nil {
		return fmt.Errorf("read list: %w", err)
	}
	if ids == nil {
		return nil
	}
	filtered := ids[:0]
	for _, id := range ids {
		if id != value {
			filtered = append(filtered, id)
		}
	}
	data, err := json.Marshal(filtered)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}
