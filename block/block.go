package block

import (
	"encoding/json"
	"fmt"
)

// Owner identifies the gpg key that signed a block.
type Owner struct {
	Gpg string `json:"gpg"`
}

// Block is one entry in a verifier's chain. Prev is a Fileref to the
// previous block's JSON file (or, for block 0, to public.key), so a
// block's hash chain is itself expressed using the fileref mechanism
// rather than a bespoke prev-hash field.
type Block struct {
	PyomVersion int     `json:"pyom_version"`
	Magic       string  `json:"pyom_block_magic"`
	Idx         int64   `json:"idx"`
	Owner       Owner   `json:"owner"`
	Prev        Fileref `json:"prev"`
	Timestamp   string  `json:"timestamp"`
	Actions     []Action `json:"actions"`
}

// blockWire mirrors Block but with Actions left as raw messages, since
// Action is an interface encoding/json cannot (de)serialise directly.
type blockWire struct {
	PyomVersion int               `json:"pyom_version"`
	Magic       string            `json:"pyom_block_magic"`
	Idx         int64             `json:"idx"`
	Owner       Owner             `json:"owner"`
	Prev        Fileref           `json:"prev"`
	Timestamp   string            `json:"timestamp"`
	Actions     []json.RawMessage `json:"actions"`
}

func (b Block) MarshalJSON() ([]byte, error) {
	w := blockWire{
		PyomVersion: b.PyomVersion,
		Magic:       b.Magic,
		Idx:         b.Idx,
		Owner:       b.Owner,
		Prev:        b.Prev,
		Timestamp:   b.Timestamp,
		Actions:     make([]json.RawMessage, len(b.Actions)),
	}
	for i, a := range b.Actions {
		raw, err := MarshalAction(a)
		if err != nil {
			return nil, fmt.Errorf("marshal action %d: %w", i, err)
		}
		w.Actions[i] = raw
	}
	return json.Marshal(w)
}

func (b *Block) UnmarshalJSON(data []byte) error {
	var w blockWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	b.PyomVersion = w.PyomVersion
	b.Magic = w.Magic
	b.Idx = w.Idx
	b.Owner = w.Owner
	b.Prev = w.Prev
	b.Timestamp = w.Timestamp
	b.Actions = make([]Action, len(w.Actions))
	for i, raw := range w.Actions {
		a, err := UnmarshalAction(raw)
		if err != nil {
			return fmt.Errorf("decode action %d: %w", i, err)
		}
		b.Actions[i] = a
	}
	return nil
}

// Protoblock is an incomplete block: only the actions a caller wants to
// append are filled in. builder.AppendBlock stamps the rest (idx, prev,
// owner, timestamp, pyom_version/magic) before signing and writing it.
type Protoblock struct {
	Actions []Action `json:"actions"`
}

func (p Protoblock) MarshalJSON() ([]byte, error) {
	raws := make([]json.RawMessage, len(p.Actions))
	for i, a := range p.Actions {
		raw, err := MarshalAction(a)
		if err != nil {
			return nil, fmt.Errorf("marshal action %d: %w", i, err)
		}
		raws[i] = raw
	}
	return json.Marshal(struct {
		Actions []json.RawMessage `json:"actions"`
	}{raws})
}

func (p *Protoblock) UnmarshalJSON(data []byte) error {
	var w struct {
		Actions []json.RawMessage `json:"actions"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p.Actions = make([]Action, len(w.Actions))
	for i, raw := range w.Actions {
		a, err := UnmarshalAction(raw)
		if err != nil {
			return fmt.Errorf("decode action %d: %w", i, err)
		}
		p.Actions[i] = a
	}
	return nil
}

// Blockref is the small, separately signed digest record over a block.
// Signing this instead of the block itself means proving a fork only
// requires copying two blockrefs and their signatures, not the blocks.
type Blockref struct {
	PyomVersion int    `json:"pyom_version"`
	Magic       string `json:"pyom_blockref_magic"`
	Gpg         string `json:"gpg"`
	Idx         int64  `json:"idx"`
	SHA512      string `json:"SHA-512"`
}
