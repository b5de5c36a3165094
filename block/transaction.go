package block

// Participant names a counterparty by gpg fingerprint.
type Participant struct {
	Gpg string `json:"gpg"`
}

// Contract binds a transaction to a smart-contract submodule: its path,
// the digest of its uuid file, and the fingerprints that must have a
// signed git tag at the contract's current commit.
type Contract struct {
	Path     Pathref       `json:"path"`
	UUIDHash TxHashRef     `json:"uuid_hash"`
	Authors  []Participant `json:"authors"`
}

// Transaction is the cross-chain agreement registered, signed and
// confirmed by register_transaction/sign_transaction/confirm_transaction
// actions across every participant's own chain.
type Transaction struct {
	PyomVersion  int          `json:"pyom_version"`
	Magic        string       `json:"pyom_transaction_magic"`
	Timestamp    string       `json:"timestamp"`
	Expiry       string       `json:"expiry"`
	NumLocations int          `json:"numlocations"`
	Participants []Participant `json:"participants"`
	Contracts    []Contract   `json:"contracts"`
}
