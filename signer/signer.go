// Package signer is the collaborator pyomcore calls out to for every
// gpg operation: importing a counterparty's key, producing and checking
// detached signatures over blockrefs, and holding the local identity a
// chain builder signs new blocks with. The production implementation
// wraps golang.org/x/crypto/openpgp; tests substitute
// internal/testutil.FakeSigner instead of shelling out to real gpg.
package signer

// Signer is the capability pyomcore's verifier, builder and coordinator
// depend on. A chain-local instance (one per rootdir/gnupg) never needs
// more than this: it imports counterparties' public keys as it
// encounters them in import_gpg_key/ban actions, and verifies blockref
// signatures against whichever fingerprint an action claims.
type Signer interface {
	// ImportKey adds a public key to the keyring and returns its
	// fingerprint. Returns an error if the key material doesn't parse.
	ImportKey(keyData []byte) (fpr string, err error)

	// SignDetached signs data with the local identity's private key and
	// returns the binary detached signature plus the signing
	// fingerprint.
	SignDetached(data []byte) (sig []byte, fpr string, err error)

	// VerifyDetached checks sig against data and returns the
	// fingerprint of whichever imported key produced it.
	VerifyDetached(data, sig []byte) (fpr string, err error)

	// HasKey reports whether fpr has been imported.
	HasKey(fpr string) bool

	// HomeDir returns the directory backing this signer's keyring, used
	// as GNUPGHOME by vcs when verifying git tag signatures against the
	// same trust store.
	HomeDir() string
}
