package signer

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"
	"golang.org/x/crypto/openpgp/packet"
)

const keyringFilename = "pubring.gpg"

// OpenPGPSigner is the production Signer, backed by an on-disk keyring
// rooted at homeDir (the chain's own gnupg/ directory, never the
// caller's real ~/.gnupg, so that importing counterparties' keys for
// verification never pollutes the operator's personal trust store).
type OpenPGPSigner struct {
	mu       sync.RWMutex
	homeDir  string
	entities openpgp.EntityList
	identity *openpgp.Entity // set once an identity is loaded for signing
}

// New creates or opens a keyring at homeDir, reading any previously
// imported keys from pubring.gpg.
func New(homeDir string) (*OpenPGPSigner, error) {
	if err := os.MkdirAll(homeDir, 0o700); err != nil {
		return nil, fmt.Errorf("create gnupg home %s: %w", homeDir, err)
	}
	s := &OpenPGPSigner{homeDir: homeDir}
	path := filepath.Join(homeDir, keyringFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read keyring %s: %w", path, err)
	}
	entities, err := openpgp.ReadKeyRing(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse keyring %s: %w", path, err)
	}
	s.entities = entities
	return s, nil
}

func (s *OpenPGPSigner) HomeDir() string { return s.homeDir }

func fingerprintHex(e *openpgp.Entity) string {
	return strings.ToUpper(hex.EncodeToString(e.PrimaryKey.Fingerprint[:]))
}

// ImportKey parses keyData (armored or binary) and appends every entity
// found to the keyring, persisting it back to pubring.gpg. Returns the
// fingerprint of the first entity, matching gpg's "imports[0]" result
// when importing a single-key file.
func (s *OpenPGPSigner) ImportKey(keyData []byte) (string, error) {
	entities, err := readEntities(keyData)
	if err != nil {
		return "", fmt.Errorf("import key: %w", err)
	}
	if len(entities) == 0 {
		return "", fmt.Errorf("import key: no keys found")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fpr := fingerprintHex(entities[0])
	for _, e := range entities {
		if !s.hasKeyLocked(fingerprintHex(e)) {
			s.entities = append(s.entities, e)
		}
	}
	if err := s.persistLocked(); err != nil {
		return "", err
	}
	return fpr, nil
}

func readEntities(data []byte) (openpgp.EntityList, error) {
	if block, err := armor.Decode(bytes.NewReader(data)); err == nil {
		return openpgp.ReadKeyRing(block.Body)
	}
	return openpgp.ReadKeyRing(bytes.NewReader(data))
}

func (s *OpenPGPSigner) persistLocked() error {
	path := filepath.Join(s.homeDir, keyringFilename)
	var buf bytes.Buffer
	for _, e := range s.entities {
		if err := e.Serialize(&buf); err != nil {
			return fmt.Errorf("serialize keyring: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write keyring %s: %w", path, err)
	}
	return nil
}

func (s *OpenPGPSigner) hasKeyLocked(fpr string) bool {
	for _, e := range s.entities {
		if fingerprintHex(e) == fpr {
			return true
		}
	}
	return false
}

func (s *OpenPGPSigner) HasKey(fpr string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasKeyLocked(strings.ToUpper(fpr))
}

// LoadIdentity installs entity (with its private key) as the identity
// future SignDetached calls use. keyring.Keystore is the caller that
// decrypts an owner's private key material and hands the parsed entity
// here.
func (s *OpenPGPSigner) LoadIdentity(entity *openpgp.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = entity
	if !s.hasKeyLocked(fingerprintHex(entity)) {
		s.entities = append(s.entities, entity)
	}
}

// SignDetached produces a binary (non-armored) detached OpenPGP
// signature over data using the loaded identity, matching gpg's
// sign(mode=DETACH) without --armor.
func (s *OpenPGPSigner) SignDetached(data []byte) ([]byte, string, error) {
	s.mu.RLock()
	identity := s.identity
	s.mu.RUnlock()
	if identity == nil {
		return nil, "", fmt.Errorf("sign detached: no local identity loaded")
	}
	var buf bytes.Buffer
	if err := openpgp.DetachSign(&buf, identity, bytes.NewReader(data), nil); err != nil {
		return nil, "", fmt.Errorf("sign detached: %w", err)
	}
	return buf.Bytes(), fingerprintHex(identity), nil
}

// VerifyDetached checks sig (binary or armored) against data and
// returns the fingerprint of whichever imported key produced it.
func (s *OpenPGPSigner) VerifyDetached(data, sig []byte) (string, error) {
	s.mu.RLock()
	entities := s.entities
	s.mu.RUnlock()

	sigReader := bytes.NewReader(sig)
	signer, err := openpgp.CheckDetachedSignature(entities, bytes.NewReader(data), sigReader, nil)
	if err != nil {
		if block, aerr := armor.Decode(bytes.NewReader(sig)); aerr == nil {
			signer, err = openpgp.CheckDetachedSignature(entities, bytes.NewReader(data), block.Body, nil)
		}
	}
	if err != nil {
		return "", fmt.Errorf("verify detached signature: %w", err)
	}
	if signer == nil {
		return "", fmt.Errorf("verify detached signature: unknown signer")
	}
	return fingerprintHex(signer), nil
}

// ExportArmoredPublicKey serialises identity's public key armored, the
// format export_block0_pubkey writes to public.key.
func ExportArmoredPublicKey(identity *openpgp.Entity) ([]byte, error) {
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		return nil, fmt.Errorf("armor encode: %w", err)
	}
	if err := identity.Serialize(w); err != nil {
		return nil, fmt.Errorf("serialize public key: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GenerateIdentity creates a fresh OpenPGP identity (RSA via the default
// packet.Config) for name/email, the Go equivalent of
// `gpg --full-generate-key`.
func GenerateIdentity(name, email string) (*openpgp.Entity, error) {
	entity, err := openpgp.NewEntity(name, "", email, &packet.Config{})
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	return entity, nil
}
