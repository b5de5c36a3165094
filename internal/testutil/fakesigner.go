package testutil

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/toddfratello/pyomcore/errs"
)

// FakeSigner is a deterministic stand-in for signer.Signer. It never
// shells out to gpg: a key's "fingerprint" is the hex sha512 of its
// content, and a "signature" is just that fingerprint concatenated with
// the sha512 of the signed data, so VerifyDetached can recover both
// without parsing any real OpenPGP packet.
type FakeSigner struct {
	homeDir string
	identFpr string
	keys    map[string][]byte // fpr -> key content
}

// NewFakeSigner creates a FakeSigner whose own identity is derived from
// identityKey (the "private key" content never actually matters, only
// its hash).
func NewFakeSigner(homeDir string, identityKey []byte) *FakeSigner {
	fpr := fingerprintOf(identityKey)
	return &FakeSigner{
		homeDir:  homeDir,
		identFpr: fpr,
		keys:     map[string][]byte{fpr: identityKey},
	}
}

func fingerprintOf(data []byte) string {
	sum := sha512.Sum512(data)
	return hex.EncodeToString(sum[:20])
}

func (s *FakeSigner) ImportKey(keyData []byte) (string, error) {
	fpr := fingerprintOf(keyData)
	s.keys[fpr] = keyData
	return fpr, nil
}

func (s *FakeSigner) SignDetached(data []byte) ([]byte, string, error) {
	sum := sha512.Sum512(data)
	sig := []byte(fmt.Sprintf("%s:%s", s.identFpr, hex.EncodeToString(sum[:])))
	return sig, s.identFpr, nil
}

func (s *FakeSigner) VerifyDetached(data, sig []byte) (string, error) {
	want := sha512.Sum512(data)
	wantHex := hex.EncodeToString(want[:])
	parts := strings.SplitN(string(sig), ":", 2)
	if len(parts) != 2 {
		return "", errs.New(errs.SignatureInvalid, "fakesigner: malformed signature")
	}
	fpr, gotHex := parts[0], parts[1]
	if gotHex != wantHex {
		return "", errs.New(errs.SignatureInvalid, "fakesigner: digest mismatch")
	}
	if _, ok := s.keys[fpr]; !ok {
		return "", errs.Newf(errs.UnknownKey, "fakesigner: unknown key %s", fpr)
	}
	return fpr, nil
}

func (s *FakeSigner) HasKey(fpr string) bool {
	_, ok := s.keys[fpr]
	return ok
}

func (s *FakeSigner) HomeDir() string { return s.homeDir }
