// Package keyring encrypts the owner's personal OpenPGP private key at
// rest, the way an operator's identity is protected between CLI
// invocations without ever writing the raw private key to disk.
package keyring

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"os"

	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"
	"golang.org/x/crypto/pbkdf2"
)

type keystoreFile struct {
	Fingerprint string `json:"fingerprint"`
	Salt        string `json:"salt"`
	Nonce       string `json:"nonce"`
	CipherText  string `json:"cipher_text"`
}

// Save encrypts entity's serialised private key with password and
// writes it to path.
func Save(path, password string, entity *openpgp.Entity) error {
	var keyBuf bytes.Buffer
	if err := entity.SerializePrivate(&keyBuf, nil); err != nil {
		return err
	}

	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return err
	}
	key := deriveKey(password, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return err
	}
	cipherText := gcm.Seal(nil, nonce, keyBuf.Bytes(), nil)

	ks := keystoreFile{
		Fingerprint: hex.EncodeToString(entity.PrimaryKey.Fingerprint[:]),
		Salt:        hex.EncodeToString(salt),
		Nonce:       hex.EncodeToString(nonce),
		CipherText:  hex.EncodeToString(cipherText),
	}
	data, err := json.MarshalIndent(ks, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Load decrypts the keystore at path using password and parses the
// recovered bytes back into an OpenPGP entity.
func Load(path, password string) (*openpgp.Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ks keystoreFile
	if err := json.Unmarshal(data, &ks); err != nil {
		return nil, err
	}
	salt, err := hex.DecodeString(ks.Salt)
	if err != nil {
		return nil, err
	}
	nonce, err := hex.DecodeString(ks.Nonce)
	if err != nil {
		return nil, err
	}
	cipherText, err := hex.DecodeString(ks.CipherText)
	if err != nil {
		return nil, err
	}

	key := deriveKey(password, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	keyBytes, err := gcm.Open(nil, nonce, cipherText, nil)
	if err != nil {
		return nil, errors.New("wrong password or corrupted keystore")
	}

	entities, err := openpgp.ReadKeyRing(bytes.NewReader(keyBytes))
	if err != nil {
		if b, aerr := armor.Decode(bytes.NewReader(keyBytes)); aerr == nil {
			entities, err = openpgp.ReadKeyRing(b.Body)
		}
	}
	if err != nil {
		return nil, err
	}
	if len(entities) != 1 {
		return nil, errors.New("keystore does not contain exactly one identity")
	}
	return entities[0], nil
}

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, 210_000, 32, sha256.New)
}
