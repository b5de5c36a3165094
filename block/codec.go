package block

import (
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
)

// Encode produces the canonical byte representation of v: 2-space
// indented JSON with field order fixed by struct declaration order.
// Every digest and signature in pyomcore is computed over exactly these
// bytes, so this is the only function that should ever be used to turn a
// Block, Blockref or Transaction into bytes for hashing/signing/writing.
func Encode(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// SHA512Hex returns the lowercase hex SHA-512 digest of data.
func SHA512Hex(data []byte) string {
	h := sha512.Sum512(data)
	return hex.EncodeToString(h[:])
}
