package crypto

import (
	"golang.org/x/crypto/sha3"
)

// Keccak256 computes the legacy Keccak-256 digest of the concatenation
// of all inputs. This is the digest vouchers are signed over and the one
// channel identifiers are derived with.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}
