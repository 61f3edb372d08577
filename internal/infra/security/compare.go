package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// SecureCompare reports whether two strings are equal without leaking timing
// information proportional to the length of the common prefix. Both inputs
// are hashed first so unequal lengths do not short-circuit the comparison.
func SecureCompare(a, b string) bool {
	ha := sha256.Sum256([]byte(a))
	hb := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ha[:], hb[:]) == 1
}

// HashToken calculates a SHA-256 hash of the provided value. Used to persist
// session token identifiers without storing them in the clear.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
