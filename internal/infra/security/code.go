package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for one-time code digests. A KDF is used instead of a
// bare hash because the code space is only 10^6; the cost parameters keep an
// offline sweep of that space expensive.
const (
	digestTime    uint32 = 2
	digestMemory  uint32 = 32 * 1024
	digestThreads uint8  = 2
	digestKeyLen  uint32 = 32
)

// GenerateNumericCode returns a random numeric string of the given length.
// Every digit is drawn independently from crypto/rand; leading zeros are not
// excluded, so a 6-digit code covers the full 10^6 space.
func GenerateNumericCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	digits := make([]byte, length)
	for i := range digits {
		b, err := randomDigit()
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		digits[i] = '0' + b
	}

	return string(digits), nil
}

// randomDigit draws one uniform decimal digit, rejecting bytes that would
// bias the modulo reduction.
func randomDigit() (byte, error) {
	buf := make([]byte, 1)
	for {
		if _, err := rand.Read(buf); err != nil {
			return 0, err
		}
		if buf[0] < 250 {
			return buf[0] % 10, nil
		}
	}
}

// DigestOneTimeCode computes the salted one-way digest retained server-side
// in place of the plaintext code.
func DigestOneTimeCode(code string, salt []byte) string {
	key := argon2.IDKey([]byte(code), salt, digestTime, digestMemory, digestThreads, digestKeyLen)
	return base64.RawStdEncoding.EncodeToString(key)
}

// VerifyOneTimeCode recomputes the digest for the submitted code and compares
// it against the stored digest in constant time.
func VerifyOneTimeCode(code string, salt []byte, digest string) bool {
	if code == "" || digest == "" {
		return false
	}
	computed := DigestOneTimeCode(code, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}
