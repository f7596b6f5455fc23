package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// NewRandomString returns n random bytes hex-encoded (2n characters).
func NewRandomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashToken is the one-way transform applied to one-time secrets before
// storage. Deterministic so a presented plaintext can be matched against the
// stored value without ever persisting the plaintext itself.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
