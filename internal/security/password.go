package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt cost 12 keeps a single hash in the tens of milliseconds range, slow
// enough to blunt offline guessing without stalling login under load.
const bcryptCost = 12

var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

func HashPassword(password string) (string, error) {
	if len(password) > 72 {
		// bcrypt silently truncates beyond 72 bytes; reject instead.
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a candidate against the stored hash. bcrypt's
// comparison is constant-time over the derived key.
func VerifyPassword(encoded, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)) == nil
}
