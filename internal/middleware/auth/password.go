package auth

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashSecret creates a bcrypt hash from the given plaintext secret, e.g. to
// put a hashed MASTER_API_KEY into the environment.
func HashSecret(secret string) (string, error) {
	// the cost determines the computational complexity of the hashing process
	// default cost is 10
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// IsBcryptHash reports whether stored looks like a bcrypt hash.
func IsBcryptHash(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") ||
		strings.HasPrefix(stored, "$2b$") ||
		strings.HasPrefix(stored, "$2y$")
}

// VerifySecret checks provided against stored, which may be a bcrypt hash or
// the plaintext secret itself.
func VerifySecret(stored, provided string) bool {
	if stored == "" || provided == "" {
		return false
	}
	if IsBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(provided)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(provided)) == 1
}
