package core

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

var ErrMalformedCredential = errors.New("malformed credential")

// scrypt cost parameters. Tunable, but changing them invalidates stored
// credentials, so they are fixed per hasher instance.
const (
	defaultScryptN = 32768
	defaultScryptR = 8
	defaultScryptP = 1

	saltLength = 16
	keyLength  = 32
)

// PasswordHasher derives storage-safe credentials from passwords using scrypt.
type PasswordHasher struct {
	n, r, p int
}

func NewPasswordHasher() *PasswordHasher {
	return &PasswordHasher{
		n: defaultScryptN,
		r: defaultScryptR,
		p: defaultScryptP,
	}
}

// Hash generates a fresh random salt and returns salt || derivedKey.
// Two calls with the same password never produce the same credential.
func (h *PasswordHasher) Hash(password string) ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key, err := scrypt.Key([]byte(password), salt, h.n, h.r, h.p, keyLength)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	credential := make([]byte, 0, saltLength+keyLength)
	credential = append(credential, salt...)
	credential = append(credential, key...)
	return credential, nil
}

// Compare re-derives the key from the stored salt and compares it to the
// stored hash in constant time. A KDF failure is reported as an error, never
// as a mismatch.
func (h *PasswordHasher) Compare(password string, credential []byte) (bool, error) {
	if len(credential) != saltLength+keyLength {
		return false, ErrMalformedCredential
	}

	salt := credential[:saltLength]
	stored := credential[saltLength:]

	key, err := scrypt.Key([]byte(password), salt, h.n, h.r, h.p, keyLength)
	if err != nil {
		return false, fmt.Errorf("failed to derive key: %w", err)
	}

	return subtle.ConstantTimeCompare(key, stored) == 1, nil
}
