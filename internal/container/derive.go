package container

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the derived AES-256 key length in bytes.
	KeySize = 32
	// SaltSize is the container salt length in bytes.
	SaltSize = 16
	// Iterations is the PBKDF2 iteration count.
	Iterations = 100_000
)

// DeriveKey stretches password into a KeySize-byte key using
// PBKDF2-HMAC-SHA256. When salt is nil a fresh random salt is
// generated; otherwise it must be exactly SaltSize bytes. Re-deriving
// with the same password and salt yields the identical key, which is
// how the decrypt side recovers it from the container header.
//
// An empty password is accepted; callers that care should flag it
// before getting here.
func DeriveKey(password, salt []byte) (key, outSalt []byte, err error) {
	if salt == nil {
		salt = make([]byte, SaltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, nil, fmt.Errorf("generating salt: %w", err)
		}
	}

	if len(salt) != SaltSize {
		return nil, nil, &KeyDerivationError{SaltLen: len(salt)}
	}

	return pbkdf2.Key(password, salt, Iterations, KeySize, sha256.New), salt, nil
}
