package container

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// EncryptChunk encrypts one bounded plaintext chunk under key,
// returning a self-describing unit of the form IV || ciphertext.
// A fresh random IV is drawn per call; IVs are never reused across
// chunks or containers. A zero-length plaintext is legal and produces
// a 32-byte unit (IV plus one full padding block).
func EncryptChunk(plaintext, key []byte) ([]byte, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("generating IV: %w", err)
	}

	return encryptChunkIV(plaintext, key, iv)
}

// encryptChunkIV encrypts plaintext with a caller-supplied IV. The
// container pipeline draws IVs centrally so parallel and sequential
// runs produce identical bytes for a fixed random stream.
func encryptChunkIV(plaintext, key, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)

	unit := make([]byte, aes.BlockSize+len(padded))
	copy(unit, iv)

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(unit[aes.BlockSize:], padded)

	return unit, nil
}

// DecryptChunk reverses EncryptChunk: it splits unit into IV and
// ciphertext, decrypts under AES-256-CBC and strips the PKCS7 padding.
// A malformed padding (wrong key, corrupted or truncated ciphertext)
// yields ErrPadding; the two causes are indistinguishable because the
// format carries no MAC.
func DecryptChunk(unit, key []byte) ([]byte, error) {
	if len(unit) < 2*aes.BlockSize {
		return nil, fmt.Errorf("unit of %d bytes is shorter than IV plus one block: %w", len(unit), ErrBlockSize)
	}

	iv := unit[:aes.BlockSize]
	ciphertext := unit[aes.BlockSize:]

	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrBlockSize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext)
	if err != nil {
		return nil, fmt.Errorf("removing padding: %w", err)
	}

	return unpadded, nil
}
