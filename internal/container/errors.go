package container

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyData is returned when attempting to unpad empty data.
	ErrEmptyData = errors.New("empty data")
	// ErrPadding is returned when PKCS7 padding is malformed after decryption,
	// which means a wrong password or corrupted ciphertext.
	ErrPadding = errors.New("invalid padding")
	// ErrBlockSize is returned when a ciphertext length is not aligned with the AES block size.
	ErrBlockSize = errors.New("ciphertext is not a multiple of block size")
	// ErrChunkTooLarge is returned when a plaintext chunk would encrypt
	// into a unit larger than the decoder accepts.
	ErrChunkTooLarge = errors.New("chunk exceeds maximum encodable size")

	// errParallelStage marks a recovered panic in the parallel stage; the
	// codec retries sequentially when it sees this.
	errParallelStage = errors.New("parallel stage failure")
)

// KeyDerivationError reports a salt of the wrong length.
type KeyDerivationError struct {
	SaltLen int
}

func (e *KeyDerivationError) Error() string {
	return fmt.Sprintf("key derivation: salt must be %d bytes, got %d", SaltSize, e.SaltLen)
}

// TruncatedError reports a container that ends before a length prefix
// or unit is complete.
type TruncatedError struct {
	// Offset is the byte position in the container where the read started.
	Offset int64
	// Need is the number of bytes the framing required.
	Need int
	// Have is the number of bytes actually remaining.
	Have int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("container truncated at offset %d: need %d bytes, have %d", e.Offset, e.Need, e.Have)
}

// ChunkError wraps a unit-level failure with the index of the chunk it
// occurred in.
type ChunkError struct {
	Index int
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d: %v", e.Index, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}
