package container

import (
	"bytes"
	"crypto/aes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T, password string) []byte {
	t.Helper()

	key, _, err := DeriveKey([]byte(password), bytes.Repeat([]byte{0x42}, SaltSize))
	require.NoError(t, err)

	return key
}

func TestChunkRoundTrip(t *testing.T) {
	t.Parallel()

	key := testKey(t, "hunter2")

	for _, size := range []int{0, 1, 15, 16, 17, 4096} {
		plaintext := bytes.Repeat([]byte{0x5A}, size)

		unit, err := EncryptChunk(plaintext, key)
		require.NoError(t, err, "size %d", size)

		recovered, err := DecryptChunk(unit, key)
		require.NoError(t, err, "size %d", size)

		assert.Equal(t, plaintext, recovered, "size %d", size)
	}
}

func TestChunkEmptyPlaintextUnitSize(t *testing.T) {
	t.Parallel()

	unit, err := EncryptChunk(nil, testKey(t, "pw"))

	require.NoError(t, err)
	assert.Len(t, unit, 2*aes.BlockSize, "IV plus one full padding block")
}

func TestChunkUnitSizeIsBlockAligned(t *testing.T) {
	t.Parallel()

	key := testKey(t, "pw")

	for _, size := range []int{1, 16, 17, 1000} {
		unit, err := EncryptChunk(make([]byte, size), key)

		require.NoError(t, err, "size %d", size)
		assert.Zero(t, len(unit)%aes.BlockSize, "size %d", size)
	}
}

func TestChunkFreshIVPerCall(t *testing.T) {
	t.Parallel()

	key := testKey(t, "pw")
	plaintext := []byte("same plaintext twice")

	first, err := EncryptChunk(plaintext, key)
	require.NoError(t, err)

	second, err := EncryptChunk(plaintext, key)
	require.NoError(t, err)

	assert.NotEqual(t, first[:aes.BlockSize], second[:aes.BlockSize])
	assert.NotEqual(t, first, second)
}

func TestDecryptChunkWrongKey(t *testing.T) {
	t.Parallel()

	unit, err := EncryptChunk([]byte("secret payload"), testKey(t, "right"))
	require.NoError(t, err)

	_, err = DecryptChunk(unit, testKey(t, "wrong"))

	require.ErrorIs(t, err, ErrPadding)
}

func TestDecryptChunkMalformedUnits(t *testing.T) {
	t.Parallel()

	key := testKey(t, "pw")

	t.Run("shorter than IV plus one block", func(t *testing.T) {
		t.Parallel()

		_, err := DecryptChunk(make([]byte, 2*aes.BlockSize-1), key)

		require.ErrorIs(t, err, ErrBlockSize)
	})

	t.Run("ciphertext not block aligned", func(t *testing.T) {
		t.Parallel()

		_, err := DecryptChunk(make([]byte, 2*aes.BlockSize+1), key)

		require.ErrorIs(t, err, ErrBlockSize)
	})
}
