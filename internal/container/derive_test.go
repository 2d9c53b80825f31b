package container

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKeyDeterministic(t *testing.T) {
	t.Parallel()

	salt := bytes.Repeat([]byte{0x01}, SaltSize)

	first, outSalt, err := DeriveKey([]byte("password"), salt)
	require.NoError(t, err)
	require.Len(t, first, KeySize)
	assert.Equal(t, salt, outSalt)

	second, _, err := DeriveKey([]byte("password"), salt)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDeriveKeySaltChangesKey(t *testing.T) {
	t.Parallel()

	first, _, err := DeriveKey([]byte("password"), bytes.Repeat([]byte{0x01}, SaltSize))
	require.NoError(t, err)

	second, _, err := DeriveKey([]byte("password"), bytes.Repeat([]byte{0x02}, SaltSize))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestDeriveKeyGeneratesSalt(t *testing.T) {
	t.Parallel()

	key, salt, err := DeriveKey([]byte("password"), nil)

	require.NoError(t, err)
	assert.Len(t, key, KeySize)
	assert.Len(t, salt, SaltSize)
	assert.NotEqual(t, make([]byte, SaltSize), salt)
}

func TestDeriveKeyEmptyPasswordAccepted(t *testing.T) {
	t.Parallel()

	key, _, err := DeriveKey(nil, bytes.Repeat([]byte{0x01}, SaltSize))

	require.NoError(t, err)
	assert.Len(t, key, KeySize)
}

func TestDeriveKeyRejectsBadSalt(t *testing.T) {
	t.Parallel()

	for _, size := range []int{1, SaltSize - 1, SaltSize + 1} {
		_, _, err := DeriveKey([]byte("password"), make([]byte, size))

		var kdErr *KeyDerivationError

		require.ErrorAs(t, err, &kdErr, "salt size %d", size)
		assert.Equal(t, size, kdErr.SaltLen)
	}
}
