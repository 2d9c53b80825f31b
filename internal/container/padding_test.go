package container

import (
	"bytes"
	"crypto/aes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPKCS7PadLengths(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, 1, 15, 16, 17, 31, 32, 100} {
		padded := pkcs7Pad(make([]byte, size), aes.BlockSize)

		assert.Zero(t, len(padded)%aes.BlockSize, "size %d", size)
		assert.Greater(t, len(padded), size, "size %d: padding must always add bytes", size)
	}
}

func TestPKCS7EmptyInputFullBlock(t *testing.T) {
	t.Parallel()

	padded := pkcs7Pad(nil, aes.BlockSize)

	require.Len(t, padded, aes.BlockSize)
	assert.Equal(t, bytes.Repeat([]byte{aes.BlockSize}, aes.BlockSize), padded)
}

func TestPKCS7RoundTrip(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, 1, 15, 16, 17, 255} {
		data := bytes.Repeat([]byte{0xAB}, size)

		unpadded, err := pkcs7Unpad(pkcs7Pad(data, aes.BlockSize))

		require.NoError(t, err, "size %d", size)
		assert.Equal(t, data, unpadded, "size %d", size)
	}
}

func TestPKCS7UnpadRejectsMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrEmptyData},
		{"zero padding byte", append(bytes.Repeat([]byte{1}, 15), 0), ErrPadding},
		{"padding longer than data", []byte{5, 5, 5}, ErrPadding},
		{"padding above block size", append(bytes.Repeat([]byte{0}, 15), 17), ErrPadding},
		{"inconsistent padding bytes", append(bytes.Repeat([]byte{2}, 14), 3, 2), ErrPadding},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := pkcs7Unpad(tt.data)

			require.ErrorIs(t, err, tt.want)
		})
	}
}
