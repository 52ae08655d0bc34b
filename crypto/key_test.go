package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKey(t *testing.T) {
	raw := bytes.Repeat([]byte{0x42}, KeySize)
	expected := bytes.Clone(raw)

	k, err := NewKey(raw)
	require.NoError(t, err)
	defer k.Destroy()

	assert.Equal(t, make([]byte, KeySize), raw, "NewKey must wipe its input")

	buf, err := k.Open()
	require.NoError(t, err)
	defer buf.Destroy()
	assert.Equal(t, expected, buf.Bytes())
}

func TestNewKey_InvalidSize(t *testing.T) {
	_, err := NewKey([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestKey_Destroy(t *testing.T) {
	k, err := GenerateKey()
	require.NoError(t, err)
	assert.False(t, k.Destroyed())

	k.Destroy()
	assert.True(t, k.Destroyed())

	_, err = k.Open()
	assert.ErrorIs(t, err, ErrKeyDestroyed)
	_, err = k.Subkey("contacts")
	assert.ErrorIs(t, err, ErrKeyDestroyed)
}

func TestKey_Subkey(t *testing.T) {
	k, err := GenerateKey()
	require.NoError(t, err)
	defer k.Destroy()

	a, err := k.Subkey("contacts")
	require.NoError(t, err)
	b, err := k.Subkey("contacts")
	require.NoError(t, err)
	c, err := k.Subkey("settings")
	require.NoError(t, err)

	open := func(k *Key) []byte {
		buf, err := k.Open()
		require.NoError(t, err)
		defer buf.Destroy()
		return bytes.Clone(buf.Bytes())
	}
	assert.Equal(t, open(a), open(b))
	assert.NotEqual(t, open(a), open(c))
}

func TestDeriveKeyFromPassword(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)

	k, err := DeriveKeyFromPassword(testPassword, salt, WithKDFParams(fastParams))
	require.NoError(t, err)
	defer k.Destroy()

	raw, err := DeriveKey(testPassword, salt, WithKDFParams(fastParams))
	require.NoError(t, err)

	buf, err := k.Open()
	require.NoError(t, err)
	defer buf.Destroy()
	assert.Equal(t, raw, buf.Bytes())
}
