package services

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCipherKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestCredentialCipher_RoundTrip(t *testing.T) {
	cipher, err := NewCredentialCipher(testCipherKey())
	require.NoError(t, err)

	sealed, err := cipher.Encrypt("access-sandbox-secret")
	require.NoError(t, err)
	assert.NotEqual(t, "access-sandbox-secret", sealed)
	assert.NotContains(t, sealed, "sandbox")

	plain, err := cipher.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "access-sandbox-secret", plain)
}

func TestCredentialCipher_NonceIsFresh(t *testing.T) {
	cipher, err := NewCredentialCipher(testCipherKey())
	require.NoError(t, err)

	first, err := cipher.Encrypt("same-credential")
	require.NoError(t, err)
	second, err := cipher.Encrypt("same-credential")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestCredentialCipher_WrongKeyFails(t *testing.T) {
	cipher, err := NewCredentialCipher(testCipherKey())
	require.NoError(t, err)
	sealed, err := cipher.Encrypt("secret")
	require.NoError(t, err)

	other, err := NewCredentialCipher(bytes.Repeat([]byte{0x17}, 32))
	require.NoError(t, err)
	_, err = other.Decrypt(sealed)
	assert.Error(t, err)
}

func TestCredentialCipher_RejectsGarbage(t *testing.T) {
	cipher, err := NewCredentialCipher(testCipherKey())
	require.NoError(t, err)

	_, err = cipher.Decrypt("not base64 at all!!!")
	assert.Error(t, err)

	_, err = cipher.Decrypt("c2hvcnQ")
	assert.Error(t, err)
}

func TestNewCredentialCipher_KeySize(t *testing.T) {
	_, err := NewCredentialCipher([]byte("too-short"))
	assert.Error(t, err)

	_, err = NewCredentialCipher(testCipherKey())
	assert.NoError(t, err)
}
