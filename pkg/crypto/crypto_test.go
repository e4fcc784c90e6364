package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef"

func TestAESRoundTrip(t *testing.T) {
	encrypted, err := EncryptAES("token-id-1", testKey)
	require.NoError(t, err)

	decrypted, err := DecryptAES(encrypted, testKey)
	require.NoError(t, err)
	assert.Equal(t, "token-id-1", decrypted)

	// Every encryption uses a fresh nonce.
	again, err := EncryptAES("token-id-1", testKey)
	require.NoError(t, err)
	assert.NotEqual(t, encrypted, again)
}

func TestDecryptAES_Failures(t *testing.T) {
	encrypted, err := EncryptAES("token-id-1", testKey)
	require.NoError(t, err)

	t.Run("tampered ciphertext", func(t *testing.T) {
		sealed, err := base64.RawURLEncoding.DecodeString(encrypted)
		require.NoError(t, err)
		sealed[len(sealed)-1] ^= 0xff
		_, err = DecryptBytesAES(sealed, testKey)
		assert.Error(t, err)
	})
	t.Run("wrong key", func(t *testing.T) {
		_, err := DecryptAES(encrypted, "fedcba9876543210")
		assert.Error(t, err)
	})
	t.Run("truncated", func(t *testing.T) {
		_, err := DecryptBytesAES([]byte("short"), testKey)
		assert.ErrorIs(t, err, ErrCipherTextTooShort)
	})
	t.Run("invalid key size", func(t *testing.T) {
		_, err := EncryptAES("token-id-1", "too-short")
		assert.Error(t, err)
	})
}

func TestBytesToPrivateKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	t.Run("pkcs1", func(t *testing.T) {
		encoded := pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(key),
		})
		parsed, err := BytesToPrivateKey(encoded)
		require.NoError(t, err)
		assert.True(t, key.Equal(parsed))
	})
	t.Run("pkcs8", func(t *testing.T) {
		der, err := x509.MarshalPKCS8PrivateKey(key)
		require.NoError(t, err)
		encoded := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
		parsed, err := BytesToPrivateKey(encoded)
		require.NoError(t, err)
		assert.True(t, key.Equal(parsed))
	})
	t.Run("not pem", func(t *testing.T) {
		_, err := BytesToPrivateKey([]byte("not a key"))
		assert.Error(t, err)
	})
}
