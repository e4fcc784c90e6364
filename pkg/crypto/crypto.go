package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

var ErrCipherTextTooShort = errors.New("ciphertext is shorter than the nonce")

// EncryptAES seals data with AES-GCM under key and returns the nonce plus
// ciphertext, raw URL base64 encoded. The key must be 16, 24 or 32 bytes.
func EncryptAES(data string, key string) (string, error) {
	sealed, err := EncryptBytesAES([]byte(data), key)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func EncryptBytesAES(plainText []byte, key string) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return aead.Seal(nonce, nonce, plainText, nil), nil
}

// DecryptAES opens a value produced by EncryptAES. Tampered or truncated
// input fails authentication and returns an error.
func DecryptAES(data string, key string) (string, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return "", err
	}
	decrypted, err := DecryptBytesAES(sealed, key)
	if err != nil {
		return "", err
	}
	return string(decrypted), nil
}

func DecryptBytesAES(cipherText []byte, key string) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	if len(cipherText) < aead.NonceSize() {
		return nil, ErrCipherTextTooShort
	}
	nonce, sealed := cipherText[:aead.NonceSize()], cipherText[aead.NonceSize():]

	return aead.Open(nil, nonce, sealed, nil)
}

func newAEAD(key string) (cipher.AEAD, error) {
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
