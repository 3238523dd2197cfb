package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"
)

// SealedPrefix marks a configuration value that holds AES-256-GCM ciphertext.
const SealedPrefix = "enc:"

var (
	ErrMissingKey        = errors.New("secrets: sealed value found but no secret key configured")
	ErrSealFailed        = errors.New("secrets: seal failed")
	ErrOpenFailed        = errors.New("secrets: open failed")
	ErrInvalidCipherText = errors.New("secrets: invalid cipher text")
)

// deriveKey stretches any passphrase to a 32-byte AES key.
func deriveKey(key string) []byte {
	hash := sha256.Sum256([]byte(key))
	return hash[:]
}

func newGCM(key string) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(key))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func IsSealed(value string) bool {
	return strings.HasPrefix(value, SealedPrefix)
}

// Seal encrypts plainText and returns it as "enc:<base64(nonce|ciphertext)>".
func Seal(plainText, key string) (string, error) {
	if key == "" {
		return "", ErrMissingKey
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", ErrSealFailed
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", ErrSealFailed
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plainText), nil)
	return SealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open returns value unchanged unless it carries SealedPrefix, in which case
// it is decrypted with key.
func Open(value, key string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	if key == "" {
		return "", ErrMissingKey
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, SealedPrefix))
	if err != nil {
		return "", ErrInvalidCipherText
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", ErrOpenFailed
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", ErrInvalidCipherText
	}

	nonce, cipherData := data[:nonceSize], data[nonceSize:]
	plainText, err := gcm.Open(nil, nonce, cipherData, nil)
	if err != nil {
		return "", ErrOpenFailed
	}

	return string(plainText), nil
}
