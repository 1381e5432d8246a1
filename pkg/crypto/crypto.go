package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"sync"
)

// sealedPrefix marca los valores cifrados; lo que no lo lleva se trata como texto plano heredado.
const sealedPrefix = "enc:v1:"

var (
	ErrKeyNotConfigured = errors.New("encryption key not configured")
	ErrMalformed        = errors.New("malformed ciphertext")
)

var (
	keyMu         sync.RWMutex
	encryptionKey []byte
)

// SetEncryptionKey deriva una clave AES-256 a partir del secreto de la aplicación.
// Un secreto vacío desactiva el cifrado.
func SetEncryptionKey(secret string) {
	keyMu.Lock()
	defer keyMu.Unlock()
	if secret == "" {
		encryptionKey = nil
		return
	}
	sum := sha256.Sum256([]byte(secret))
	encryptionKey = sum[:]
}

func currentKey() []byte {
	keyMu.RLock()
	defer keyMu.RUnlock()
	return encryptionKey
}

// Enabled reports whether a key is configured.
func Enabled() bool {
	return len(currentKey()) > 0
}

// IsSealed reports whether value was produced by Encrypt.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}

// Encrypt cifra con AES-GCM. Sin clave configurada devuelve el texto tal cual.
func Encrypt(plainText string) (string, error) {
	key := currentKey()
	if len(key) == 0 || plainText == "" {
		return plainText, nil
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plainText), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt revierte Encrypt. Valores sin prefijo se devuelven sin cambios.
func Decrypt(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	key := currentKey()
	if len(key) == 0 {
		return "", ErrKeyNotConfigured
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", ErrMalformed
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", ErrMalformed
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Mask deja visibles los últimos 4 caracteres de un secreto.
func Mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
