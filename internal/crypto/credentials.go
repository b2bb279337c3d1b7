// Package crypto handles the encrypted credential blobs supplied by the host
// application. Keys live in configuration; plaintext credentials exist only
// transiently inside the request path and are never cached or logged.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Decryptor decrypts an integration's credential blob.
type Decryptor interface {
	Decrypt(blob string) (string, error)
}

// AESDecryptor is an AES-256-GCM Decryptor. Blobs are
// base64(nonce || ciphertext) sealed with the shared key.
type AESDecryptor struct {
	key []byte
}

func NewAESDecryptor(hexKey string) (*AESDecryptor, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("credential key is not hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("credential key must be 32 bytes, got %d", len(key))
	}
	return &AESDecryptor{key: key}, nil
}

func (d *AESDecryptor) Decrypt(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("credential blob is not base64: %w", err)
	}
	block, err := aes.NewCipher(d.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(raw) < gcm.NonceSize() {
		return "", fmt.Errorf("credential blob too short")
	}
	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("credential decrypt failed: %w", err)
	}
	return string(plain), nil
}

// Encrypt seals a plaintext credential; used by tests and by the host
// application's provisioning path.
func (d *AESDecryptor) Encrypt(plain string) (string, error) {
	block, err := aes.NewCipher(d.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}
