package services

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"finlink/internal/domain"
)

// CredentialCipher encrypts provider credentials before they reach
// durable storage. XChaCha20-Poly1305 with a random nonce per credential;
// the nonce is prepended to the ciphertext.
type CredentialCipher struct {
	key []byte
}

// NewCredentialCipher creates a cipher from a 32-byte key.
func NewCredentialCipher(key []byte) (*CredentialCipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, domain.NewValidationError("encryption_key",
			fmt.Sprintf("Encryption key must be %d bytes", chacha20poly1305.KeySize), nil)
	}
	return &CredentialCipher{key: append([]byte(nil), key...)}, nil
}

// Encrypt seals a plaintext credential into URL-safe base64.
func (c *CredentialCipher) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", domain.NewInternalError("CIPHER_INIT_FAILED", "Failed to initialize credential cipher", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", domain.NewInternalError("NONCE_GENERATION_FAILED", "Failed to generate nonce", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a credential previously produced by Encrypt.
func (c *CredentialCipher) Decrypt(encoded string) (string, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", domain.NewValidationError("credential", "Malformed encrypted credential", nil)
	}

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", domain.NewInternalError("CIPHER_INIT_FAILED", "Failed to initialize credential cipher", err)
	}
	if len(sealed) < aead.NonceSize() {
		return "", domain.NewValidationError("credential", "Malformed encrypted credential", nil)
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", domain.NewInternalError("CREDENTIAL_DECRYPT_FAILED", "Failed to decrypt credential", err)
	}
	return string(plaintext), nil
}
