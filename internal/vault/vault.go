// Package vault seals mailbox secrets before they reach the database.
package vault

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Sealer encrypts and decrypts short secrets into a storable text form.
type Sealer interface {
	Seal(plaintext []byte) (string, error)
	Open(sealed string) ([]byte, error)
}

// Config holds vault configuration
type Config struct {
	MasterKey string
	Salt      []byte
}

type Vault struct {
	key []byte
}

// New derives the data key from the configured master key.
func New(config Config) (*Vault, error) {
	if config.MasterKey == "" {
		return nil, errors.New("master key required")
	}
	if len(config.Salt) < 8 {
		return nil, errors.New("salt must be at least 8 bytes")
	}

	return &Vault{
		key: deriveKey(config.MasterKey, config.Salt, chacha20poly1305.KeySize),
	}, nil
}

func (v *Vault) Seal(plaintext []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (v *Vault) Open(sealed string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("invalid sealed data format: %w", err)
	}

	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return nil, err
	}

	nonceSize := aead.NonceSize()
	if len(data) < nonceSize+aead.Overhead() {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	return aead.Open(nil, nonce, ciphertext, nil)
}

func deriveKey(password string, salt []byte, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), salt, 3, 32*1024, 4, keyLen)
}
