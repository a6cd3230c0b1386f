// Package cryptox seals short secrets (the WebDAV password) before they are
// written to the settings file.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// SealedPrefix marks a value produced by Sealer.Seal.
const SealedPrefix = "enc:"

var ErrInvalidSealed = errors.New("invalid sealed value")

// DeriveKey stretches secret into a 32-byte AES-256 key with argon2id.
func DeriveKey(secret, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, 32)
}

// Sealer encrypts values with AES-GCM under a key derived once from a
// configured secret.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the key for secret. The salt is fixed per application so
// the same secret always opens previously sealed values.
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, errors.New("empty secret")
	}
	salt := sha256.Sum256([]byte("invoicekeeper/settings"))
	block, err := aes.NewCipher(DeriveKey([]byte(secret), salt[:16]))
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// Seal returns "enc:" + base64(nonce || ciphertext). Empty input stays empty.
func (s *Sealer) Seal(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := s.aead.Seal(nonce, nonce, []byte(plain), nil)
	return SealedPrefix + base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal. Values without the prefix are returned unchanged so
// settings written before a secret was configured keep working.
func (s *Sealer) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, SealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSealed, err)
	}
	ns := s.aead.NonceSize()
	if len(raw) < ns {
		return "", ErrInvalidSealed
	}
	plain, err := s.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSealed, err)
	}
	return string(plain), nil
}

func IsSealed(value string) bool {
	return strings.HasPrefix(value, SealedPrefix)
}
