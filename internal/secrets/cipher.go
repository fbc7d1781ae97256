// Package secrets encrypts connection credentials at rest.
package secrets

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/integrationos/gateway/internal/app/ports"
)

const (
	cipherVersion byte = 0x01
	keyInfo            = "integrationos-gateway secrets v1"
	overhead           = 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead
)

var (
	ErrMissingKey        = errors.New("secrets encryption key is required")
	ErrMalformedSecret   = errors.New("malformed secret")
	ErrUnsupportedSecret = errors.New("unsupported secret version")
)

// Cipher seals secrets with XChaCha20-Poly1305 under a key derived from a passphrase.
// Ciphertexts are base64 (raw URL alphabet) of version || nonce || sealed.
type Cipher struct {
	key []byte
}

func New(passphrase string) (*Cipher, error) {
	if strings.TrimSpace(passphrase) == "" {
		return nil, ErrMissingKey
	}
	key := make([]byte, chacha20poly1305.KeySize)
	reader := hkdf.New(sha256.New, []byte(passphrase), nil, []byte(keyInfo))
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive secrets key: %w", err)
	}
	return &Cipher{key: key}, nil
}

func (c *Cipher) Encrypt(_ context.Context, plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}
	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generating random nonce: %w", err)
	}

	output := make([]byte, 1+len(nonce), overhead+len(plaintext))
	output[0] = cipherVersion
	copy(output[1:], nonce[:])
	output = aead.Seal(output, nonce[:], []byte(plaintext), []byte{cipherVersion})
	return base64.RawURLEncoding.EncodeToString(output), nil
}

func (c *Cipher) Decrypt(_ context.Context, ciphertext string) (string, error) {
	blob, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedSecret, err)
	}
	if len(blob) < overhead {
		return "", fmt.Errorf("%w: %d bytes", ErrMalformedSecret, len(blob))
	}
	if blob[0] != cipherVersion {
		return "", fmt.Errorf("%w: %d", ErrUnsupportedSecret, blob[0])
	}

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}
	nonce := blob[1 : 1+chacha20poly1305.NonceSizeX]
	plaintext, err := aead.Open(nil, nonce, blob[1+chacha20poly1305.NonceSizeX:], blob[:1])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedSecret, err)
	}
	return string(plaintext), nil
}

var _ ports.SecretsClient = (*Cipher)(nil)
