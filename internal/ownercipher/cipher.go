// Package ownercipher obfuscates the owner field of stored submissions.
//
// Tokens are nacl/secretbox boxes under a key that lives next to the data, so this
// only keeps owner names out of casual view of the file. It is not access control.
package ownercipher

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

// ErrOpenFailed is returned when a token was not sealed under this key or is damaged.
var ErrOpenFailed = errors.New("owner token does not open with this key")

// Cipher seals and opens owner tokens.
type Cipher struct {
	key [keySize]byte
}

// New returns a Cipher for key.
func New(key [keySize]byte) *Cipher {
	return &Cipher{key: key}
}

// GenerateKey returns a fresh random key.
func GenerateKey() ([keySize]byte, error) {
	var key [keySize]byte
	if _, err := rand.Read(key[:]); err != nil {
		return key, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

// LoadOrCreateKey reads the key file at path, generating and writing a new key (mode 0600)
// when the file does not exist yet. The file holds the key as URL-safe base64.
func LoadOrCreateKey(path string) ([keySize]byte, error) {
	var key [keySize]byte
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		key, err = GenerateKey()
		if err != nil {
			return key, err
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return key, fmt.Errorf("create key dir: %w", err)
			}
		}
		encoded := base64.URLEncoding.EncodeToString(key[:])
		if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
			return key, fmt.Errorf("write key: %w", err)
		}
		return key, nil
	}
	if err != nil {
		return key, fmt.Errorf("read key: %w", err)
	}
	raw, err := base64.URLEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return key, fmt.Errorf("decode key %s: %w", path, err)
	}
	if len(raw) != keySize {
		return key, fmt.Errorf("key %s: got %d bytes, want %d", path, len(raw), keySize)
	}
	copy(key[:], raw)
	return key, nil
}

// Seal obfuscates owner. Every call uses a fresh nonce, so sealing the same owner
// twice yields different tokens.
func (c *Cipher) Seal(owner string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(owner), &nonce, &c.key)
	return base64.URLEncoding.EncodeToString(box), nil
}

// Open recovers the owner from a token produced by Seal.
func (c *Cipher) Open(token string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("decode owner token: %w", err)
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrOpenFailed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	owner, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &c.key)
	if !ok {
		return "", ErrOpenFailed
	}
	return string(owner), nil
}
