// Package fieldcrypt encrypts individual sensitive string fields (NRIC/FIN,
// phone numbers) before they are persisted, and masks them for display.
//
// Ciphertexts are "v1." followed by base64url(nonce || sealed box) using
// XChaCha20-Poly1305 with a key derived from the configured secret via HKDF.
// Decryption tries the primary key, then any previous keys, so secrets can be
// rotated without rewriting stored rows at once.
package fieldcrypt

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	version  = "v1."
	hkdfInfo = "bmr field encryption v1"
	maskRune = '*'
	visible  = 4
)

var (
	// ErrDecrypt is returned for corrupt ciphertext or a key mismatch.
	ErrDecrypt = errors.New("fieldcrypt: decryption failed")
	ErrNoKey   = errors.New("fieldcrypt: encryption key is empty")
)

// Codec is safe for concurrent use.
type Codec struct {
	primary  cipher.AEAD
	fallback []cipher.AEAD
}

// New builds a Codec from the primary secret and optional previous secrets.
func New(secret string, previous ...string) (*Codec, error) {
	if secret == "" {
		return nil, ErrNoKey
	}
	primary, err := newAEAD(secret)
	if err != nil {
		return nil, err
	}
	c := &Codec{primary: primary}
	for _, p := range previous {
		if p == "" {
			continue
		}
		aead, err := newAEAD(p)
		if err != nil {
			return nil, err
		}
		c.fallback = append(c.fallback, aead)
	}
	return c, nil
}

func newAEAD(secret string) (cipher.AEAD, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("fieldcrypt: derive key: %w", err)
	}
	return chacha20poly1305.NewX(key)
}

// Encrypt seals plaintext with a fresh random nonce. The empty string is
// encrypted like any other value.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.primary.NonceSize(), c.primary.NonceSize()+len(plaintext)+c.primary.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("fieldcrypt: nonce: %w", err)
	}
	sealed := c.primary.Seal(nonce, nonce, []byte(plaintext), nil)
	return version + base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *Codec) Decrypt(ciphertext string) (string, error) {
	if !strings.HasPrefix(ciphertext, version) {
		return "", fmt.Errorf("%w: unknown format", ErrDecrypt)
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(ciphertext, version))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	for _, aead := range append([]cipher.AEAD{c.primary}, c.fallback...) {
		if len(raw) < aead.NonceSize()+aead.Overhead() {
			return "", fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
		}
		nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
		if plain, err := aead.Open(nil, nonce, sealed, nil); err == nil {
			return string(plain), nil
		}
	}
	return "", fmt.Errorf("%w: authentication failed", ErrDecrypt)
}

// Mask keeps the last four characters and replaces the rest with '*'.
// Values of four characters or fewer are masked entirely.
func Mask(plaintext string) string {
	runes := []rune(plaintext)
	if len(runes) == 0 {
		return ""
	}
	keep := visible
	if len(runes) <= visible {
		keep = 0
	}
	out := make([]rune, len(runes))
	for i, r := range runes {
		if i < len(runes)-keep {
			out[i] = maskRune
		} else {
			out[i] = r
		}
	}
	return string(out)
}
