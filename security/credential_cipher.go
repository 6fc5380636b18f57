package security

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/goliatone/go-webhooks/core"
)

// EnvelopePrefix marks a sealed credential in the webhooks table.
const EnvelopePrefix = "webhooks.secret.v1:"

const algorithmAESGCM = "aes-256-gcm"

type Option func(*CredentialCipher)

// CredentialCipher encrypts webhook passwords with an application key using
// AES-GCM. Sealed values carry the key id and version so a rotated key is
// detected instead of producing garbage.
type CredentialCipher struct {
	key     []byte
	keyID   string
	version int
}

type envelope struct {
	KeyID      string `json:"kid"`
	Version    int    `json:"ver"`
	Algorithm  string `json:"alg"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

func WithKeyID(id string) Option {
	return func(c *CredentialCipher) {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			c.keyID = trimmed
		}
	}
}

func WithVersion(version int) Option {
	return func(c *CredentialCipher) {
		if version > 0 {
			c.version = version
		}
	}
}

func NewCredentialCipher(keyMaterial []byte, opts ...Option) (*CredentialCipher, error) {
	key := bytes.TrimSpace(keyMaterial)
	if len(key) == 0 {
		return nil, fmt.Errorf("security: app key is required")
	}
	c := &CredentialCipher{
		key:     normalizeKey(key),
		keyID:   "app-key",
		version: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func NewCredentialCipherFromString(key string, opts ...Option) (*CredentialCipher, error) {
	return NewCredentialCipher([]byte(key), opts...)
}

// Seal returns the envelope for plaintext. Empty credentials stay empty.
func (c *CredentialCipher) Seal(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	sealed, err := c.Encrypt(ctx, []byte(plaintext))
	if err != nil {
		return "", err
	}
	return string(sealed), nil
}

// Open decrypts a sealed credential. Rows written before a key was
// configured hold plaintext and are returned as is.
func (c *CredentialCipher) Open(ctx context.Context, stored string) (string, error) {
	if !strings.HasPrefix(stored, EnvelopePrefix) {
		return stored, nil
	}
	plaintext, err := c.Decrypt(ctx, []byte(stored))
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func (c *CredentialCipher) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("security: credential cipher is nil")
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: plaintext is required")
	}
	gcm, err := c.aead()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("security: nonce generation failed: %w", err)
	}
	data, err := json.Marshal(envelope{
		KeyID:      c.keyID,
		Version:    c.version,
		Algorithm:  algorithmAESGCM,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, plaintext, nil)),
	})
	if err != nil {
		return nil, fmt.Errorf("security: encode envelope: %w", err)
	}
	return append([]byte(EnvelopePrefix), data...), nil
}

func (c *CredentialCipher) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("security: credential cipher is nil")
	}
	payload := bytes.TrimPrefix(ciphertext, []byte(EnvelopePrefix))
	if len(payload) == 0 {
		return nil, fmt.Errorf("security: ciphertext is required")
	}

	var parsed envelope
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("security: decode envelope: %w", err)
	}
	if parsed.Algorithm != "" && parsed.Algorithm != algorithmAESGCM {
		return nil, fmt.Errorf("security: unsupported algorithm %q", parsed.Algorithm)
	}
	if parsed.KeyID != "" && parsed.KeyID != c.keyID {
		return nil, fmt.Errorf("security: key id mismatch: got %q want %q", parsed.KeyID, c.keyID)
	}
	if parsed.Version > 0 && parsed.Version != c.version {
		return nil, fmt.Errorf("security: key version mismatch: got %d want %d", parsed.Version, c.version)
	}

	nonce, err := base64.StdEncoding.DecodeString(parsed.Nonce)
	if err != nil {
		return nil, fmt.Errorf("security: decode nonce: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(parsed.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("security: decode ciphertext payload: %w", err)
	}
	gcm, err := c.aead()
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("security: invalid nonce length %d", len(nonce))
	}
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("security: decrypt payload: %w", err)
	}
	return plaintext, nil
}

func (c *CredentialCipher) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

func (c *CredentialCipher) Version() int {
	if c == nil {
		return 0
	}
	return c.version
}

func (c *CredentialCipher) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}
	return gcm, nil
}

// normalizeKey keeps raw AES key sizes and hashes anything else to 32 bytes.
func normalizeKey(value []byte) []byte {
	switch len(value) {
	case 16, 24, 32:
		key := make([]byte, len(value))
		copy(key, value)
		return key
	}
	sum := sha256.Sum256(value)
	return sum[:]
}

var _ core.SecretCipher = (*CredentialCipher)(nil)
