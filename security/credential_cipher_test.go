package security

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestCredentialCipher_EncryptDecryptRoundTrip(t *testing.T) {
	c, err := NewCredentialCipherFromString("super-secret-test-key", WithKeyID("webhooks-v1"), WithVersion(3))
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}

	plaintext := []byte("basic-auth-password")
	encrypted, err := c.Encrypt(context.Background(), plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Equal(encrypted, plaintext) {
		t.Fatalf("expected encrypted payload to differ from plaintext")
	}
	if !bytes.HasPrefix(encrypted, []byte(EnvelopePrefix)) {
		t.Fatalf("expected envelope prefix")
	}

	decrypted, err := c.Decrypt(context.Background(), encrypted)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Fatalf("expected roundtrip plaintext; got %q", string(decrypted))
	}
}

func TestCredentialCipher_RejectsMetadataMismatch(t *testing.T) {
	issuer, err := NewCredentialCipherFromString("super-secret-test-key", WithKeyID("webhooks-v1"), WithVersion(1))
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	receiver, err := NewCredentialCipherFromString("super-secret-test-key", WithKeyID("webhooks-v2"), WithVersion(2))
	if err != nil {
		t.Fatalf("new receiver: %v", err)
	}

	encrypted, err := issuer.Encrypt(context.Background(), []byte("payload"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := receiver.Decrypt(context.Background(), encrypted); err == nil {
		t.Fatalf("expected metadata mismatch error")
	}
}

func TestCredentialCipher_RejectsWrongKey(t *testing.T) {
	issuer, _ := NewCredentialCipherFromString("key-one")
	receiver, _ := NewCredentialCipherFromString("key-two")

	sealed, err := issuer.Seal(context.Background(), "hunter2")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := receiver.Open(context.Background(), sealed); err == nil {
		t.Fatalf("expected authentication failure with a different key")
	}
}

func TestCredentialCipher_SealOpenPassThrough(t *testing.T) {
	c, err := NewCredentialCipherFromString("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	ctx := context.Background()

	empty, err := c.Seal(ctx, "")
	if err != nil || empty != "" {
		t.Fatalf("expected empty credential to stay empty, got %q err=%v", empty, err)
	}

	legacy, err := c.Open(ctx, "plain-password")
	if err != nil {
		t.Fatalf("open legacy: %v", err)
	}
	if legacy != "plain-password" {
		t.Fatalf("expected unsealed value to pass through, got %q", legacy)
	}

	sealed, err := c.Seal(ctx, "s3cret")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if !strings.HasPrefix(sealed, EnvelopePrefix) || strings.Contains(sealed, "s3cret") {
		t.Fatalf("expected opaque envelope, got %q", sealed)
	}
	opened, err := c.Open(ctx, sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if opened != "s3cret" {
		t.Fatalf("expected s3cret, got %q", opened)
	}
}

func TestNewCredentialCipher_RequiresKey(t *testing.T) {
	if _, err := NewCredentialCipher([]byte("   ")); err == nil {
		t.Fatalf("expected blank key to be rejected")
	}
}

func TestCredentialCipher_RejectsTamperedEnvelope(t *testing.T) {
	c, _ := NewCredentialCipherFromString("tamper-key")
	if _, err := c.Open(context.Background(), EnvelopePrefix+"{not-json"); err == nil {
		t.Fatalf("expected decode error")
	}
}
