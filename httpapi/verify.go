package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// EventVerifier authenticates a registry notification before it is decoded.
type EventVerifier interface {
	Verify(headers map[string][]string, body []byte) error
}

// HMACVerifier checks a SHA-256 HMAC of the body carried in Header.
type HMACVerifier struct {
	Header   string
	Prefix   string
	Secret   string
	Encoding string // hex | base64
}

func (v HMACVerifier) Verify(headers map[string][]string, body []byte) error {
	header := headerValue(headers, v.Header)
	if header == "" {
		return fmt.Errorf("httpapi: %s signature header is required", strings.TrimSpace(v.Header))
	}
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return fmt.Errorf("httpapi: signature secret is required")
	}
	signature := strings.TrimSpace(strings.TrimPrefix(header, strings.TrimSpace(v.Prefix)))
	if signature == "" {
		return fmt.Errorf("httpapi: signature value is required")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	expected := mac.Sum(nil)

	var (
		decoded []byte
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(v.Encoding)) {
	case "base64":
		decoded, err = base64.StdEncoding.DecodeString(signature)
	default:
		decoded, err = hex.DecodeString(signature)
	}
	if err != nil {
		return fmt.Errorf("httpapi: decode signature: %w", err)
	}
	if subtle.ConstantTimeCompare(decoded, expected) != 1 {
		return fmt.Errorf("httpapi: signature verification failed")
	}
	return nil
}

// TokenVerifier compares Header against a static token, the way registries
// send a configured Authorization header with every notification.
type TokenVerifier struct {
	Header string
	Token  string
}

func (v TokenVerifier) Verify(headers map[string][]string, _ []byte) error {
	expected := strings.TrimSpace(v.Token)
	if expected == "" {
		return fmt.Errorf("httpapi: verification token is required")
	}
	header := v.Header
	if strings.TrimSpace(header) == "" {
		header = fiber.HeaderAuthorization
	}
	actual := headerValue(headers, header)
	if actual == "" {
		return fmt.Errorf("httpapi: %s verification header is required", header)
	}
	if subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) != 1 {
		return fmt.Errorf("httpapi: verification token mismatch")
	}
	return nil
}

// Verifiers passes only when every non-nil verifier passes.
type Verifiers []EventVerifier

func (v Verifiers) Verify(headers map[string][]string, body []byte) error {
	for _, verifier := range v {
		if verifier == nil {
			continue
		}
		if err := verifier.Verify(headers, body); err != nil {
			return err
		}
	}
	return nil
}

// WithEventVerifier rejects POST /events requests that verifier refuses.
func WithEventVerifier(verifier EventVerifier) Option {
	return func(h *Handler) {
		h.verifier = verifier
	}
}

func (h *Handler) verifyEvents(c *fiber.Ctx) error {
	if h.verifier == nil {
		return c.Next()
	}
	if err := h.verifier.Verify(c.GetReqHeaders(), c.Body()); err != nil {
		if h.logger != nil {
			h.logger.Warn("registry notification rejected", "error", err, "remote", c.IP())
		}
		return fiber.NewError(http.StatusUnauthorized, "notification verification failed")
	}
	return c.Next()
}

func headerValue(headers map[string][]string, key string) string {
	key = strings.TrimSpace(key)
	for name, values := range headers {
		if strings.EqualFold(name, key) && len(values) > 0 {
			return strings.TrimSpace(values[0])
		}
	}
	return ""
}
