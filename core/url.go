package core

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var schemePrefix = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*://`)

// NormalizeWebhookURL prefixes http:// when the value carries no explicit
// scheme and then requires an absolute http or https URL with a host.
func NormalizeWebhookURL(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", fmt.Errorf("%w: url is required", ErrInvalidWebhookURL)
	}
	if !schemePrefix.MatchString(value) {
		value = "http://" + value
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidWebhookURL, err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidWebhookURL, parsed.Scheme)
	}
	if !parsed.IsAbs() || strings.TrimSpace(parsed.Hostname()) == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidWebhookURL, value)
	}
	return scheme + value[len(parsed.Scheme):], nil
}
