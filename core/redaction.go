package core

import "strings"

const RedactedValue = "[REDACTED]"

// RedactHeaders masks credential-bearing header values before they reach
// logs. Stored deliveries keep the real values.
func RedactHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(headers))
	for name, value := range headers {
		if shouldRedactKey(name) {
			out[name] = RedactedValue
			continue
		}
		out[name] = value
	}
	return out
}

func shouldRedactKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return false
	}
	sensitiveTokens := []string{
		"password",
		"secret",
		"token",
		"authorization",
		"api-key",
		"api_key",
		"apikey",
		"cookie",
		"signature",
	}
	for _, token := range sensitiveTokens {
		if strings.Contains(key, token) {
			return true
		}
	}
	return false
}
