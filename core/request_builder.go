package core

import (
	"net/http"
	"strings"
)

const headerContentType = "Content-Type"

// HeadersAndAuth assembles the outbound header set for a webhook, seeded
// with its content type and overlaid with the custom headers in order. Names
// are canonicalized, so a custom content-type replaces the seeded one.
// Credentials are nil unless both username and password are set.
func HeadersAndAuth(webhook Webhook) (map[string]string, *Credentials) {
	headers := map[string]string{headerContentType: string(webhook.ContentType)}
	for _, header := range webhook.Headers {
		name := strings.TrimSpace(header.Name)
		if name == "" {
			continue
		}
		headers[http.CanonicalHeaderKey(name)] = header.Value
	}
	if webhook.Username == "" || webhook.Password == "" {
		return headers, nil
	}
	return headers, &Credentials{Username: webhook.Username, Password: webhook.Password}
}

func BuildRequest(webhook Webhook, body []byte) OutboundRequest {
	headers, credentials := HeadersAndAuth(webhook)
	return OutboundRequest{
		Method:      webhook.Method,
		URL:         webhook.URL,
		Headers:     headers,
		Body:        append([]byte(nil), body...),
		Timeout:     DeliveryTimeout,
		Credentials: credentials,
	}
}
