package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-webhooks/core"
)

const defaultResponseBodyLimit int64 = 10 << 20 // 10 MiB

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPSender performs webhook requests. Failures to obtain a response are
// reported inside the returned Outcome so that callers can record them.
type HTTPSender struct {
	Client HTTPDoer
	// MaxResponseBodyBytes caps how much of a response body is kept; the
	// rest is discarded.
	MaxResponseBodyBytes int64
	Now                  func() time.Time
}

// NewHTTPSender builds a sender around client. A nil client gets a shared
// *http.Client without its own timeout; each request carries its deadline
// in the context instead.
func NewHTTPSender(client HTTPDoer) *HTTPSender {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPSender{
		Client:               client,
		MaxResponseBodyBytes: defaultResponseBodyLimit,
	}
}

func (s *HTTPSender) Send(ctx context.Context, req core.OutboundRequest) core.Outcome {
	startedAt := s.now()
	outcome := s.send(ctx, req)
	outcome.Duration = s.now().Sub(startedAt)
	return outcome
}

func (s *HTTPSender) send(ctx context.Context, req core.OutboundRequest) core.Outcome {
	if s == nil || s.Client == nil {
		return core.Outcome{Err: transportError(
			"transport: http sender requires an http client",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	method := strings.ToUpper(strings.TrimSpace(string(req.Method)))
	if method == "" {
		method = http.MethodPost
	}
	target := strings.TrimSpace(req.URL)
	parsedURL, err := url.Parse(target)
	if err != nil {
		return core.Outcome{Err: transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: invalid webhook url",
			http.StatusBadRequest,
			map[string]any{"url": target},
		)}
	}
	if parsedURL.Host == "" {
		return core.Outcome{Err: transportError(
			"transport: webhook url has no host",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			map[string]any{"url": target},
		)}
	}

	requestCtx := ctx
	cancel := func() {}
	if req.Timeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	}
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, method, parsedURL.String(), bytes.NewReader(req.Body))
	if err != nil {
		return core.Outcome{Err: transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: create http request",
			http.StatusBadRequest,
			map[string]any{"method": method, "url": parsedURL.String()},
		)}
	}
	for key, value := range req.Headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		httpReq.Header.Set(strings.TrimSpace(key), value)
	}
	if req.Credentials != nil {
		httpReq.SetBasicAuth(req.Credentials.Username, req.Credentials.Password)
	}

	httpRes, err := s.Client.Do(httpReq)
	if err != nil {
		return core.Outcome{Err: transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: execute http request",
			http.StatusBadGateway,
			map[string]any{"method": method, "url": parsedURL.String()},
		)}
	}
	defer httpRes.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpRes.Body, s.bodyLimit()))
	if err != nil {
		return core.Outcome{Err: transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: read response body",
			http.StatusBadGateway,
			map[string]any{"status_code": httpRes.StatusCode},
		)}
	}

	return core.Outcome{
		StatusCode: httpRes.StatusCode,
		Headers:    flattenHeaders(httpRes.Header),
		Body:       body,
	}
}

func (s *HTTPSender) bodyLimit() int64 {
	if s.MaxResponseBodyBytes > 0 {
		return s.MaxResponseBodyBytes
	}
	return defaultResponseBodyLimit
}

func (s *HTTPSender) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func flattenHeaders(headers http.Header) map[string]string {
	if len(headers) == 0 {
		return map[string]string{}
	}
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) == 0 {
			flat[key] = ""
			continue
		}
		flat[key] = strings.Join(values, ",")
	}
	return flat
}

var _ core.Sender = (*HTTPSender)(nil)
