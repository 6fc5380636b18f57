package ratelimit

import (
	"context"
	"net/url"

	"github.com/goliatone/go-webhooks/core"
)

// ThrottledSender skips requests to a host the policy has backed off from.
// The skipped request comes back as a transport failure, so the delivery is
// still recorded and can be redelivered once the window passes.
type ThrottledSender struct {
	next   core.Sender
	policy *AdaptivePolicy
}

func NewThrottledSender(next core.Sender, policy *AdaptivePolicy) *ThrottledSender {
	if policy == nil {
		policy = NewAdaptivePolicy(NewMemoryStateStore())
	}
	return &ThrottledSender{next: next, policy: policy}
}

func (s *ThrottledSender) Send(ctx context.Context, req core.OutboundRequest) core.Outcome {
	host := targetHost(req.URL)
	if host == "" {
		return s.next.Send(ctx, req)
	}
	if err := s.policy.BeforeCall(ctx, host); err != nil {
		return core.Outcome{Err: err}
	}
	outcome := s.next.Send(ctx, req)
	if outcome.Err == nil && outcome.StatusCode > 0 {
		// state bookkeeping must not turn a delivered request into a failure
		_ = s.policy.AfterCall(ctx, host, outcome)
	}
	return outcome
}

func targetHost(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return parsed.Host
}

var _ core.Sender = (*ThrottledSender)(nil)
