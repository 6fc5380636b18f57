package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrDuplicateToken is returned by a DeliveryStore when an insert hits the
// (webhook_id, token) unique constraint.
var ErrDuplicateToken = errors.New("core: delivery token already used for webhook")

const defaultTokenAttempts = 16

type Recorder struct {
	Deliveries DeliveryStore
	// NewToken defaults to uuid.NewString.
	NewToken    func() string
	MaxAttempts int
}

func NewRecorder(deliveries DeliveryStore) *Recorder {
	return &Recorder{Deliveries: deliveries}
}

// Record persists one delivery attempt under a token not yet used by the
// webhook. Deliveries are inserted once and never updated here.
func (r *Recorder) Record(
	ctx context.Context,
	webhook Webhook,
	requestHeaders map[string]string,
	requestBody []byte,
	outcome Outcome,
) (Delivery, error) {
	if r == nil || r.Deliveries == nil {
		return Delivery{}, fmt.Errorf("core: delivery store is required")
	}
	webhookID := strings.TrimSpace(webhook.ID)
	if webhookID == "" {
		return Delivery{}, fmt.Errorf("core: webhook id is required to record a delivery")
	}
	newToken := r.NewToken
	if newToken == nil {
		newToken = uuid.NewString
	}
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = defaultTokenAttempts
	}

	input := NewDeliveryInput{
		WebhookID:      webhookID,
		Status:         outcome.StatusCode,
		RequestHeader:  copyStringMap(requestHeaders),
		RequestBody:    string(requestBody),
		ResponseHeader: copyStringMap(outcome.Headers),
		ResponseBody:   string(outcome.Body),
		TransportError: outcome.TransportError(),
	}
	if outcome.Err != nil {
		input.Status = 0
		input.ResponseHeader = map[string]string{}
		input.ResponseBody = ""
	}

	for attempt := 0; attempt < attempts; attempt++ {
		token := newToken()
		exists, err := r.Deliveries.TokenExists(ctx, webhookID, token)
		if err != nil {
			return Delivery{}, err
		}
		if exists {
			continue
		}
		input.Token = token
		delivery, err := r.Deliveries.Insert(ctx, input)
		if errors.Is(err, ErrDuplicateToken) {
			continue
		}
		if err != nil {
			return Delivery{}, err
		}
		return delivery, nil
	}
	return Delivery{}, fmt.Errorf("core: no unused delivery token for webhook %q after %d attempts", webhookID, attempts)
}
