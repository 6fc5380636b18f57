package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Redeliverer replays a recorded delivery with its original body against
// the webhook's current configuration.
type Redeliverer struct {
	Deliveries DeliveryStore
	Webhooks   WebhookReader
	Sender     Sender
	Locker     DeliveryLocker
	LockTTL    time.Duration
	Observer   DeliveryObserver
	Now        func() time.Time
}

// Redeliver sends the delivery again and overwrites its response fields.
// A failed HTTP exchange is stored on the delivery (status 0 plus the
// transport error) and is not returned as an error.
func (r *Redeliverer) Redeliver(ctx context.Context, deliveryID string) (Delivery, error) {
	if r == nil || r.Deliveries == nil || r.Webhooks == nil || r.Sender == nil {
		return Delivery{}, fmt.Errorf("core: redeliverer is not fully configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return Delivery{}, validationError("delivery id is required",
			goerrors.FieldError{Field: "delivery_id", Message: "required"})
	}

	if r.Locker != nil {
		ttl := r.LockTTL
		if ttl <= 0 {
			ttl = defaultRedeliveryLockTTL
		}
		lock, err := r.Locker.Acquire(ctx, deliveryID, ttl)
		if err != nil {
			return Delivery{}, err
		}
		defer func() {
			_ = lock.Unlock(context.WithoutCancel(ctx))
		}()
	}

	delivery, err := r.Deliveries.Get(ctx, deliveryID)
	if err != nil {
		return Delivery{}, err
	}
	webhook, err := r.Webhooks.Get(ctx, delivery.WebhookID)
	if err != nil {
		return Delivery{}, err
	}
	body, err := RecanonicalizeBody(delivery.RequestBody)
	if err != nil {
		return Delivery{}, err
	}

	outcome := r.Sender.Send(ctx, BuildRequest(webhook, body))

	update := DeliveryOutcomeUpdate{
		DeliveryID:     delivery.ID,
		Status:         outcome.StatusCode,
		ResponseHeader: copyStringMap(outcome.Headers),
		ResponseBody:   string(outcome.Body),
		TransportError: outcome.TransportError(),
		UpdatedAt:      r.nextUpdatedAt(delivery.UpdatedAt),
	}
	if outcome.Err != nil {
		update.Status = 0
		update.ResponseHeader = map[string]string{}
		update.ResponseBody = ""
	}

	updated, err := r.Deliveries.UpdateOutcome(ctx, update)
	if r.Observer != nil {
		r.Observer(ctx, "redeliver", webhook, updated, outcome, err)
	}
	if err != nil {
		return Delivery{}, err
	}
	return updated, nil
}

// nextUpdatedAt never goes backwards, even when the clock does. Stores keep
// microsecond precision, so the step matches.
func (r *Redeliverer) nextUpdatedAt(previous time.Time) time.Time {
	now := time.Now().UTC()
	if r.Now != nil {
		now = r.Now().UTC()
	}
	now = now.Truncate(time.Microsecond)
	if !now.After(previous) {
		now = previous.Add(time.Microsecond).Truncate(time.Microsecond)
	}
	return now
}
