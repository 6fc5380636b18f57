package gojob

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-webhooks/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

const (
	JobIDDispatchPushEvent = "webhooks.event.dispatch"
	JobIDRedeliver         = "webhooks.delivery.redeliver"

	paramEvent      = "event"
	paramDeliveryID = "delivery_id"

	dedupDrop job.DeduplicationPolicy = "drop"
)

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// Backoff doubles BaseDelay per attempt, capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// NewPushEventMessage wraps a registry event for asynchronous dispatch.
// Events with an id are deduplicated on it.
func NewPushEventMessage(event core.Event) (*job.ExecutionMessage, error) {
	if event == nil {
		return nil, fmt.Errorf("gojob: event is required")
	}
	msg := &job.ExecutionMessage{
		JobID:      JobIDDispatchPushEvent,
		ScriptPath: JobIDDispatchPushEvent,
		Parameters: map[string]any{paramEvent: map[string]any(event)},
	}
	if id := strings.TrimSpace(event.ID()); id != "" {
		msg.IdempotencyKey = "push:" + id
		msg.DedupPolicy = dedupDrop
	}
	return msg, nil
}

func NewRedeliverMessage(deliveryID string) (*job.ExecutionMessage, error) {
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return nil, fmt.Errorf("gojob: delivery id is required")
	}
	return &job.ExecutionMessage{
		JobID:      JobIDRedeliver,
		ScriptPath: JobIDRedeliver,
		Parameters: map[string]any{paramDeliveryID: deliveryID},
	}, nil
}

// EventFromMessage extracts the event of a push dispatch job. Queues that
// serialize parameters may hand back a JSON string or a decoded map.
func EventFromMessage(msg *job.ExecutionMessage) (core.Event, error) {
	if msg == nil {
		return nil, fmt.Errorf("gojob: execution message is required")
	}
	raw, ok := msg.Parameters[paramEvent]
	if !ok || raw == nil {
		return nil, fmt.Errorf("gojob: %s parameter is required", paramEvent)
	}
	switch value := raw.(type) {
	case core.Event:
		return value, nil
	case string:
		return core.DecodeEvent([]byte(value))
	case []byte:
		return core.DecodeEvent(value)
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("gojob: encode event parameter: %w", err)
		}
		return core.DecodeEvent(encoded)
	}
}

func DeliveryIDFromMessage(msg *job.ExecutionMessage) (string, error) {
	if msg == nil {
		return "", fmt.Errorf("gojob: execution message is required")
	}
	id := strings.TrimSpace(fmt.Sprint(msg.Parameters[paramDeliveryID]))
	if id == "" || id == "<nil>" {
		return "", fmt.Errorf("gojob: %s parameter is required", paramDeliveryID)
	}
	return id, nil
}

// EnqueuerAdapter publishes webhook jobs to a go-job queue.
type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) EnqueuePushEvent(ctx context.Context, event core.Event) error {
	msg, err := NewPushEventMessage(event)
	if err != nil {
		return err
	}
	return a.enqueue(ctx, msg)
}

func (a *EnqueuerAdapter) EnqueueRedeliver(ctx context.Context, deliveryID string) error {
	msg, err := NewRedeliverMessage(deliveryID)
	if err != nil {
		return err
	}
	return a.enqueue(ctx, msg)
}

func (a *EnqueuerAdapter) enqueue(ctx context.Context, msg *job.ExecutionMessage) error {
	if a == nil || a.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	return a.enqueuer.Enqueue(ctx, msg)
}

// DispatchService is the subset of core.WebhookService run by queue workers.
type DispatchService interface {
	HandlePushEvent(ctx context.Context, event core.Event) (core.DispatchResult, error)
	Redeliver(ctx context.Context, deliveryID string) (core.Delivery, error)
}

// Processor executes webhook jobs against the service.
type Processor struct {
	service DispatchService
}

func NewProcessor(service DispatchService) *Processor {
	return &Processor{service: service}
}

func (p *Processor) Process(ctx context.Context, msg *job.ExecutionMessage) error {
	if p == nil || p.service == nil {
		return fmt.Errorf("gojob: dispatch service is not configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	switch strings.TrimSpace(msg.JobID) {
	case JobIDDispatchPushEvent:
		event, err := EventFromMessage(msg)
		if err != nil {
			return err
		}
		_, err = p.service.HandlePushEvent(ctx, event)
		return err
	case JobIDRedeliver:
		deliveryID, err := DeliveryIDFromMessage(msg)
		if err != nil {
			return err
		}
		_, err = p.service.Redeliver(ctx, deliveryID)
		return err
	default:
		return fmt.Errorf("gojob: unsupported job id %q", msg.JobID)
	}
}

type DeliveryAdapter struct {
	delivery queue.Delivery
	policy   RetryPolicy
}

func NewDeliveryAdapter(delivery queue.Delivery, policy RetryPolicy) *DeliveryAdapter {
	return &DeliveryAdapter{delivery: delivery, policy: policy}
}

func (d *DeliveryAdapter) Message() *job.ExecutionMessage {
	if d == nil || d.delivery == nil {
		return nil
	}
	return d.delivery.Message()
}

func (d *DeliveryAdapter) Ack(ctx context.Context) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.delivery.Ack(ctx)
}

func (d *DeliveryAdapter) NackForAttempt(ctx context.Context, opts queue.NackOptions, attempt int) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	normalized := d.policy.NormalizeAttempt(opts, attempt)
	return d.delivery.Nack(ctx, normalized)
}

// Consumer pulls one job at a time, runs it, then acks or nacks it.
// Bad input and missing records are dead-lettered since a retry cannot
// succeed.
type Consumer struct {
	dequeuer  queue.Dequeuer
	processor *Processor
	policy    RetryPolicy
}

func NewConsumer(dequeuer queue.Dequeuer, processor *Processor, policy RetryPolicy) *Consumer {
	return &Consumer{dequeuer: dequeuer, processor: processor, policy: policy}
}

// ConsumeOnce handles a single queued job. attempt is the delivery attempt
// number as tracked by the caller's worker loop.
func (c *Consumer) ConsumeOnce(ctx context.Context, attempt int) error {
	if c == nil || c.dequeuer == nil || c.processor == nil {
		return fmt.Errorf("gojob: consumer is not configured")
	}
	raw, err := c.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	delivery := NewDeliveryAdapter(raw, c.policy)

	runErr := c.processor.Process(ctx, delivery.Message())
	if runErr == nil {
		return delivery.Ack(ctx)
	}

	opts := queue.NackOptions{
		Delay:   c.policy.Backoff(attempt),
		Requeue: true,
		Reason:  runErr.Error(),
	}
	if isPermanent(runErr) {
		opts.Requeue = false
		opts.DeadLetter = true
	}
	if err := delivery.NackForAttempt(ctx, opts, attempt); err != nil {
		return fmt.Errorf("gojob: nack after %v: %w", runErr, err)
	}
	return runErr
}

func isPermanent(err error) bool {
	mapped := core.MapError(err)
	if mapped == nil {
		return false
	}
	switch mapped.TextCode {
	case core.ErrorBadInput, core.ErrorNotFound:
		return true
	}
	return false
}

var (
	_ worker.Hook     = (*WorkerHookAdapter)(nil)
	_ DispatchService = (core.WebhookService)(nil)
)
