package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// DeliveryTimeout bounds every outbound webhook request, for fan-out
// dispatch and for redelivery alike.
const DeliveryTimeout = 60 * time.Second

type Credentials struct {
	Username string
	Password string
}

type OutboundRequest struct {
	Method      RequestMethod
	URL         string
	Headers     map[string]string
	Body        []byte
	Timeout     time.Duration
	Credentials *Credentials
}

// Outcome is what a Sender observed for one request. Err is set when no
// HTTP response could be obtained; StatusCode is then 0.
type Outcome struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Duration   time.Duration
	Err        error
}

func (o Outcome) TransportError() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

type Sender interface {
	Send(ctx context.Context, req OutboundRequest) Outcome
}

type WebhookReader interface {
	Get(ctx context.Context, id string) (Webhook, error)
	ListByNamespace(ctx context.Context, namespaceID string) ([]Webhook, error)
	ListEnabled(ctx context.Context, namespaceID string) ([]Webhook, error)
}

type WebhookStore interface {
	WebhookReader
	Create(ctx context.Context, in CreateWebhookInput) (Webhook, error)
	Update(ctx context.Context, in UpdateWebhookInput) (Webhook, error)
	Delete(ctx context.Context, id string) error
	ReplaceHeaders(ctx context.Context, webhookID string, headers []HeaderInput) ([]Header, error)
}

type DeliveryStore interface {
	TokenExists(ctx context.Context, webhookID string, token string) (bool, error)
	Insert(ctx context.Context, in NewDeliveryInput) (Delivery, error)
	Get(ctx context.Context, id string) (Delivery, error)
	List(ctx context.Context, filter DeliveryFilter) (DeliveryPage, error)
	UpdateOutcome(ctx context.Context, in DeliveryOutcomeUpdate) (Delivery, error)
}

type NamespaceResolver interface {
	ResolveEvent(ctx context.Context, event Event) (Namespace, bool, error)
}

// SecretCipher seals webhook credentials before they reach storage. Open
// returns values that were never sealed unchanged.
type SecretCipher interface {
	Seal(ctx context.Context, plaintext string) (string, error)
	Open(ctx context.Context, stored string) (string, error)
}

type LockHandle interface {
	Unlock(ctx context.Context) error
}

type DeliveryLocker interface {
	Acquire(ctx context.Context, deliveryID string, ttl time.Duration) (LockHandle, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// WebhookService is the surface the command, query and HTTP layers consume.
type WebhookService interface {
	CreateWebhook(ctx context.Context, in CreateWebhookInput) (Webhook, error)
	UpdateWebhook(ctx context.Context, in UpdateWebhookInput) (Webhook, error)
	DeleteWebhook(ctx context.Context, webhookID string) error
	SetWebhookHeaders(ctx context.Context, webhookID string, headers []HeaderInput) (Webhook, error)
	GetWebhook(ctx context.Context, webhookID string) (Webhook, error)
	ListWebhooks(ctx context.Context, namespaceID string) ([]Webhook, error)
	HandlePushEvent(ctx context.Context, event Event) (DispatchResult, error)
	Redeliver(ctx context.Context, deliveryID string) (Delivery, error)
	GetDelivery(ctx context.Context, deliveryID string) (Delivery, error)
	ListDeliveries(ctx context.Context, filter DeliveryFilter) (DeliveryPage, error)
}
