package webhooks

import (
	"github.com/goliatone/go-webhooks/core"
	"github.com/goliatone/go-webhooks/ratelimit"
	"github.com/goliatone/go-webhooks/transport"
)

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type Webhook = core.Webhook
type Delivery = core.Delivery
type Event = core.Event
type DispatchResult = core.DispatchResult
type StoreProvider = core.StoreProvider
type DeliveryLocker = core.DeliveryLocker
type Sender = core.Sender

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithStoreProvider     = core.WithStoreProvider
	WithWebhookStore      = core.WithWebhookStore
	WithDeliveryStore     = core.WithDeliveryStore
	WithNamespaceResolver = core.WithNamespaceResolver
	WithSender            = core.WithSender
	WithDeliveryLocker    = core.WithDeliveryLocker
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// NewService builds a core.Service that sends through transport.HTTPSender
// unless WithSender supplies another Sender. transport.throttle_targets
// wraps the default sender in a per-host ratelimit.ThrottledSender.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	httpSender := transport.NewHTTPSender(nil)
	if cfg.Transport.MaxResponseBodyBytes > 0 {
		httpSender.MaxResponseBodyBytes = cfg.Transport.MaxResponseBodyBytes
	}
	var sender core.Sender = httpSender
	if cfg.Transport.ThrottleTargets {
		sender = ratelimit.NewThrottledSender(httpSender, nil)
	}
	withDefaults := append([]Option{core.WithSender(sender)}, opts...)
	return core.NewService(cfg, withDefaults...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}
