package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// StoreProvider hands the service a consistent set of stores, usually
// backed by the same database.
type StoreProvider interface {
	WebhookStore() WebhookStore
	DeliveryStore() DeliveryStore
	NamespaceResolver() NamespaceResolver
}

type serviceBuilder struct {
	runtimeConfig     Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	storeProvider     StoreProvider
	webhookStore      WebhookStore
	deliveryStore     DeliveryStore
	namespaceResolver NamespaceResolver
	sender            Sender
	deliveryLocker    DeliveryLocker
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithStoreProvider(provider StoreProvider) Option {
	return func(b *serviceBuilder) {
		b.storeProvider = provider
	}
}

func WithWebhookStore(store WebhookStore) Option {
	return func(b *serviceBuilder) {
		b.webhookStore = store
	}
}

func WithDeliveryStore(store DeliveryStore) Option {
	return func(b *serviceBuilder) {
		b.deliveryStore = store
	}
}

func WithNamespaceResolver(resolver NamespaceResolver) Option {
	return func(b *serviceBuilder) {
		b.namespaceResolver = resolver
	}
}

func WithSender(sender Sender) Option {
	return func(b *serviceBuilder) {
		b.sender = sender
	}
}

func WithDeliveryLocker(locker DeliveryLocker) Option {
	return func(b *serviceBuilder) {
		b.deliveryLocker = locker
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("webhooks", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     MapError,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
	}
}

type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver layers defaults < loaded config < runtime config. Zero
// values in the upper layers do not override lower ones.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	database := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Database.Driver) != "" {
		database["driver"] = cfg.Database.Driver
	}
	if includeZero || strings.TrimSpace(cfg.Database.DSN) != "" {
		database["dsn"] = cfg.Database.DSN
	}
	if includeZero || cfg.Database.Debug {
		database["debug"] = cfg.Database.Debug
	}
	putSection(layer, "database", database)

	if includeZero || strings.TrimSpace(cfg.HTTP.Addr) != "" {
		layer["http"] = map[string]any{"addr": cfg.HTTP.Addr}
	}
	if includeZero || cfg.Transport.MaxResponseBodyBytes > 0 {
		layer["transport"] = map[string]any{"max_response_body_bytes": cfg.Transport.MaxResponseBodyBytes}
	}
	if includeZero || cfg.Cache.TTLSeconds > 0 {
		layer["cache"] = map[string]any{"ttl_seconds": cfg.Cache.TTLSeconds}
	}
	if includeZero || strings.TrimSpace(cfg.Redis.Addr) != "" {
		layer["redis"] = map[string]any{"addr": cfg.Redis.Addr}
	}
	if includeZero || cfg.Metrics.Enabled {
		layer["metrics"] = map[string]any{"enabled": cfg.Metrics.Enabled}
	}
	return layer
}

func putSection(layer map[string]any, key string, section map[string]any) {
	if len(section) == 0 {
		return
	}
	layer[key] = section
}
