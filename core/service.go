package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	webhookStore      WebhookStore
	deliveryStore     DeliveryStore
	namespaceResolver NamespaceResolver
	sender            Sender
	deliveryLocker    DeliveryLocker
	recorder          *Recorder
	dispatcher        *Dispatcher
	redeliverer       *Redeliverer
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	WebhookStore      WebhookStore
	DeliveryStore     DeliveryStore
	NamespaceResolver NamespaceResolver
	Sender            Sender
	DeliveryLocker    DeliveryLocker
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("webhooks", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil && builder.logger == nil {
		if named := provider.GetLogger("webhooks"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = MapError
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.deliveryLocker == nil {
		builder.deliveryLocker = NewMemoryDeliveryLocker()
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.storeProvider != nil {
		if builder.webhookStore == nil {
			builder.webhookStore = builder.storeProvider.WebhookStore()
		}
		if builder.deliveryStore == nil {
			builder.deliveryStore = builder.storeProvider.DeliveryStore()
		}
		if builder.namespaceResolver == nil {
			builder.namespaceResolver = builder.storeProvider.NamespaceResolver()
		}
	}

	svc := &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		webhookStore:      builder.webhookStore,
		deliveryStore:     builder.deliveryStore,
		namespaceResolver: builder.namespaceResolver,
		sender:            builder.sender,
		deliveryLocker:    builder.deliveryLocker,
	}
	svc.recorder = NewRecorder(builder.deliveryStore)
	svc.dispatcher = &Dispatcher{
		Namespaces: builder.namespaceResolver,
		Webhooks:   builder.webhookStore,
		Sender:     builder.sender,
		Recorder:   svc.recorder,
		Observer:   svc.observeDelivery,
	}
	svc.redeliverer = &Redeliverer{
		Deliveries: builder.deliveryStore,
		Webhooks:   builder.webhookStore,
		Sender:     builder.sender,
		Locker:     builder.deliveryLocker,
		Observer:   svc.observeDelivery,
	}
	return svc, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Logger() Logger {
	if s == nil || s.logger == nil {
		return glog.Nop()
	}
	return s.logger
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		WebhookStore:      s.webhookStore,
		DeliveryStore:     s.deliveryStore,
		NamespaceResolver: s.namespaceResolver,
		Sender:            s.sender,
		DeliveryLocker:    s.deliveryLocker,
	}
}

func (s *Service) CreateWebhook(ctx context.Context, in CreateWebhookInput) (webhook Webhook, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"namespace_id": in.NamespaceID}
	defer func() {
		fields["webhook_id"] = webhook.ID
		s.observeOperation(ctx, startedAt, "create_webhook", err, fields)
	}()

	if err = s.requireWebhookStore(); err != nil {
		return Webhook{}, err
	}
	prepared, err := PrepareCreateWebhook(in)
	if err != nil {
		err = s.mapError(err)
		return Webhook{}, err
	}
	webhook, err = s.webhookStore.Create(ctx, prepared)
	if err != nil {
		err = s.mapError(err)
		return Webhook{}, err
	}
	return webhook, nil
}

func (s *Service) UpdateWebhook(ctx context.Context, in UpdateWebhookInput) (webhook Webhook, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"webhook_id": in.ID}
	defer func() {
		s.observeOperation(ctx, startedAt, "update_webhook", err, fields)
	}()

	if err = s.requireWebhookStore(); err != nil {
		return Webhook{}, err
	}
	prepared, err := PrepareUpdateWebhook(in)
	if err != nil {
		err = s.mapError(err)
		return Webhook{}, err
	}
	webhook, err = s.webhookStore.Update(ctx, prepared)
	if err != nil {
		err = s.mapError(err)
		return Webhook{}, err
	}
	return webhook, nil
}

// DeleteWebhook removes the webhook together with its headers and
// deliveries.
func (s *Service) DeleteWebhook(ctx context.Context, webhookID string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"webhook_id": webhookID}
	defer func() {
		s.observeOperation(ctx, startedAt, "delete_webhook", err, fields)
	}()

	if err = s.requireWebhookStore(); err != nil {
		return err
	}
	webhookID = strings.TrimSpace(webhookID)
	if webhookID == "" {
		err = validationError("webhook id is required", goerrors.FieldError{Field: "webhook_id", Message: "is required"})
		return err
	}
	if err = s.webhookStore.Delete(ctx, webhookID); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

// SetWebhookHeaders replaces the full custom header set of a webhook.
func (s *Service) SetWebhookHeaders(ctx context.Context, webhookID string, headers []HeaderInput) (webhook Webhook, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"webhook_id": webhookID, "header_count": len(headers)}
	defer func() {
		s.observeOperation(ctx, startedAt, "set_webhook_headers", err, fields)
	}()

	if err = s.requireWebhookStore(); err != nil {
		return Webhook{}, err
	}
	webhookID = strings.TrimSpace(webhookID)
	if webhookID == "" {
		err = validationError("webhook id is required", goerrors.FieldError{Field: "webhook_id", Message: "is required"})
		return Webhook{}, err
	}
	prepared, err := PrepareHeaders(headers)
	if err != nil {
		err = s.mapError(err)
		return Webhook{}, err
	}
	if _, err = s.webhookStore.ReplaceHeaders(ctx, webhookID, prepared); err != nil {
		err = s.mapError(err)
		return Webhook{}, err
	}
	webhook, err = s.webhookStore.Get(ctx, webhookID)
	if err != nil {
		err = s.mapError(err)
		return Webhook{}, err
	}
	return webhook, nil
}

func (s *Service) GetWebhook(ctx context.Context, webhookID string) (Webhook, error) {
	if err := s.requireWebhookStore(); err != nil {
		return Webhook{}, err
	}
	webhook, err := s.webhookStore.Get(ctx, strings.TrimSpace(webhookID))
	if err != nil {
		return Webhook{}, s.mapError(err)
	}
	return webhook, nil
}

func (s *Service) ListWebhooks(ctx context.Context, namespaceID string) ([]Webhook, error) {
	if err := s.requireWebhookStore(); err != nil {
		return nil, err
	}
	namespaceID = strings.TrimSpace(namespaceID)
	if namespaceID == "" {
		return nil, validationError("namespace id is required", goerrors.FieldError{Field: "namespace_id", Message: "is required"})
	}
	webhooks, err := s.webhookStore.ListByNamespace(ctx, namespaceID)
	if err != nil {
		return nil, s.mapError(err)
	}
	return webhooks, nil
}

// HandlePushEvent fans a push event out to the enabled webhooks of its
// namespace. Other actions are ignored.
func (s *Service) HandlePushEvent(ctx context.Context, event Event) (result DispatchResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"event_id":   event.ID(),
		"repository": event.Repository(),
		"tag":        event.Tag(),
	}
	defer func() {
		fields["namespace_id"] = result.NamespaceID
		fields["skipped"] = result.Skipped
		fields["deliveries"] = len(result.Deliveries)
		s.observeOperation(ctx, startedAt, "handle_push_event", err, fields)
	}()

	if s == nil || s.dispatcher == nil {
		err = fmt.Errorf("core: service is not configured")
		return DispatchResult{}, err
	}
	if event == nil {
		err = validationError("event is required", goerrors.FieldError{Field: "event", Message: "is required"})
		return DispatchResult{}, err
	}
	if event.Action() != EventActionPush {
		return DispatchResult{Skipped: true}, nil
	}
	result, err = s.dispatcher.Dispatch(ctx, event)
	if err != nil {
		err = s.mapError(err)
		return result, err
	}
	return result, nil
}

// Redeliver replays a delivery. The returned error describes the replay
// action itself; the HTTP outcome is stored on the returned delivery.
func (s *Service) Redeliver(ctx context.Context, deliveryID string) (delivery Delivery, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"delivery_id": deliveryID}
	defer func() {
		fields["webhook_id"] = delivery.WebhookID
		fields["status_code"] = delivery.Status
		s.observeOperation(ctx, startedAt, "redeliver", err, fields)
	}()

	if s == nil || s.redeliverer == nil {
		err = fmt.Errorf("core: service is not configured")
		return Delivery{}, err
	}
	delivery, err = s.redeliverer.Redeliver(ctx, deliveryID)
	if err != nil {
		err = s.mapError(err)
		return Delivery{}, err
	}
	return delivery, nil
}

func (s *Service) GetDelivery(ctx context.Context, deliveryID string) (Delivery, error) {
	if err := s.requireDeliveryStore(); err != nil {
		return Delivery{}, err
	}
	delivery, err := s.deliveryStore.Get(ctx, strings.TrimSpace(deliveryID))
	if err != nil {
		return Delivery{}, s.mapError(err)
	}
	return delivery, nil
}

func (s *Service) ListDeliveries(ctx context.Context, filter DeliveryFilter) (DeliveryPage, error) {
	if err := s.requireDeliveryStore(); err != nil {
		return DeliveryPage{}, err
	}
	filter.WebhookID = strings.TrimSpace(filter.WebhookID)
	if filter.WebhookID == "" {
		return DeliveryPage{}, validationError("webhook id is required", goerrors.FieldError{Field: "webhook_id", Message: "is required"})
	}
	filter = normalizeDeliveryFilter(filter)
	page, err := s.deliveryStore.List(ctx, filter)
	if err != nil {
		return DeliveryPage{}, s.mapError(err)
	}
	return page, nil
}

const (
	defaultDeliveriesPerPage = 20
	maxDeliveriesPerPage     = 100
)

func normalizeDeliveryFilter(filter DeliveryFilter) DeliveryFilter {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = defaultDeliveriesPerPage
	}
	if filter.PerPage > maxDeliveriesPerPage {
		filter.PerPage = maxDeliveriesPerPage
	}
	return filter
}

func (s *Service) requireWebhookStore() error {
	if s == nil || s.webhookStore == nil {
		return fmt.Errorf("core: webhook store is required")
	}
	return nil
}

func (s *Service) requireDeliveryStore() error {
	if s == nil || s.deliveryStore == nil {
		return fmt.Errorf("core: delivery store is required")
	}
	return nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return MapError(err)
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
