package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type memoryWebhookStore struct {
	mu       sync.Mutex
	nextID   int
	webhooks map[string]Webhook
	// deliveries is notified on delete so cascades can be observed.
	deliveries *memoryDeliveryStore
}

func newMemoryWebhookStore() *memoryWebhookStore {
	return &memoryWebhookStore{webhooks: map[string]Webhook{}}
}

func (s *memoryWebhookStore) put(webhook Webhook) Webhook {
	s.mu.Lock()
	defer s.mu.Unlock()
	if webhook.ID == "" {
		s.nextID++
		webhook.ID = fmt.Sprintf("wh_%d", s.nextID)
	}
	for index := range webhook.Headers {
		webhook.Headers[index].WebhookID = webhook.ID
		if webhook.Headers[index].ID == "" {
			webhook.Headers[index].ID = fmt.Sprintf("%s_h%d", webhook.ID, index)
		}
	}
	now := time.Now().UTC()
	if webhook.CreatedAt.IsZero() {
		webhook.CreatedAt = now
	}
	webhook.UpdatedAt = now
	s.webhooks[webhook.ID] = webhook
	return webhook
}

func (s *memoryWebhookStore) Get(_ context.Context, id string) (Webhook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	webhook, ok := s.webhooks[id]
	if !ok {
		return Webhook{}, ErrWebhookNotFound
	}
	webhook.Headers = append([]Header(nil), webhook.Headers...)
	return webhook, nil
}

func (s *memoryWebhookStore) ListByNamespace(_ context.Context, namespaceID string) ([]Webhook, error) {
	return s.list(namespaceID, false), nil
}

func (s *memoryWebhookStore) ListEnabled(_ context.Context, namespaceID string) ([]Webhook, error) {
	return s.list(namespaceID, true), nil
}

func (s *memoryWebhookStore) list(namespaceID string, enabledOnly bool) []Webhook {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Webhook{}
	for _, webhook := range s.webhooks {
		if webhook.NamespaceID != namespaceID || (enabledOnly && !webhook.Enabled) {
			continue
		}
		webhook.Headers = append([]Header(nil), webhook.Headers...)
		out = append(out, webhook)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memoryWebhookStore) Create(_ context.Context, in CreateWebhookInput) (Webhook, error) {
	webhook := Webhook{
		NamespaceID: in.NamespaceID,
		URL:         in.URL,
		Method:      in.Method,
		ContentType: in.ContentType,
		Username:    in.Username,
		Password:    in.Password,
		Enabled:     in.Enabled,
	}
	for _, header := range in.Headers {
		webhook.Headers = append(webhook.Headers, Header{Name: header.Name, Value: header.Value})
	}
	return s.put(webhook), nil
}

func (s *memoryWebhookStore) Update(ctx context.Context, in UpdateWebhookInput) (Webhook, error) {
	webhook, err := s.Get(ctx, in.ID)
	if err != nil {
		return Webhook{}, err
	}
	if in.URL != nil {
		webhook.URL = *in.URL
	}
	if in.Method != nil {
		webhook.Method = *in.Method
	}
	if in.ContentType != nil {
		webhook.ContentType = *in.ContentType
	}
	if in.Username != nil {
		webhook.Username = *in.Username
	}
	if in.Password != nil {
		webhook.Password = *in.Password
	}
	if in.Enabled != nil {
		webhook.Enabled = *in.Enabled
	}
	return s.put(webhook), nil
}

func (s *memoryWebhookStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.webhooks[id]
	delete(s.webhooks, id)
	s.mu.Unlock()
	if !ok {
		return ErrWebhookNotFound
	}
	if s.deliveries != nil {
		s.deliveries.deleteByWebhook(id)
	}
	return nil
}

func (s *memoryWebhookStore) ReplaceHeaders(ctx context.Context, webhookID string, headers []HeaderInput) ([]Header, error) {
	webhook, err := s.Get(ctx, webhookID)
	if err != nil {
		return nil, err
	}
	webhook.Headers = nil
	for _, header := range headers {
		webhook.Headers = append(webhook.Headers, Header{Name: header.Name, Value: header.Value})
	}
	stored := s.put(webhook)
	return stored.Headers, nil
}

type memoryDeliveryStore struct {
	mu         sync.Mutex
	nextID     int
	deliveries map[string]Delivery
	order      []string
	insertErr  error
	// duplicates makes the next N inserts fail with ErrDuplicateToken.
	duplicates int
}

func newMemoryDeliveryStore() *memoryDeliveryStore {
	return &memoryDeliveryStore{deliveries: map[string]Delivery{}}
}

func (s *memoryDeliveryStore) TokenExists(_ context.Context, webhookID string, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, delivery := range s.deliveries {
		if delivery.WebhookID == webhookID && delivery.Token == token {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryDeliveryStore) Insert(_ context.Context, in NewDeliveryInput) (Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return Delivery{}, s.insertErr
	}
	if s.duplicates > 0 {
		s.duplicates--
		return Delivery{}, ErrDuplicateToken
	}
	for _, delivery := range s.deliveries {
		if delivery.WebhookID == in.WebhookID && delivery.Token == in.Token {
			return Delivery{}, ErrDuplicateToken
		}
	}
	s.nextID++
	now := time.Now().UTC()
	delivery := Delivery{
		ID:             fmt.Sprintf("dlv_%d", s.nextID),
		WebhookID:      in.WebhookID,
		Token:          in.Token,
		Status:         in.Status,
		RequestHeader:  copyStringMap(in.RequestHeader),
		RequestBody:    in.RequestBody,
		ResponseHeader: copyStringMap(in.ResponseHeader),
		ResponseBody:   in.ResponseBody,
		TransportError: in.TransportError,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.deliveries[delivery.ID] = delivery
	s.order = append(s.order, delivery.ID)
	return delivery, nil
}

func (s *memoryDeliveryStore) Get(_ context.Context, id string) (Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delivery, ok := s.deliveries[id]
	if !ok {
		return Delivery{}, ErrDeliveryNotFound
	}
	return delivery, nil
}

func (s *memoryDeliveryStore) List(_ context.Context, filter DeliveryFilter) (DeliveryPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := []Delivery{}
	for _, id := range s.order {
		delivery, ok := s.deliveries[id]
		if ok && delivery.WebhookID == filter.WebhookID {
			matched = append(matched, delivery)
		}
	}
	page := DeliveryPage{Total: len(matched), Page: filter.Page, PerPage: filter.PerPage}
	start := (filter.Page - 1) * filter.PerPage
	if start < len(matched) {
		end := min(start+filter.PerPage, len(matched))
		page.Items = matched[start:end]
	}
	return page, nil
}

func (s *memoryDeliveryStore) UpdateOutcome(_ context.Context, in DeliveryOutcomeUpdate) (Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delivery, ok := s.deliveries[in.DeliveryID]
	if !ok {
		return Delivery{}, ErrDeliveryNotFound
	}
	delivery.Status = in.Status
	delivery.ResponseHeader = copyStringMap(in.ResponseHeader)
	delivery.ResponseBody = in.ResponseBody
	delivery.TransportError = in.TransportError
	delivery.UpdatedAt = in.UpdatedAt
	s.deliveries[delivery.ID] = delivery
	return delivery, nil
}

func (s *memoryDeliveryStore) deleteByWebhook(webhookID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, delivery := range s.deliveries {
		if delivery.WebhookID == webhookID {
			delete(s.deliveries, id)
		}
	}
}

func (s *memoryDeliveryStore) all() []Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Delivery, 0, len(s.deliveries))
	for _, id := range s.order {
		if delivery, ok := s.deliveries[id]; ok {
			out = append(out, delivery)
		}
	}
	return out
}

// hostNamespaceResolver resolves events whose request.host is known.
type hostNamespaceResolver struct {
	namespaces map[string]Namespace
	err        error
}

func (r hostNamespaceResolver) ResolveEvent(_ context.Context, event Event) (Namespace, bool, error) {
	if r.err != nil {
		return Namespace{}, false, r.err
	}
	namespace, ok := r.namespaces[event.RequestHost()]
	return namespace, ok, nil
}

type sentRequest struct {
	req OutboundRequest
}

type fakeSender struct {
	mu       sync.Mutex
	requests []sentRequest
	outcome  func(req OutboundRequest) Outcome
	block    chan struct{}
	started  chan struct{}
}

func (s *fakeSender) Send(_ context.Context, req OutboundRequest) Outcome {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	s.requests = append(s.requests, sentRequest{req: req})
	s.mu.Unlock()
	if s.outcome != nil {
		return s.outcome(req)
	}
	return Outcome{StatusCode: 200, Headers: map[string]string{"X-Test": "ok"}, Body: []byte("ok")}
}

func (s *fakeSender) sent() []OutboundRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]OutboundRequest, 0, len(s.requests))
	for _, item := range s.requests {
		out = append(out, item.req)
	}
	return out
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

type serviceFixture struct {
	svc        *Service
	webhooks   *memoryWebhookStore
	deliveries *memoryDeliveryStore
	sender     *fakeSender
}

const testRegistryHost = "registry.example.com"

func newServiceFixture(opts ...Option) (*serviceFixture, error) {
	deliveries := newMemoryDeliveryStore()
	webhooks := newMemoryWebhookStore()
	webhooks.deliveries = deliveries
	sender := &fakeSender{}
	resolver := hostNamespaceResolver{namespaces: map[string]Namespace{
		testRegistryHost: {ID: "ns_1", RegistryID: "reg_1", Name: "acme"},
	}}
	base := []Option{
		WithWebhookStore(webhooks),
		WithDeliveryStore(deliveries),
		WithNamespaceResolver(resolver),
		WithSender(sender),
		WithLogger(stubLogger{}),
	}
	svc, err := NewService(DefaultConfig(), append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	return &serviceFixture{svc: svc, webhooks: webhooks, deliveries: deliveries, sender: sender}, nil
}

func testPushEvent() Event {
	return Event{
		"id":     "evt_1",
		"action": "push",
		"target": map[string]any{
			"repository": "acme/api",
			"tag":        "v1.2.0",
			"size":       1234,
		},
		"request": map[string]any{"host": testRegistryHost},
		"note":    "<b>&</b>",
	}
}
