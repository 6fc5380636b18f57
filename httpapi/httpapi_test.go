package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	webhooks "github.com/goliatone/go-webhooks"
	"github.com/goliatone/go-webhooks/core"
	sqlstore "github.com/goliatone/go-webhooks/store/sql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registryHost = "registry.test:5000"

type testEnv struct {
	app       *fiber.App
	factory   *sqlstore.RepositoryFactory
	namespace core.Namespace
	receiver  *receiver
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	ctx := context.Background()

	client, err := sqlstore.OpenClient(ctx, sqlstore.ClientConfig{Database: core.DatabaseConfig{
		Driver: sqlstore.DriverSQLite,
		DSN:    fmt.Sprintf("file:httpapi-%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano()),
	}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	require.NoError(t, err)

	registry, err := factory.NamespaceStore().CreateRegistry(ctx, core.Registry{Name: "test", Hostname: registryHost})
	require.NoError(t, err)
	namespace, err := factory.NamespaceStore().CreateNamespace(ctx, core.Namespace{RegistryID: registry.ID, Name: "team"})
	require.NoError(t, err)

	svc, err := webhooks.NewService(webhooks.DefaultConfig(), webhooks.WithStoreProvider(factory))
	require.NoError(t, err)
	facade, err := webhooks.NewFacade(svc)
	require.NoError(t, err)
	handler, err := NewHandler(facade, opts...)
	require.NoError(t, err)

	recv := newReceiver(t)
	return &testEnv{app: NewApp(handler), factory: factory, namespace: namespace, receiver: recv}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (e *testEnv) webhooksPath() string {
	return "/namespaces/" + e.namespace.ID + "/webhooks"
}

func (e *testEnv) createWebhook(t *testing.T, enabled bool) webhookResponse {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, e.webhooksPath(), map[string]any{
		"url":            e.receiver.server.URL + "/hook",
		"request_method": "POST",
		"content_type":   "application/json",
		"username":       "user",
		"password":       "secret",
		"enabled":        enabled,
		"headers":        []map[string]string{{"name": "X-Token", "value": "abc"}},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(body))
	var out webhookResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func pushEnvelope(repository string) map[string]any {
	return map[string]any{"events": []map[string]any{
		{
			"id":      "evt-1",
			"action":  "push",
			"target":  map[string]any{"repository": repository, "tag": "latest"},
			"request": map[string]any{"host": registryHost},
		},
		{
			"id":      "evt-2",
			"action":  "pull",
			"target":  map[string]any{"repository": repository},
			"request": map[string]any{"host": registryHost},
		},
	}}
}

func TestWebhookCRUD(t *testing.T) {
	env := newTestEnv(t)
	created := env.createWebhook(t, true)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, env.namespace.ID, created.NamespaceID)
	assert.True(t, created.PasswordSet)
	require.Len(t, created.Headers, 1)
	assert.Equal(t, "X-Token", created.Headers[0].Name)

	resp, body := env.do(t, http.MethodGet, env.webhooksPath(), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var listed []webhookResponse
	require.NoError(t, json.Unmarshal(body, &listed))
	require.Len(t, listed, 1)

	resp, body = env.do(t, http.MethodPatch, env.webhooksPath()+"/"+created.ID, map[string]any{"enabled": false})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	var updated webhookResponse
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.False(t, updated.Enabled)
	assert.Equal(t, created.URL, updated.URL)

	resp, body = env.do(t, http.MethodPut, env.webhooksPath()+"/"+created.ID+"/headers", map[string]any{
		"headers": []map[string]string{{"name": "X-Env", "value": "prod"}, {"name": "X-Team", "value": "core"}},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	var withHeaders webhookResponse
	require.NoError(t, json.Unmarshal(body, &withHeaders))
	require.Len(t, withHeaders.Headers, 2)
	assert.Equal(t, "X-Env", withHeaders.Headers[0].Name)

	resp, _ = env.do(t, http.MethodDelete, env.webhooksPath()+"/"+created.ID, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, env.webhooksPath()+"/"+created.ID, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	var errBody errorResponse
	require.NoError(t, json.Unmarshal(body, &errBody))
	assert.Equal(t, core.ErrorNotFound, errBody.Error.TextCode)
}

func TestCreateWebhook_RejectsInvalidURL(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodPost, env.webhooksPath(), map[string]any{
		"url":     "ftp://example.com",
		"enabled": true,
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, string(body))

	var errBody errorResponse
	require.NoError(t, json.Unmarshal(body, &errBody))
	assert.Equal(t, core.ErrorBadInput, errBody.Error.TextCode)
}

func TestWebhookRoutes_ScopeToNamespace(t *testing.T) {
	env := newTestEnv(t)
	created := env.createWebhook(t, true)

	resp, _ := env.do(t, http.MethodGet, "/namespaces/other/webhooks/"+created.ID, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestEvents_DispatchAndRedeliver(t *testing.T) {
	env := newTestEnv(t)
	enabled := env.createWebhook(t, true)
	env.createWebhook(t, false)

	resp, body := env.do(t, http.MethodPost, "/events", pushEnvelope("team/app"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	var dispatched dispatchResponse
	require.NoError(t, json.Unmarshal(body, &dispatched))
	assert.Equal(t, 2, dispatched.Received)
	assert.Equal(t, 1, dispatched.Dispatched)
	require.Len(t, dispatched.Deliveries, 1)
	assert.Equal(t, enabled.ID, dispatched.Deliveries[0].WebhookID)
	assert.Equal(t, http.StatusOK, dispatched.Deliveries[0].Status)
	assert.True(t, dispatched.Deliveries[0].Success)

	first := env.receiver.last()
	assert.Equal(t, "abc", first.Header.Get("X-Token"))
	user, pass, ok := first.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "user", user)
	assert.Equal(t, "secret", pass)

	deliveriesPath := env.webhooksPath() + "/" + enabled.ID + "/deliveries"
	resp, body = env.do(t, http.MethodGet, deliveriesPath, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var page deliveryPageResponse
	require.NoError(t, json.Unmarshal(body, &page))
	require.Equal(t, 1, page.Total)
	original := page.Items[0]

	// Header edits apply to the replay.
	resp, _ = env.do(t, http.MethodPut, env.webhooksPath()+"/"+enabled.ID+"/headers", map[string]any{
		"headers": []map[string]string{{"name": "X-Token", "value": "rotated"}},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	env.receiver.respondWith(http.StatusServiceUnavailable)

	resp, body = env.do(t, http.MethodPatch, deliveriesPath+"/"+original.ID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	var replayed deliveryResponse
	require.NoError(t, json.Unmarshal(body, &replayed))
	assert.Equal(t, original.ID, replayed.ID)
	assert.Equal(t, original.Token, replayed.Token)
	assert.Equal(t, original.RequestBody, replayed.RequestBody)
	assert.Equal(t, http.StatusServiceUnavailable, replayed.Status)
	assert.False(t, replayed.Success)
	assert.Equal(t, "rotated", env.receiver.last().Header.Get("X-Token"))
	assert.JSONEq(t, original.RequestBody, string(env.receiver.lastBody()))
}

func TestEvents_UnknownRegistryIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	env.createWebhook(t, true)

	envelope := pushEnvelope("team/app")
	envelope["events"].([]map[string]any)[0]["request"] = map[string]any{"host": "unknown.example"}
	resp, body := env.do(t, http.MethodPost, "/events", envelope)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))

	var dispatched dispatchResponse
	require.NoError(t, json.Unmarshal(body, &dispatched))
	assert.Zero(t, dispatched.Dispatched)
	assert.Empty(t, dispatched.Deliveries)
	assert.Zero(t, env.receiver.count())
}

func TestEvents_RejectsMalformedEnvelope(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewBufferString("{not json"))
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestEvents_EnqueueWhenQueueConfigured(t *testing.T) {
	queue := &recordingQueue{}
	env := newTestEnv(t, WithEventQueue(queue))

	resp, body := env.do(t, http.MethodPost, "/events", pushEnvelope("team/app"))
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode, string(body))
	require.Len(t, queue.events, 1)
	assert.Equal(t, "evt-1", queue.events[0].ID())
	assert.Zero(t, env.receiver.count())
}

func TestGuardDeniesAccess(t *testing.T) {
	env := newTestEnv(t, WithGuard(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusForbidden, "forbidden")
	}))
	resp, body := env.do(t, http.MethodGet, env.webhooksPath(), nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	var errBody errorResponse
	require.NoError(t, json.Unmarshal(body, &errBody))
	assert.Equal(t, "forbidden", errBody.Error.Message)
}

func TestNewHandlerRequiresFacade(t *testing.T) {
	_, err := NewHandler(nil)
	assert.Error(t, err)
}

type recordingQueue struct {
	events []core.Event
}

func (q *recordingQueue) EnqueuePushEvent(_ context.Context, event core.Event) error {
	q.events = append(q.events, event)
	return nil
}

type receiver struct {
	server   *httptest.Server
	mu       sync.Mutex
	requests []*http.Request
	bodies   [][]byte
	status   int
}

func newReceiver(t *testing.T) *receiver {
	r := &receiver{status: http.StatusOK}
	r.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.requests = append(r.requests, req.Clone(context.Background()))
		r.bodies = append(r.bodies, body)
		status := r.status
		r.mu.Unlock()
		w.Header().Set("X-Receiver", "test")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(r.server.Close)
	return r
}

func (r *receiver) respondWith(status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
}

func (r *receiver) last() *http.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.requests) == 0 {
		return httptest.NewRequest(http.MethodGet, "/", nil)
	}
	return r.requests[len(r.requests)-1]
}

func (r *receiver) lastBody() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.bodies) == 0 {
		return nil
	}
	return r.bodies[len(r.bodies)-1]
}

func (r *receiver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}
