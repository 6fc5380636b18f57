package httpapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	gocmd "github.com/goliatone/go-command"
	webhooks "github.com/goliatone/go-webhooks"
	"github.com/goliatone/go-webhooks/core"
)

// EventQueue accepts push events for asynchronous dispatch, e.g. the go-job
// enqueuer adapter.
type EventQueue interface {
	EnqueuePushEvent(ctx context.Context, event core.Event) error
}

// Handler exposes the webhook facade over HTTP.
type Handler struct {
	facade   *webhooks.Facade
	guard    fiber.Handler
	verifier EventVerifier
	queue    EventQueue
	logger   core.Logger
}

type Option func(*Handler)

// WithGuard runs guard before every route. It should return fiber
// errors or write a response to deny access.
func WithGuard(guard fiber.Handler) Option {
	return func(h *Handler) {
		if guard != nil {
			h.guard = guard
		}
	}
}

// WithEventQueue makes POST /events enqueue push events instead of
// dispatching them inline.
func WithEventQueue(queue EventQueue) Option {
	return func(h *Handler) {
		h.queue = queue
	}
}

func WithLogger(logger core.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func NewHandler(facade *webhooks.Facade, opts ...Option) (*Handler, error) {
	if facade == nil {
		return nil, fmt.Errorf("httpapi: webhooks facade is required")
	}
	h := &Handler{
		facade: facade,
		guard:  func(c *fiber.Ctx) error { return c.Next() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Register mounts the routes on router.
func (h *Handler) Register(router fiber.Router) {
	router.Post("/events", h.guard, h.verifyEvents, h.receiveEvents)

	hooks := router.Group("/namespaces/:namespace_id/webhooks", h.guard)
	hooks.Get("/", h.listWebhooks)
	hooks.Post("/", h.createWebhook)
	hooks.Get("/:webhook_id", h.getWebhook)
	hooks.Patch("/:webhook_id", h.updateWebhook)
	hooks.Delete("/:webhook_id", h.deleteWebhook)
	hooks.Put("/:webhook_id/headers", h.setHeaders)
	hooks.Get("/:webhook_id/deliveries", h.listDeliveries)
	hooks.Get("/:webhook_id/deliveries/:delivery_id", h.getDelivery)
	hooks.Patch("/:webhook_id/deliveries/:delivery_id", h.redeliver)
	hooks.Put("/:webhook_id/deliveries/:delivery_id", h.redeliver)
}

// NewApp returns a fiber app with the routes mounted and errors rendered as
// go-errors envelopes.
func NewApp(h *Handler, cfg ...fiber.Config) *fiber.App {
	config := fiber.Config{}
	if len(cfg) > 0 {
		config = cfg[0]
	}
	if config.ErrorHandler == nil {
		config.ErrorHandler = ErrorHandler
	}
	if config.AppName == "" {
		config.AppName = "go-webhooks"
	}
	app := fiber.New(config)
	h.Register(app)
	return app
}

// ErrorHandler renders fiber and service errors as JSON error envelopes.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(errorResponse{Error: errorPayload{
			Category: "http",
			Code:     fiberErr.Code,
			TextCode: httpTextCode(fiberErr.Code),
			Message:  fiberErr.Message,
		}})
	}
	return writeError(c, err)
}

func httpTextCode(status int) string {
	switch {
	case status == fiber.StatusNotFound:
		return core.ErrorNotFound
	case status >= 500:
		return core.ErrorInternal
	default:
		return core.ErrorBadInput
	}
}

type validatable interface {
	Validate() error
}

func execute[T any, R any](ctx context.Context, cmd gocmd.Commander[T], msg T) (R, error) {
	var zero R
	if v, ok := any(msg).(validatable); ok {
		if err := v.Validate(); err != nil {
			return zero, err
		}
	}
	collector := gocmd.NewResult[R]()
	if err := cmd.Execute(gocmd.ContextWithResult(ctx, collector), msg); err != nil {
		return zero, err
	}
	out, _ := collector.Load()
	return out, nil
}

func query[T any, R any](ctx context.Context, qry gocmd.Querier[T, R], msg T) (R, error) {
	if v, ok := any(msg).(validatable); ok {
		if err := v.Validate(); err != nil {
			var zero R
			return zero, err
		}
	}
	return qry.Query(ctx, msg)
}
