package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-webhooks/core"
)

// MutatingService is the write side of core.WebhookService.
type MutatingService interface {
	CreateWebhook(ctx context.Context, in core.CreateWebhookInput) (core.Webhook, error)
	UpdateWebhook(ctx context.Context, in core.UpdateWebhookInput) (core.Webhook, error)
	DeleteWebhook(ctx context.Context, webhookID string) error
	SetWebhookHeaders(ctx context.Context, webhookID string, headers []core.HeaderInput) (core.Webhook, error)
	HandlePushEvent(ctx context.Context, event core.Event) (core.DispatchResult, error)
	Redeliver(ctx context.Context, deliveryID string) (core.Delivery, error)
}

type CreateWebhookCommand struct {
	service MutatingService
}

func NewCreateWebhookCommand(service MutatingService) *CreateWebhookCommand {
	return &CreateWebhookCommand{service: service}
}

func (c *CreateWebhookCommand) Execute(ctx context.Context, msg CreateWebhookMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: create webhook service is required")
	}
	out, err := c.service.CreateWebhook(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateWebhookCommand struct {
	service MutatingService
}

func NewUpdateWebhookCommand(service MutatingService) *UpdateWebhookCommand {
	return &UpdateWebhookCommand{service: service}
}

func (c *UpdateWebhookCommand) Execute(ctx context.Context, msg UpdateWebhookMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: update webhook service is required")
	}
	out, err := c.service.UpdateWebhook(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteWebhookCommand struct {
	service MutatingService
}

func NewDeleteWebhookCommand(service MutatingService) *DeleteWebhookCommand {
	return &DeleteWebhookCommand{service: service}
}

func (c *DeleteWebhookCommand) Execute(ctx context.Context, msg DeleteWebhookMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: delete webhook service is required")
	}
	return c.service.DeleteWebhook(ctx, msg.WebhookID)
}

type SetWebhookHeadersCommand struct {
	service MutatingService
}

func NewSetWebhookHeadersCommand(service MutatingService) *SetWebhookHeadersCommand {
	return &SetWebhookHeadersCommand{service: service}
}

func (c *SetWebhookHeadersCommand) Execute(ctx context.Context, msg SetWebhookHeadersMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: webhook headers service is required")
	}
	out, err := c.service.SetWebhookHeaders(ctx, msg.WebhookID, msg.Headers)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type HandlePushEventCommand struct {
	service MutatingService
}

func NewHandlePushEventCommand(service MutatingService) *HandlePushEventCommand {
	return &HandlePushEventCommand{service: service}
}

func (c *HandlePushEventCommand) Execute(ctx context.Context, msg HandlePushEventMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: push event service is required")
	}
	out, err := c.service.HandlePushEvent(ctx, msg.Event)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RedeliverCommand struct {
	service MutatingService
}

func NewRedeliverCommand(service MutatingService) *RedeliverCommand {
	return &RedeliverCommand{service: service}
}

func (c *RedeliverCommand) Execute(ctx context.Context, msg RedeliverMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: redelivery service is required")
	}
	out, err := c.service.Redeliver(ctx, msg.DeliveryID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
