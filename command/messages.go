package command

import (
	"strings"

	"github.com/goliatone/go-webhooks/core"
)

const (
	TypeCreateWebhook     = "webhooks.command.webhook.create"
	TypeUpdateWebhook     = "webhooks.command.webhook.update"
	TypeDeleteWebhook     = "webhooks.command.webhook.delete"
	TypeSetWebhookHeaders = "webhooks.command.webhook.set_headers"
	TypeHandlePushEvent   = "webhooks.command.event.push"
	TypeRedeliver         = "webhooks.command.delivery.redeliver"
)

type CreateWebhookMessage struct {
	Input core.CreateWebhookInput
}

func (CreateWebhookMessage) Type() string { return TypeCreateWebhook }

func (m CreateWebhookMessage) Validate() error {
	if strings.TrimSpace(m.Input.NamespaceID) == "" {
		return commandValidationError("namespace_id", "namespace id is required")
	}
	if strings.TrimSpace(m.Input.URL) == "" {
		return commandValidationError("url", "url is required")
	}
	return nil
}

type UpdateWebhookMessage struct {
	Input core.UpdateWebhookInput
}

func (UpdateWebhookMessage) Type() string { return TypeUpdateWebhook }

func (m UpdateWebhookMessage) Validate() error {
	if strings.TrimSpace(m.Input.ID) == "" {
		return commandValidationError("id", "webhook id is required")
	}
	return nil
}

type DeleteWebhookMessage struct {
	WebhookID string
}

func (DeleteWebhookMessage) Type() string { return TypeDeleteWebhook }

func (m DeleteWebhookMessage) Validate() error {
	if strings.TrimSpace(m.WebhookID) == "" {
		return commandValidationError("webhook_id", "webhook id is required")
	}
	return nil
}

type SetWebhookHeadersMessage struct {
	WebhookID string
	Headers   []core.HeaderInput
}

func (SetWebhookHeadersMessage) Type() string { return TypeSetWebhookHeaders }

func (m SetWebhookHeadersMessage) Validate() error {
	if strings.TrimSpace(m.WebhookID) == "" {
		return commandValidationError("webhook_id", "webhook id is required")
	}
	for _, header := range m.Headers {
		if strings.TrimSpace(header.Name) == "" {
			return commandValidationError("headers", "header name is required")
		}
	}
	return nil
}

type HandlePushEventMessage struct {
	Event core.Event
}

func (HandlePushEventMessage) Type() string { return TypeHandlePushEvent }

func (m HandlePushEventMessage) Validate() error {
	if m.Event == nil {
		return commandInvalidInputError("command: event payload is required")
	}
	return nil
}

type RedeliverMessage struct {
	DeliveryID string
}

func (RedeliverMessage) Type() string { return TypeRedeliver }

func (m RedeliverMessage) Validate() error {
	if strings.TrimSpace(m.DeliveryID) == "" {
		return commandValidationError("delivery_id", "delivery id is required")
	}
	return nil
}
