package query

import (
	"strings"

	"github.com/goliatone/go-webhooks/core"
)

const (
	TypeGetWebhook     = "webhooks.query.webhook.get"
	TypeListWebhooks   = "webhooks.query.webhook.list"
	TypeGetDelivery    = "webhooks.query.delivery.get"
	TypeListDeliveries = "webhooks.query.delivery.list"
)

type GetWebhookMessage struct {
	WebhookID string
}

func (GetWebhookMessage) Type() string { return TypeGetWebhook }

func (m GetWebhookMessage) Validate() error {
	if strings.TrimSpace(m.WebhookID) == "" {
		return queryValidationError("webhook_id", "webhook id is required")
	}
	return nil
}

type ListWebhooksMessage struct {
	NamespaceID string
}

func (ListWebhooksMessage) Type() string { return TypeListWebhooks }

func (m ListWebhooksMessage) Validate() error {
	if strings.TrimSpace(m.NamespaceID) == "" {
		return queryValidationError("namespace_id", "namespace id is required")
	}
	return nil
}

type GetDeliveryMessage struct {
	DeliveryID string
}

func (GetDeliveryMessage) Type() string { return TypeGetDelivery }

func (m GetDeliveryMessage) Validate() error {
	if strings.TrimSpace(m.DeliveryID) == "" {
		return queryValidationError("delivery_id", "delivery id is required")
	}
	return nil
}

type ListDeliveriesMessage struct {
	Filter core.DeliveryFilter
}

func (ListDeliveriesMessage) Type() string { return TypeListDeliveries }

func (m ListDeliveriesMessage) Validate() error {
	if strings.TrimSpace(m.Filter.WebhookID) == "" {
		return queryValidationError("webhook_id", "webhook id is required")
	}
	if m.Filter.Page < 0 || m.Filter.PerPage < 0 {
		return queryInvalidInputError("query: page and per_page must not be negative")
	}
	return nil
}
