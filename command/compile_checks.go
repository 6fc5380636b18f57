package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-webhooks/core"
)

var (
	_ gocmd.Commander[CreateWebhookMessage]     = (*CreateWebhookCommand)(nil)
	_ gocmd.Commander[UpdateWebhookMessage]     = (*UpdateWebhookCommand)(nil)
	_ gocmd.Commander[DeleteWebhookMessage]     = (*DeleteWebhookCommand)(nil)
	_ gocmd.Commander[SetWebhookHeadersMessage] = (*SetWebhookHeadersCommand)(nil)
	_ gocmd.Commander[HandlePushEventMessage]   = (*HandlePushEventCommand)(nil)
	_ gocmd.Commander[RedeliverMessage]         = (*RedeliverCommand)(nil)
	_ MutatingService                           = (core.WebhookService)(nil)
)
