package webhooks

import (
	"fmt"

	webhookscommand "github.com/goliatone/go-webhooks/command"
	webhooksquery "github.com/goliatone/go-webhooks/query"
)

type CommandQueryService interface {
	webhookscommand.MutatingService
	webhooksquery.WebhookReader
	webhooksquery.DeliveryReader
}

type Commands struct {
	CreateWebhook     *webhookscommand.CreateWebhookCommand
	UpdateWebhook     *webhookscommand.UpdateWebhookCommand
	DeleteWebhook     *webhookscommand.DeleteWebhookCommand
	SetWebhookHeaders *webhookscommand.SetWebhookHeadersCommand
	HandlePushEvent   *webhookscommand.HandlePushEventCommand
	Redeliver         *webhookscommand.RedeliverCommand
}

type Queries struct {
	GetWebhook     *webhooksquery.GetWebhookQuery
	ListWebhooks   *webhooksquery.ListWebhooksQuery
	GetDelivery    *webhooksquery.GetDeliveryQuery
	ListDeliveries *webhooksquery.ListDeliveriesQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	deliveryReader webhooksquery.DeliveryReader
}

// WithDeliveryReader serves delivery queries from reader instead of the
// service, e.g. a read replica.
func WithDeliveryReader(reader webhooksquery.DeliveryReader) FacadeOption {
	return func(options *facadeOptions) {
		options.deliveryReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("webhooks: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	deliveries := cfg.deliveryReader
	if deliveries == nil {
		deliveries = service
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		CreateWebhook:     webhookscommand.NewCreateWebhookCommand(service),
		UpdateWebhook:     webhookscommand.NewUpdateWebhookCommand(service),
		DeleteWebhook:     webhookscommand.NewDeleteWebhookCommand(service),
		SetWebhookHeaders: webhookscommand.NewSetWebhookHeadersCommand(service),
		HandlePushEvent:   webhookscommand.NewHandlePushEventCommand(service),
		Redeliver:         webhookscommand.NewRedeliverCommand(service),
	}
	facade.queries = Queries{
		GetWebhook:     webhooksquery.NewGetWebhookQuery(service),
		ListWebhooks:   webhooksquery.NewListWebhooksQuery(service),
		GetDelivery:    webhooksquery.NewGetDeliveryQuery(deliveries),
		ListDeliveries: webhooksquery.NewListDeliveriesQuery(deliveries),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
