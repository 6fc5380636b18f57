package webhooks

import (
	"context"
	"testing"

	webhookscommand "github.com/goliatone/go-webhooks/command"
	"github.com/goliatone/go-webhooks/core"
	webhooksquery "github.com/goliatone/go-webhooks/query"
	"github.com/goliatone/go-webhooks/transport"
)

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	facade, err := NewFacade(&stubFacadeService{})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.CreateWebhook == nil || commands.HandlePushEvent == nil || commands.Redeliver == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	queries := facade.Queries()
	if queries.GetWebhook == nil || queries.ListDeliveries == nil {
		t.Fatalf("expected query handlers to be wired")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	svc := &stubFacadeService{}
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	if err := facade.Commands().Redeliver.Execute(context.Background(), webhookscommand.RedeliverMessage{
		DeliveryID: "dlv_1",
	}); err != nil {
		t.Fatalf("execute redeliver command: %v", err)
	}
	if svc.lastRedeliveryID != "dlv_1" {
		t.Fatalf("unexpected redeliver delegation payload %q", svc.lastRedeliveryID)
	}

	webhook, err := facade.Queries().GetWebhook.Query(context.Background(), webhooksquery.GetWebhookMessage{WebhookID: "wh_1"})
	if err != nil {
		t.Fatalf("query webhook: %v", err)
	}
	if webhook.ID != "wh_1" {
		t.Fatalf("unexpected webhook query result: %#v", webhook)
	}

	page, err := facade.Queries().ListDeliveries.Query(context.Background(), webhooksquery.ListDeliveriesMessage{
		Filter: core.DeliveryFilter{WebhookID: "wh_1", Page: 1, PerPage: 20},
	})
	if err != nil {
		t.Fatalf("query list deliveries: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("unexpected delivery page result: %#v", page)
	}
}

func TestFacade_DeliveryReaderOverride(t *testing.T) {
	reader := &stubDeliveryReader{}
	facade, err := NewFacade(&stubFacadeService{}, WithDeliveryReader(reader))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	delivery, err := facade.Queries().GetDelivery.Query(context.Background(), webhooksquery.GetDeliveryMessage{DeliveryID: "dlv_9"})
	if err != nil {
		t.Fatalf("query delivery: %v", err)
	}
	if delivery.ID != "replica:dlv_9" {
		t.Fatalf("expected override reader, got %#v", delivery)
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	facade, err := NewFacade(nil)
	if err == nil {
		t.Fatalf("expected nil service error")
	}
	if facade != nil {
		t.Fatalf("expected nil facade on error")
	}
}

func TestNewService_DefaultsToHTTPSender(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Transport.MaxResponseBodyBytes = 1024
	svc, err := NewService(cfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	sender, ok := svc.Dependencies().Sender.(*transport.HTTPSender)
	if !ok {
		t.Fatalf("expected http sender, got %T", svc.Dependencies().Sender)
	}
	if sender.MaxResponseBodyBytes != 1024 {
		t.Fatalf("expected configured body limit, got %d", sender.MaxResponseBodyBytes)
	}

	custom := &stubSender{}
	svc, err = NewService(cfg, WithSender(custom))
	if err != nil {
		t.Fatalf("new service with sender: %v", err)
	}
	if svc.Dependencies().Sender != custom {
		t.Fatalf("expected explicit sender to take precedence")
	}
}

type stubFacadeService struct {
	lastRedeliveryID string
}

func (s *stubFacadeService) CreateWebhook(_ context.Context, in core.CreateWebhookInput) (core.Webhook, error) {
	return core.Webhook{ID: "wh_1", NamespaceID: in.NamespaceID}, nil
}

func (s *stubFacadeService) UpdateWebhook(_ context.Context, in core.UpdateWebhookInput) (core.Webhook, error) {
	return core.Webhook{ID: in.ID}, nil
}

func (s *stubFacadeService) DeleteWebhook(context.Context, string) error {
	return nil
}

func (s *stubFacadeService) SetWebhookHeaders(_ context.Context, webhookID string, _ []core.HeaderInput) (core.Webhook, error) {
	return core.Webhook{ID: webhookID}, nil
}

func (s *stubFacadeService) HandlePushEvent(context.Context, core.Event) (core.DispatchResult, error) {
	return core.DispatchResult{Skipped: true}, nil
}

func (s *stubFacadeService) Redeliver(_ context.Context, deliveryID string) (core.Delivery, error) {
	s.lastRedeliveryID = deliveryID
	return core.Delivery{ID: deliveryID, Status: 200}, nil
}

func (s *stubFacadeService) GetWebhook(_ context.Context, webhookID string) (core.Webhook, error) {
	return core.Webhook{ID: webhookID}, nil
}

func (s *stubFacadeService) ListWebhooks(context.Context, string) ([]core.Webhook, error) {
	return []core.Webhook{{ID: "wh_1"}}, nil
}

func (s *stubFacadeService) GetDelivery(_ context.Context, deliveryID string) (core.Delivery, error) {
	return core.Delivery{ID: deliveryID}, nil
}

func (s *stubFacadeService) ListDeliveries(context.Context, core.DeliveryFilter) (core.DeliveryPage, error) {
	return core.DeliveryPage{Items: []core.Delivery{{ID: "dlv_1"}}, Total: 1, Page: 1, PerPage: 20}, nil
}

type stubDeliveryReader struct{}

func (stubDeliveryReader) GetDelivery(_ context.Context, deliveryID string) (core.Delivery, error) {
	return core.Delivery{ID: "replica:" + deliveryID}, nil
}

func (stubDeliveryReader) ListDeliveries(context.Context, core.DeliveryFilter) (core.DeliveryPage, error) {
	return core.DeliveryPage{}, nil
}

type stubSender struct{}

func (stubSender) Send(context.Context, core.OutboundRequest) core.Outcome {
	return core.Outcome{StatusCode: 200}
}

var (
	_ CommandQueryService = (*stubFacadeService)(nil)
	_ CommandQueryService = (*core.Service)(nil)
)
