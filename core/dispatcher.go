package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DeliveryObserver is notified after every attempt, whether it came from
// fan-out dispatch or from a redelivery.
type DeliveryObserver func(ctx context.Context, operation string, webhook Webhook, delivery Delivery, outcome Outcome, err error)

type Dispatcher struct {
	Namespaces NamespaceResolver
	Webhooks   WebhookReader
	Sender     Sender
	Recorder   *Recorder
	Observer   DeliveryObserver
}

// Dispatch sends event to every enabled webhook of its namespace in
// parallel and records one delivery per webhook. Events that resolve to no
// namespace are skipped without error. A failed record for one webhook does
// not stop the others; their errors are joined once all attempts finish.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) (DispatchResult, error) {
	if d == nil || d.Namespaces == nil || d.Webhooks == nil || d.Sender == nil || d.Recorder == nil {
		return DispatchResult{}, fmt.Errorf("core: dispatcher is not fully configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	namespace, ok, err := d.Namespaces.ResolveEvent(ctx, event)
	if err != nil {
		return DispatchResult{}, err
	}
	if !ok {
		return DispatchResult{Skipped: true}, nil
	}
	result := DispatchResult{NamespaceID: namespace.ID}

	webhooks, err := d.Webhooks.ListEnabled(ctx, namespace.ID)
	if err != nil {
		return result, err
	}
	if len(webhooks) == 0 {
		return result, nil
	}

	body, err := CanonicalJSON(event)
	if err != nil {
		return result, err
	}

	deliveries := make([]Delivery, len(webhooks))
	failures := make([]error, len(webhooks))
	var wg sync.WaitGroup
	for index, webhook := range webhooks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			deliveries[index], failures[index] = d.deliver(ctx, webhook, body)
		}()
	}
	wg.Wait()

	for index, delivery := range deliveries {
		if failures[index] != nil {
			continue
		}
		result.Deliveries = append(result.Deliveries, delivery)
	}
	return result, errors.Join(failures...)
}

func (d *Dispatcher) deliver(ctx context.Context, webhook Webhook, body []byte) (Delivery, error) {
	req := BuildRequest(webhook, body)
	outcome := d.Sender.Send(ctx, req)
	delivery, err := d.Recorder.Record(ctx, webhook, req.Headers, req.Body, outcome)
	if err != nil {
		err = fmt.Errorf("core: record delivery for webhook %q: %w", webhook.ID, err)
	}
	if d.Observer != nil {
		d.Observer(ctx, "dispatch", webhook, delivery, outcome, err)
	}
	return delivery, err
}
