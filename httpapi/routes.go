package httpapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	webhookscommand "github.com/goliatone/go-webhooks/command"
	"github.com/goliatone/go-webhooks/core"
	webhooksquery "github.com/goliatone/go-webhooks/query"
)

// notificationEnvelope is the registry notification body.
type notificationEnvelope struct {
	Events []json.RawMessage `json:"events"`
}

func (h *Handler) receiveEvents(c *fiber.Ctx) error {
	var envelope notificationEnvelope
	if err := json.Unmarshal(c.Body(), &envelope); err != nil {
		return writeError(c, badRequest("invalid notification envelope"))
	}

	out := dispatchResponse{Received: len(envelope.Events), Deliveries: []deliveryResponse{}}
	ctx := c.UserContext()
	for _, raw := range envelope.Events {
		event, err := core.DecodeEvent(raw)
		if err != nil {
			return writeError(c, badRequest("invalid event in notification envelope"))
		}
		if event.Action() != core.EventActionPush {
			continue
		}
		if h.queue != nil {
			if err := h.queue.EnqueuePushEvent(ctx, event); err != nil {
				return writeError(c, err)
			}
			out.Queued++
			continue
		}
		result, err := execute[webhookscommand.HandlePushEventMessage, core.DispatchResult](
			ctx,
			h.facade.Commands().HandlePushEvent,
			webhookscommand.HandlePushEventMessage{Event: event},
		)
		if err != nil {
			return writeError(c, err)
		}
		if !result.Skipped {
			out.Dispatched++
		}
		for _, delivery := range result.Deliveries {
			out.Deliveries = append(out.Deliveries, toDeliveryResponse(delivery))
		}
	}
	if h.logger != nil {
		h.logger.Info("registry notification handled",
			"received", out.Received, "dispatched", out.Dispatched, "queued", out.Queued)
	}
	status := fiber.StatusOK
	if out.Queued > 0 {
		status = fiber.StatusAccepted
	}
	return c.Status(status).JSON(out)
}

func (h *Handler) listWebhooks(c *fiber.Ctx) error {
	hooks, err := query[webhooksquery.ListWebhooksMessage, []core.Webhook](
		c.UserContext(),
		h.facade.Queries().ListWebhooks,
		webhooksquery.ListWebhooksMessage{NamespaceID: c.Params("namespace_id")},
	)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]webhookResponse, 0, len(hooks))
	for _, hook := range hooks {
		out = append(out, toWebhookResponse(hook))
	}
	return c.JSON(out)
}

func (h *Handler) createWebhook(c *fiber.Ctx) error {
	var req createWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, badRequest("invalid webhook payload"))
	}
	hook, err := execute[webhookscommand.CreateWebhookMessage, core.Webhook](
		c.UserContext(),
		h.facade.Commands().CreateWebhook,
		webhookscommand.CreateWebhookMessage{Input: req.toInput(c.Params("namespace_id"))},
	)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toWebhookResponse(hook))
}

func (h *Handler) getWebhook(c *fiber.Ctx) error {
	hook, err := h.scopedWebhook(c)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toWebhookResponse(hook))
}

func (h *Handler) updateWebhook(c *fiber.Ctx) error {
	current, err := h.scopedWebhook(c)
	if err != nil {
		return writeError(c, err)
	}
	var req updateWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, badRequest("invalid webhook payload"))
	}
	hook, err := execute[webhookscommand.UpdateWebhookMessage, core.Webhook](
		c.UserContext(),
		h.facade.Commands().UpdateWebhook,
		webhookscommand.UpdateWebhookMessage{Input: req.toInput(current.ID)},
	)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toWebhookResponse(hook))
}

func (h *Handler) deleteWebhook(c *fiber.Ctx) error {
	current, err := h.scopedWebhook(c)
	if err != nil {
		return writeError(c, err)
	}
	_, err = execute[webhookscommand.DeleteWebhookMessage, struct{}](
		c.UserContext(),
		h.facade.Commands().DeleteWebhook,
		webhookscommand.DeleteWebhookMessage{WebhookID: current.ID},
	)
	if err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) setHeaders(c *fiber.Ctx) error {
	current, err := h.scopedWebhook(c)
	if err != nil {
		return writeError(c, err)
	}
	var req setHeadersRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, badRequest("invalid headers payload"))
	}
	hook, err := execute[webhookscommand.SetWebhookHeadersMessage, core.Webhook](
		c.UserContext(),
		h.facade.Commands().SetWebhookHeaders,
		webhookscommand.SetWebhookHeadersMessage{WebhookID: current.ID, Headers: toHeaderInputs(req.Headers)},
	)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toWebhookResponse(hook))
}

func (h *Handler) listDeliveries(c *fiber.Ctx) error {
	current, err := h.scopedWebhook(c)
	if err != nil {
		return writeError(c, err)
	}
	page, err := h.deliveriesPage(c, current.ID)
	if err != nil {
		return writeError(c, err)
	}
	out := deliveryPageResponse{
		Items:   make([]deliveryResponse, 0, len(page.Items)),
		Total:   page.Total,
		Page:    page.Page,
		PerPage: page.PerPage,
	}
	for _, delivery := range page.Items {
		out.Items = append(out.Items, toDeliveryResponse(delivery))
	}
	return c.JSON(out)
}

func (h *Handler) deliveriesPage(c *fiber.Ctx, webhookID string) (core.DeliveryPage, error) {
	return query[webhooksquery.ListDeliveriesMessage, core.DeliveryPage](
		c.UserContext(),
		h.facade.Queries().ListDeliveries,
		webhooksquery.ListDeliveriesMessage{Filter: core.DeliveryFilter{
			WebhookID: webhookID,
			Page:      c.QueryInt("page", 0),
			PerPage:   c.QueryInt("per_page", 0),
		}},
	)
}

func (h *Handler) getDelivery(c *fiber.Ctx) error {
	delivery, err := h.scopedDelivery(c)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toDeliveryResponse(delivery))
}

// redeliver replays a recorded delivery and returns its updated state.
func (h *Handler) redeliver(c *fiber.Ctx) error {
	current, err := h.scopedDelivery(c)
	if err != nil {
		return writeError(c, err)
	}
	delivery, err := execute[webhookscommand.RedeliverMessage, core.Delivery](
		c.UserContext(),
		h.facade.Commands().Redeliver,
		webhookscommand.RedeliverMessage{DeliveryID: current.ID},
	)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toDeliveryResponse(delivery))
}

// scopedWebhook loads :webhook_id and checks it belongs to :namespace_id.
func (h *Handler) scopedWebhook(c *fiber.Ctx) (core.Webhook, error) {
	namespaceID := strings.TrimSpace(c.Params("namespace_id"))
	webhookID := strings.TrimSpace(c.Params("webhook_id"))
	hook, err := query[webhooksquery.GetWebhookMessage, core.Webhook](
		c.UserContext(),
		h.facade.Queries().GetWebhook,
		webhooksquery.GetWebhookMessage{WebhookID: webhookID},
	)
	if err != nil {
		return core.Webhook{}, err
	}
	if hook.NamespaceID != namespaceID {
		return core.Webhook{}, fmt.Errorf("%w: id %q in namespace %q", core.ErrWebhookNotFound, webhookID, namespaceID)
	}
	return hook, nil
}

// scopedDelivery loads :delivery_id and checks it belongs to the scoped
// webhook.
func (h *Handler) scopedDelivery(c *fiber.Ctx) (core.Delivery, error) {
	hook, err := h.scopedWebhook(c)
	if err != nil {
		return core.Delivery{}, err
	}
	deliveryID := strings.TrimSpace(c.Params("delivery_id"))
	delivery, err := query[webhooksquery.GetDeliveryMessage, core.Delivery](
		c.UserContext(),
		h.facade.Queries().GetDelivery,
		webhooksquery.GetDeliveryMessage{DeliveryID: deliveryID},
	)
	if err != nil {
		return core.Delivery{}, err
	}
	if delivery.WebhookID != hook.ID {
		return core.Delivery{}, fmt.Errorf("%w: id %q for webhook %q", core.ErrDeliveryNotFound, deliveryID, hook.ID)
	}
	return delivery, nil
}
