package httpapi

import (
	"time"

	"github.com/goliatone/go-webhooks/core"
)

type headerPayload struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type createWebhookRequest struct {
	URL           string          `json:"url"`
	RequestMethod string          `json:"request_method"`
	ContentType   string          `json:"content_type"`
	Username      string          `json:"username"`
	Password      string          `json:"password"`
	Enabled       bool            `json:"enabled"`
	Headers       []headerPayload `json:"headers"`
}

func (r createWebhookRequest) toInput(namespaceID string) core.CreateWebhookInput {
	in := core.CreateWebhookInput{
		NamespaceID: namespaceID,
		URL:         r.URL,
		Method:      core.RequestMethod(r.RequestMethod),
		ContentType: core.ContentType(r.ContentType),
		Username:    r.Username,
		Password:    r.Password,
		Enabled:     r.Enabled,
		Headers:     toHeaderInputs(r.Headers),
	}
	if in.Method == "" {
		in.Method = core.RequestMethodPOST
	}
	if in.ContentType == "" {
		in.ContentType = core.ContentTypeJSON
	}
	return in
}

type updateWebhookRequest struct {
	URL           *string `json:"url"`
	RequestMethod *string `json:"request_method"`
	ContentType   *string `json:"content_type"`
	Username      *string `json:"username"`
	Password      *string `json:"password"`
	Enabled       *bool   `json:"enabled"`
}

func (r updateWebhookRequest) toInput(webhookID string) core.UpdateWebhookInput {
	in := core.UpdateWebhookInput{
		ID:       webhookID,
		URL:      r.URL,
		Username: r.Username,
		Password: r.Password,
		Enabled:  r.Enabled,
	}
	if r.RequestMethod != nil {
		method := core.RequestMethod(*r.RequestMethod)
		in.Method = &method
	}
	if r.ContentType != nil {
		contentType := core.ContentType(*r.ContentType)
		in.ContentType = &contentType
	}
	return in
}

type setHeadersRequest struct {
	Headers []headerPayload `json:"headers"`
}

func toHeaderInputs(headers []headerPayload) []core.HeaderInput {
	out := make([]core.HeaderInput, 0, len(headers))
	for _, header := range headers {
		out = append(out, core.HeaderInput{Name: header.Name, Value: header.Value})
	}
	return out
}

// webhookResponse never echoes the stored password.
type webhookResponse struct {
	ID            string          `json:"id"`
	NamespaceID   string          `json:"namespace_id"`
	URL           string          `json:"url"`
	Host          string          `json:"host"`
	RequestMethod string          `json:"request_method"`
	ContentType   string          `json:"content_type"`
	Username      string          `json:"username"`
	PasswordSet   bool            `json:"password_set"`
	Enabled       bool            `json:"enabled"`
	Headers       []headerPayload `json:"headers"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func toWebhookResponse(webhook core.Webhook) webhookResponse {
	headers := make([]headerPayload, 0, len(webhook.Headers))
	for _, header := range webhook.Headers {
		headers = append(headers, headerPayload{Name: header.Name, Value: header.Value})
	}
	return webhookResponse{
		ID:            webhook.ID,
		NamespaceID:   webhook.NamespaceID,
		URL:           webhook.URL,
		Host:          webhook.Host(),
		RequestMethod: string(webhook.Method),
		ContentType:   string(webhook.ContentType),
		Username:      webhook.Username,
		PasswordSet:   webhook.Password != "",
		Enabled:       webhook.Enabled,
		Headers:       headers,
		CreatedAt:     webhook.CreatedAt,
		UpdatedAt:     webhook.UpdatedAt,
	}
}

type deliveryResponse struct {
	ID             string            `json:"id"`
	WebhookID      string            `json:"webhook_id"`
	Token          string            `json:"token"`
	Status         int               `json:"status"`
	Success        bool              `json:"success"`
	RequestHeader  map[string]string `json:"request_header"`
	RequestBody    string            `json:"request_body"`
	ResponseHeader map[string]string `json:"response_header"`
	ResponseBody   string            `json:"response_body"`
	TransportError string            `json:"transport_error,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func toDeliveryResponse(delivery core.Delivery) deliveryResponse {
	return deliveryResponse{
		ID:             delivery.ID,
		WebhookID:      delivery.WebhookID,
		Token:          delivery.Token,
		Status:         delivery.Status,
		Success:        delivery.Success(),
		RequestHeader:  core.RedactHeaders(delivery.RequestHeader),
		RequestBody:    delivery.RequestBody,
		ResponseHeader: delivery.ResponseHeader,
		ResponseBody:   delivery.ResponseBody,
		TransportError: delivery.TransportError,
		CreatedAt:      delivery.CreatedAt,
		UpdatedAt:      delivery.UpdatedAt,
	}
}

type deliveryPageResponse struct {
	Items   []deliveryResponse `json:"items"`
	Total   int                `json:"total"`
	Page    int                `json:"page"`
	PerPage int                `json:"per_page"`
}

type dispatchResponse struct {
	Received   int                `json:"received"`
	Dispatched int                `json:"dispatched"`
	Queued     int                `json:"queued"`
	Deliveries []deliveryResponse `json:"deliveries"`
}
