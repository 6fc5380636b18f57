package core

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

var (
	ErrWebhookNotFound   = errors.New("core: webhook not found")
	ErrDeliveryNotFound  = errors.New("core: delivery not found")
	ErrNamespaceNotFound = errors.New("core: namespace not found")
	ErrInvalidWebhookURL = errors.New("core: invalid webhook url")
)

type RequestMethod string

const (
	RequestMethodGET  RequestMethod = "GET"
	RequestMethodPOST RequestMethod = "POST"
)

func (m RequestMethod) Valid() bool {
	switch m {
	case RequestMethodGET, RequestMethodPOST:
		return true
	default:
		return false
	}
}

type ContentType string

const (
	ContentTypeJSON ContentType = "application/json"
	ContentTypeForm ContentType = "application/x-www-form-urlencoded"
)

func (c ContentType) Valid() bool {
	switch c {
	case ContentTypeJSON, ContentTypeForm:
		return true
	default:
		return false
	}
}

type Webhook struct {
	ID          string
	NamespaceID string
	URL         string
	Method      RequestMethod
	ContentType ContentType
	Username    string
	Password    string
	Enabled     bool
	Headers     []Header
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Host returns the host portion of the webhook URL, or an empty string when
// the URL cannot be parsed.
func (w Webhook) Host() string {
	parsed, err := url.Parse(strings.TrimSpace(w.URL))
	if err != nil {
		return ""
	}
	return parsed.Host
}

type Header struct {
	ID        string
	WebhookID string
	Name      string
	Value     string
}

type HeaderInput struct {
	Name  string `validate:"required,max=255"`
	Value string `validate:"max=4096"`
}

type Delivery struct {
	ID             string
	WebhookID      string
	Token          string
	Status         int
	RequestHeader  map[string]string
	RequestBody    string
	ResponseHeader map[string]string
	ResponseBody   string
	TransportError string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Success reports whether the recorded response carried status 200.
func (d Delivery) Success() bool {
	return d.Status == 200
}

type Registry struct {
	ID               string
	Name             string
	Hostname         string
	ExternalHostname string
}

type Namespace struct {
	ID         string
	RegistryID string
	Name       string
	Global     bool
}

type CreateWebhookInput struct {
	NamespaceID string        `validate:"required"`
	URL         string        `validate:"required,max=255"`
	Method      RequestMethod `validate:"required,oneof=GET POST"`
	ContentType ContentType   `validate:"required,oneof=application/json application/x-www-form-urlencoded"`
	Username    string        `validate:"max=255"`
	Password    string        `validate:"max=255"`
	Enabled     bool
	Headers     []HeaderInput `validate:"dive"`
}

// UpdateWebhookInput carries a partial update; nil fields keep their value.
type UpdateWebhookInput struct {
	ID          string         `validate:"required"`
	URL         *string        `validate:"omitempty,max=255"`
	Method      *RequestMethod `validate:"omitempty,oneof=GET POST"`
	ContentType *ContentType   `validate:"omitempty,oneof=application/json application/x-www-form-urlencoded"`
	Username    *string        `validate:"omitempty,max=255"`
	Password    *string        `validate:"omitempty,max=255"`
	Enabled     *bool
}

type DeliveryFilter struct {
	WebhookID string
	Page      int
	PerPage   int
}

type DeliveryPage struct {
	Items   []Delivery
	Total   int
	Page    int
	PerPage int
}

type NewDeliveryInput struct {
	WebhookID      string
	Token          string
	Status         int
	RequestHeader  map[string]string
	RequestBody    string
	ResponseHeader map[string]string
	ResponseBody   string
	TransportError string
}

type DeliveryOutcomeUpdate struct {
	DeliveryID     string
	Status         int
	ResponseHeader map[string]string
	ResponseBody   string
	TransportError string
	UpdatedAt      time.Time
}

type DispatchResult struct {
	Skipped     bool
	NamespaceID string
	Deliveries  []Delivery
}

func copyStringMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
