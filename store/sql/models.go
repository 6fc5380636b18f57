package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type registryRecord struct {
	bun.BaseModel `bun:"table:webhook_registries,alias:wr"`

	ID               string    `bun:"id,pk"`
	Name             string    `bun:"name,notnull"`
	Hostname         string    `bun:"hostname,notnull"`
	ExternalHostname string    `bun:"external_hostname,notnull"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type namespaceRecord struct {
	bun.BaseModel `bun:"table:webhook_namespaces,alias:wn"`

	ID         string    `bun:"id,pk"`
	RegistryID string    `bun:"registry_id,notnull"`
	Name       string    `bun:"name,notnull"`
	Global     bool      `bun:"global,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type webhookRecord struct {
	bun.BaseModel `bun:"table:webhooks,alias:wh"`

	ID          string    `bun:"id,pk"`
	NamespaceID string    `bun:"namespace_id,notnull"`
	URL         string    `bun:"url,notnull"`
	Method      string    `bun:"request_method,notnull"`
	ContentType string    `bun:"content_type,notnull"`
	Username    string    `bun:"username,notnull"`
	Password    string    `bun:"password,notnull"`
	Enabled     bool      `bun:"enabled,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type webhookHeaderRecord struct {
	bun.BaseModel `bun:"table:webhook_headers,alias:whh"`

	ID        string    `bun:"id,pk"`
	WebhookID string    `bun:"webhook_id,notnull"`
	Name      string    `bun:"name,notnull"`
	Value     string    `bun:"value,notnull"`
	Position  int       `bun:"position,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type deliveryRecord struct {
	bun.BaseModel `bun:"table:webhook_deliveries,alias:wd"`

	ID             string            `bun:"id,pk"`
	WebhookID      string            `bun:"webhook_id,notnull"`
	Token          string            `bun:"token,notnull"`
	Status         int               `bun:"status,notnull"`
	RequestHeader  map[string]string `bun:"request_header,type:jsonb,notnull"`
	RequestBody    string            `bun:"request_body,notnull"`
	ResponseHeader map[string]string `bun:"response_header,type:jsonb,notnull"`
	ResponseBody   string            `bun:"response_body,notnull"`
	TransportError string            `bun:"transport_error,notnull"`
	CreatedAt      time.Time         `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time         `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
