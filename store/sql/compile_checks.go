package sqlstore

import "github.com/goliatone/go-webhooks/core"

var (
	_ core.WebhookStore      = (*WebhookStore)(nil)
	_ core.DeliveryStore     = (*DeliveryStore)(nil)
	_ core.NamespaceResolver = (*NamespaceStore)(nil)
	_ core.StoreProvider     = (*RepositoryFactory)(nil)
)
