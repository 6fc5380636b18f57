package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-webhooks/core"
)

const enabledWebhooksCacheKeyPrefix = "go-webhooks::enabled_webhooks::v1"

// CachedWebhookStore serves ListEnabled from a cache keyed per namespace.
// Every mutation drops the owning namespace key after the base write.
type CachedWebhookStore struct {
	base  core.WebhookStore
	cache repositorycache.CacheService
}

func NewCachedWebhookStore(
	base core.WebhookStore,
	cacheService repositorycache.CacheService,
) (*CachedWebhookStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base webhook store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: webhook cache service is required")
	}
	return &CachedWebhookStore{base: base, cache: cacheService}, nil
}

// EnabledWebhooksCacheKey returns go-webhooks::enabled_webhooks::v1::<namespace>
// with the namespace URL-path escaped.
func EnabledWebhooksCacheKey(namespaceID string) (string, error) {
	namespaceID = strings.TrimSpace(namespaceID)
	if namespaceID == "" {
		return "", fmt.Errorf("sqlstore: namespace id is required")
	}
	return enabledWebhooksCacheKeyPrefix + "::" + url.PathEscape(namespaceID), nil
}

func (s *CachedWebhookStore) ListEnabled(ctx context.Context, namespaceID string) ([]core.Webhook, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached webhook store is not configured")
	}
	cacheKey, err := EnabledWebhooksCacheKey(namespaceID)
	if err != nil {
		return nil, err
	}
	webhooks, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) ([]core.Webhook, error) {
		fetched, fetchErr := s.base.ListEnabled(ctx, strings.TrimSpace(namespaceID))
		if fetchErr != nil {
			return nil, fetchErr
		}
		return cloneWebhooks(fetched), nil
	})
	if err != nil {
		return nil, err
	}
	return cloneWebhooks(webhooks), nil
}

func (s *CachedWebhookStore) Get(ctx context.Context, id string) (core.Webhook, error) {
	if s == nil || s.base == nil {
		return core.Webhook{}, fmt.Errorf("sqlstore: cached webhook store is not configured")
	}
	return s.base.Get(ctx, id)
}

func (s *CachedWebhookStore) ListByNamespace(ctx context.Context, namespaceID string) ([]core.Webhook, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached webhook store is not configured")
	}
	return s.base.ListByNamespace(ctx, namespaceID)
}

func (s *CachedWebhookStore) Create(ctx context.Context, in core.CreateWebhookInput) (core.Webhook, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Webhook{}, fmt.Errorf("sqlstore: cached webhook store is not configured")
	}
	created, err := s.base.Create(ctx, in)
	if err != nil {
		return core.Webhook{}, err
	}
	if err := s.invalidate(ctx, created.NamespaceID); err != nil {
		return core.Webhook{}, err
	}
	return created, nil
}

func (s *CachedWebhookStore) Update(ctx context.Context, in core.UpdateWebhookInput) (core.Webhook, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Webhook{}, fmt.Errorf("sqlstore: cached webhook store is not configured")
	}
	updated, err := s.base.Update(ctx, in)
	if err != nil {
		return core.Webhook{}, err
	}
	if err := s.invalidate(ctx, updated.NamespaceID); err != nil {
		return core.Webhook{}, err
	}
	return updated, nil
}

func (s *CachedWebhookStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached webhook store is not configured")
	}
	existing, err := s.base.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.base.Delete(ctx, id); err != nil {
		return err
	}
	return s.invalidate(ctx, existing.NamespaceID)
}

func (s *CachedWebhookStore) ReplaceHeaders(ctx context.Context, webhookID string, headers []core.HeaderInput) ([]core.Header, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached webhook store is not configured")
	}
	existing, err := s.base.Get(ctx, webhookID)
	if err != nil {
		return nil, err
	}
	replaced, err := s.base.ReplaceHeaders(ctx, webhookID, headers)
	if err != nil {
		return nil, err
	}
	if err := s.invalidate(ctx, existing.NamespaceID); err != nil {
		return nil, err
	}
	return replaced, nil
}

func (s *CachedWebhookStore) invalidate(ctx context.Context, namespaceID string) error {
	cacheKey, err := EnabledWebhooksCacheKey(namespaceID)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

func cloneWebhooks(in []core.Webhook) []core.Webhook {
	out := make([]core.Webhook, 0, len(in))
	for _, webhook := range in {
		cloned := webhook
		cloned.Headers = append([]core.Header(nil), webhook.Headers...)
		out = append(out, cloned)
	}
	return out
}

var _ core.WebhookStore = (*CachedWebhookStore)(nil)
