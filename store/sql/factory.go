package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-webhooks/core"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db           *bun.DB
	webhookCache repositorycache.CacheService
	secrets      core.SecretCipher

	webhookStore       *WebhookStore
	cachedWebhookStore *CachedWebhookStore
	deliveryStore      *DeliveryStore
	namespaceStore     *NamespaceStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// WithWebhookCache makes WebhookStore return a CachedWebhookStore. Call it
// before BuildStores.
func (f *RepositoryFactory) WithWebhookCache(cacheService repositorycache.CacheService) *RepositoryFactory {
	if f == nil {
		return nil
	}
	f.webhookCache = cacheService
	return f
}

// WithSecretCipher encrypts webhook passwords at rest. Call it before
// BuildStores.
func (f *RepositoryFactory) WithSecretCipher(cipher core.SecretCipher) *RepositoryFactory {
	if f == nil {
		return nil
	}
	f.secrets = cipher
	return f
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.webhookStore != nil && f.deliveryStore != nil && f.namespaceStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) WebhookStore() core.WebhookStore {
	if f == nil {
		return nil
	}
	if f.cachedWebhookStore != nil {
		return f.cachedWebhookStore
	}
	return f.webhookStore
}

func (f *RepositoryFactory) DeliveryStore() core.DeliveryStore {
	if f == nil {
		return nil
	}
	return f.deliveryStore
}

func (f *RepositoryFactory) NamespaceResolver() core.NamespaceResolver {
	if f == nil {
		return nil
	}
	return f.namespaceStore
}

func (f *RepositoryFactory) NamespaceStore() *NamespaceStore {
	if f == nil {
		return nil
	}
	return f.namespaceStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	webhookStore, err := NewWebhookStore(f.db)
	if err != nil {
		return err
	}
	f.webhookStore = webhookStore.WithSecretCipher(f.secrets)
	if f.webhookCache != nil {
		cached, err := NewCachedWebhookStore(webhookStore, f.webhookCache)
		if err != nil {
			return err
		}
		f.cachedWebhookStore = cached
	}
	deliveryStore, err := NewDeliveryStore(f.db)
	if err != nil {
		return err
	}
	f.deliveryStore = deliveryStore
	namespaceStore, err := NewNamespaceStore(f.db)
	if err != nil {
		return err
	}
	f.namespaceStore = namespaceStore
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
