package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-webhooks/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NamespaceStore owns registries and their namespaces and resolves
// inbound push events to a namespace.
type NamespaceStore struct {
	db  *bun.DB
	now func() time.Time
}

func NewNamespaceStore(db *bun.DB) (*NamespaceStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &NamespaceStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *NamespaceStore) CreateRegistry(ctx context.Context, in core.Registry) (core.Registry, error) {
	if s == nil || s.db == nil {
		return core.Registry{}, fmt.Errorf("sqlstore: namespace store is not configured")
	}
	hostname := strings.TrimSpace(in.Hostname)
	if hostname == "" {
		return core.Registry{}, fmt.Errorf("sqlstore: registry hostname is required")
	}
	now := s.now()
	record := &registryRecord{
		ID:               strings.TrimSpace(in.ID),
		Name:             strings.TrimSpace(in.Name),
		Hostname:         hostname,
		ExternalHostname: strings.TrimSpace(in.ExternalHostname),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Name == "" {
		record.Name = hostname
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return core.Registry{}, err
	}
	return registryToDomain(record), nil
}

func (s *NamespaceStore) CreateNamespace(ctx context.Context, in core.Namespace) (core.Namespace, error) {
	if s == nil || s.db == nil {
		return core.Namespace{}, fmt.Errorf("sqlstore: namespace store is not configured")
	}
	registryID := strings.TrimSpace(in.RegistryID)
	name := strings.TrimSpace(in.Name)
	if registryID == "" || name == "" {
		return core.Namespace{}, fmt.Errorf("sqlstore: registry id and namespace name are required")
	}
	now := s.now()
	record := &namespaceRecord{
		ID:         strings.TrimSpace(in.ID),
		RegistryID: registryID,
		Name:       name,
		Global:     in.Global,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return core.Namespace{}, fmt.Errorf("sqlstore: namespace %q already exists in registry %q", name, registryID)
		}
		return core.Namespace{}, err
	}
	return namespaceToDomain(record), nil
}

func (s *NamespaceStore) GetNamespace(ctx context.Context, id string) (core.Namespace, error) {
	if s == nil || s.db == nil {
		return core.Namespace{}, fmt.Errorf("sqlstore: namespace store is not configured")
	}
	id = strings.TrimSpace(id)
	record := &namespaceRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Namespace{}, fmt.Errorf("%w: id %q", core.ErrNamespaceNotFound, id)
		}
		return core.Namespace{}, err
	}
	return namespaceToDomain(record), nil
}

// ResolveEvent finds the registry whose hostname or external hostname
// equals request.host, then the namespace named by the repository prefix
// before the last "/". Repositories without a "/" belong to the registry's
// global namespace. A miss returns false with a nil error.
func (s *NamespaceStore) ResolveEvent(ctx context.Context, event core.Event) (core.Namespace, bool, error) {
	if s == nil || s.db == nil {
		return core.Namespace{}, false, fmt.Errorf("sqlstore: namespace store is not configured")
	}
	host := strings.TrimSpace(event.RequestHost())
	repository := strings.TrimSpace(event.Repository())
	if host == "" || repository == "" {
		return core.Namespace{}, false, nil
	}

	registry := &registryRecord{}
	err := s.db.NewSelect().
		Model(registry).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("?TableAlias.hostname = ?", host).
				WhereOr("?TableAlias.external_hostname = ?", host)
		}).
		OrderExpr("?TableAlias.created_at ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Namespace{}, false, nil
		}
		return core.Namespace{}, false, err
	}

	namespace := &namespaceRecord{}
	query := s.db.NewSelect().
		Model(namespace).
		Where("?TableAlias.registry_id = ?", registry.ID)
	if idx := strings.LastIndex(repository, "/"); idx >= 0 {
		query = query.Where("?TableAlias.name = ?", repository[:idx])
	} else {
		query = query.Where("?TableAlias.global = ?", true)
	}
	if err := query.Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Namespace{}, false, nil
		}
		return core.Namespace{}, false, err
	}
	return namespaceToDomain(namespace), true, nil
}
