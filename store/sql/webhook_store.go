package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-webhooks/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type WebhookStore struct {
	db      *bun.DB
	repo    repository.Repository[*webhookRecord]
	secrets core.SecretCipher
	now     func() time.Time
}

func NewWebhookStore(db *bun.DB) (*WebhookStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookRecord](db, webhookHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid webhook repository wiring: %w", err)
		}
	}
	return &WebhookStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithSecretCipher seals passwords on write and opens them on read.
func (s *WebhookStore) WithSecretCipher(cipher core.SecretCipher) *WebhookStore {
	if s == nil {
		return nil
	}
	s.secrets = cipher
	return s
}

func (s *WebhookStore) Create(ctx context.Context, in core.CreateWebhookInput) (core.Webhook, error) {
	if s == nil || s.repo == nil {
		return core.Webhook{}, fmt.Errorf("sqlstore: webhook store is not configured")
	}
	password, err := s.sealPassword(ctx, in.Password)
	if err != nil {
		return core.Webhook{}, err
	}
	now := s.now()
	record := &webhookRecord{
		ID:          uuid.NewString(),
		NamespaceID: strings.TrimSpace(in.NamespaceID),
		URL:         strings.TrimSpace(in.URL),
		Method:      string(in.Method),
		ContentType: string(in.ContentType),
		Username:    in.Username,
		Password:    password,
		Enabled:     in.Enabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var created core.Webhook
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		inserted, createErr := s.repo.CreateTx(ctx, tx, record)
		if createErr != nil {
			return createErr
		}
		headers, headerErr := insertHeaders(ctx, tx, inserted.ID, in.Headers, now)
		if headerErr != nil {
			return headerErr
		}
		created = webhookToDomain(inserted, headers)
		return nil
	})
	if err != nil {
		return core.Webhook{}, err
	}
	return s.openPassword(ctx, created)
}

func (s *WebhookStore) Get(ctx context.Context, id string) (core.Webhook, error) {
	if s == nil || s.db == nil {
		return core.Webhook{}, fmt.Errorf("sqlstore: webhook store is not configured")
	}
	record, err := s.getRecord(ctx, s.db, id)
	if err != nil {
		return core.Webhook{}, err
	}
	headers, err := s.loadHeaders(ctx, []string{record.ID})
	if err != nil {
		return core.Webhook{}, err
	}
	return s.openPassword(ctx, webhookToDomain(record, headers[record.ID]))
}

func (s *WebhookStore) ListByNamespace(ctx context.Context, namespaceID string) ([]core.Webhook, error) {
	return s.list(ctx, namespaceID, false)
}

func (s *WebhookStore) ListEnabled(ctx context.Context, namespaceID string) ([]core.Webhook, error) {
	return s.list(ctx, namespaceID, true)
}

func (s *WebhookStore) list(ctx context.Context, namespaceID string, enabledOnly bool) ([]core.Webhook, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: webhook store is not configured")
	}
	var records []*webhookRecord
	query := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.namespace_id = ?", strings.TrimSpace(namespaceID)).
		Order("created_at ASC")
	if enabledOnly {
		query = query.Where("?TableAlias.enabled = ?", true)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ID)
	}
	headers, err := s.loadHeaders(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]core.Webhook, 0, len(records))
	for _, record := range records {
		webhook, err := s.openPassword(ctx, webhookToDomain(record, headers[record.ID]))
		if err != nil {
			return nil, err
		}
		out = append(out, webhook)
	}
	return out, nil
}

func (s *WebhookStore) Update(ctx context.Context, in core.UpdateWebhookInput) (core.Webhook, error) {
	if s == nil || s.db == nil {
		return core.Webhook{}, fmt.Errorf("sqlstore: webhook store is not configured")
	}
	record, err := s.getRecord(ctx, s.db, in.ID)
	if err != nil {
		return core.Webhook{}, err
	}
	if in.URL != nil {
		record.URL = strings.TrimSpace(*in.URL)
	}
	if in.Method != nil {
		record.Method = string(*in.Method)
	}
	if in.ContentType != nil {
		record.ContentType = string(*in.ContentType)
	}
	if in.Username != nil {
		record.Username = *in.Username
	}
	if in.Password != nil {
		password, err := s.sealPassword(ctx, *in.Password)
		if err != nil {
			return core.Webhook{}, err
		}
		record.Password = password
	}
	if in.Enabled != nil {
		record.Enabled = *in.Enabled
	}
	record.UpdatedAt = s.now()

	if _, err := s.repo.Update(ctx, record, repository.UpdateByID(record.ID)); err != nil {
		return core.Webhook{}, err
	}
	return s.Get(ctx, record.ID)
}

// Delete removes the webhook with its headers and deliveries in one
// transaction. The foreign keys cascade as well; the explicit deletes keep
// the behavior on connections where enforcement is off.
func (s *WebhookStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook store is not configured")
	}
	id = strings.TrimSpace(id)
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.getRecord(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.NewDelete().
			Model((*deliveryRecord)(nil)).
			Where("webhook_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().
			Model((*webhookHeaderRecord)(nil)).
			Where("webhook_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().
			Model((*webhookRecord)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		return err
	})
}

func (s *WebhookStore) ReplaceHeaders(ctx context.Context, webhookID string, headers []core.HeaderInput) ([]core.Header, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: webhook store is not configured")
	}
	webhookID = strings.TrimSpace(webhookID)
	now := s.now()

	var replaced []*webhookHeaderRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.getRecord(ctx, tx, webhookID); err != nil {
			return err
		}
		if _, err := tx.NewDelete().
			Model((*webhookHeaderRecord)(nil)).
			Where("webhook_id = ?", webhookID).
			Exec(ctx); err != nil {
			return err
		}
		inserted, err := insertHeaders(ctx, tx, webhookID, headers, now)
		if err != nil {
			return err
		}
		replaced = inserted
		_, err = tx.NewUpdate().
			Model((*webhookRecord)(nil)).
			Set("updated_at = ?", now).
			Where("id = ?", webhookID).
			Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return headersToDomain(replaced), nil
}

func (s *WebhookStore) getRecord(ctx context.Context, db bun.IDB, id string) (*webhookRecord, error) {
	id = strings.TrimSpace(id)
	record := &webhookRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %q", core.ErrWebhookNotFound, id)
		}
		return nil, err
	}
	return record, nil
}

func (s *WebhookStore) loadHeaders(ctx context.Context, webhookIDs []string) (map[string][]*webhookHeaderRecord, error) {
	out := make(map[string][]*webhookHeaderRecord, len(webhookIDs))
	if len(webhookIDs) == 0 {
		return out, nil
	}
	var records []*webhookHeaderRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.webhook_id IN (?)", bun.In(webhookIDs)).
		Order("position ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		out[record.WebhookID] = append(out[record.WebhookID], record)
	}
	return out, nil
}

func insertHeaders(
	ctx context.Context,
	tx bun.Tx,
	webhookID string,
	headers []core.HeaderInput,
	now time.Time,
) ([]*webhookHeaderRecord, error) {
	if len(headers) == 0 {
		return nil, nil
	}
	records := make([]*webhookHeaderRecord, 0, len(headers))
	for i, header := range headers {
		records = append(records, &webhookHeaderRecord{
			ID:        uuid.NewString(),
			WebhookID: webhookID,
			Name:      strings.TrimSpace(header.Name),
			Value:     header.Value,
			Position:  i,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if _, err := tx.NewInsert().Model(&records).Exec(ctx); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *WebhookStore) sealPassword(ctx context.Context, password string) (string, error) {
	if s.secrets == nil || password == "" {
		return password, nil
	}
	sealed, err := s.secrets.Seal(ctx, password)
	if err != nil {
		return "", fmt.Errorf("sqlstore: seal webhook password: %w", err)
	}
	return sealed, nil
}

func (s *WebhookStore) openPassword(ctx context.Context, webhook core.Webhook) (core.Webhook, error) {
	if s.secrets == nil || webhook.Password == "" {
		return webhook, nil
	}
	opened, err := s.secrets.Open(ctx, webhook.Password)
	if err != nil {
		return core.Webhook{}, fmt.Errorf("sqlstore: open password for webhook %s: %w", webhook.ID, err)
	}
	webhook.Password = opened
	return webhook, nil
}
