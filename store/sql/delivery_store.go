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

const defaultDeliveriesPerPage = 20

type DeliveryStore struct {
	db   *bun.DB
	repo repository.Repository[*deliveryRecord]
	now  func() time.Time
}

func NewDeliveryStore(db *bun.DB) (*DeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*deliveryRecord](db, deliveryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid delivery repository wiring: %w", err)
		}
	}
	return &DeliveryStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *DeliveryStore) TokenExists(ctx context.Context, webhookID string, token string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	return s.db.NewSelect().
		Model((*deliveryRecord)(nil)).
		Where("?TableAlias.webhook_id = ?", strings.TrimSpace(webhookID)).
		Where("?TableAlias.token = ?", strings.TrimSpace(token)).
		Exists(ctx)
}

// Insert stores a new delivery. A (webhook_id, token) collision surfaces as
// core.ErrDuplicateToken so the recorder can draw another token.
func (s *DeliveryStore) Insert(ctx context.Context, in core.NewDeliveryInput) (core.Delivery, error) {
	if s == nil || s.repo == nil {
		return core.Delivery{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	webhookID := strings.TrimSpace(in.WebhookID)
	token := strings.TrimSpace(in.Token)
	if webhookID == "" || token == "" {
		return core.Delivery{}, fmt.Errorf("sqlstore: webhook id and token are required")
	}
	now := s.now()
	record := &deliveryRecord{
		ID:             uuid.NewString(),
		WebhookID:      webhookID,
		Token:          token,
		Status:         in.Status,
		RequestHeader:  copyStringMap(in.RequestHeader),
		RequestBody:    in.RequestBody,
		ResponseHeader: copyStringMap(in.ResponseHeader),
		ResponseBody:   in.ResponseBody,
		TransportError: in.TransportError,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	inserted, err := s.repo.Create(ctx, record)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Delivery{}, fmt.Errorf("%w: webhook %q", core.ErrDuplicateToken, webhookID)
		}
		return core.Delivery{}, err
	}
	return deliveryToDomain(inserted), nil
}

func (s *DeliveryStore) Get(ctx context.Context, id string) (core.Delivery, error) {
	if s == nil || s.db == nil {
		return core.Delivery{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	record, err := s.getRecord(ctx, s.db, id)
	if err != nil {
		return core.Delivery{}, err
	}
	return deliveryToDomain(record), nil
}

// List pages through one webhook's deliveries, newest first.
func (s *DeliveryStore) List(ctx context.Context, filter core.DeliveryFilter) (core.DeliveryPage, error) {
	if s == nil || s.repo == nil {
		return core.DeliveryPage{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = defaultDeliveriesPerPage
	}
	offset := (page - 1) * perPage

	records, total, err := s.repo.List(ctx,
		repository.SelectBy("webhook_id", "=", strings.TrimSpace(filter.WebhookID)),
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(perPage, offset),
	)
	if err != nil {
		return core.DeliveryPage{}, err
	}
	items := make([]core.Delivery, 0, len(records))
	for _, record := range records {
		items = append(items, deliveryToDomain(record))
	}
	return core.DeliveryPage{
		Items:   items,
		Total:   total,
		Page:    page,
		PerPage: perPage,
	}, nil
}

// UpdateOutcome overwrites the response side of a delivery. The request
// snapshot, token and created_at are never touched.
func (s *DeliveryStore) UpdateOutcome(ctx context.Context, in core.DeliveryOutcomeUpdate) (core.Delivery, error) {
	if s == nil || s.db == nil {
		return core.Delivery{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	updatedAt := in.UpdatedAt.UTC()
	if in.UpdatedAt.IsZero() {
		updatedAt = s.now()
	}

	var updated *deliveryRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := s.getRecord(ctx, tx, in.DeliveryID)
		if err != nil {
			return err
		}
		record.Status = in.Status
		record.ResponseHeader = copyStringMap(in.ResponseHeader)
		record.ResponseBody = in.ResponseBody
		record.TransportError = in.TransportError
		record.UpdatedAt = updatedAt
		if _, err := tx.NewUpdate().
			Model(record).
			Column("status", "response_header", "response_body", "transport_error", "updated_at").
			WherePK().
			Exec(ctx); err != nil {
			return err
		}
		updated = record
		return nil
	})
	if err != nil {
		return core.Delivery{}, err
	}
	return deliveryToDomain(updated), nil
}

func (s *DeliveryStore) getRecord(ctx context.Context, db bun.IDB, id string) (*deliveryRecord, error) {
	id = strings.TrimSpace(id)
	record := &deliveryRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %q", core.ErrDeliveryNotFound, id)
		}
		return nil, err
	}
	return record, nil
}
