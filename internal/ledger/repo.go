package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-ledger/pkg/db/models"
	"github.com/angelmondragon/packfinderz-ledger/pkg/enums"
)

// Repository manages persistence for ledger events. Rows are only ever inserted.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, event *models.LedgerEvent) error
	ListAfter(ctx context.Context, afterSeq int64, window Window, limit int) ([]models.LedgerEvent, error)
	// ListByEntity returns one entity's events with seq > afterSeq. A limit of zero is unbounded.
	ListByEntity(ctx context.Context, entityType enums.LedgerEntityType, entityID uuid.UUID, afterSeq int64, limit int) ([]models.LedgerEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Append(ctx context.Context, event *models.LedgerEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// ListAfter returns up to limit events with seq > afterSeq in seq order.
func (r *repository) ListAfter(ctx context.Context, afterSeq int64, window Window, limit int) ([]models.LedgerEvent, error) {
	query := r.db.WithContext(ctx).
		Where("seq > ?", afterSeq)
	if window.From != nil {
		query = query.Where("created_at >= ?", window.From.UTC())
	}
	if window.To != nil {
		query = query.Where("created_at <= ?", window.To.UTC())
	}

	var events []models.LedgerEvent
	if err := query.
		Order("seq ASC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) ListByEntity(ctx context.Context, entityType enums.LedgerEntityType, entityID uuid.UUID, afterSeq int64, limit int) ([]models.LedgerEvent, error) {
	query := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ? AND seq > ?", entityType, entityID, afterSeq).
		Order("seq ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var events []models.LedgerEvent
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
