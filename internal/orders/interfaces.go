package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-ledger/pkg/db/models"
)

// Repository defines persistence operations for live order rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	// FindStalePending returns PENDING orders whose payment started before cutoff and that
	// have not been expired yet, with their line items.
	FindStalePending(ctx context.Context, cutoff time.Time) ([]models.Order, error)
	MarkExpired(ctx context.Context, orderID uuid.UUID, at time.Time) error
}
