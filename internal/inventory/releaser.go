package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-ledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packfinderz-ledger/pkg/errors"
)

// Releaser returns reserved stock to availability with a conditional decrement.
type Releaser struct {
	now func() time.Time
}

func NewReleaser() *Releaser {
	return &Releaser{now: time.Now}
}

// Release decrements reserved by qty only when at least qty is reserved. Any row count
// other than one means live state disagrees with the reservation being released and is
// reported as an invariant violation; callers must abort their transaction.
func (r *Releaser) Release(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int64) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "inventory release requires a transaction")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "release quantity must be positive").
			WithDetails(map[string]any{"variantId": variantID, "qty": qty})
	}

	res := tx.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("variant_id = ? AND reserved >= ?", variantID, qty).
		Updates(map[string]any{
			"reserved":   gorm.Expr("reserved - ?", qty),
			"updated_at": r.now().UTC(),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release reserved inventory")
	}
	if res.RowsAffected != 1 {
		return pkgerrors.New(pkgerrors.CodeInvariantViolation,
			fmt.Sprintf("cannot release %d reserved units of variant %s", qty, variantID)).
			WithDetails(map[string]any{"variantId": variantID, "qty": qty, "rowsAffected": res.RowsAffected})
	}
	return nil
}
