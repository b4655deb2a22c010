package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-ledger/pkg/db/models"
	"github.com/angelmondragon/packfinderz-ledger/pkg/enums"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Order{}, &models.OrderLineItem{}))
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, status enums.OrderStatus, initiated *time.Time, expired *time.Time, items ...models.OrderLineItem) uuid.UUID {
	t.Helper()
	order := models.Order{
		ID:                 uuid.New(),
		Status:             status,
		PaymentInitiatedAt: initiated,
		ExpiredAt:          expired,
		Items:              items,
	}
	for i := range order.Items {
		order.Items[i].ID = uuid.New()
	}
	require.NoError(t, db.Create(&order).Error)
	return order.ID
}

func TestFindStalePending(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-20 * time.Minute)
	fresh := now.Add(-5 * time.Minute)

	stale := seedOrder(t, db, enums.OrderStatusPending, &old, nil,
		models.OrderLineItem{VariantID: uuid.New(), Qty: 2, Format: enums.LineItemFormatHardcopy},
		models.OrderLineItem{VariantID: uuid.New(), Qty: 1, Format: enums.LineItemFormatDigital},
	)
	seedOrder(t, db, enums.OrderStatusPending, &fresh, nil)
	seedOrder(t, db, enums.OrderStatusPaid, &old, nil)
	seedOrder(t, db, enums.OrderStatusPending, &old, &fresh)
	seedOrder(t, db, enums.OrderStatusPending, nil, nil)

	found, err := repo.FindStalePending(context.Background(), now.Add(-15*time.Minute))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, stale, found[0].ID)
	assert.Len(t, found[0].Items, 2)
}

func TestMarkExpired(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	initiated := time.Date(2026, 2, 1, 11, 0, 0, 0, time.UTC)
	id := seedOrder(t, db, enums.OrderStatusPending, &initiated, nil)
	at := initiated.Add(time.Hour)

	require.NoError(t, repo.MarkExpired(context.Background(), id, at))

	order, err := repo.FindOrder(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusExpired, order.Status)
	require.NotNil(t, order.ExpiredAt)
	assert.True(t, order.ExpiredAt.Equal(at))

	err = repo.MarkExpired(context.Background(), id, at)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound), "already expired orders are not transitioned again")
}

func TestWithTxBindsTransaction(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	assert.Same(t, repo, repo.WithTx(nil))

	initiated := time.Date(2026, 2, 1, 11, 0, 0, 0, time.UTC)
	id := seedOrder(t, db, enums.OrderStatusPending, &initiated, nil)
	rollback := errors.New("rollback")
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := repo.WithTx(tx).MarkExpired(context.Background(), id, initiated); err != nil {
			return err
		}
		return rollback
	})
	require.ErrorIs(t, err, rollback)

	order, err := repo.FindOrder(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
}
