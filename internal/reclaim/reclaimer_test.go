package reclaim

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-ledger/internal/inventory"
	"github.com/angelmondragon/packfinderz-ledger/internal/ledger"
	"github.com/angelmondragon/packfinderz-ledger/internal/livestate"
	"github.com/angelmondragon/packfinderz-ledger/internal/orders"
	"github.com/angelmondragon/packfinderz-ledger/internal/replay"
	"github.com/angelmondragon/packfinderz-ledger/pkg/db"
	"github.com/angelmondragon/packfinderz-ledger/pkg/db/models"
	"github.com/angelmondragon/packfinderz-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-ledger/pkg/errors"
	"github.com/angelmondragon/packfinderz-ledger/pkg/logger"
	"github.com/angelmondragon/packfinderz-ledger/pkg/migrate"
	"github.com/angelmondragon/packfinderz-ledger/pkg/pagination"
)

type stubLock struct {
	busy     bool
	err      error
	released int
}

func (s *stubLock) Acquire(context.Context) (bool, error) { return !s.busy, s.err }
func (s *stubLock) Release(context.Context) error         { s.released++; return nil }

type fixture struct {
	conn      *gorm.DB
	ledger    ledger.Service
	reclaimer *Reclaimer
	lock      *stubLock
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:reclaim_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migrate.AutoMigrateModels(conn))

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)
	lock := &stubLock{}
	reclaimer, err := New(Params{
		Logger:    logger.New(logger.Options{ServiceName: "reclaim-test", Output: &bytes.Buffer{}}),
		DB:        db.NewFromGorm(conn),
		Orders:    orders.NewRepository(conn),
		Ledger:    ledgerSvc,
		Inventory: inventory.NewReleaser(),
		Lock:      lock,
	})
	require.NoError(t, err)
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	reclaimer.now = func() time.Time { return now }
	return &fixture{conn: conn, ledger: ledgerSvc, reclaimer: reclaimer, lock: lock, now: now}
}

// reservedOrder records the ledger history and live rows of a PENDING order holding qty units.
func (f *fixture) reservedOrder(t *testing.T, variant uuid.UUID, qty int64, initiatedAgo time.Duration) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	orderID := uuid.New()
	_, err := f.ledger.Record(ctx, ledger.RecordInput{
		EntityType: enums.LedgerEntityOrder, EntityID: orderID,
		EventType: enums.LedgerEventCreated, ActorType: enums.LedgerActorUser,
	})
	require.NoError(t, err)
	_, err = f.ledger.Record(ctx, ledger.RecordInput{
		EntityType: enums.LedgerEntityInventory, EntityID: variant,
		EventType: enums.LedgerEventReserved, ActorType: enums.LedgerActorUser,
		Payload: ledger.QuantityPayload{Qty: qty, OrderID: &orderID},
	})
	require.NoError(t, err)

	initiated := f.now.Add(-initiatedAgo)
	require.NoError(t, f.conn.Create(&models.Order{
		ID:                 orderID,
		Status:             enums.OrderStatusPending,
		PaymentInitiatedAt: &initiated,
		Items: []models.OrderLineItem{
			{ID: uuid.New(), VariantID: variant, Qty: qty, Format: enums.LineItemFormatHardcopy},
			{ID: uuid.New(), VariantID: uuid.New(), Qty: 1, Format: enums.LineItemFormatDigital},
		},
	}).Error)
	require.NoError(t, f.conn.Model(&models.InventoryItem{}).
		Where("variant_id = ?", variant).
		Update("reserved", gorm.Expr("reserved + ?", qty)).Error)
	return orderID
}

func (f *fixture) seedVariant(t *testing.T, onHand int64) uuid.UUID {
	t.Helper()
	variant := uuid.New()
	_, err := f.ledger.Record(context.Background(), ledger.RecordInput{
		EntityType: enums.LedgerEntityInventory, EntityID: variant,
		EventType: enums.LedgerEventSeed, ActorType: enums.LedgerActorAdmin,
		Payload: ledger.QuantityPayload{Qty: onHand},
	})
	require.NoError(t, err)
	require.NoError(t, f.conn.Create(&models.InventoryItem{VariantID: variant, OnHand: onHand}).Error)
	return variant
}

func (f *fixture) inventory(t *testing.T, variant uuid.UUID) models.InventoryItem {
	t.Helper()
	var row models.InventoryItem
	require.NoError(t, f.conn.First(&row, "variant_id = ?", variant).Error)
	return row
}

func (f *fixture) ledgerCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(&models.LedgerEvent{}).Count(&n).Error)
	return n
}

func TestReclaim_ExpiresStaleOrders(t *testing.T) {
	f := newFixture(t)
	variant := f.seedVariant(t, 10)
	stale := f.reservedOrder(t, variant, 2, 20*time.Minute)
	fresh := f.reservedOrder(t, variant, 3, 5*time.Minute)

	summary, err := f.reclaimer.Reclaim(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.OrdersExpired)
	assert.Equal(t, 1, summary.ItemsReleased)
	assert.EqualValues(t, 2, summary.UnitsReleased)
	assert.Equal(t, []uuid.UUID{stale}, summary.OrderIDs)
	assert.Equal(t, 1, f.lock.released)

	row := f.inventory(t, variant)
	assert.EqualValues(t, 10, row.OnHand)
	assert.EqualValues(t, 3, row.Reserved)

	var order models.Order
	require.NoError(t, f.conn.First(&order, "id = ?", stale).Error)
	assert.Equal(t, enums.OrderStatusExpired, order.Status)
	require.NotNil(t, order.ExpiredAt)

	var freshOrder models.Order
	require.NoError(t, f.conn.First(&freshOrder, "id = ?", fresh).Error)
	assert.Equal(t, enums.OrderStatusPending, freshOrder.Status)

	history, err := f.ledger.HistoryPage(context.Background(), enums.LedgerEntityOrder, stale, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, history.Events, 2)
	assert.Equal(t, enums.LedgerEventExpired, history.Events[1].EventType)
}

func TestReclaim_RerunIsNoop(t *testing.T) {
	f := newFixture(t)
	variant := f.seedVariant(t, 5)
	f.reservedOrder(t, variant, 5, time.Hour)

	_, err := f.reclaimer.Reclaim(context.Background())
	require.NoError(t, err)
	events := f.ledgerCount(t)

	summary, err := f.reclaimer.Reclaim(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.OrdersExpired)
	assert.Equal(t, events, f.ledgerCount(t))
	assert.EqualValues(t, 0, f.inventory(t, variant).Reserved)
}

func TestReclaim_LedgerAndLiveAgreeAfterwards(t *testing.T) {
	f := newFixture(t)
	variant := f.seedVariant(t, 10)
	f.reservedOrder(t, variant, 4, time.Hour)

	_, err := f.reclaimer.Reclaim(context.Background())
	require.NoError(t, err)

	reader, err := ledger.NewReader(ledger.NewRepository(f.conn), 100)
	require.NoError(t, err)
	engine, err := replay.NewEngine(replay.EngineParams{
		Logger:  logger.New(logger.Options{ServiceName: "reclaim-test", Output: &bytes.Buffer{}}),
		DB:      db.NewFromGorm(f.conn),
		Readers: replay.LedgerReaders(reader),
		Stores:  livestate.Factory(f.conn),
	})
	require.NoError(t, err)
	result, err := engine.Run(context.Background(), replay.Request{Mode: enums.ReplayModeVerify})
	require.NoError(t, err)
	assert.Empty(t, result.Violations)
}

func TestReclaim_CASMissIsFatal(t *testing.T) {
	f := newFixture(t)
	healthy := f.seedVariant(t, 10)
	drifted := f.seedVariant(t, 10)
	first := f.reservedOrder(t, healthy, 2, time.Hour)
	f.reservedOrder(t, drifted, 3, 30*time.Minute)
	require.NoError(t, f.conn.Model(&models.InventoryItem{}).
		Where("variant_id = ?", drifted).
		Update("reserved", 1).Error)
	events := f.ledgerCount(t)

	summary, err := f.reclaimer.Reclaim(context.Background())
	require.Nil(t, summary)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInvariantViolation, typed.Code())

	assert.EqualValues(t, 2, f.inventory(t, healthy).Reserved, "earlier releases roll back")
	assert.EqualValues(t, 1, f.inventory(t, drifted).Reserved)
	var order models.Order
	require.NoError(t, f.conn.First(&order, "id = ?", first).Error)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, events, f.ledgerCount(t))
}

// racingOrders settles the order as PAID just before the expiry update runs.
type racingOrders struct {
	orders.Repository
	tx *gorm.DB
}

func (r *racingOrders) WithTx(tx *gorm.DB) orders.Repository {
	return &racingOrders{Repository: r.Repository.WithTx(tx), tx: tx}
}

func (r *racingOrders) MarkExpired(ctx context.Context, orderID uuid.UUID, at time.Time) error {
	if err := r.tx.Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("status", enums.OrderStatusPaid).Error; err != nil {
		return err
	}
	return r.Repository.MarkExpired(ctx, orderID, at)
}

func TestReclaim_OrderSettledMidRunIsConflict(t *testing.T) {
	f := newFixture(t)
	variant := f.seedVariant(t, 10)
	orderID := f.reservedOrder(t, variant, 2, time.Hour)
	f.reclaimer.orders = &racingOrders{Repository: f.reclaimer.orders}
	events := f.ledgerCount(t)

	summary, err := f.reclaimer.Reclaim(context.Background())
	require.Nil(t, summary)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, orderID, details["orderId"])
	assert.Equal(t, enums.OrderStatusPaid, details["status"])

	assert.EqualValues(t, 2, f.inventory(t, variant).Reserved, "release rolls back")
	assert.Equal(t, events, f.ledgerCount(t))
}

func TestReclaim_LockBusy(t *testing.T) {
	f := newFixture(t)
	f.lock.busy = true
	_, err := f.reclaimer.Reclaim(context.Background())
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
	assert.Zero(t, f.lock.released)

	f.lock.busy = false
	f.lock.err = errors.New("redis down")
	_, err = f.reclaimer.Reclaim(context.Background())
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Params{})
	assert.Error(t, err)
}
