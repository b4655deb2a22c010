package reclaim

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-ledger/internal/ledger"
	"github.com/angelmondragon/packfinderz-ledger/internal/orders"
	"github.com/angelmondragon/packfinderz-ledger/pkg/db/models"
	"github.com/angelmondragon/packfinderz-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-ledger/pkg/errors"
	"github.com/angelmondragon/packfinderz-ledger/pkg/logger"
	"github.com/angelmondragon/packfinderz-ledger/pkg/metrics"
)

const (
	DefaultTimeout = 15 * time.Minute
	expiryReason   = "payment not completed before reservation timeout"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// InventoryReleaser returns reserved stock inside the caller's transaction.
type InventoryReleaser interface {
	Release(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int64) error
}

type runLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Params configure the stale-reservation reclaimer.
type Params struct {
	Logger    *logger.Logger
	DB        txRunner
	Orders    orders.Repository
	Ledger    ledger.Service
	Inventory InventoryReleaser
	// Lock enforces a single running reclaimer across instances.
	Lock    runLock
	Metrics *metrics.ReconcileMetrics
	Timeout time.Duration
}

// Summary reports what one reclaim run changed.
type Summary struct {
	Cutoff        time.Time   `json:"cutoff"`
	OrdersExpired int         `json:"ordersExpired"`
	ItemsReleased int         `json:"itemsReleased"`
	UnitsReleased int64       `json:"unitsReleased"`
	OrderIDs      []uuid.UUID `json:"orderIds"`
}

// Reclaimer expires PENDING orders whose payment window lapsed and returns their
// reserved stock.
type Reclaimer struct {
	logg      *logger.Logger
	db        txRunner
	orders    orders.Repository
	ledger    ledger.Service
	inventory InventoryReleaser
	lock      runLock
	metrics   *metrics.ReconcileMetrics
	timeout   time.Duration
	now       func() time.Time
}

func New(params Params) (*Reclaimer, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory releaser required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Reclaimer{
		logg:      params.Logger,
		db:        params.DB,
		orders:    params.Orders,
		ledger:    params.Ledger,
		inventory: params.Inventory,
		lock:      params.Lock,
		metrics:   params.Metrics,
		timeout:   timeout,
		now:       time.Now,
	}, nil
}

// Reclaim runs one pass in a single transaction. A reservation that cannot be released
// aborts the whole pass with CodeInvariantViolation and nothing is written. A concurrent
// run yields CodeConflict.
func (r *Reclaimer) Reclaim(ctx context.Context) (*Summary, error) {
	locked, err := r.lock.Acquire(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire reclaim lock")
	}
	if !locked {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "stale reservation reclaim already running")
	}
	defer func() {
		// the run may have been cancelled; release must still reach redis
		if relErr := r.lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			r.logg.Error(ctx, "failed to release reclaim lock", relErr)
		}
	}()

	now := r.now().UTC()
	summary := &Summary{Cutoff: now.Add(-r.timeout), OrderIDs: []uuid.UUID{}}

	err = r.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := r.orders.WithTx(tx)
		stale, err := repo.FindStalePending(ctx, summary.Cutoff)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query stale pending orders")
		}
		ledgerTx := r.ledger.WithTx(tx)
		for _, order := range stale {
			if err := r.expireOrder(ctx, tx, repo, ledgerTx, order, now, summary); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.logg.Error(ctx, "stale reservation reclaim aborted", err)
		return nil, err
	}

	r.metrics.AddReclaimed(summary.OrdersExpired, summary.UnitsReleased)
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"orders_expired": summary.OrdersExpired,
		"items_released": summary.ItemsReleased,
		"units_released": summary.UnitsReleased,
		"cutoff":         summary.Cutoff,
	})
	r.logg.Info(logCtx, "stale reservation reclaim complete")
	return summary, nil
}

func (r *Reclaimer) expireOrder(ctx context.Context, tx *gorm.DB, repo orders.Repository, ledgerTx ledger.Service, order models.Order, now time.Time, summary *Summary) error {
	orderID := order.ID
	ctx = r.logg.WithEntity(ctx, string(enums.LedgerEntityOrder), orderID.String())
	for _, item := range order.Items {
		if !item.Format.HoldsInventory() {
			continue
		}
		if err := r.inventory.Release(ctx, tx, item.VariantID, item.Qty); err != nil {
			return err
		}
		if _, err := ledgerTx.Record(ctx, ledger.RecordInput{
			EntityType: enums.LedgerEntityInventory,
			EntityID:   item.VariantID,
			EventType:  enums.LedgerEventReleased,
			ActorType:  enums.LedgerActorSystem,
			Payload:    ledger.QuantityPayload{Qty: item.Qty, OrderID: &orderID},
		}); err != nil {
			return err
		}
		summary.ItemsReleased++
		summary.UnitsReleased += item.Qty
	}

	if err := repo.MarkExpired(ctx, orderID, now); err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return r.leftPending(ctx, repo, orderID, err)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order expired")
	}
	if _, err := ledgerTx.Record(ctx, ledger.RecordInput{
		EntityType: enums.LedgerEntityOrder,
		EntityID:   orderID,
		EventType:  enums.LedgerEventExpired,
		ActorType:  enums.LedgerActorSystem,
		Payload:    ledger.OrderStatusPayload{Reason: expiryReason},
	}); err != nil {
		return err
	}
	summary.OrdersExpired++
	summary.OrderIDs = append(summary.OrderIDs, orderID)
	r.logg.Debug(ctx, "stale order expired")
	return nil
}

// leftPending reports an order that changed status between the stale query and the
// expiry update, naming the status it moved to when it can still be read.
func (r *Reclaimer) leftPending(ctx context.Context, repo orders.Repository, orderID uuid.UUID, cause error) error {
	details := map[string]any{"orderId": orderID}
	if current, err := repo.FindOrder(ctx, orderID); err == nil {
		details["status"] = current.Status
	} else {
		r.logg.Warn(ctx, "could not load order that left PENDING")
	}
	r.logg.Warn(r.logg.WithFields(ctx, details), "order left PENDING during reclaim")
	return pkgerrors.Wrap(pkgerrors.CodeConflict, cause, "order left PENDING during reclaim").
		WithDetails(details)
}
