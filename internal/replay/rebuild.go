package replay

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-ledger/pkg/enums"
)

// LiveStore is the live-state surface replay reads and rewrites. Implementations bound to a
// transaction must perform every call inside it.
type LiveStore interface {
	LoadInventory(ctx context.Context) (map[uuid.UUID]InventoryState, error)
	LoadOrders(ctx context.Context) (map[uuid.UUID]OrderState, error)
	LoadShipments(ctx context.Context) (map[uuid.UUID]ShipmentState, error)

	ResetInventory(ctx context.Context) error
	DeleteShipments(ctx context.Context) error
	DeleteTransitions(ctx context.Context) error

	UpsertInventory(ctx context.Context, states map[uuid.UUID]InventoryState) error
	UpsertOrders(ctx context.Context, states map[uuid.UUID]OrderState) error
	UpsertShipments(ctx context.Context, states map[uuid.UUID]ShipmentState) error
	InsertTransitions(ctx context.Context, transitions []StatusTransition) error
}

func loadLive(ctx context.Context, store LiveStore) (*LiveState, error) {
	inventory, err := store.LoadInventory(ctx)
	if err != nil {
		return nil, fmt.Errorf("load live inventory: %w", err)
	}
	orders, err := store.LoadOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("load live orders: %w", err)
	}
	shipments, err := store.LoadShipments(ctx)
	if err != nil {
		return nil, fmt.Errorf("load live shipments: %w", err)
	}
	return &LiveState{Inventory: inventory, Orders: orders, Shipments: shipments}, nil
}

// resetDerived returns live state to the neutral baseline: inventory counters at zero and
// wholly ledger-derived rows removed. Orders keep their rows.
func resetDerived(ctx context.Context, store LiveStore) error {
	if err := store.ResetInventory(ctx); err != nil {
		return fmt.Errorf("reset inventory: %w", err)
	}
	if err := store.DeleteShipments(ctx); err != nil {
		return fmt.Errorf("delete shipments: %w", err)
	}
	if err := store.DeleteTransitions(ctx); err != nil {
		return fmt.Errorf("delete status transitions: %w", err)
	}
	return nil
}

func writeSnapshot(ctx context.Context, store LiveStore, snap *Snapshot) error {
	if err := store.UpsertInventory(ctx, snap.Inventory); err != nil {
		return fmt.Errorf("upsert inventory: %w", err)
	}
	if err := store.UpsertOrders(ctx, snap.Orders); err != nil {
		return fmt.Errorf("upsert orders: %w", err)
	}
	if err := store.UpsertShipments(ctx, snap.Shipments); err != nil {
		return fmt.Errorf("upsert shipments: %w", err)
	}
	if err := store.InsertTransitions(ctx, snap.Transitions); err != nil {
		return fmt.Errorf("insert status transitions: %w", err)
	}
	return nil
}

// rebuild applies a folded snapshot to store according to mode. It assumes the caller owns
// the enclosing transaction.
func rebuild(ctx context.Context, store LiveStore, mode enums.ReplayMode, snap *Snapshot) error {
	switch mode {
	case enums.ReplayModeRebuild:
		if err := resetDerived(ctx, store); err != nil {
			return err
		}
		return writeSnapshot(ctx, store, snap)
	case enums.ReplayModeIncremental:
		return writeSnapshot(ctx, store, snap.Restrict())
	default:
		return fmt.Errorf("mode %s does not write", mode)
	}
}
