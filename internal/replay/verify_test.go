package replay

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-ledger/pkg/enums"
)

var seenAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func emptyLive() *LiveState {
	return &LiveState{
		Inventory: map[uuid.UUID]InventoryState{},
		Orders:    map[uuid.UUID]OrderState{},
		Shipments: map[uuid.UUID]ShipmentState{},
	}
}

func TestCompare_ValueMismatchCarriesBothSides(t *testing.T) {
	folded := newSnapshot()
	folded.Inventory[variantX] = InventoryState{OnHand: 7, Reserved: 0}
	live := emptyLive()
	live.Inventory[variantX] = InventoryState{OnHand: 9, Reserved: 0}

	got := Compare(folded, live, Scope{}, seenAt)
	if len(got) != 1 {
		t.Fatalf("expected one violation, got %+v", got)
	}
	v := got[0]
	if v.Reason != enums.ViolationValueMismatch || v.EntityType != enums.LedgerEntityInventory || v.EntityID != variantX {
		t.Fatalf("unexpected violation %+v", v)
	}
	if v.Ledger != (InventoryState{OnHand: 7}) || v.Live != (InventoryState{OnHand: 9}) {
		t.Fatalf("expected ledger 7 and live 9, got %+v / %+v", v.Ledger, v.Live)
	}
	if !v.FirstSeenAt.Equal(seenAt) || !v.Healable() {
		t.Fatalf("unexpected stamp or healability %+v", v)
	}
	if live.Inventory[variantX].OnHand != 9 {
		t.Fatal("compare must not touch live state")
	}
}

func TestCompare_MissingEntities(t *testing.T) {
	folded := newSnapshot()
	folded.Inventory[variantX] = InventoryState{OnHand: 3}
	folded.Orders[orderA] = OrderState{Status: enums.OrderStatusPaid}
	live := emptyLive()
	liveOnlyOrder := uuid.MustParse("55555555-5555-4555-8555-555555555555")
	live.Orders[liveOnlyOrder] = OrderState{Status: enums.OrderStatusPending}
	live.Shipments[shipmentA] = ShipmentState{OrderID: orderA, Status: enums.ShipmentStatusCreated}

	got := Compare(folded, live, Scope{}, seenAt)
	if len(got) != 4 {
		t.Fatalf("expected four violations, got %+v", got)
	}
	want := []struct {
		entity enums.LedgerEntityType
		id     uuid.UUID
		reason enums.ViolationReason
	}{
		{enums.LedgerEntityInventory, variantX, enums.ViolationMissingInStore},
		{enums.LedgerEntityOrder, orderA, enums.ViolationMissingInStore},
		{enums.LedgerEntityOrder, liveOnlyOrder, enums.ViolationMissingInLedger},
		{enums.LedgerEntityShipment, shipmentA, enums.ViolationMissingInLedger},
	}
	for i, w := range want {
		if got[i].EntityType != w.entity || got[i].EntityID != w.id || got[i].Reason != w.reason {
			t.Fatalf("violation %d: expected %v %s %s, got %+v", i, w.entity, w.id, w.reason, got[i])
		}
	}
	if got[2].Healable() {
		t.Fatal("orders missing from the ledger cannot be healed by a rebuild")
	}
	if !got[3].Healable() {
		t.Fatal("shipments missing from the ledger are removed by a rebuild")
	}
}

func TestCompare_ZeroInventoryIsBaseline(t *testing.T) {
	folded := newSnapshot()
	folded.Inventory[variantX] = InventoryState{}
	live := emptyLive()
	live.Inventory[variantY] = InventoryState{}

	if got := Compare(folded, live, Scope{}, seenAt); len(got) != 0 {
		t.Fatalf("zeroed inventory is not drift, got %+v", got)
	}
}

func TestCompare_ShipmentOptionalFields(t *testing.T) {
	carrier, tracking := "UPS", "1Z"
	folded := newSnapshot()
	folded.Shipments[shipmentA] = ShipmentState{OrderID: orderA, Status: enums.ShipmentStatusShipped, Carrier: &carrier, Tracking: &tracking}
	live := emptyLive()
	sameCarrier, sameTracking := "UPS", "1Z"
	live.Shipments[shipmentA] = ShipmentState{OrderID: orderA, Status: enums.ShipmentStatusShipped, Carrier: &sameCarrier, Tracking: &sameTracking}

	if got := Compare(folded, live, Scope{}, seenAt); len(got) != 0 {
		t.Fatalf("equal shipments reported as drift: %+v", got)
	}

	live.Shipments[shipmentA] = ShipmentState{OrderID: orderA, Status: enums.ShipmentStatusShipped, Carrier: &sameCarrier}
	got := Compare(folded, live, Scope{}, seenAt)
	if len(got) != 1 || got[0].Reason != enums.ViolationValueMismatch {
		t.Fatalf("missing tracking should be a mismatch, got %+v", got)
	}
}

func TestCompare_WindowedScope(t *testing.T) {
	folded := newSnapshot()
	folded.Inventory[variantX] = InventoryState{OnHand: 4}
	folded.Inventory[variantY] = InventoryState{OnHand: 8}
	folded.Touched[EntityKey{Type: enums.LedgerEntityInventory, ID: variantY}] = struct{}{}
	live := emptyLive()
	live.Inventory[variantX] = InventoryState{OnHand: 1}
	live.Inventory[variantY] = InventoryState{OnHand: 2}
	live.Orders[orderA] = OrderState{Status: enums.OrderStatusPaid}

	got := Compare(folded, live, Scope{Windowed: true}, seenAt)
	if len(got) != 1 || got[0].EntityID != variantY {
		t.Fatalf("windowed comparison should only see touched entities, got %+v", got)
	}
}
