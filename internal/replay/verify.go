package replay

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-ledger/pkg/enums"
)

// LiveState is the materialized state as currently stored.
type LiveState struct {
	Inventory map[uuid.UUID]InventoryState
	Orders    map[uuid.UUID]OrderState
	Shipments map[uuid.UUID]ShipmentState
}

// Scope narrows a comparison. A windowed comparison only looks at entities the window
// touched and never reports missing_in_ledger, since history outside the window is unseen.
type Scope struct {
	Windowed bool
}

// Violation is a non-fatal disagreement between the ledger and live state.
type Violation struct {
	EntityType  enums.LedgerEntityType `json:"entityType"`
	EntityID    uuid.UUID              `json:"entityId"`
	Reason      enums.ViolationReason  `json:"reason"`
	Ledger      any                    `json:"ledger,omitempty"`
	Live        any                    `json:"live,omitempty"`
	FirstSeenAt time.Time              `json:"firstSeenAt"`
}

// Healable reports whether a rebuild can resolve the violation. Orders have an independent
// source of truth, so a rebuild never deletes live orders missing from the ledger.
func (v Violation) Healable() bool {
	return !(v.EntityType == enums.LedgerEntityOrder && v.Reason == enums.ViolationMissingInLedger)
}

// Compare reports one violation per entity whose folded and live values differ. It is pure;
// seenAt stamps every violation. Output is ordered by entity type then id.
func Compare(folded *Snapshot, live *LiveState, scope Scope, seenAt time.Time) []Violation {
	c := comparison{folded: folded, scope: scope, seenAt: seenAt.UTC()}
	c.inventory(live.Inventory)
	c.orders(live.Orders)
	c.shipments(live.Shipments)

	sort.Slice(c.out, func(i, j int) bool {
		if c.out[i].EntityType != c.out[j].EntityType {
			return c.out[i].EntityType < c.out[j].EntityType
		}
		return c.out[i].EntityID.String() < c.out[j].EntityID.String()
	})
	return c.out
}

type comparison struct {
	folded *Snapshot
	scope  Scope
	seenAt time.Time
	out    []Violation
}

func (c *comparison) inScope(entityType enums.LedgerEntityType, id uuid.UUID) bool {
	return !c.scope.Windowed || c.folded.IsTouched(entityType, id)
}

func (c *comparison) add(entityType enums.LedgerEntityType, id uuid.UUID, reason enums.ViolationReason, ledgerValue, liveValue any) {
	c.out = append(c.out, Violation{
		EntityType:  entityType,
		EntityID:    id,
		Reason:      reason,
		Ledger:      ledgerValue,
		Live:        liveValue,
		FirstSeenAt: c.seenAt,
	})
}

func (c *comparison) inventory(live map[uuid.UUID]InventoryState) {
	for id, want := range c.folded.Inventory {
		if !c.inScope(enums.LedgerEntityInventory, id) {
			continue
		}
		got, ok := live[id]
		switch {
		case !ok && !want.IsZero():
			c.add(enums.LedgerEntityInventory, id, enums.ViolationMissingInStore, want, nil)
		case ok && got != want:
			c.add(enums.LedgerEntityInventory, id, enums.ViolationValueMismatch, want, got)
		}
	}
	if c.scope.Windowed {
		return
	}
	for id, got := range live {
		if _, ok := c.folded.Inventory[id]; ok || got.IsZero() {
			continue
		}
		c.add(enums.LedgerEntityInventory, id, enums.ViolationMissingInLedger, nil, got)
	}
}

func (c *comparison) orders(live map[uuid.UUID]OrderState) {
	for id, want := range c.folded.Orders {
		if !c.inScope(enums.LedgerEntityOrder, id) {
			continue
		}
		got, ok := live[id]
		switch {
		case !ok:
			c.add(enums.LedgerEntityOrder, id, enums.ViolationMissingInStore, want, nil)
		case got != want:
			c.add(enums.LedgerEntityOrder, id, enums.ViolationValueMismatch, want, got)
		}
	}
	if c.scope.Windowed {
		return
	}
	for id, got := range live {
		if _, ok := c.folded.Orders[id]; !ok {
			c.add(enums.LedgerEntityOrder, id, enums.ViolationMissingInLedger, nil, got)
		}
	}
}

func (c *comparison) shipments(live map[uuid.UUID]ShipmentState) {
	for id, want := range c.folded.Shipments {
		if !c.inScope(enums.LedgerEntityShipment, id) {
			continue
		}
		got, ok := live[id]
		switch {
		case !ok:
			c.add(enums.LedgerEntityShipment, id, enums.ViolationMissingInStore, want, nil)
		case !got.equal(want):
			c.add(enums.LedgerEntityShipment, id, enums.ViolationValueMismatch, want, got)
		}
	}
	if c.scope.Windowed {
		return
	}
	for id, got := range live {
		if _, ok := c.folded.Shipments[id]; !ok {
			c.add(enums.LedgerEntityShipment, id, enums.ViolationMissingInLedger, nil, got)
		}
	}
}
