package replay

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-ledger/pkg/enums"
)

type InventoryState struct {
	OnHand   int64 `json:"onHand"`
	Reserved int64 `json:"reserved"`
}

// Available is derived and never stored.
func (s InventoryState) Available() int64 {
	return s.OnHand - s.Reserved
}

// IsZero reports the neutral baseline a reset leaves behind.
func (s InventoryState) IsZero() bool {
	return s.OnHand == 0 && s.Reserved == 0
}

type OrderState struct {
	Status enums.OrderStatus `json:"status"`
}

type ShipmentState struct {
	OrderID  uuid.UUID            `json:"orderId"`
	Status   enums.ShipmentStatus `json:"status"`
	Carrier  *string              `json:"carrier,omitempty"`
	Tracking *string              `json:"tracking,omitempty"`
}

func (s ShipmentState) equal(other ShipmentState) bool {
	return s.OrderID == other.OrderID &&
		s.Status == other.Status &&
		optionalEqual(s.Carrier, other.Carrier) &&
		optionalEqual(s.Tracking, other.Tracking)
}

// StatusTransition is one order status change in ledger order.
type StatusTransition struct {
	OrderID    uuid.UUID         `json:"orderId"`
	Status     enums.OrderStatus `json:"status"`
	LedgerSeq  int64             `json:"ledgerSeq"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// EntityKey identifies an entity across entity types.
type EntityKey struct {
	Type enums.LedgerEntityType
	ID   uuid.UUID
}

// Snapshot is the ledger-derived state of every entity seen by a fold.
type Snapshot struct {
	Inventory     map[uuid.UUID]InventoryState `json:"inventory"`
	Orders        map[uuid.UUID]OrderState     `json:"orders"`
	Shipments     map[uuid.UUID]ShipmentState  `json:"shipments"`
	Transitions   []StatusTransition           `json:"transitions"`
	EventsApplied int                          `json:"eventsApplied"`
	EventsSkipped int                          `json:"eventsSkipped"`
	LastSeq       int64                        `json:"lastSeq"`

	// EventsInWindow counts applied events at or after the window start.
	EventsInWindow int `json:"-"`
	// Touched holds entities with at least one event at or after the window start.
	Touched map[EntityKey]struct{} `json:"-"`
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		Inventory: map[uuid.UUID]InventoryState{},
		Orders:    map[uuid.UUID]OrderState{},
		Shipments: map[uuid.UUID]ShipmentState{},
		Touched:   map[EntityKey]struct{}{},
	}
}

// IsTouched reports whether the entity had an event inside the window.
func (s *Snapshot) IsTouched(entityType enums.LedgerEntityType, id uuid.UUID) bool {
	_, ok := s.Touched[EntityKey{Type: entityType, ID: id}]
	return ok
}

// Restrict returns a copy containing only touched entities.
func (s *Snapshot) Restrict() *Snapshot {
	out := newSnapshot()
	out.EventsApplied = s.EventsApplied
	out.EventsInWindow = s.EventsInWindow
	out.EventsSkipped = s.EventsSkipped
	out.LastSeq = s.LastSeq
	for id, state := range s.Inventory {
		if s.IsTouched(enums.LedgerEntityInventory, id) {
			out.Inventory[id] = state
		}
	}
	for id, state := range s.Orders {
		if s.IsTouched(enums.LedgerEntityOrder, id) {
			out.Orders[id] = state
		}
	}
	for id, state := range s.Shipments {
		if s.IsTouched(enums.LedgerEntityShipment, id) {
			out.Shipments[id] = state
		}
	}
	for _, tr := range s.Transitions {
		if s.IsTouched(enums.LedgerEntityOrder, tr.OrderID) {
			out.Transitions = append(out.Transitions, tr)
		}
	}
	for key := range s.Touched {
		out.Touched[key] = struct{}{}
	}
	return out
}

func optionalEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
