package replay

import (
	"context"
	"iter"
	"time"

	"github.com/angelmondragon/packfinderz-ledger/internal/ledger"
	"github.com/angelmondragon/packfinderz-ledger/pkg/db/models"
	"github.com/angelmondragon/packfinderz-ledger/pkg/enums"
)

// ctxCheckEvery bounds how many events are folded between cancellation checks.
const ctxCheckEvery = 512

// Options tune a fold.
type Options struct {
	Policy enums.ReservedPolicy
	// TouchedFrom limits Snapshot.Touched to entities with events at or after it.
	// Nil marks every folded entity as touched.
	TouchedFrom *time.Time
}

// Folder applies ledger events one at a time. It performs no I/O. After the first
// fatal error every later Apply returns that same error.
type Folder struct {
	opts Options
	snap *Snapshot
	err  error
}

func NewFolder(opts Options) *Folder {
	if !opts.Policy.IsValid() {
		opts.Policy = enums.ReservedPolicyLenient
	}
	return &Folder{opts: opts, snap: newSnapshot()}
}

// Apply folds a single event. Events must arrive in ascending seq order per entity.
func (f *Folder) Apply(event models.LedgerEvent) error {
	if f.err != nil {
		return f.err
	}
	payload, err := ledger.Decode(event.EntityType, event.EventType, event.Payload)
	if err != nil {
		f.err = &eventError{seq: event.Seq, err: err}
		return f.err
	}

	switch p := payload.(type) {
	case ledger.SkipPayload:
		f.snap.EventsSkipped++
		f.advance(event)
		return nil
	case ledger.QuantityPayload:
		err = f.applyQuantity(event, p)
	case ledger.AdjustedPayload:
		err = f.applyInventory(event, InventoryState{OnHand: p.OnHand, Reserved: p.Reserved})
	case ledger.OrderStatusPayload:
		f.applyOrder(event)
	case ledger.ShipmentPayload:
		f.applyShipment(event, p)
	}
	if err != nil {
		f.err = err
		return err
	}

	f.snap.EventsApplied++
	f.markTouched(event)
	f.advance(event)
	return nil
}

// Snapshot returns the folded state, or nil once a fatal error occurred.
func (f *Folder) Snapshot() *Snapshot {
	if f.err != nil {
		return nil
	}
	return f.snap
}

func (f *Folder) applyQuantity(event models.LedgerEvent, p ledger.QuantityPayload) error {
	next := f.snap.Inventory[event.EntityID]
	switch event.EventType {
	case enums.LedgerEventSeed, enums.LedgerEventStockAdded:
		next.OnHand += p.Qty
	case enums.LedgerEventReserved:
		next.Reserved += p.Qty
	case enums.LedgerEventReleased:
		next.Reserved -= p.Qty
	case enums.LedgerEventCommitted:
		next.Reserved -= p.Qty
		next.OnHand -= p.Qty
	}
	return f.applyInventory(event, next)
}

func (f *Folder) applyInventory(event models.LedgerEvent, next InventoryState) error {
	rule := ""
	switch {
	case next.OnHand < 0:
		rule = RuleOnHandNonNegative
	case next.Reserved < 0:
		rule = RuleReservedNonNegative
	case f.opts.Policy == enums.ReservedPolicyStrict && next.Reserved > next.OnHand:
		rule = RuleReservedWithinStock
	}
	if rule != "" {
		return &InvariantViolation{
			VariantID: event.EntityID,
			EventSeq:  event.Seq,
			EventID:   event.EventID,
			OnHand:    next.OnHand,
			Reserved:  next.Reserved,
			Rule:      rule,
		}
	}
	f.snap.Inventory[event.EntityID] = next
	return nil
}

func (f *Folder) applyOrder(event models.LedgerEvent) {
	status := enums.OrderStatus(event.EventType)
	if event.EventType == enums.LedgerEventCreated {
		status = enums.OrderStatusPending
	}
	f.snap.Orders[event.EntityID] = OrderState{Status: status}
	f.snap.Transitions = append(f.snap.Transitions, StatusTransition{
		OrderID:    event.EntityID,
		Status:     status,
		LedgerSeq:  event.Seq,
		OccurredAt: event.CreatedAt.UTC(),
	})
}

func (f *Folder) applyShipment(event models.LedgerEvent, p ledger.ShipmentPayload) {
	state := f.snap.Shipments[event.EntityID]
	state.Status = enums.ShipmentStatus(event.EventType)
	if p.OrderID != nil {
		state.OrderID = *p.OrderID
	}
	if event.EventType == enums.LedgerEventShipped {
		carrier, tracking := p.Carrier, p.Tracking
		state.Carrier = &carrier
		state.Tracking = &tracking
	}
	f.snap.Shipments[event.EntityID] = state
}

func (f *Folder) markTouched(event models.LedgerEvent) {
	if f.opts.TouchedFrom != nil && event.CreatedAt.Before(*f.opts.TouchedFrom) {
		return
	}
	f.snap.EventsInWindow++
	f.snap.Touched[EntityKey{Type: event.EntityType, ID: event.EntityID}] = struct{}{}
}

func (f *Folder) advance(event models.LedgerEvent) {
	if event.Seq > f.snap.LastSeq {
		f.snap.LastSeq = event.Seq
	}
}

// Fold consumes events in order and returns the resulting snapshot. Any error from the
// sequence, a fatal fold error, or ctx cancellation aborts the fold with no snapshot.
func Fold(ctx context.Context, events iter.Seq2[models.LedgerEvent, error], opts Options) (*Snapshot, error) {
	folder := NewFolder(opts)
	n := 0
	for event, err := range events {
		if err != nil {
			return nil, err
		}
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		n++
		if err := folder.Apply(event); err != nil {
			return nil, err
		}
	}
	return folder.Snapshot(), nil
}

// Events adapts an in-memory slice to the sequence shape Fold consumes.
func Events(list []models.LedgerEvent) iter.Seq2[models.LedgerEvent, error] {
	return func(yield func(models.LedgerEvent, error) bool) {
		for _, event := range list {
			if !yield(event, nil) {
				return
			}
		}
	}
}
