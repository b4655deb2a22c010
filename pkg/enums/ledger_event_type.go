package enums

// LedgerEventType is an open-vocabulary token interpreted per entity type.
// Values outside the recognized set are legal on the wire and skipped by replay.
type LedgerEventType string

const (
	LedgerEventSeed       LedgerEventType = "SEED"
	LedgerEventStockAdded LedgerEventType = "STOCK_ADDED"
	LedgerEventReserved   LedgerEventType = "RESERVED"
	LedgerEventReleased   LedgerEventType = "RELEASED"
	LedgerEventCommitted  LedgerEventType = "COMMITTED"
	LedgerEventAdjusted   LedgerEventType = "ADJUSTED"

	LedgerEventCreated LedgerEventType = "CREATED"
	LedgerEventPaid    LedgerEventType = "PAID"
	LedgerEventFailed  LedgerEventType = "FAILED"
	LedgerEventExpired LedgerEventType = "EXPIRED"

	LedgerEventPacked    LedgerEventType = "PACKED"
	LedgerEventShipped   LedgerEventType = "SHIPPED"
	LedgerEventDelivered LedgerEventType = "DELIVERED"
	LedgerEventReturned  LedgerEventType = "RETURNED"
)

var recognizedLedgerEvents = map[LedgerEntityType][]LedgerEventType{
	LedgerEntityInventory: {
		LedgerEventSeed,
		LedgerEventStockAdded,
		LedgerEventReserved,
		LedgerEventReleased,
		LedgerEventCommitted,
		LedgerEventAdjusted,
	},
	LedgerEntityOrder: {
		LedgerEventCreated,
		LedgerEventPaid,
		LedgerEventFailed,
		LedgerEventExpired,
	},
	LedgerEntityShipment: {
		LedgerEventCreated,
		LedgerEventPacked,
		LedgerEventShipped,
		LedgerEventDelivered,
		LedgerEventReturned,
	},
}

// String implements fmt.Stringer.
func (t LedgerEventType) String() string {
	return string(t)
}

// RecognizedFor reports whether replay assigns an effect to the event for the entity type.
func (t LedgerEventType) RecognizedFor(entity LedgerEntityType) bool {
	for _, candidate := range recognizedLedgerEvents[entity] {
		if candidate == t {
			return true
		}
	}
	return false
}
