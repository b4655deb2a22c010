package replay

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	RuleOnHandNonNegative   = "on_hand_non_negative"
	RuleReservedNonNegative = "reserved_non_negative"
	RuleReservedWithinStock = "reserved_within_on_hand"
)

// InvariantViolation aborts a fold. It points at the first event, in seq order, after
// which an inventory counter broke a hard rule. It is never retryable without investigation.
type InvariantViolation struct {
	VariantID uuid.UUID `json:"variantId"`
	EventSeq  int64     `json:"eventSeq"`
	EventID   uuid.UUID `json:"eventId"`
	OnHand    int64     `json:"onHand"`
	Reserved  int64     `json:"reserved"`
	Rule      string    `json:"rule"`
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant %s violated for variant %s at ledger seq %d (event %s): onHand=%d reserved=%d",
		e.Rule, e.VariantID, e.EventSeq, e.EventID, e.OnHand, e.Reserved)
}

// eventError ties a fatal fold error to the event that produced it.
type eventError struct {
	seq int64
	err error
}

func (e *eventError) Error() string {
	return fmt.Sprintf("ledger seq %d: %v", e.seq, e.err)
}

func (e *eventError) Unwrap() error {
	return e.err
}
