package enums

// ViolationReason explains why a live entity disagrees with the ledger.
type ViolationReason string

const (
	ViolationValueMismatch   ViolationReason = "value_mismatch"
	ViolationMissingInStore  ViolationReason = "missing_in_store"
	ViolationMissingInLedger ViolationReason = "missing_in_ledger"
)
