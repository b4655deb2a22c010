package enums

import "fmt"

// LedgerActorType records who caused a ledger event.
type LedgerActorType string

const (
	LedgerActorSystem LedgerActorType = "SYSTEM"
	LedgerActorAdmin  LedgerActorType = "ADMIN"
	LedgerActorUser   LedgerActorType = "USER"
)

var validLedgerActorTypes = []LedgerActorType{
	LedgerActorSystem,
	LedgerActorAdmin,
	LedgerActorUser,
}

// IsValid reports whether the value is a known LedgerActorType.
func (t LedgerActorType) IsValid() bool {
	for _, candidate := range validLedgerActorTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLedgerActorType converts raw input into a LedgerActorType.
func ParseLedgerActorType(value string) (LedgerActorType, error) {
	for _, candidate := range validLedgerActorTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger actor type %q", value)
}
