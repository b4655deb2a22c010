package enums

import "fmt"

// ReservedPolicy controls whether replay enforces reserved <= onHand.
type ReservedPolicy string

const (
	// ReservedPolicyLenient only requires both counters to stay non-negative.
	ReservedPolicyLenient ReservedPolicy = "lenient"
	// ReservedPolicyStrict additionally rejects reservations exceeding stock on hand.
	ReservedPolicyStrict ReservedPolicy = "strict"
)

// IsValid reports whether the value is a known ReservedPolicy.
func (p ReservedPolicy) IsValid() bool {
	return p == ReservedPolicyLenient || p == ReservedPolicyStrict
}

// ParseReservedPolicy converts raw input into a ReservedPolicy.
func ParseReservedPolicy(value string) (ReservedPolicy, error) {
	switch ReservedPolicy(value) {
	case ReservedPolicyLenient, ReservedPolicyStrict:
		return ReservedPolicy(value), nil
	}
	return "", fmt.Errorf("invalid reserved policy %q", value)
}
