package reconcile

import (
	"github.com/angelmondragon/packfinderz-ledger/internal/replay"
	"github.com/angelmondragon/packfinderz-ledger/pkg/enums"
)

// Section groups the mismatches for one entity type.
type Section struct {
	OK         bool               `json:"ok"`
	Mismatches []replay.Violation `json:"mismatches"`
}

// VerifyReport is the read-only comparison returned to operators.
type VerifyReport struct {
	Inventory      Section `json:"inventory"`
	Orders         Section `json:"orders"`
	Shipments      Section `json:"shipments"`
	EventsApplied  int     `json:"eventsApplied"`
	EventsInWindow int     `json:"eventsInWindow"`
	LastSeq        int64   `json:"lastSeq"`
}

// OK reports whether every section is clean.
func (r *VerifyReport) OK() bool {
	return r.Inventory.OK && r.Orders.OK && r.Shipments.OK
}

func newVerifyReport(result *replay.Result) *VerifyReport {
	report := &VerifyReport{
		Inventory:      Section{Mismatches: []replay.Violation{}},
		Orders:         Section{Mismatches: []replay.Violation{}},
		Shipments:      Section{Mismatches: []replay.Violation{}},
		EventsApplied:  result.EventsApplied,
		EventsInWindow: result.EventsInWindow,
		LastSeq:        result.LastSeq,
	}
	for _, v := range result.Violations {
		switch v.EntityType {
		case enums.LedgerEntityInventory:
			report.Inventory.Mismatches = append(report.Inventory.Mismatches, v)
		case enums.LedgerEntityOrder:
			report.Orders.Mismatches = append(report.Orders.Mismatches, v)
		case enums.LedgerEntityShipment:
			report.Shipments.Mismatches = append(report.Shipments.Mismatches, v)
		}
	}
	report.Inventory.OK = len(report.Inventory.Mismatches) == 0
	report.Orders.OK = len(report.Orders.Mismatches) == 0
	report.Shipments.OK = len(report.Shipments.Mismatches) == 0
	return report
}

// DriftReport is the outcome of a drift check.
type DriftReport struct {
	HasDrift   bool               `json:"hasDrift"`
	Violations []replay.Violation `json:"violations"`
}

type HealStatus string

const (
	HealStatusClean      HealStatus = "clean"
	HealStatusHealed     HealStatus = "healed"
	HealStatusUnhealable HealStatus = "unhealable"
)

// HealOutcome describes one auto-heal pass. Unhealable lists violations a rebuild cannot
// resolve; they are reported on every pass until an operator intervenes.
type HealOutcome struct {
	Status          HealStatus         `json:"status"`
	Healed          []replay.Violation `json:"healed"`
	Unhealable      []replay.Violation `json:"unhealable"`
	EventsReapplied int                `json:"eventsReapplied"`
}

// HealReport is returned by an operator-triggered heal.
type HealReport struct {
	DryRun        bool               `json:"dryRun"`
	EventsApplied int                `json:"eventsApplied"`
	LastSeq       int64              `json:"lastSeq"`
	Changes       []replay.Violation `json:"changes"`
}

func countByEntity(violations []replay.Violation) map[string]int {
	counts := map[string]int{
		string(enums.LedgerEntityInventory): 0,
		string(enums.LedgerEntityOrder):     0,
		string(enums.LedgerEntityShipment):  0,
	}
	for _, v := range violations {
		counts[string(v.EntityType)]++
	}
	return counts
}
