package ledger

import "time"

// Window bounds ledger reads by created_at. Nil bounds are open.
type Window struct {
	From *time.Time
	To   *time.Time
}

// IsZero reports whether the window covers the whole ledger.
func (w Window) IsZero() bool {
	return w.From == nil && w.To == nil
}

// Contains reports whether ts falls inside both bounds (inclusive).
func (w Window) Contains(ts time.Time) bool {
	if w.From != nil && ts.Before(*w.From) {
		return false
	}
	if w.To != nil && ts.After(*w.To) {
		return false
	}
	return true
}

// UpTo drops the lower bound so folds see complete entity history.
func (w Window) UpTo() Window {
	return Window{To: w.To}
}
