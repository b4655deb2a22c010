package enums

import "fmt"

// ReplayMode selects what the replay engine does with a folded snapshot.
type ReplayMode string

const (
	ReplayModeVerify      ReplayMode = "VERIFY"
	ReplayModeRebuild     ReplayMode = "REBUILD"
	ReplayModeIncremental ReplayMode = "INCREMENTAL"
)

var validReplayModes = []ReplayMode{
	ReplayModeVerify,
	ReplayModeRebuild,
	ReplayModeIncremental,
}

// IsValid reports whether the value is a known ReplayMode.
func (m ReplayMode) IsValid() bool {
	for _, candidate := range validReplayModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// Writes reports whether the mode mutates live state.
func (m ReplayMode) Writes() bool {
	return m == ReplayModeRebuild || m == ReplayModeIncremental
}

// ParseReplayMode converts raw input into a ReplayMode.
func ParseReplayMode(value string) (ReplayMode, error) {
	for _, candidate := range validReplayModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid replay mode %q", value)
}
