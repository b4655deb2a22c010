package instance

import (
	"os"

	"github.com/angelmondragon/packfinderz-ledger/pkg/env"
)

const defaultID = "worker-0"

// GetID identifies the running process in logs.
// WORKER_ID wins over the platform dyno name, then the hostname.
func GetID() string {
	if id := env.First("WORKER_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return defaultID
}
