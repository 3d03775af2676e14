package device

import (
	"strings"
	"time"

	"github.com/cochaviz/simfarm/internal/platform"
)

// State is the in-memory lifecycle state of a device held by a driver. It is
// never persisted; the registry only tracks ownership.
type State string

const (
	StateUnallocated   State = "unallocated"
	StateAllocatedCold State = "allocated-cold"
	StateBooted        State = "booted"
	StateAppInstalled  State = "app-installed"
	StateRunning       State = "running"
	StateShuttingDown  State = "shutting-down"
)

// Query describes the device a caller wants: the allocation key matched
// against the pool and used to create new instances on a miss.
type Query struct {
	Name      string
	Platform  platform.Platform
	OSVersion string
}

// Matches reports whether the descriptor satisfies the query. Empty query
// fields match anything.
func (q Query) Matches(d Descriptor) bool {
	if q.Name != "" && !strings.EqualFold(q.Name, d.Name) {
		return false
	}
	if q.Platform != "" && q.Platform != d.Platform {
		return false
	}
	if q.OSVersion != "" && q.OSVersion != d.OSVersion {
		return false
	}
	return true
}

// Descriptor is the normalized view of a backend device. ID carries the
// backend's native unique identifier (a udid for simulators) regardless of
// what the backend calls it.
type Descriptor struct {
	ID        string
	Name      string
	Platform  platform.Platform
	OSVersion string

	// LastBootedAt is nil for a device that has never been booted since
	// creation; its first boot is a cold boot.
	LastBootedAt *time.Time
}

// Session records one run against an acquired device, persisted for
// diagnostics by a session repository.
type Session struct {
	ID       string
	DeviceID string
	BundleID string

	StartTime time.Time
	EndTime   time.Time

	State    State
	Metadata map[string]any
}

// Active reports whether the session has not ended yet.
func (s Session) Active() bool {
	return s.EndTime.IsZero()
}
