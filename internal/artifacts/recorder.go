package artifacts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cochaviz/simfarm/internal/device"
	"github.com/cochaviz/simfarm/internal/events"
)

// LogRecorder is a capture plugin. It subscribes to device lifecycle events,
// tracks boot times, and collects the device's log files into the store once
// the device shuts down. The lifecycle driver guarantees bootDevice arrives
// only after the device is actually up and shutdownDevice only after
// shutdown completed, so collection never races the device.
type LogRecorder struct {
	Backend device.Backend
	Store   Store
	Logger  *slog.Logger

	mu       sync.Mutex
	bootedAt map[string]time.Time
	captured []Artifact
}

// NewLogRecorder creates a recorder collecting into store.
func NewLogRecorder(backend device.Backend, store Store, logger *slog.Logger) *LogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRecorder{
		Backend:  backend,
		Store:    store,
		Logger:   logger,
		bootedAt: map[string]time.Time{},
	}
}

// Attach subscribes the recorder to the bus.
func (r *LogRecorder) Attach(bus *events.Bus) {
	bus.Subscribe(events.BootDevice, r.onBoot)
	bus.Subscribe(events.ShutdownDevice, r.onShutdown)
}

// Captured returns the artifacts collected so far.
func (r *LogRecorder) Captured() []Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Artifact(nil), r.captured...)
}

func (r *LogRecorder) onBoot(event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bootedAt[event.DeviceID] = event.Timestamp
}

func (r *LogRecorder) onShutdown(event events.Event) {
	r.mu.Lock()
	bootedAt, known := r.bootedAt[event.DeviceID]
	delete(r.bootedAt, event.DeviceID)
	r.mu.Unlock()

	stdout, stderr, err := r.Backend.LogsPaths(context.Background(), event.DeviceID)
	if err != nil {
		r.Logger.Warn("cannot resolve device log paths", "device_id", event.DeviceID, "error", err)
		return
	}

	metadata := map[string]any{"device_id": event.DeviceID}
	if known {
		metadata["booted_at"] = bootedAt.Format(time.RFC3339)
	}

	for _, path := range []string{stdout, stderr} {
		artifact, err := r.Store.StoreArtifact(path, LogArtifact, metadata)
		if err != nil {
			// Log files are best effort; a device that never wrote one is
			// not an error worth failing the run over.
			r.Logger.Debug("skipping device log", "device_id", event.DeviceID, "path", path, "error", err)
			continue
		}
		r.mu.Lock()
		r.captured = append(r.captured, artifact)
		r.mu.Unlock()
		r.Logger.Info("captured device log", "device_id", event.DeviceID, "artifact", artifact.URI)
	}
}
