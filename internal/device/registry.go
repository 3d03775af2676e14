package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Registry serializes allocation of devices drawn from the backend pool so
// that no two callers ever hold the same device id at the same time. It owns
// the id-to-owner mapping exclusively; drivers only call Acquire and Free.
type Registry struct {
	backend Backend
	logger  *slog.Logger

	mu     sync.Mutex
	owners map[string]string // device id -> owner handle
}

// NewRegistry creates a registry over the provided backend. If logger is nil
// the process default is used.
func NewRegistry(backend Backend, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		backend: backend,
		logger:  logger,
		owners:  map[string]string{},
	}
}

// Acquire returns the id of a device matching the query, owned exclusively by
// owner until Free is called with the same id. Existing free devices are
// preferred in backend-reported order; when none match, a new device is
// created. Enumeration and creation failures surface as allocation failure
// wrapping ErrNoDeviceAvailable, never as a panic, and leave no ownership
// dangling.
//
// The whole decision runs as one critical section per registry, so two
// concurrent acquirers can never both be awarded the same known-free id.
func (r *Registry) Acquire(ctx context.Context, query Query, owner string) (string, error) {
	if owner == "" {
		return "", fmt.Errorf("owner handle is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	matches, err := r.backend.DevicesWithProperties(ctx, query)
	if err != nil {
		return "", fmt.Errorf("%w: enumerate devices: %v", ErrNoDeviceAvailable, err)
	}

	for _, match := range matches {
		if match.ID == "" {
			continue
		}
		if _, held := r.owners[match.ID]; held {
			continue
		}
		r.owners[match.ID] = owner
		r.logger.Debug("acquired existing device", "device_id", match.ID, "owner", owner)
		return match.ID, nil
	}

	created, err := r.backend.CreateDeviceWithProperties(ctx, query)
	if err != nil {
		return "", fmt.Errorf("%w: create device: %v", ErrNoDeviceAvailable, err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("%w: backend created a device without an id", ErrNoDeviceAvailable)
	}

	r.owners[created.ID] = owner
	r.logger.Debug("acquired created device", "device_id", created.ID, "owner", owner)
	return created.ID, nil
}

// Free clears ownership of deviceID, making it eligible for acquisition
// again. Freeing an id that is not tracked is a no-op so duplicated cleanup
// paths stay harmless.
func (r *Registry) Free(deviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, held := r.owners[deviceID]; !held {
		return
	}
	delete(r.owners, deviceID)
	r.logger.Debug("freed device", "device_id", deviceID)
}

// Owner returns the owner handle currently holding deviceID, if any.
func (r *Registry) Owner(deviceID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, held := r.owners[deviceID]
	return owner, held
}
