package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/cochaviz/simfarm/internal/events"
)

// Driver sequences the lifecycle operations of acquired devices and emits
// lifecycle events at defined transition points. Each acquired device id is
// driven by exactly one goroutine at a time; that is safe by construction
// because the registry never awards the same id to two owners. Distinct ids
// may be driven fully in parallel.
//
// Events are published only after the corresponding backend call has
// succeeded, with one deliberate exception: beforeLaunchApp precedes the
// backend launch so capture plugins can start recording before the app's
// first frame.
type Driver struct {
	registry  *Registry
	backend   Backend
	publisher events.Publisher
	logger    *slog.Logger
	owner     string

	mu     sync.Mutex
	states map[string]State
}

// NewDriver creates a driver over the registry's backend. The publisher
// receives lifecycle events; pass a bus from internal/events. A nil logger
// falls back to the process default.
func NewDriver(registry *Registry, backend Backend, publisher events.Publisher, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		registry:  registry,
		backend:   backend,
		publisher: publisher,
		logger:    logger,
		owner:     uuid.New().String(),
		states:    map[string]State{},
	}
}

// Owner returns the handle under which this driver acquires devices.
func (d *Driver) Owner() string {
	return d.owner
}

// State returns the driver's in-memory lifecycle state for deviceID.
// StateUnallocated is returned for ids this driver does not hold.
func (d *Driver) State(deviceID string) State {
	d.mu.Lock()
	defer d.mu.Unlock()

	if state, ok := d.states[deviceID]; ok {
		return state
	}
	return StateUnallocated
}

// AcquireFreeDevice acquires a device matching the query and boots it. The id
// is only ever returned to the caller with the device in the booted state.
// Allocation failure is logged and returned wrapping ErrNoDeviceAvailable; it
// never panics.
func (d *Driver) AcquireFreeDevice(ctx context.Context, query Query) (string, error) {
	deviceID, err := d.registry.Acquire(ctx, query, d.owner)
	if err != nil {
		d.logger.Warn("device allocation failed", "name", query.Name, "error", err)
		return "", err
	}

	d.setState(deviceID, StateAllocatedCold)

	if err := d.Boot(ctx, deviceID); err != nil {
		// Never hand back an id we could not boot.
		d.registry.Free(deviceID)
		d.dropState(deviceID)
		return "", err
	}
	return deviceID, nil
}

// Boot boots the device and emits bootDevice once the backend confirms it is
// up. Observers may assume the device is actually booted when they receive
// the event.
func (d *Driver) Boot(ctx context.Context, deviceID string) error {
	if err := d.require(deviceID, "boot", StateAllocatedCold); err != nil {
		return err
	}

	coldBoot, err := d.backend.Boot(ctx, deviceID)
	if err != nil {
		return backendErr(deviceID, "boot", err)
	}

	d.setState(deviceID, StateBooted)
	d.publish(events.Event{
		Kind:     events.BootDevice,
		DeviceID: deviceID,
		Payload:  map[string]any{"coldBoot": coldBoot},
	})
	d.logger.Info("device booted", "device_id", deviceID, "cold_boot", coldBoot)
	return nil
}

// InstallApp installs the binary at binaryPath. Valid once the device is
// booted and repeatable; deduplication of identical installs is the
// backend's concern.
func (d *Driver) InstallApp(ctx context.Context, deviceID, binaryPath string) error {
	if err := d.require(deviceID, "installApp", StateBooted, StateAppInstalled, StateRunning); err != nil {
		return err
	}

	if err := d.backend.Install(ctx, deviceID, binaryPath); err != nil {
		return backendErr(deviceID, "installApp", err)
	}

	if d.State(deviceID) == StateBooted {
		d.setState(deviceID, StateAppInstalled)
	}
	d.logger.Info("app installed", "device_id", deviceID, "binary_path", binaryPath)
	return nil
}

// LaunchApp launches the bundle and returns its pid. beforeLaunchApp is
// emitted before the backend call and launchApp after it, both carrying the
// same device and bundle ids, in that order.
func (d *Driver) LaunchApp(ctx context.Context, deviceID, bundleID string, launchArgs []string) (int, error) {
	if err := d.require(deviceID, "launchApp", StateBooted, StateAppInstalled); err != nil {
		return 0, err
	}

	d.publish(events.Event{
		Kind:     events.BeforeLaunchApp,
		DeviceID: deviceID,
		Payload:  map[string]any{"bundleId": bundleID, "launchArgs": launchArgs},
	})

	pid, err := d.backend.Launch(ctx, deviceID, bundleID, launchArgs)
	if err != nil {
		return 0, backendErr(deviceID, "launchApp", err)
	}

	d.setState(deviceID, StateRunning)
	d.publish(events.Event{
		Kind:     events.LaunchApp,
		DeviceID: deviceID,
		Payload:  map[string]any{"bundleId": bundleID, "launchArgs": launchArgs, "pid": pid},
	})
	d.logger.Info("app launched", "device_id", deviceID, "bundle_id", bundleID, "pid", pid)
	return pid, nil
}

// Terminate stops the running bundle, returning the device to the booted
// state. A backend failure (process already gone) is surfaced, not
// swallowed.
func (d *Driver) Terminate(ctx context.Context, deviceID, bundleID string) error {
	if err := d.require(deviceID, "terminate", StateRunning); err != nil {
		return err
	}

	if err := d.backend.Terminate(ctx, deviceID, bundleID); err != nil {
		return backendErr(deviceID, "terminate", err)
	}

	d.setState(deviceID, StateBooted)
	d.logger.Info("app terminated", "device_id", deviceID, "bundle_id", bundleID)
	return nil
}

// SendToHome backgrounds the running app without changing lifecycle state.
func (d *Driver) SendToHome(ctx context.Context, deviceID string) error {
	if err := d.require(deviceID, "sendToHome", StateRunning); err != nil {
		return err
	}
	return backendErr(deviceID, "sendToHome", d.backend.SendToHome(ctx, deviceID))
}

// Shutdown powers the device off and emits shutdownDevice only after the
// backend confirms completion. On failure the device stays in the
// shutting-down state; only reset or cleanup are valid from there.
func (d *Driver) Shutdown(ctx context.Context, deviceID string) error {
	if err := d.require(deviceID, "shutdown", StateBooted, StateAppInstalled, StateRunning); err != nil {
		return err
	}

	d.setState(deviceID, StateShuttingDown)

	if err := d.backend.Shutdown(ctx, deviceID); err != nil {
		return backendErr(deviceID, "shutdown", err)
	}

	d.setState(deviceID, StateAllocatedCold)
	d.publish(events.Event{
		Kind:     events.ShutdownDevice,
		DeviceID: deviceID,
	})
	d.logger.Info("device shut down", "device_id", deviceID)
	return nil
}

// ResetContentAndSettings wipes the device back to a pristine booted state:
// shutdown if needed, backend-level erase, re-boot. On partial failure the
// device is reported unusable rather than silently handed back.
func (d *Driver) ResetContentAndSettings(ctx context.Context, deviceID string) error {
	switch d.State(deviceID) {
	case StateUnallocated:
		return &PreconditionError{DeviceID: deviceID, Op: "resetContentAndSettings", State: StateUnallocated}
	case StateBooted, StateAppInstalled, StateRunning:
		if err := d.Shutdown(ctx, deviceID); err != nil {
			return fmt.Errorf("reset device %s: %w", deviceID, err)
		}
	case StateAllocatedCold, StateShuttingDown:
		// Already down, or wedged mid-shutdown; the erase decides its fate.
	}

	if err := d.backend.EraseContentAndSettings(ctx, deviceID); err != nil {
		d.setState(deviceID, StateShuttingDown)
		return fmt.Errorf("reset device %s: erase failed, device is not usable: %w", deviceID, err)
	}

	d.setState(deviceID, StateAllocatedCold)
	if err := d.Boot(ctx, deviceID); err != nil {
		return fmt.Errorf("reset device %s: re-boot failed, device is not usable: %w", deviceID, err)
	}
	return nil
}

// Cleanup releases the device back to the pool and then tears it down on a
// best-effort basis. The free step always runs first and cannot fail, so one
// wedged device never starves the pool; teardown errors are joined into the
// returned error.
func (d *Driver) Cleanup(ctx context.Context, deviceID, bundleID string) error {
	state := d.State(deviceID)

	d.registry.Free(deviceID)
	defer d.dropState(deviceID)

	var errs []error
	if state == StateRunning && bundleID != "" {
		if err := d.backend.Terminate(ctx, deviceID, bundleID); err != nil {
			errs = append(errs, backendErr(deviceID, "terminate", err))
		}
	}

	switch state {
	case StateBooted, StateAppInstalled, StateRunning, StateShuttingDown:
		if err := d.backend.Shutdown(ctx, deviceID); err != nil {
			errs = append(errs, backendErr(deviceID, "shutdown", err))
		} else {
			d.publish(events.Event{
				Kind:     events.ShutdownDevice,
				DeviceID: deviceID,
			})
		}
	}

	d.logger.Info("device cleaned up", "device_id", deviceID, "teardown_errors", len(errs))
	return errors.Join(errs...)
}

func (d *Driver) publish(event events.Event) {
	if d.publisher == nil {
		return
	}
	d.publisher.Publish(event)
}

func (d *Driver) require(deviceID, op string, allowed ...State) error {
	current := d.State(deviceID)
	for _, state := range allowed {
		if current == state {
			return nil
		}
	}
	return &PreconditionError{DeviceID: deviceID, Op: op, State: current}
}

func (d *Driver) setState(deviceID string, state State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.states[deviceID] = state
}

func (d *Driver) dropState(deviceID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.states, deviceID)
}
