package device

import "context"

// Backend describes the contract device-control adapters must satisfy. The
// registry and driver only ever talk to devices through this boundary so
// orchestration code stays independent from simulator-runtime details.
//
// The backend is assumed safe for concurrent calls against different device
// ids; calls against the same id are serialized by the registry's exclusive
// allocation, not by the backend.
type Backend interface {
	// DevicesWithProperties enumerates the pool, restricted to devices
	// matching the query.
	DevicesWithProperties(ctx context.Context, query Query) ([]Descriptor, error)

	// CreateDeviceWithProperties provisions a new device instance for the
	// query and returns its descriptor.
	CreateDeviceWithProperties(ctx context.Context, query Query) (Descriptor, error)

	// Boot starts the device and reports whether this was a cold boot, the
	// first boot since creation.
	Boot(ctx context.Context, deviceID string) (coldBoot bool, err error)

	Install(ctx context.Context, deviceID, binaryPath string) error
	Uninstall(ctx context.Context, deviceID, bundleID string) error

	// Launch starts the app and returns its process id.
	Launch(ctx context.Context, deviceID, bundleID string, launchArgs []string) (pid int, err error)

	Terminate(ctx context.Context, deviceID, bundleID string) error
	SendToHome(ctx context.Context, deviceID string) error
	Shutdown(ctx context.Context, deviceID string) error

	SetLocation(ctx context.Context, deviceID string, latitude, longitude float64) error
	SetPermissions(ctx context.Context, deviceID, bundleID string, permissions []string) error

	// EraseContentAndSettings wipes the device. The device must be shut
	// down first.
	EraseContentAndSettings(ctx context.Context, deviceID string) error

	// LogsPaths returns the host paths holding the device's stdout and
	// stderr logs.
	LogsPaths(ctx context.Context, deviceID string) (stdout, stderr string, err error)
}
