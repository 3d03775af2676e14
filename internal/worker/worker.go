// Package worker drives one complete device session: acquire, install,
// launch, wait, and tear down. Only a single worker ever drives a particular
// device; the registry's exclusive allocation makes that safe by
// construction.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cochaviz/simfarm/internal/device"
)

// LifecycleDriver is the subset of driver operations a worker needs.
type LifecycleDriver interface {
	AcquireFreeDevice(ctx context.Context, query device.Query) (string, error)
	InstallApp(ctx context.Context, deviceID, binaryPath string) error
	LaunchApp(ctx context.Context, deviceID, bundleID string, launchArgs []string) (int, error)
	Cleanup(ctx context.Context, deviceID, bundleID string) error
}

// SessionRepository persists session records; may be nil to disable
// persistence.
type SessionRepository interface {
	Save(session device.Session) error
}

// Run describes the session a worker should drive.
type Run struct {
	Query       device.Query
	BinaryPath  string
	BundleID    string
	LaunchArgs  []string
	Permissions []string
}

// Worker executes one run against one exclusively held device.
type Worker struct {
	driver   LifecycleDriver
	backend  device.Backend
	sessions SessionRepository
	run      Run
	logger   *slog.Logger
}

// NewWorker creates a worker for the run. backend is only used for
// permission grants and may be nil when the run requests none; sessions may
// be nil.
func NewWorker(driver LifecycleDriver, backend device.Backend, sessions SessionRepository, run Run, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		driver:   driver,
		backend:  backend,
		sessions: sessions,
		run:      run,
		logger:   logger,
	}
}

// Run drives the session until the context is cancelled. The device is
// always cleaned up, whatever happened earlier; cleanup errors are joined
// onto the run's error.
func (w *Worker) Run(ctx context.Context) (err error) {
	if w.driver == nil {
		return fmt.Errorf("driver not initialized")
	}

	deviceID, err := w.driver.AcquireFreeDevice(ctx, w.run.Query)
	if err != nil {
		return err
	}

	defer func() {
		// Cleanup must run even when ctx is already cancelled.
		if cleanupErr := w.driver.Cleanup(context.WithoutCancel(ctx), deviceID, w.run.BundleID); cleanupErr != nil {
			err = errors.Join(err, fmt.Errorf("cleanup device: %w", cleanupErr))
		}
	}()

	session := device.Session{
		ID:        uuid.New().String(),
		DeviceID:  deviceID,
		BundleID:  w.run.BundleID,
		StartTime: time.Now().UTC(),
		State:     device.StateBooted,
	}
	w.saveSession(session)
	defer func() {
		session.EndTime = time.Now().UTC()
		session.State = device.StateUnallocated
		w.saveSession(session)
	}()

	if err := w.driver.InstallApp(ctx, deviceID, w.run.BinaryPath); err != nil {
		return err
	}

	if len(w.run.Permissions) > 0 {
		if w.backend == nil {
			return fmt.Errorf("permissions requested but no backend configured")
		}
		if err := w.backend.SetPermissions(ctx, deviceID, w.run.BundleID, w.run.Permissions); err != nil {
			return fmt.Errorf("grant permissions: %w", err)
		}
	}

	pid, err := w.driver.LaunchApp(ctx, deviceID, w.run.BundleID, w.run.LaunchArgs)
	if err != nil {
		return err
	}
	session.State = device.StateRunning
	session.Metadata = map[string]any{"pid": pid}
	w.saveSession(session)

	w.logger.Info("session running", "session_id", session.ID, "device_id", deviceID, "pid", pid)

	// Wait until the caller ends the session.
	<-ctx.Done()
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

func (w *Worker) saveSession(session device.Session) {
	if w.sessions == nil {
		return
	}
	if err := w.sessions.Save(session); err != nil {
		w.logger.Warn("cannot persist session record", "session_id", session.ID, "error", err)
	}
}
