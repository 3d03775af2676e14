// Package simple wires the default simfarm composition: a simctl backend,
// one registry, one driver with a lifecycle event bus, the log-capture
// plugin, and a session worker. Commands stay thin by calling into here.
package simple

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cochaviz/simfarm/internal/appbundle"
	"github.com/cochaviz/simfarm/internal/artifacts"
	"github.com/cochaviz/simfarm/internal/config"
	"github.com/cochaviz/simfarm/internal/device"
	"github.com/cochaviz/simfarm/internal/events"
	"github.com/cochaviz/simfarm/internal/logging"
	localrepositories "github.com/cochaviz/simfarm/internal/repositories/local"
	"github.com/cochaviz/simfarm/internal/setup"
	"github.com/cochaviz/simfarm/internal/simctl"
	"github.com/cochaviz/simfarm/internal/worker"
)

var DefaultArtifactDir = setup.StorageDir + "artifacts"
var DefaultSessionDir = setup.StorageDir + "sessions"

// Run executes one end-to-end session for the provided configuration: the
// device is acquired and booted, the app installed and launched, and the
// session runs until ctx is cancelled. Device logs are captured into
// artifactDir on shutdown.
func Run(ctx context.Context, cfg config.RunConfig, artifactDir, sessionDir string, logger *slog.Logger) error {
	logger = logging.Ensure(logger).With("component", "configurations.simple")

	if err := cfg.Validate(); err != nil {
		return err
	}
	if artifactDir == "" {
		artifactDir = DefaultArtifactDir
	}
	if sessionDir == "" {
		sessionDir = DefaultSessionDir
	}

	bundleID := cfg.BundleID
	if bundleID == "" {
		var err error
		bundleID, err = appbundle.BundleIdentifier(cfg.BinaryPath)
		if err != nil {
			return err
		}
		logger.Debug("derived bundle identifier", "bundle_id", bundleID)
	}

	query, err := cfg.Query()
	if err != nil {
		return err
	}

	backend := simctl.NewClient(logger.With("backend", "simctl"))
	bus := events.NewBus()

	recorder := artifacts.NewLogRecorder(
		backend,
		&artifacts.LocalStore{BaseDir: artifactDir},
		logger.With("plugin", "log-recorder"),
	)
	recorder.Attach(bus)

	registry := device.NewRegistry(backend, logger.With("component", "registry"))
	driver := device.NewDriver(registry, backend, bus, logger.With("component", "driver"))

	sessionWorker := worker.NewWorker(
		driver,
		backend,
		&localrepositories.LocalSessionRepository{BaseDir: sessionDir},
		worker.Run{
			Query:       query,
			BinaryPath:  cfg.BinaryPath,
			BundleID:    bundleID,
			LaunchArgs:  cfg.LaunchArgs,
			Permissions: cfg.Permissions,
		},
		logger.With("component", "worker"),
	)

	return sessionWorker.Run(ctx)
}

// RunFromFile is Run with the configuration loaded from a YAML file. Paths
// in the file win over the provided directories.
func RunFromFile(ctx context.Context, configPath, artifactDir, sessionDir string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.ArtifactDir != "" {
		artifactDir = cfg.ArtifactDir
	}
	if cfg.SessionDir != "" {
		sessionDir = cfg.SessionDir
	}
	return Run(ctx, cfg, artifactDir, sessionDir, logger)
}

// ListDevices logs the devices the backend can currently offer for the
// query.
func ListDevices(ctx context.Context, query device.Query, logger *slog.Logger) error {
	logger = logging.Ensure(logger).With("component", "configurations.simple")

	backend := simctl.NewClient(logger.With("backend", "simctl"))
	descriptors, err := backend.DevicesWithProperties(ctx, query)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}

	if len(descriptors) == 0 {
		logger.Info("no devices match the query", "name", query.Name)
		return nil
	}
	for _, d := range descriptors {
		logger.Info("device",
			"id", d.ID,
			"name", d.Name,
			"platform", d.Platform,
			"os_version", d.OSVersion,
			"ever_booted", d.LastBootedAt != nil,
		)
	}
	return nil
}

// ListSessions logs the sessions still recorded as active.
func ListSessions(sessionDir string, logger *slog.Logger) error {
	logger = logging.Ensure(logger).With("component", "configurations.simple")
	if sessionDir == "" {
		sessionDir = DefaultSessionDir
	}

	repository := &localrepositories.LocalSessionRepository{BaseDir: sessionDir}
	active, err := repository.ListActive()
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	for _, session := range active {
		logger.Info("active session",
			"session_id", session.ID,
			"device_id", session.DeviceID,
			"bundle_id", session.BundleID,
			"started_at", session.StartTime,
		)
	}
	if len(active) == 0 {
		logger.Info("no active sessions")
	}
	return nil
}
