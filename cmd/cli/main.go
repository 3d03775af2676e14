package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	simple "github.com/cochaviz/simfarm/internal/configurations"
	"github.com/cochaviz/simfarm/internal/device"
	"github.com/cochaviz/simfarm/internal/logging"
	"github.com/cochaviz/simfarm/internal/platform"
	"github.com/cochaviz/simfarm/internal/setup"
	"github.com/cochaviz/simfarm/internal/simctl"
)

const defaultLogLevel = "warning"

func main() {
	var levelVar slog.LevelVar
	levelVar.Set(slog.LevelInfo)

	logger := logging.NewCLI(os.Stderr, &levelVar)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(logger, &levelVar)
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("command interrupted", "error", err)
			os.Exit(130)
		}
		logger.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func newRootCommand(logger *slog.Logger, levelVar *slog.LevelVar) *cobra.Command {
	setup.SetLogger(logger.With("component", "setup"))

	logLevel := defaultLogLevel

	root := &cobra.Command{
		Use:           "simfarm",
		Short:         "CLI for 'simfarm': exclusive simulator allocation for end-to-end test runs",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "Set log verbosity (debug, info, warning, error)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		if levelVar != nil {
			levelVar.Set(level)
		}
		return nil
	}

	root.AddCommand(
		newDevicesCommand(logger),
		newRunCommand(logger),
		newSessionsCommand(logger),
		newSetupCommand(logger),
	)
	return root
}

func newDevicesCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Inspect and manage the simulator pool",
	}

	cmd.AddCommand(
		newDevicesListCommand(logger),
		newDevicesCreateCommand(logger),
		newDevicesBootCommand(logger),
		newDevicesShutdownCommand(logger),
		newDevicesEraseCommand(logger),
	)
	return cmd
}

func newDevicesListCommand(logger *slog.Logger) *cobra.Command {
	var (
		name         string
		platformName string
		osVersion    string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List devices the backend can currently offer",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := device.Query{
				Name:      strings.TrimSpace(name),
				OSVersion: strings.TrimSpace(osVersion),
			}
			if platformName != "" {
				p, err := platform.Parse(platformName)
				if err != nil {
					return err
				}
				query.Platform = p
			}
			return simple.ListDevices(cmd.Context(), query, logger.With("command", "devices.list"))
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Filter by device display name")
	cmd.Flags().StringVar(&platformName, "platform", "", "Filter by platform (ios, tvos, watchos, visionos)")
	cmd.Flags().StringVar(&osVersion, "os", "", "Filter by OS version")

	return cmd
}

func newDevicesCreateCommand(logger *slog.Logger) *cobra.Command {
	var (
		platformName string
		osVersion    string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Args:  cobra.ExactArgs(1),
		Short: "Create a new simulator in the pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := device.Query{
				Name:      strings.TrimSpace(args[0]),
				OSVersion: strings.TrimSpace(osVersion),
			}
			if platformName != "" {
				p, err := platform.Parse(platformName)
				if err != nil {
					return err
				}
				query.Platform = p
			}

			cmdLogger := logger.With("command", "devices.create", "name", query.Name)
			client := simctl.NewClient(cmdLogger)
			descriptor, err := client.CreateDeviceWithProperties(cmd.Context(), query)
			if err != nil {
				return err
			}
			cmdLogger.Info("device created",
				"device_id", descriptor.ID,
				"platform", descriptor.Platform,
				"os_version", descriptor.OSVersion,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&platformName, "platform", "", "Platform for the new device (ios, tvos, watchos, visionos)")
	cmd.Flags().StringVar(&osVersion, "os", "", "OS version for the new device, e.g. 17.0")

	return cmd
}

func newDevicesBootCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "boot <udid>",
		Args:  cobra.ExactArgs(1),
		Short: "Boot a device directly, outside any allocation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdLogger := logger.With("command", "devices.boot", "device_id", args[0])
			client := simctl.NewClient(cmdLogger)
			coldBoot, err := client.Boot(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cmdLogger.Info("device booted", "cold_boot", coldBoot)
			return nil
		},
	}
}

func newDevicesShutdownCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "shutdown <udid>",
		Args:  cobra.ExactArgs(1),
		Short: "Shut a device down directly, outside any allocation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdLogger := logger.With("command", "devices.shutdown", "device_id", args[0])
			client := simctl.NewClient(cmdLogger)
			if err := client.Shutdown(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmdLogger.Info("device shut down")
			return nil
		},
	}
}

func newDevicesEraseCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "erase <udid>",
		Args:  cobra.ExactArgs(1),
		Short: "Erase a shut-down device back to factory state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdLogger := logger.With("command", "devices.erase", "device_id", args[0])
			client := simctl.NewClient(cmdLogger)
			if err := client.EraseContentAndSettings(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmdLogger.Info("device erased")
			return nil
		},
	}
}

func newRunCommand(logger *slog.Logger) *cobra.Command {
	var (
		artifactDir string
		sessionDir  string
	)

	cmd := &cobra.Command{
		Use:   "run <config.yaml>",
		Args:  cobra.ExactArgs(1),
		Short: "Acquire a device and run the configured app on it until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := strings.TrimSpace(args[0])
			if configPath == "" {
				return fmt.Errorf("a run configuration file is required")
			}

			cmdLogger := logger.With("command", "run", "config", configPath)
			cmdLogger.Info("starting session worker; press Ctrl+C to stop")

			if err := simple.RunFromFile(cmd.Context(), configPath, artifactDir, sessionDir, cmdLogger); err != nil {
				cmdLogger.Error("session worker failed", "error", err)
				return err
			}

			cmdLogger.Info("session worker completed")
			return nil
		},
	}

	cmd.Flags().StringVar(&artifactDir, "artifact-dir", simple.DefaultArtifactDir, "Directory to store captured artifacts")
	cmd.Flags().StringVar(&sessionDir, "session-dir", simple.DefaultSessionDir, "Directory to store session records")

	return cmd
}

func newSessionsCommand(logger *slog.Logger) *cobra.Command {
	var sessionDir string

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List sessions still recorded as active",
		RunE: func(cmd *cobra.Command, args []string) error {
			return simple.ListSessions(sessionDir, logger.With("command", "sessions"))
		},
	}

	cmd.Flags().StringVar(&sessionDir, "session-dir", simple.DefaultSessionDir, "Directory holding session records")

	return cmd
}

func newSetupCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Verify or clear the on-disk configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "verify",
			Short: "Check that the expected configuration files exist",
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := setup.Verify(); err != nil {
					logger.Info("place a run.yaml under the config directory to initialize the farm")
					return err
				}
				logger.Info("setup verification succeeded")
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove the configuration files",
			RunE: func(cmd *cobra.Command, args []string) error {
				return setup.ClearConfig()
			},
		},
	)
	return cmd
}
