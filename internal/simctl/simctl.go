package simctl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cochaviz/simfarm/internal/device"
	"github.com/cochaviz/simfarm/internal/platform"
)

const springboardBundleID = "com.apple.springboard"

// runner executes a simctl invocation and returns its combined output.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Client is the exec façade over `xcrun simctl` implementing the device
// backend contract. It holds no per-device state; concurrent calls against
// different device ids are safe.
type Client struct {
	// XcrunPath overrides the xcrun binary, mainly for tests.
	XcrunPath string
	Logger    *slog.Logger

	run runner
}

var _ device.Backend = &Client{}

// NewClient creates a simctl client using xcrun from PATH.
func NewClient(logger *slog.Logger) *Client {
	return &Client{Logger: logger}
}

func (c *Client) logger() *slog.Logger {
	if c != nil && c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Client) exec(ctx context.Context, args ...string) ([]byte, error) {
	run := c.run
	if run == nil {
		run = runXcrun
	}
	bin := c.XcrunPath
	if bin == "" {
		bin = "xcrun"
	}

	c.logger().Debug("running simctl", "args", strings.Join(args, " "))
	return run(ctx, bin, append([]string{"simctl"}, args...)...)
}

func runXcrun(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("%s %s: %w (output: %s)", name, strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return output, nil
}

// listPayload mirrors the `simctl list -j devices` JSON shape: devices keyed
// by their CoreSimulator runtime identifier.
type listPayload struct {
	Devices map[string][]listedDevice `json:"devices"`
}

type listedDevice struct {
	UDID         string     `json:"udid"`
	Name         string     `json:"name"`
	State        string     `json:"state"`
	IsAvailable  bool       `json:"isAvailable"`
	LastBootedAt *time.Time `json:"lastBootedAt"`
}

// DevicesWithProperties enumerates available simulators matching the query.
// The simctl-native udid is exposed uniformly as the descriptor ID.
func (c *Client) DevicesWithProperties(ctx context.Context, query device.Query) ([]device.Descriptor, error) {
	output, err := c.exec(ctx, "list", "-j", "devices", "available")
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	var payload listPayload
	if err := json.Unmarshal(output, &payload); err != nil {
		return nil, fmt.Errorf("parse device list: %w", err)
	}

	var out []device.Descriptor
	for runtimeID, devices := range payload.Devices {
		p, osVersion, ok := parseRuntimeIdentifier(runtimeID)
		if !ok {
			continue
		}
		for _, d := range devices {
			if !d.IsAvailable || d.UDID == "" {
				continue
			}
			descriptor := device.Descriptor{
				ID:           d.UDID,
				Name:         d.Name,
				Platform:     p,
				OSVersion:    osVersion,
				LastBootedAt: d.LastBootedAt,
			}
			if query.Matches(descriptor) {
				out = append(out, descriptor)
			}
		}
	}
	return out, nil
}

// CreateDeviceWithProperties creates a simulator for the query. The device
// type and runtime identifiers are derived from the query's name, platform,
// and OS version.
func (c *Client) CreateDeviceWithProperties(ctx context.Context, query device.Query) (device.Descriptor, error) {
	if query.Name == "" {
		return device.Descriptor{}, fmt.Errorf("create device: a device name is required")
	}

	p := query.Platform
	if p == "" {
		p = platform.IOS
	}
	runtimeID, err := platform.RuntimeIdentifier(p, query.OSVersion)
	if err != nil {
		return device.Descriptor{}, fmt.Errorf("create device: %w", err)
	}

	output, err := c.exec(ctx, "create", query.Name, deviceTypeIdentifier(query.Name), runtimeID)
	if err != nil {
		return device.Descriptor{}, fmt.Errorf("create device: %w", err)
	}

	udid := strings.TrimSpace(string(output))
	if udid == "" {
		return device.Descriptor{}, fmt.Errorf("create device: simctl returned no udid")
	}

	c.logger().Info("created simulator", "udid", udid, "name", query.Name, "runtime", runtimeID)
	return device.Descriptor{
		ID:        udid,
		Name:      query.Name,
		Platform:  p,
		OSVersion: query.OSVersion,
	}, nil
}

// Boot boots the simulator. A device that was never booted since creation
// (no lastBootedAt in the pool listing) reports a cold boot; booting an
// already-booted device is a warm no-op.
func (c *Client) Boot(ctx context.Context, deviceID string) (bool, error) {
	coldBoot := true
	if descriptor, err := c.lookup(ctx, deviceID); err == nil {
		coldBoot = descriptor.LastBootedAt == nil
	}

	if output, err := c.exec(ctx, "boot", deviceID); err != nil {
		if !alreadyInState(output, "Booted") {
			return false, err
		}
		coldBoot = false
	}
	return coldBoot, nil
}

func (c *Client) Install(ctx context.Context, deviceID, binaryPath string) error {
	_, err := c.exec(ctx, "install", deviceID, binaryPath)
	return err
}

func (c *Client) Uninstall(ctx context.Context, deviceID, bundleID string) error {
	_, err := c.exec(ctx, "uninstall", deviceID, bundleID)
	return err
}

// Launch starts the bundle and parses the pid from simctl's
// "<bundle-id>: <pid>" output line.
func (c *Client) Launch(ctx context.Context, deviceID, bundleID string, launchArgs []string) (int, error) {
	args := append([]string{"launch", deviceID, bundleID}, launchArgs...)
	output, err := c.exec(ctx, args...)
	if err != nil {
		return 0, err
	}
	return parseLaunchPid(output, bundleID)
}

func (c *Client) Terminate(ctx context.Context, deviceID, bundleID string) error {
	_, err := c.exec(ctx, "terminate", deviceID, bundleID)
	return err
}

// SendToHome backgrounds the foreground app by bringing SpringBoard forward.
func (c *Client) SendToHome(ctx context.Context, deviceID string) error {
	_, err := c.exec(ctx, "launch", deviceID, springboardBundleID)
	return err
}

// Shutdown powers the simulator off. An already-shut-down device is treated
// as success so duplicated teardown paths stay harmless.
func (c *Client) Shutdown(ctx context.Context, deviceID string) error {
	output, err := c.exec(ctx, "shutdown", deviceID)
	if err != nil && !alreadyInState(output, "Shutdown") {
		return err
	}
	return nil
}

func (c *Client) SetLocation(ctx context.Context, deviceID string, latitude, longitude float64) error {
	coordinate := strconv.FormatFloat(latitude, 'f', -1, 64) + "," + strconv.FormatFloat(longitude, 'f', -1, 64)
	_, err := c.exec(ctx, "location", deviceID, "set", coordinate)
	return err
}

// SetPermissions grants each listed privacy service to the bundle.
func (c *Client) SetPermissions(ctx context.Context, deviceID, bundleID string, permissions []string) error {
	for _, service := range permissions {
		if _, err := c.exec(ctx, "privacy", deviceID, "grant", service, bundleID); err != nil {
			return fmt.Errorf("grant %s: %w", service, err)
		}
	}
	return nil
}

// EraseContentAndSettings wipes the simulator; it must be shut down first.
func (c *Client) EraseContentAndSettings(ctx context.Context, deviceID string) error {
	_, err := c.exec(ctx, "erase", deviceID)
	return err
}

// LogsPaths returns the host-side CoreSimulator log locations for the device.
func (c *Client) LogsPaths(_ context.Context, deviceID string) (string, string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("resolve home directory: %w", err)
	}
	base := filepath.Join(home, "Library", "Logs", "CoreSimulator", deviceID)
	return filepath.Join(base, "stdout.log"), filepath.Join(base, "stderr.log"), nil
}

func (c *Client) lookup(ctx context.Context, deviceID string) (device.Descriptor, error) {
	descriptors, err := c.DevicesWithProperties(ctx, device.Query{})
	if err != nil {
		return device.Descriptor{}, err
	}
	for _, d := range descriptors {
		if d.ID == deviceID {
			return d, nil
		}
	}
	return device.Descriptor{}, fmt.Errorf("device %q not found in pool", deviceID)
}

// alreadyInState detects simctl's "Unable to ... current state: <state>"
// complaint for transitions that already happened.
func alreadyInState(output []byte, state string) bool {
	return strings.Contains(string(output), "current state: "+state)
}

func parseLaunchPid(output []byte, bundleID string) (int, error) {
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		rest, found := strings.CutPrefix(line, bundleID+":")
		if !found {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil {
			return 0, fmt.Errorf("parse pid from launch output %q: %w", line, err)
		}
		return pid, nil
	}
	return 0, fmt.Errorf("launch output did not contain a pid for %s: %q", bundleID, strings.TrimSpace(string(output)))
}

// parseRuntimeIdentifier splits a CoreSimulator runtime identifier like
// "com.apple.CoreSimulator.SimRuntime.iOS-17-0" into platform and version.
func parseRuntimeIdentifier(runtimeID string) (platform.Platform, string, bool) {
	const prefix = "com.apple.CoreSimulator.SimRuntime."
	rest, found := strings.CutPrefix(runtimeID, prefix)
	if !found {
		return "", "", false
	}

	name, version, found := strings.Cut(rest, "-")
	if !found {
		return "", "", false
	}
	p := platform.Normalize(name)
	if p == "" {
		return "", "", false
	}
	return p, strings.ReplaceAll(version, "-", "."), true
}

// deviceTypeIdentifier derives the CoreSimulator device type identifier from
// a friendly device name, e.g. "iPhone 15 Pro" ->
// "com.apple.CoreSimulator.SimDeviceType.iPhone-15-Pro".
func deviceTypeIdentifier(name string) string {
	return "com.apple.CoreSimulator.SimDeviceType." + strings.ReplaceAll(strings.TrimSpace(name), " ", "-")
}
