// Package config loads and validates the run configuration describing which
// device to allocate and which app to drive on it. Validation happens before
// any device is allocated so a run that cannot possibly succeed fails
// immediately with an actionable message.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cochaviz/simfarm/internal/device"
	"github.com/cochaviz/simfarm/internal/platform"
)

// ConfigError reports a missing or invalid configuration field together with
// how to fix it.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// RunConfig describes one end-to-end run: the device to acquire and the app
// to install and launch on it.
type RunConfig struct {
	DeviceName string `yaml:"device_name"`
	Platform   string `yaml:"platform"`
	OSVersion  string `yaml:"os_version"`

	BinaryPath string `yaml:"binary_path"`
	// BundleID is optional; when empty it is derived from the binary's
	// Info.plist.
	BundleID   string   `yaml:"bundle_id"`
	LaunchArgs []string `yaml:"launch_args"`

	Permissions []string `yaml:"permissions"`

	ArtifactDir string `yaml:"artifact_dir"`
	SessionDir  string `yaml:"session_dir"`
}

// Load reads a RunConfig from a YAML file.
func Load(path string) (RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("read run configuration %q: %w", path, err)
	}

	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, fmt.Errorf("parse run configuration %q: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields without which a run cannot succeed. It returns
// the first problem found as a ConfigError.
func (c RunConfig) Validate() error {
	if strings.TrimSpace(c.DeviceName) == "" {
		return &ConfigError{
			Field:   "device_name",
			Message: "a device name is required to match or create a simulator (e.g. \"iPhone 15\")",
		}
	}
	if strings.TrimSpace(c.BinaryPath) == "" {
		return &ConfigError{
			Field:   "binary_path",
			Message: "the path to the built .app bundle is required; point it at your build product",
		}
	}
	if c.Platform != "" && platform.Normalize(c.Platform) == "" {
		return &ConfigError{
			Field:   "platform",
			Message: fmt.Sprintf("unknown platform %q; use one of ios, tvos, watchos, visionos", c.Platform),
		}
	}
	return nil
}

// Query translates the configuration into a device allocation query.
func (c RunConfig) Query() (device.Query, error) {
	query := device.Query{
		Name:      strings.TrimSpace(c.DeviceName),
		OSVersion: strings.TrimSpace(c.OSVersion),
	}
	if c.Platform != "" {
		p, err := platform.Parse(c.Platform)
		if err != nil {
			return device.Query{}, err
		}
		query.Platform = p
	}
	return query, nil
}
