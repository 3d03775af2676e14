// Package appbundle inspects built .app bundles to extract the metadata a
// test run needs before any device is allocated.
package appbundle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"howett.net/plist"
)

type infoPlist struct {
	BundleIdentifier string `plist:"CFBundleIdentifier"`
	BundleName       string `plist:"CFBundleName"`
	BundleVersion    string `plist:"CFBundleShortVersionString"`
}

// Info is the subset of bundle metadata relevant to launching the app.
type Info struct {
	BundleIdentifier string
	Name             string
	Version          string
}

// BundleIdentifier reads the Info.plist inside the .app bundle at appPath and
// returns its CFBundleIdentifier. Errors are descriptive: a missing or
// malformed identifier is a common user-configuration mistake and must be
// diagnosable from the message alone.
func BundleIdentifier(appPath string) (string, error) {
	info, err := Read(appPath)
	if err != nil {
		return "", err
	}
	return info.BundleIdentifier, nil
}

// Read parses the bundle's Info.plist.
func Read(appPath string) (Info, error) {
	appPath = strings.TrimSpace(appPath)
	if appPath == "" {
		return Info{}, errors.New("app bundle path is empty; set the binary path in the device configuration")
	}

	stat, err := os.Stat(appPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Info{}, fmt.Errorf("app bundle %q does not exist; build the app first or fix the binary path", appPath)
		}
		return Info{}, fmt.Errorf("stat app bundle %q: %w", appPath, err)
	}
	if !stat.IsDir() {
		return Info{}, fmt.Errorf("app bundle %q is not a directory; the binary path must point at a built .app bundle", appPath)
	}

	plistPath := filepath.Join(appPath, "Info.plist")
	data, err := os.ReadFile(plistPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Info{}, fmt.Errorf("app bundle %q has no Info.plist; is this a complete build product?", appPath)
		}
		return Info{}, fmt.Errorf("read %q: %w", plistPath, err)
	}

	var parsed infoPlist
	if _, err := plist.Unmarshal(data, &parsed); err != nil {
		return Info{}, fmt.Errorf("parse %q: %w", plistPath, err)
	}

	identifier := strings.TrimSpace(parsed.BundleIdentifier)
	if identifier == "" {
		return Info{}, fmt.Errorf("Info.plist in %q has no CFBundleIdentifier; add one to the app target", appPath)
	}
	if strings.ContainsAny(identifier, " \t") {
		return Info{}, fmt.Errorf("CFBundleIdentifier %q in %q is malformed", identifier, appPath)
	}

	return Info{
		BundleIdentifier: identifier,
		Name:             parsed.BundleName,
		Version:          parsed.BundleVersion,
	}, nil
}
