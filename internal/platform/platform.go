package platform

import (
	"fmt"
	"sort"
	"strings"
)

// Platform identifies a simulated device family as accepted by the
// simulator runtime.
type Platform string

const (
	IOS      Platform = "iOS"
	TVOS     Platform = "tvOS"
	WatchOS  Platform = "watchOS"
	VisionOS Platform = "xrOS"
)

// Supported returns the full list of supported platforms.
func Supported() []Platform {
	return []Platform{
		IOS,
		TVOS,
		WatchOS,
		VisionOS,
	}
}

// IsValid reports whether p matches a supported platform value.
func (p Platform) IsValid() bool {
	switch p {
	case IOS, TVOS, WatchOS, VisionOS:
		return true
	default:
		return false
	}
}

// String returns the platform as string.
func (p Platform) String() string {
	return string(p)
}

// Parse returns the canonical Platform for the provided string or an error if
// unsupported.
func Parse(value string) (Platform, error) {
	if p := Normalize(value); p != "" {
		return p, nil
	}
	return "", fmt.Errorf("unsupported platform %q (supported: %s)", value, strings.Join(supportedStrings(), ", "))
}

// MustParse is like Parse but panics on error.
func MustParse(value string) Platform {
	p, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return p
}

// Normalize maps a possibly ambiguous string into a canonical Platform.
// Returns "" when the string cannot be normalized.
func Normalize(value string) Platform {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "ios", "iphoneos", "iphonesimulator":
		return IOS
	case "tvos", "appletvos", "appletvsimulator":
		return TVOS
	case "watchos", "watchsimulator":
		return WatchOS
	case "xros", "visionos", "xrsimulator":
		return VisionOS
	default:
		return ""
	}
}

// RuntimeIdentifier derives the CoreSimulator runtime identifier for the
// platform and OS version, e.g. "com.apple.CoreSimulator.SimRuntime.iOS-17-0".
func RuntimeIdentifier(p Platform, osVersion string) (string, error) {
	if !p.IsValid() {
		return "", fmt.Errorf("unsupported platform %q", string(p))
	}
	version := strings.TrimSpace(osVersion)
	if version == "" {
		return "", fmt.Errorf("os version is required to derive a runtime identifier")
	}
	return fmt.Sprintf("com.apple.CoreSimulator.SimRuntime.%s-%s", string(p), strings.ReplaceAll(version, ".", "-")), nil
}

func supportedStrings() []string {
	all := Supported()
	out := make([]string, 0, len(all))
	for _, p := range all {
		out = append(out, p.String())
	}
	sort.Strings(out)
	return out
}
