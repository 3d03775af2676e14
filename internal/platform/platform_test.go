package platform

import (
	"strings"
	"testing"
)

func TestNormalizeKnownAliases(t *testing.T) {
	cases := map[string]Platform{
		"ios":               IOS,
		"iOS":               IOS,
		" iPhoneSimulator ": IOS,
		"appletvos":         TVOS,
		"watchOS":           WatchOS,
		"visionos":          VisionOS,
		"android":           "",
		"":                  "",
	}

	for input, want := range cases {
		if got := Normalize(input); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestParseRejectsUnknown(t *testing.T) {
	_, err := Parse("symbian")
	if err == nil {
		t.Fatal("expected error for unsupported platform")
	}
	if !strings.Contains(err.Error(), "symbian") {
		t.Fatalf("error should name the rejected value, got %q", err)
	}
}

func TestMustParse(t *testing.T) {
	if got := MustParse("appletvos"); got != TVOS {
		t.Fatalf("MustParse(%q) = %q, want %q", "appletvos", got, TVOS)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unsupported platform")
		}
	}()
	MustParse("palmos")
}

func TestRuntimeIdentifier(t *testing.T) {
	id, err := RuntimeIdentifier(IOS, "17.0")
	if err != nil {
		t.Fatalf("RuntimeIdentifier returned error: %v", err)
	}
	if id != "com.apple.CoreSimulator.SimRuntime.iOS-17-0" {
		t.Fatalf("unexpected runtime identifier %q", id)
	}

	if _, err := RuntimeIdentifier(IOS, ""); err == nil {
		t.Fatal("expected error for empty os version")
	}
	if _, err := RuntimeIdentifier(Platform("beos"), "1.0"); err == nil {
		t.Fatal("expected error for invalid platform")
	}
}
