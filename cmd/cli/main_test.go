package main

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) error {
	t.Helper()

	var levelVar slog.LevelVar
	root := newRootCommand(slog.New(slog.NewTextHandler(io.Discard, nil)), &levelVar)
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.ExecuteContext(context.Background())
}

func TestDevicesCommandRegistersPoolVerbs(t *testing.T) {
	devices := newDevicesCommand(slog.New(slog.NewTextHandler(io.Discard, nil)))

	registered := map[string]bool{}
	for _, sub := range devices.Commands() {
		registered[sub.Name()] = true
	}
	for _, verb := range []string{"list", "create", "boot", "shutdown", "erase"} {
		if !registered[verb] {
			t.Errorf("devices command is missing the %q subcommand", verb)
		}
	}
}

func TestDevicesCreateRequiresName(t *testing.T) {
	if err := runCLI(t, "devices", "create"); err == nil {
		t.Fatal("expected error when no device name is given")
	}
}

func TestDevicesCreateRejectsUnknownPlatform(t *testing.T) {
	err := runCLI(t, "devices", "create", "iPhone 15", "--platform", "symbian")
	if err == nil {
		t.Fatal("expected error for unsupported platform")
	}
	if !strings.Contains(err.Error(), "symbian") {
		t.Fatalf("error should name the rejected platform, got %q", err)
	}
}

func TestDevicesCreateRequiresOSVersion(t *testing.T) {
	err := runCLI(t, "devices", "create", "iPhone 15", "--platform", "ios")
	if err == nil {
		t.Fatal("expected error when no os version is given")
	}
	if !strings.Contains(err.Error(), "os version") {
		t.Fatalf("error should mention the missing os version, got %q", err)
	}
}
