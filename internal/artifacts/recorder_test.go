package artifacts

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/cochaviz/simfarm/internal/device"
	"github.com/cochaviz/simfarm/internal/events"
)

// logsOnlyBackend implements just the log-path lookup; the recorder never
// calls anything else.
type logsOnlyBackend struct {
	device.Backend
	stdout string
	stderr string
}

func (b *logsOnlyBackend) LogsPaths(_ context.Context, _ string) (string, string, error) {
	return b.stdout, b.stderr, nil
}

func TestLogRecorderCapturesOnShutdown(t *testing.T) {
	dir := t.TempDir()
	stdout := filepath.Join(dir, "stdout.log")
	if err := os.WriteFile(stdout, []byte("app said hi\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	backend := &logsOnlyBackend{stdout: stdout, stderr: filepath.Join(dir, "missing-stderr.log")}
	store := &LocalStore{BaseDir: filepath.Join(dir, "store")}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	recorder := NewLogRecorder(backend, store, logger)
	bus := events.NewBus()
	recorder.Attach(bus)

	bus.Publish(events.Event{Kind: events.BootDevice, DeviceID: "SIM-1"})
	bus.Publish(events.Event{Kind: events.ShutdownDevice, DeviceID: "SIM-1"})

	captured := recorder.Captured()
	if len(captured) != 1 {
		t.Fatalf("expected 1 captured artifact (stderr is missing on disk), got %d", len(captured))
	}
	if captured[0].Kind != LogArtifact {
		t.Fatalf("unexpected artifact kind %q", captured[0].Kind)
	}
	if captured[0].Metadata["device_id"] != "SIM-1" {
		t.Fatalf("artifact should carry the device id, got %#v", captured[0].Metadata)
	}
	if _, ok := captured[0].Metadata["booted_at"]; !ok {
		t.Fatal("artifact should carry the boot time observed from bootDevice")
	}
}

func TestLogRecorderIgnoresUnknownDevices(t *testing.T) {
	dir := t.TempDir()
	backend := &logsOnlyBackend{
		stdout: filepath.Join(dir, "no-stdout.log"),
		stderr: filepath.Join(dir, "no-stderr.log"),
	}
	store := &LocalStore{BaseDir: filepath.Join(dir, "store")}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	recorder := NewLogRecorder(backend, store, logger)
	bus := events.NewBus()
	recorder.Attach(bus)

	// Shutdown without a preceding boot; nothing exists to capture.
	bus.Publish(events.Event{Kind: events.ShutdownDevice, DeviceID: "SIM-9"})

	if captured := recorder.Captured(); len(captured) != 0 {
		t.Fatalf("expected no artifacts, got %d", len(captured))
	}
}
