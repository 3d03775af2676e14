package artifacts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "system.log")
	if err := os.WriteFile(source, []byte("boot ok\n"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	store := &LocalStore{BaseDir: filepath.Join(dir, "store")}
	artifact, err := store.StoreArtifact(source, LogArtifact, map[string]any{"device_id": "SIM-1"})
	if err != nil {
		t.Fatalf("store returned error: %v", err)
	}
	if artifact.ID == "" || artifact.Kind != LogArtifact {
		t.Fatalf("unexpected artifact: %#v", artifact)
	}
	if artifact.ContentType != "text/plain; charset=utf-8" {
		t.Fatalf("unexpected content type %q", artifact.ContentType)
	}

	path, err := PathFromURI(artifact.URI)
	if err != nil {
		t.Fatalf("PathFromURI returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read stored artifact: %v", err)
	}
	if string(data) != "boot ok\n" {
		t.Fatalf("stored content mismatch: %q", data)
	}

	if err := store.RemoveArtifact(artifact); err != nil {
		t.Fatalf("remove returned error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("artifact file should be gone after removal")
	}
}

func TestLocalStoreRequiresConfiguration(t *testing.T) {
	store := &LocalStore{}
	if _, err := store.StoreArtifact("/tmp/whatever", LogArtifact, nil); err == nil {
		t.Fatal("expected error for unconfigured store")
	}
}

func TestPathFromURIRejectsForeignSchemes(t *testing.T) {
	if _, err := PathFromURI("s3://bucket/key"); err == nil {
		t.Fatal("expected error for non-file URI")
	}
	path, err := PathFromURI("file:///var/simfarm/artifacts/a.log")
	if err != nil {
		t.Fatalf("PathFromURI returned error: %v", err)
	}
	if !strings.HasPrefix(path, "/var/simfarm") {
		t.Fatalf("unexpected path %q", path)
	}
}
