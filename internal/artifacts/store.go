package artifacts

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store persists captured artifacts.
type Store interface {
	StoreArtifact(sourcePath string, kind Kind, metadata map[string]any) (Artifact, error)
	RemoveArtifact(artifact Artifact) error
	Clear() error
}

// LocalStore copies artifacts into a directory on the local filesystem and
// addresses them with file:// URIs.
type LocalStore struct {
	BaseDir string
}

var _ Store = &LocalStore{}

// StoreArtifact copies the file at sourcePath into the store.
func (s *LocalStore) StoreArtifact(sourcePath string, kind Kind, metadata map[string]any) (Artifact, error) {
	if s.BaseDir == "" {
		return Artifact{}, errors.New("artifact store base directory is not configured")
	}
	if sourcePath == "" {
		return Artifact{}, errors.New("artifact source path is empty")
	}

	source, err := os.Open(sourcePath)
	if err != nil {
		return Artifact{}, fmt.Errorf("open artifact source %q: %w", sourcePath, err)
	}
	defer source.Close()

	id := uuid.New().String()
	targetDir := filepath.Join(s.BaseDir, string(kind))
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("create artifact directory %q: %w", targetDir, err)
	}

	targetPath := filepath.Join(targetDir, id+"-"+filepath.Base(sourcePath))
	target, err := os.Create(targetPath)
	if err != nil {
		return Artifact{}, fmt.Errorf("create artifact file %q: %w", targetPath, err)
	}
	defer target.Close()

	if _, err := io.Copy(target, source); err != nil {
		return Artifact{}, fmt.Errorf("copy artifact into store: %w", err)
	}

	return Artifact{
		ID:          id,
		Kind:        kind,
		URI:         "file://" + targetPath,
		ContentType: contentTypeFor(kind),
		Metadata:    metadata,
	}, nil
}

func contentTypeFor(kind Kind) string {
	switch kind {
	case LogArtifact, TextArtifact:
		return "text/plain; charset=utf-8"
	case ScreenshotArtifact:
		return "image/png"
	case VideoArtifact:
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}

// RemoveArtifact deletes the stored file behind the artifact.
func (s *LocalStore) RemoveArtifact(artifact Artifact) error {
	path, err := PathFromURI(artifact.URI)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove artifact %q: %w", path, err)
	}
	return nil
}

// Clear removes everything the store holds.
func (s *LocalStore) Clear() error {
	if s.BaseDir == "" {
		return errors.New("artifact store base directory is not configured")
	}
	return os.RemoveAll(s.BaseDir)
}

// PathFromURI resolves a file:// URI into a filesystem path.
func PathFromURI(uri string) (string, error) {
	path, found := strings.CutPrefix(uri, "file://")
	if !found {
		return "", fmt.Errorf("artifact URI %q is not a file:// URI", uri)
	}
	return path, nil
}
