package local

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cochaviz/simfarm/internal/device"
)

// LocalSessionRepository persists device session records in JSON files under
// BaseDir, one file per session id. Sessions are diagnostic records; losing
// one never affects allocation correctness.
type LocalSessionRepository struct {
	BaseDir string
}

// Save writes the session record to disk using its ID as the filename.
func (rep *LocalSessionRepository) Save(session device.Session) error {
	if rep.BaseDir == "" {
		return errors.New("base directory is not configured")
	}
	if session.ID == "" {
		return errors.New("session id is required")
	}

	if err := os.MkdirAll(rep.BaseDir, 0o755); err != nil {
		return err
	}

	payload, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(rep.BaseDir, session.ID+".json")
	return os.WriteFile(path, payload, 0o644)
}

// Get returns the session with the provided ID, or nil when unknown.
func (rep *LocalSessionRepository) Get(sessionID string) (*device.Session, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	return rep.loadSession(filepath.Join(rep.BaseDir, sessionID+".json"))
}

// ListActive returns every session that has not ended yet.
func (rep *LocalSessionRepository) ListActive() ([]device.Session, error) {
	entries, err := os.ReadDir(rep.BaseDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var active []device.Session
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		session, err := rep.loadSession(filepath.Join(rep.BaseDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if session == nil || !session.Active() {
			continue
		}
		active = append(active, *session)
	}
	return active, nil
}

// Delete removes the session record. Unknown ids are not an error.
func (rep *LocalSessionRepository) Delete(sessionID string) error {
	if sessionID == "" {
		return errors.New("session id is required")
	}
	err := os.Remove(filepath.Join(rep.BaseDir, sessionID+".json"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (rep *LocalSessionRepository) loadSession(path string) (*device.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var session device.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}
