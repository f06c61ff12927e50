package statestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/okian/goalpulse/internal/domain/model"
	"gopkg.in/yaml.v3"
)

const snapshotVersion = 1

type snapshot struct {
	Version int                 `yaml:"version"`
	Alerts  []model.AlertRecord `yaml:"alerts"`
}

// FileStore keeps the snapshot in a YAML file, replaced atomically on save.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a store backed by path. The file need not exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the snapshot location.
func (s *FileStore) Path() string { return s.path }

// Load reads the snapshot. A missing file yields no records.
func (s *FileStore) Load(_ context.Context) ([]model.AlertRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var snap snapshot
	if err := yaml.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptState, s.path, err)
	}
	if snap.Version > snapshotVersion {
		return nil, fmt.Errorf("%w: %s: unsupported version %d", ErrCorruptState, s.path, snap.Version)
	}
	return snap.Alerts, nil
}

// Save writes the snapshot to a temporary file and renames it into place.
func (s *FileStore) Save(_ context.Context, records []model.AlertRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := yaml.Marshal(snapshot{Version: snapshotVersion, Alerts: records})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// Close is a no-op for files.
func (s *FileStore) Close() error { return nil }
