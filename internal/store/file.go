package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	appLog "cyclecal/internal/log"
	"cyclecal/internal/model"
)

// FileStore keeps the aggregate in one JSON file.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore for path. The file is created on the
// first Save.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("state path is empty")
	}
	return &FileStore{path: path}, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(_ context.Context) (model.Aggregate, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			appLog.Info("state file not found; starting empty", "path", s.path)
			return model.NewAggregate(), nil
		}
		return model.Aggregate{}, fmt.Errorf("read state: %w", err)
	}
	return Decode(data)
}

// Save writes the aggregate atomically.
//
//   - Ensures parent directory exists (0700).
//   - Writes to a temp file in the same directory, syncs, then renames.
//   - Final file permissions are 0600.
func (s *FileStore) Save(_ context.Context, a model.Aggregate) error {
	data, err := Encode(a)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path, data)
}

// Quarantine renames the state file to <path>.corrupt-<timestamp>.
func (s *FileStore) Quarantine(_ context.Context) (string, error) {
	dst := fmt.Sprintf("%s.corrupt-%s", s.path, time.Now().UTC().Format("20060102T150405Z"))
	if err := os.Rename(s.path, dst); err != nil {
		return "", fmt.Errorf("quarantine state: %w", err)
	}
	return dst, nil
}

func (s *FileStore) Close() error { return nil }

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".cyclecal-state-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
