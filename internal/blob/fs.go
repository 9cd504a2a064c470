package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const fsRecordExt = ".json"

// FSStore keeps one file per key under a directory. Keys are hex digests, so
// they are used directly as file names.
type FSStore struct {
	dir string
}

// NewFSStore ensures dir exists and returns a store rooted there.
func NewFSStore(dir string) (*FSStore, error) {
	if dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

func (s *FSStore) pathFor(key string) string {
	return filepath.Join(s.dir, key+fsRecordExt)
}

// Write stores data under key, replacing any previous record.
func (s *FSStore) Write(_ context.Context, key string, data []byte) error {
	return os.WriteFile(s.pathFor(key), data, 0o644)
}

// Read returns the record for key, or not-found when no file exists.
func (s *FSStore) Read(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.pathFor(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Delete removes the record for key. Deleting a missing key is not an error.
func (s *FSStore) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.pathFor(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// ListKeys returns every key with a record on disk.
func (s *FSStore) ListKeys(_ context.Context) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*"+fsRecordExt))
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		keys = append(keys, strings.TrimSuffix(filepath.Base(m), fsRecordExt))
	}
	return keys, nil
}
