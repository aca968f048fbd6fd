package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore is the local fallback backing store: one JSON file per fingerprint
// under a cache directory. Fingerprints are hex so they are safe as filenames.
type FileStore struct {
	dir string
}

var _ BackingStore = (*FileStore)(nil)

// NewFileStore creates the directory if needed. An empty dir defaults to the
// local .cache tree.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = filepath.Join(".cache", "analysis")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Printf("[WARNING] Check cache dir %s: %v\n", dir, err)
	}
	return &FileStore{dir: dir}
}

func (s *FileStore) path(fingerprint string) string {
	return filepath.Join(s.dir, fingerprint+".json")
}

// Load reads one entry. A missing file is a miss, not an error.
func (s *FileStore) Load(ctx context.Context, fingerprint string) (*Entry, error) {
	data, err := os.ReadFile(s.path(fingerprint))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache file: %w", err)
	}
	return &entry, nil
}

// Store writes the entry atomically via a temp file rename.
func (s *FileStore) Store(ctx context.Context, entry Entry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	tmp := s.path(entry.Fingerprint) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp, s.path(entry.Fingerprint)); err != nil {
		return fmt.Errorf("failed to commit cache file: %w", err)
	}
	return nil
}
