package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileStore keeps one JSON document per key under Dir. A document is the
// sorted array of members, e.g. ["alice","bob"].
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// Compile-time interface check.
var (
	_ Store  = (*FileStore)(nil)
	_ Lister = (*FileStore)(nil)
)

// NewFileStore creates the directory if needed and returns a store rooted there.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("snapshot: create directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// Dir returns the root directory.
func (f *FileStore) Dir() string {
	return f.dir
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

// Load implements Store.
func (f *FileStore) Load(_ context.Context, key string) Set {
	if err := ValidateKey(key); err != nil {
		f.logger.Warn("snapshot: load rejected", "key", key, "error", err)
		return NewSet()
	}

	raw, err := os.ReadFile(f.path(key))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			f.logger.Warn("snapshot: read failed, using empty set", "key", key, "error", err)
		}
		return NewSet()
	}

	var s Set
	if err := json.Unmarshal(raw, &s); err != nil {
		f.logger.Warn("snapshot: corrupt document, using empty set", "key", key, "error", err)
		return NewSet()
	}
	if s == nil {
		return NewSet()
	}
	return s
}

// Save implements Store.
func (f *FileStore) Save(_ context.Context, key string, s Set) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s.Sorted(), "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: marshal %s: %w", key, err)
	}

	if err := writeAtomic(f.path(key), data); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", key, err)
	}
	return nil
}

// Keys lists every stored key in ascending order.
func (f *FileStore) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("snapshot: list %s: %w", f.dir, err)
	}

	var keys []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		key, ok := strings.CutSuffix(e.Name(), ".json")
		if !ok || ValidateKey(key) != nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
