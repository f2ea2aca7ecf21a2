// Package snapshot persists the last observed set of identifiers for each
// watcher key. Every backend replaces a key's content wholesale on Save, so
// members that disappear from an observation are purged rather than sticky.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidKey is returned when a snapshot key contains characters outside
// [A-Za-z0-9_.-] or is empty.
var ErrInvalidKey = errors.New("snapshot: invalid key")

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Store is durable "last observed state" memory, one Set per key.
type Store interface {
	// Load returns the persisted set for key. A key that was never written,
	// or whose backing data is unreadable or corrupt, yields an empty set.
	Load(ctx context.Context, key string) Set

	// Save atomically replaces the persisted content for key. Readers never
	// observe a partially written value.
	Save(ctx context.Context, key string, s Set) error
}

// ValidateKey checks that key is usable by every backend (including as a
// file name).
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) || key == "." || key == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Lister is implemented by stores that can enumerate their keys.
type Lister interface {
	Keys(ctx context.Context) ([]string, error)
}
