//go:build !windows

package snapshot

import "github.com/google/renameio/v2"

// writeAtomic writes data to a temp file in the same directory, fsyncs it and
// renames it over path.
func writeAtomic(path string, data []byte) error {
	return renameio.WriteFile(path, data, 0o600)
}
