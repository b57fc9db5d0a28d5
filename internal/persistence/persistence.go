// Package persistence implements the atomic, versioned on-disk
// serialization of the path index.
package persistence

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"

	"github.com/flashfind/flashfind/internal/pathindex"
)

// IndexFileName is the leaf name of the serialized index within the
// application-data directory.
const IndexFileName = "index.bin"

// ErrVersionMismatch is returned by Load when the on-disk schema version
// does not match the version this build expects.
type ErrVersionMismatch struct {
	Found    uint32
	Expected uint32
}

func (e *ErrVersionMismatch) Error() string {
	return fmt.Sprintf("persistence: index version mismatch: found %d, expected %d", e.Found, e.Expected)
}

// UserMessage returns a message suitable for display outside a log file.
func (e *ErrVersionMismatch) UserMessage() string {
	return "The saved index was built by a different version of FlashFind and will be rebuilt."
}

// ErrCorrupted wraps a deserialization failure.
type ErrCorrupted struct {
	Cause error
}

func (e *ErrCorrupted) Error() string {
	return fmt.Sprintf("persistence: index file is corrupted: %v", e.Cause)
}

func (e *ErrCorrupted) Unwrap() error { return e.Cause }

// UserMessage returns a message suitable for display outside a log file.
func (e *ErrCorrupted) UserMessage() string {
	return "Index file is corrupted. It will be rebuilt."
}

// Load reads the index file at dir/index.bin.
//
// A missing file is not an error: it yields a fresh, empty index, matching
// the "absent file yields a fresh empty index" contract in spec §4.5. A
// present file that fails to deserialize, or whose version tag does not
// match pathindex.Version, is also non-fatal to the caller — both cases
// return a typed error alongside a usable empty index so callers can
// degrade gracefully (the reference orchestrator logs the error and starts
// from empty rather than refusing to boot).
func Load(dir string) (*pathindex.Index, error) {
	path := filepath.Join(dir, IndexFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return pathindex.New(), nil
		}
		return pathindex.New(), fmt.Errorf("persistence: reading %s: %w", path, err)
	}

	var snap pathindex.Snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return pathindex.New(), &ErrCorrupted{Cause: err}
	}

	if snap.Version != pathindex.Version {
		return pathindex.New(), &ErrVersionMismatch{Found: snap.Version, Expected: pathindex.Version}
	}

	idx := pathindex.FromSnapshot(snap)
	idx.RebuildCache()
	return idx, nil
}

// Save serializes idx and atomically publishes it to dir/index.bin.
//
// The write goes to a sibling ".tmp" file first, then os.Rename moves it
// into place. On any POSIX filesystem (and on Windows, since Go 1.5, via
// MoveFileEx with MOVEFILE_REPLACE_EXISTING) this means a reader opening
// the target path observes either the complete previous file or the
// complete new one — never a partial write — exactly the guarantee spec
// §4.5 asks for.
func Save(dir string, idx *pathindex.Index) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("persistence: creating %s: %w", dir, err)
	}

	path := filepath.Join(dir, IndexFileName)
	tmpPath := path + ".tmp"

	data, err := cbor.Marshal(idx.Snapshot())
	if err != nil {
		return fmt.Errorf("persistence: encoding index: %w", err)
	}

	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("persistence: writing %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("persistence: publishing %s: %w", path, err)
	}

	return nil
}
