// Package pathindex implements the in-memory path pool and inverted
// filename/extension indices that answer FlashFind's interactive queries.
//
// An Index is the single piece of shared mutable state in the system: the
// background scanner and the live watcher both write to it, while any
// number of query callers read from it concurrently. All of that is
// arbitrated by one sync.RWMutex (see the package-level doc on Index for
// the exact hold discipline).
package pathindex

import (
	"errors"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Version is the on-disk schema version persisted alongside the index.
// Bump this whenever the Snapshot layout changes in a way old readers
// cannot tolerate.
const Version uint32 = 1

// MaxEntries bounds pool growth. Insert returns ErrFull once the pool
// reaches this size; callers decide policy (stop scanning, warn the user).
const MaxEntries = 10_000_000

// parallelSearchThreshold is the pool size above which filename-posting
// lookups are sharded across goroutines. Below it, the fixed cost of
// spinning up an errgroup outweighs the benefit.
const parallelSearchThreshold = 2048

// InsertResult is the non-error outcome of Insert.
type InsertResult int

const (
	// Inserted means the path was new and is now part of the pool.
	Inserted InsertResult = iota
	// Duplicate means the path was already present; the duplicate counter
	// was incremented and nothing else changed.
	Duplicate
)

// RemoveResult is the outcome of Remove.
type RemoveResult int

const (
	// Removed means the path was present and has been evicted from the
	// seen-path set (its pool slot and posting entries are tombstoned,
	// not reclaimed).
	Removed RemoveResult = iota
	// NotPresent means the path was not in the index.
	NotPresent
)

// ErrFull is returned by Insert once the pool has reached MaxEntries.
var ErrFull = errors.New("pathindex: index is full")

// ErrInvalidPath is returned by Insert when the path has no representable
// filename component.
var ErrInvalidPath = errors.New("pathindex: path has no usable filename")

// Stats is a point-in-time snapshot of the monotonic counters.
type Stats struct {
	Insertions int64
	Duplicates int64
	Searches   int64
}

// Index is the core path pool plus its two inverted posting lists.
//
// Readers (Search, Len, IsEmpty, Stats) take a shared RLock. Writers
// (Insert, Remove, Clear, RebuildCache) take the exclusive Lock. The
// statistics counters are atomics so Stats never needs to contend with an
// in-flight Search, but Clear still zeroes them under the write lock so a
// concurrent Stats call never observes a half-reset state.
type Index struct {
	mu sync.RWMutex

	pool           []string
	filenameIndex  map[string][]uint32
	extensionIndex map[string][]uint32
	seenPaths      map[string]struct{}

	insertions atomic.Int64
	duplicates atomic.Int64
	searches   atomic.Int64
}

// New returns an empty index ready for use.
func New() *Index {
	return &Index{
		filenameIndex:  make(map[string][]uint32),
		extensionIndex: make(map[string][]uint32),
		seenPaths:      make(map[string]struct{}),
	}
}

// Insert adds path to the index. It returns Inserted on success, Duplicate
// if the path was already present, or a non-nil error (ErrFull or
// ErrInvalidPath) if the insertion was rejected outright.
func (idx *Index) Insert(path string) (InsertResult, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(idx.pool) >= MaxEntries {
		return Inserted, ErrFull
	}

	if _, dup := idx.seenPaths[path]; dup {
		idx.duplicates.Add(1)
		return Duplicate, nil
	}

	name := filepath.Base(path)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return Inserted, ErrInvalidPath
	}

	lowerName := strings.ToLower(name)
	pos := uint32(len(idx.pool))

	idx.filenameIndex[lowerName] = append(idx.filenameIndex[lowerName], pos)

	if ext := extensionOf(name); ext != "" {
		lowerExt := strings.ToLower(ext)
		idx.extensionIndex[lowerExt] = append(idx.extensionIndex[lowerExt], pos)
	}

	idx.pool = append(idx.pool, path)
	idx.seenPaths[path] = struct{}{}
	idx.insertions.Add(1)

	return Inserted, nil
}

// extensionOf returns the filename's extension without the leading dot, or
// "" if there isn't one (filenames beginning with a dot and containing no
// further dot, such as ".gitignore", have no extension by this rule).
func extensionOf(name string) string {
	ext := filepath.Ext(name)
	if ext == "" || ext == name {
		return ""
	}
	return strings.TrimPrefix(ext, ".")
}

// Remove evicts path from the seen-path set. The pool slot and any posting
// entries referencing it are left in place as tombstones; Search skips
// them by bounds-checking each posting and dropping any pool entry that is
// no longer in the seen-path set.
func (idx *Index) Remove(path string) RemoveResult {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.seenPaths[path]; !ok {
		return NotPresent
	}
	delete(idx.seenPaths, path)
	return Removed
}

// Search normalizes query, dispatches to the extension or substring path,
// deduplicates and bounds-checks the resulting pool indices, and returns
// paths sorted by lowercased filename.
//
// An empty (post-trim) query returns an empty, non-nil slice and does not
// increment the search counter — see DESIGN.md for why that convention
// was chosen over the alternative.
func (idx *Index) Search(query string) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []string{}
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	idx.searches.Add(1)

	var indices map[uint32]struct{}
	if strings.HasPrefix(q, ".") {
		indices = idx.searchExtensionLocked(q)
	} else {
		indices = idx.searchSubstringLocked(q)
	}

	results := make([]string, 0, len(indices))
	poolLen := uint32(len(idx.pool))
	for i := range indices {
		if i >= poolLen {
			continue
		}
		p := idx.pool[i]
		if _, live := idx.seenPaths[p]; live {
			results = append(results, p)
		}
	}

	sort.Slice(results, func(a, b int) bool {
		return strings.ToLower(filepath.Base(results[a])) < strings.ToLower(filepath.Base(results[b]))
	})

	return results
}

// searchExtensionLocked handles queries beginning with '.'. Must be called
// with idx.mu held for reading.
func (idx *Index) searchExtensionLocked(q string) map[uint32]struct{} {
	ext := strings.TrimPrefix(q, ".")
	matched := make(map[uint32]struct{})

	for _, i := range idx.extensionIndex[ext] {
		matched[i] = struct{}{}
	}

	// Compound extension ("tar.gz"): fall back to a full-path suffix scan so
	// multi-dot extensions match entries whose *simple* extension index
	// entry is only the last component.
	if strings.Contains(ext, ".") {
		for i, path := range idx.pool {
			if strings.HasSuffix(strings.ToLower(path), q) {
				matched[uint32(i)] = struct{}{}
			}
		}
	}

	return matched
}

// searchSubstringLocked handles plain filename-substring queries, sharding
// the scan over filenameIndex keys when the index is large enough for the
// parallelism to pay for itself. Must be called with idx.mu held for
// reading.
func (idx *Index) searchSubstringLocked(q string) map[uint32]struct{} {
	if len(idx.pool) < parallelSearchThreshold {
		matched := make(map[uint32]struct{})
		for name, indices := range idx.filenameIndex {
			if strings.Contains(name, q) {
				for _, i := range indices {
					matched[i] = struct{}{}
				}
			}
		}
		return matched
	}

	keys := make([]string, 0, len(idx.filenameIndex))
	for name := range idx.filenameIndex {
		keys = append(keys, name)
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > len(keys) {
		workers = len(keys)
	}
	if workers < 1 {
		workers = 1
	}

	shardResults := make([][]uint32, workers)
	var group errgroup.Group

	shardSize := (len(keys) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		w := w
		start := w * shardSize
		if start >= len(keys) {
			break
		}
		end := start + shardSize
		if end > len(keys) {
			end = len(keys)
		}

		group.Go(func() error {
			var local []uint32
			for _, name := range keys[start:end] {
				if strings.Contains(name, q) {
					local = append(local, idx.filenameIndex[name]...)
				}
			}
			shardResults[w] = local
			return nil
		})
	}
	_ = group.Wait() // shard workers never return an error

	matched := make(map[uint32]struct{})
	for _, shard := range shardResults {
		for _, i := range shard {
			matched[i] = struct{}{}
		}
	}
	return matched
}

// Len returns the number of entries in the pool, including tombstoned
// (removed) ones.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.pool)
}

// IsEmpty reports whether the pool has zero entries.
func (idx *Index) IsEmpty() bool {
	return idx.Len() == 0
}

// Clear resets the index to its zero state: empty pool, empty posting
// lists, empty seen-path set, and zeroed statistics.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.pool = nil
	idx.filenameIndex = make(map[string][]uint32)
	idx.extensionIndex = make(map[string][]uint32)
	idx.seenPaths = make(map[string]struct{})
	idx.insertions.Store(0)
	idx.duplicates.Store(0)
	idx.searches.Store(0)
}

// Stats returns the current insertion, duplicate, and search counts.
func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return Stats{
		Insertions: idx.insertions.Load(),
		Duplicates: idx.duplicates.Load(),
		Searches:   idx.searches.Load(),
	}
}

// RebuildCache recomputes the seen-path set from the pool. Callers must
// invoke this after replacing the pool out-of-band (persistence.Load does
// this after deserializing a Snapshot).
func (idx *Index) RebuildCache() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.rebuildCacheLocked()
}

func (idx *Index) rebuildCacheLocked() {
	seen := make(map[string]struct{}, len(idx.pool))
	for _, p := range idx.pool {
		seen[p] = struct{}{}
	}
	idx.seenPaths = seen
}
