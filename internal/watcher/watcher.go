// Package watcher implements the live, event-driven incremental index
// updates: filesystem change notifications are filtered, stability
// checked, and applied to the path index as they arrive.
package watcher

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/flashfind/flashfind/internal/filter"
	"github.com/flashfind/flashfind/internal/pathindex"
)

// stabilityDelay is how long the watcher waits between the two size
// samples used to decide whether a file is still being written, per
// spec §4.4 (reference: 100ms).
const stabilityDelay = 100 * time.Millisecond

// maxConcurrentChecks bounds how many stability-check goroutines may be
// in flight at once, so a burst of events (e.g. a large copy operation)
// cannot spawn unbounded goroutines.
const maxConcurrentChecks = 64

// Watcher monitors a set of directories recursively and applies create,
// modify, and remove events to a path index.
type Watcher struct {
	index *pathindex.Index

	mu          sync.Mutex
	fsw         *fsnotify.Watcher
	watchedDirs []string
	stopLoop    chan struct{}
	loopDone    chan struct{}

	inflight chan struct{} // semaphore for stability-check goroutines
}

// New creates a Watcher bound to index. It does not watch anything until
// WatchDirectories is called.
func New(index *pathindex.Index) (*Watcher, error) {
	return &Watcher{
		index:    index,
		inflight: make(chan struct{}, maxConcurrentChecks),
	}, nil
}

// WatchDirectories replaces any previously established watch set and
// recursively watches every directory in paths. Missing directories are
// skipped with a logged warning, not reported as an error. Other
// per-directory failures (e.g. the path exists but is not a directory)
// are returned in the partial-errors slice; only a failure to create the
// underlying notification backend is fatal.
func (w *Watcher) WatchDirectories(paths []string) (partialErrors []error, err error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: initializing: %w", err)
	}

	w.mu.Lock()
	w.stopLocked()
	w.fsw = fsw
	w.mu.Unlock()

	var watched []string
	for _, dir := range paths {
		ok, werr := w.watchDirectory(dir)
		if werr != nil {
			partialErrors = append(partialErrors, werr)
			continue
		}
		if ok {
			watched = append(watched, dir)
		}
	}

	w.mu.Lock()
	w.watchedDirs = watched
	w.stopLoop = make(chan struct{})
	w.loopDone = make(chan struct{})
	stopLoop, loopDone := w.stopLoop, w.loopDone
	w.mu.Unlock()

	go w.eventLoop(fsw, stopLoop, loopDone)

	return partialErrors, nil
}

// WatchedDirectories returns the directories currently being watched.
func (w *Watcher) WatchedDirectories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.watchedDirs))
	copy(out, w.watchedDirs)
	return out
}

// Close stops the watcher and releases its resources.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked()
}

// stopLocked must be called with w.mu held.
func (w *Watcher) stopLocked() {
	if w.fsw == nil {
		return
	}
	close(w.stopLoop)
	<-w.loopDone
	_ = w.fsw.Close()
	w.fsw = nil
}

// watchDirectory reports false, with no error, when dir does not exist.
func (w *Watcher) watchDirectory(dir string) (bool, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("watcher: skipping missing directory %s", dir)
			return false, nil
		}
		return false, fmt.Errorf("watcher: stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("watcher: %s is not a directory", dir)
	}
	return true, w.addRecursive(dir)
}

// addRecursive adds dir and every subdirectory beneath it to the active
// fsnotify watcher. It stops (without error) if the kernel watch-limit is
// reached; directories beyond that point simply receive no live updates
// until the next full scan.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			log.Printf("watcher: skipping %s: %v", path, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			if errors.Is(addErr, syscall.ENOSPC) {
				log.Printf("watcher: watch limit reached at %s; deeper directories will not receive live updates", path)
				return filepath.SkipAll
			}
			log.Printf("watcher: could not watch %s: %v", path, addErr)
		}
		return nil
	})
}

func (w *Watcher) eventLoop(fsw *fsnotify.Watcher, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(fsw, event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			log.Printf("watcher: delivery error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event) {
	switch {
	case event.Has(fsnotify.Create):
		// A newly created directory needs to be watched itself so changes
		// inside it are also caught.
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				log.Printf("watcher: could not watch new directory %s: %v", event.Name, err)
			}
			return
		}
		w.scheduleCandidate(event.Name)

	case event.Has(fsnotify.Write):
		w.scheduleCandidate(event.Name)

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// Renames are treated the same as removes for the old path: the
		// new name (if any) arrives separately as its own Create event.
		// This avoids leaving a permanent tombstone for every renamed
		// file, which a literal "ignore Rename" reading would produce.
		w.index.Remove(event.Name)
	}
}

// scheduleCandidate runs the permission check, regular-file check, filter
// check, and stability check for path off the fsnotify delivery
// goroutine, so a slow stability sleep never stalls event delivery.
func (w *Watcher) scheduleCandidate(path string) {
	select {
	case w.inflight <- struct{}{}:
	default:
		// Too many checks in flight; drop this one. The next scan will
		// reconcile it if it's still present and stable by then.
		log.Printf("watcher: too many pending stability checks, dropping %s", path)
		return
	}

	go func() {
		defer func() { <-w.inflight }()
		w.processCandidate(path)
	}()
}

func (w *Watcher) processCandidate(path string) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrPermission) || errors.Is(err, os.ErrNotExist) {
			return
		}
		log.Printf("watcher: stat %s: %v", path, err)
		return
	}
	if !info.Mode().IsRegular() {
		return
	}
	if filter.IsExcluded(path) || filter.IsTransient(filepath.Base(path)) {
		return
	}

	firstSize := info.Size()
	time.Sleep(stabilityDelay)

	info2, err := os.Stat(path)
	if err != nil {
		return // file vanished or became unreadable mid-check; skip silently
	}
	if info2.Size() != firstSize {
		// Still being written; the watcher will see another event when it
		// settles (or the next scan will pick it up).
		return
	}

	if _, err := w.index.Insert(path); err != nil {
		if err == pathindex.ErrFull {
			log.Printf("watcher: index full, dropping %s", path)
			return
		}
		log.Printf("watcher: could not index %s: %v", path, err)
	}
}
