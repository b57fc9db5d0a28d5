// Package scanner implements the background recursive directory walker
// that feeds the path index, batching insertions under controlled lock
// hold times and honoring cancellation.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/flashfind/flashfind/internal/filter"
	"github.com/flashfind/flashfind/internal/pathindex"
)

// batchSize is how many filtered candidates are collected before they are
// inserted and progress is published. Each path goes through its own
// Index.Insert call, which takes the writer lock for that one insert; the
// lock is not held across a whole batch.
const batchSize = 2048

// Phase identifies the scanner's current lifecycle state.
type Phase int

const (
	Idle Phase = iota
	Scanning
	Saving
	Cancelled
	Failed
)

// Status is a point-in-time view of the scanner's state, suitable for the
// orchestrator's State() control-API call.
type Status struct {
	Phase    Phase
	Progress int    // current pool length, valid while Phase == Scanning
	Message  string // populated when Phase == Failed
}

// SaveFunc persists the index; it is injected so the scanner package does
// not need to depend on persistence directly, and so tests can substitute
// a no-op or failing save.
type SaveFunc func(*pathindex.Index) error

// Scanner runs one long-lived background goroutine that serially services
// scan requests arriving over a small buffered channel.
type Scanner struct {
	index *pathindex.Index
	save  SaveFunc

	limiter *rate.Limiter // nil means unlimited

	requests chan []string
	done     chan struct{}

	running atomic.Bool
	cancel  atomic.Bool

	mu     sync.Mutex
	status Status
}

// New starts a Scanner's background worker goroutine. iopsLimit caps the
// filesystem syscall rate the walk issues, in operations per second; pass
// 0 for unlimited (see SPEC_FULL.md §4.2.G).
func New(index *pathindex.Index, save SaveFunc, iopsLimit float64) *Scanner {
	var limiter *rate.Limiter
	if iopsLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(iopsLimit), int(iopsLimit))
	}

	s := &Scanner{
		index:    index,
		save:     save,
		limiter:  limiter,
		requests: make(chan []string, 1),
		done:     make(chan struct{}),
		status:   Status{Phase: Idle},
	}

	go s.loop()
	return s
}

// RequestScan schedules a traversal of roots. If a scan is already
// running, the request is dropped and ok is false — matching spec §4.2's
// reference design of "ignore with a warning" rather than queuing.
func (s *Scanner) RequestScan(roots []string) (ok bool) {
	// Mark the scanner running before handing the request to the worker, so
	// Running() is already true when RequestScan returns.
	if !s.running.CompareAndSwap(false, true) {
		return false
	}
	select {
	case s.requests <- roots:
		return true
	default:
		s.running.Store(false)
		return false
	}
}

// Cancel requests that an in-flight scan abort at the next checkpoint
// (between roots or between insertion batches). It is a no-op if no scan
// is running.
func (s *Scanner) Cancel() {
	s.cancel.Store(true)
}

// Running reports whether a scan is currently in progress.
func (s *Scanner) Running() bool {
	return s.running.Load()
}

// Status returns the current scanner state.
func (s *Scanner) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Close stops accepting new scan requests and waits for the worker
// goroutine to exit. Any scan in flight is cancelled first.
func (s *Scanner) Close() {
	s.cancel.Store(true)
	close(s.requests)
	<-s.done
}

func (s *Scanner) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

func (s *Scanner) loop() {
	defer close(s.done)

	for roots := range s.requests {
		s.running.Store(true)
		s.cancel.Store(false)
		// Progress always resets to 0 at scan start, even on a rescan of an
		// already-populated index. After each flushed batch it reports the
		// current pool length, which includes entries present before the
		// scan began.
		s.setStatus(Status{Phase: Scanning, Progress: 0})

		err := s.scanRoots(roots)

		switch {
		case err == errCancelled:
			s.setStatus(Status{Phase: Cancelled})
		case err != nil:
			log.Printf("scanner: scan failed: %v", err)
			s.setStatus(Status{Phase: Failed, Message: err.Error()})
		default:
			s.setStatus(Status{Phase: Saving})
			if s.save != nil {
				if err := s.save(s.index); err != nil {
					log.Printf("scanner: autosave after scan failed: %v", err)
					s.setStatus(Status{Phase: Failed, Message: err.Error()})
					s.running.Store(false)
					continue
				}
			}
			s.setStatus(Status{Phase: Idle, Progress: s.index.Len()})
		}

		s.running.Store(false)
	}
}

var errCancelled = fmt.Errorf("scan cancelled")

func (s *Scanner) scanRoots(roots []string) error {
	for _, root := range roots {
		if s.cancel.Load() {
			return errCancelled
		}

		if err := s.scanOneRoot(root); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) scanOneRoot(root string) error {
	var batch []string

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if s.cancel.Load() {
			return errCancelled
		}
		for _, p := range batch {
			if _, err := s.index.Insert(p); err != nil {
				if err == pathindex.ErrFull {
					return err
				}
				log.Printf("scanner: skipping %s: %v", p, err)
			}
		}
		s.setStatus(Status{Phase: Scanning, Progress: s.index.Len()})
		batch = batch[:0]
		return nil
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entry: log and keep walking the rest of the tree.
			log.Printf("scanner: %s: %v", path, err)
			return nil
		}

		if s.limiter != nil {
			_ = s.limiter.Wait(context.Background())
		}

		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if filter.IsExcluded(path) {
			return nil
		}

		batch = append(batch, path)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
		return nil
	})

	if walkErr != nil {
		return walkErr
	}
	return flush()
}

// waitIdle polls until the scanner is no longer running or timeout
// elapses, and reports whether the scanner is idle. It exists for tests
// that need to synchronize on scan completion.
func (s *Scanner) waitIdle(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !s.running.Load() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return !s.running.Load()
}
