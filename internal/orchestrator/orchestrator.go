// Package orchestrator wires the path index, scanner, watcher, and
// persistence layer together and exposes the Control API consumed by
// whatever sits above the core (spec §6) — a UI shell, a CLI console, or
// a test harness.
package orchestrator

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/flashfind/flashfind/internal/config"
	"github.com/flashfind/flashfind/internal/knownfolders"
	"github.com/flashfind/flashfind/internal/pathindex"
	"github.com/flashfind/flashfind/internal/persistence"
	"github.com/flashfind/flashfind/internal/scanner"
	"github.com/flashfind/flashfind/internal/watcher"
)

// tickInterval is how often the internal autosave ticker wakes up to
// check whether AutoSaveInterval has elapsed. It is independent of
// AutoSaveInterval itself so a short interval is still observed promptly.
const tickInterval = time.Second

// State mirrors spec §4.2's IndexState, surfaced through the Control API.
type State struct {
	Phase    Phase
	Progress int
	Message  string
}

// Phase is the orchestrator-level lifecycle phase.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhaseSaving
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseScanning:
		return "scanning"
	case PhaseSaving:
		return "saving"
	case PhaseError:
		return "error"
	default:
		return "idle"
	}
}

// Service owns the shared index and the scanner/watcher workers that
// mutate it, plus the autosave schedule.
type Service struct {
	cfg *config.Config

	index   *pathindex.Index
	scan    *scanner.Scanner
	watch   *watcher.Watcher

	mu       sync.Mutex
	roots    []string
	lastSave time.Time

	stopTicker chan struct{}
	tickerDone chan struct{}
}

// New builds and starts a Service: it loads the persisted index (or
// starts empty), establishes watches over the configured roots, and
// kicks off an initial scan if the loaded index was empty. It never
// fails hard on a missing or corrupted index — see persistence.Load.
func New(cfg *config.Config) (*Service, error) {
	index, err := persistence.Load(cfg.StateDir)
	if err != nil {
		log.Printf("orchestrator: %v", err)
	}

	svc := &Service{
		cfg:        cfg,
		index:      index,
		stopTicker: make(chan struct{}),
		tickerDone: make(chan struct{}),
	}

	svc.scan = scanner.New(index, svc.saveFunc, cfg.ScanIOPSLimit)

	w, err := watcher.New(index)
	if err != nil {
		// Fatal only to real-time updates; the orchestrator keeps running
		// without live updates, per spec §7 (WatcherInit).
		log.Printf("orchestrator: watcher init failed, continuing without live updates: %v", err)
	} else {
		svc.watch = w
	}

	svc.roots = defaultRoots(cfg)

	if svc.watch != nil {
		if partial, err := svc.watch.WatchDirectories(svc.roots); err != nil {
			log.Printf("orchestrator: watcher init failed, continuing without live updates: %v", err)
			svc.watch = nil
		} else {
			for _, perr := range partial {
				log.Printf("orchestrator: %v", perr)
			}
		}
	}

	if index.IsEmpty() {
		svc.scan.RequestScan(svc.roots)
	}

	svc.lastSave = time.Now()
	go svc.autosaveLoop()

	return svc, nil
}

func defaultRoots(cfg *config.Config) []string {
	roots := knownfolders.Default()
	roots = append(roots, knownfolders.EnabledDriveRoots(cfg)...)
	return roots
}

func (s *Service) saveFunc(idx *pathindex.Index) error {
	err := persistence.Save(s.cfg.StateDir, idx)
	if err == nil {
		s.mu.Lock()
		s.lastSave = time.Now()
		s.mu.Unlock()
	}
	return err
}

func (s *Service) autosaveLoop() {
	defer close(s.tickerDone)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopTicker:
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick checks whether enough time has elapsed since the last save to
// trigger another one. It is exported so a UI-driven caller can invoke it
// directly instead of relying on the internal timer, per spec §4.6's
// "UI-driven or timer-driven" wording.
func (s *Service) Tick() {
	interval := s.cfg.AutoSaveInterval
	if interval <= 0 {
		return
	}

	s.mu.Lock()
	elapsed := time.Since(s.lastSave)
	s.mu.Unlock()

	if elapsed < interval {
		return
	}
	if s.scan.Running() {
		// Avoid saving mid-scan; the scanner already autosaves when it
		// finishes.
		return
	}
	if err := s.saveFunc(s.index); err != nil {
		log.Printf("orchestrator: autosave failed: %v", err)
	}
}

// Search runs a query against the shared index.
func (s *Service) Search(query string) []string {
	return s.index.Search(query)
}

// RequestRescan schedules a new full scan of the current roots.
func (s *Service) RequestRescan() bool {
	return s.scan.RequestScan(s.currentRoots())
}

// RequestSave triggers an immediate save, bypassing the autosave timer.
func (s *Service) RequestSave() error {
	return s.saveFunc(s.index)
}

// State reports the combined orchestrator/scanner state.
func (s *Service) State() State {
	st := s.scan.Status()
	switch st.Phase {
	case scanner.Scanning:
		return State{Phase: PhaseScanning, Progress: st.Progress}
	case scanner.Saving:
		return State{Phase: PhaseSaving}
	case scanner.Failed:
		return State{Phase: PhaseError, Message: st.Message}
	default:
		return State{Phase: PhaseIdle}
	}
}

// Running reports whether a scan is currently in progress.
func (s *Service) Running() bool {
	return s.scan.Running()
}

// Stats returns the index's insertion/duplicate/search counters.
func (s *Service) Stats() pathindex.Stats {
	return s.index.Stats()
}

// Len returns the number of entries currently in the index.
func (s *Service) Len() int {
	return s.index.Len()
}

// WatchedDirectories returns the directories currently under live watch.
func (s *Service) WatchedDirectories() []string {
	if s.watch == nil {
		return nil
	}
	return s.watch.WatchedDirectories()
}

func (s *Service) currentRoots() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.roots))
	copy(out, s.roots)
	return out
}

// ChangeDriveSet persists a new enabled-drive set, clears the index, and
// re-establishes the watcher and a fresh scan over the resulting roots,
// per spec §4.6.
func (s *Service) ChangeDriveSet(drives []string) error {
	s.cfg.EnabledDrives = drives
	if err := config.Save(s.cfg); err != nil {
		return fmt.Errorf("orchestrator: persisting config: %w", err)
	}

	s.index.Clear()

	newRoots := defaultRoots(s.cfg)
	s.mu.Lock()
	s.roots = newRoots
	s.mu.Unlock()

	if s.watch != nil {
		if partial, err := s.watch.WatchDirectories(newRoots); err != nil {
			log.Printf("orchestrator: re-establishing watcher failed: %v", err)
		} else {
			for _, perr := range partial {
				log.Printf("orchestrator: %v", perr)
			}
		}
	}

	s.scan.RequestScan(newRoots)
	return nil
}

// Shutdown stops the background workers and makes one final save attempt
// regardless of current state, per spec §4.6.
func (s *Service) Shutdown() {
	close(s.stopTicker)
	<-s.tickerDone

	s.scan.Close()
	if s.watch != nil {
		s.watch.Close()
	}

	if err := persistence.Save(s.cfg.StateDir, s.index); err != nil {
		log.Printf("orchestrator: final save failed: %v", err)
	}
}
