package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/flashfind/flashfind/internal/config"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	stateDir := t.TempDir()
	cfg := config.Defaults(stateDir)
	cfg.AutoSaveInterval = 0 // tests drive saves explicitly

	svc, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(svc.Shutdown)
	return svc
}

func TestNewStartsEmptyWithoutPersistedIndex(t *testing.T) {
	svc := newTestService(t)
	if svc.Len() != 0 {
		t.Errorf("expected empty index on first run, got %d entries", svc.Len())
	}
}

func TestRequestSavePersistsIndex(t *testing.T) {
	svc := newTestService(t)

	if err := svc.RequestSave(); err != nil {
		t.Fatalf("RequestSave: %v", err)
	}

	if _, err := os.Stat(filepath.Join(svc.cfg.StateDir, "index.bin")); err != nil {
		t.Errorf("expected index.bin to exist after save: %v", err)
	}
}

func TestReopenLoadsPersistedIndex(t *testing.T) {
	stateDir := t.TempDir()
	cfg := config.Defaults(stateDir)

	first, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	first.index.Insert(filepath.Join(stateDir, "sample.txt"))
	if err := first.RequestSave(); err != nil {
		t.Fatalf("RequestSave: %v", err)
	}
	first.Shutdown()

	second, err := New(config.Defaults(stateDir))
	if err != nil {
		t.Fatalf("New (reopen): %v", err)
	}
	defer second.Shutdown()

	if second.Len() != 1 {
		t.Errorf("expected reopened service to load 1 entry, got %d", second.Len())
	}
}

func TestTickSkipsSaveWhenIntervalNotElapsed(t *testing.T) {
	svc := newTestService(t)

	// Let the initial scan (and its post-scan save) settle first.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && svc.Running() {
		time.Sleep(time.Millisecond)
	}

	svc.cfg.AutoSaveInterval = time.Hour
	before := time.Now().Add(-time.Minute)
	svc.mu.Lock()
	svc.lastSave = before
	svc.mu.Unlock()

	svc.Tick()

	svc.mu.Lock()
	after := svc.lastSave
	svc.mu.Unlock()
	if !after.Equal(before) {
		t.Errorf("expected Tick not to save before the interval elapsed; lastSave moved from %v to %v", before, after)
	}
}

func TestSearchDelegatesToIndex(t *testing.T) {
	svc := newTestService(t)
	svc.index.Insert("/tmp/report-final.docx")

	results := svc.Search("report")
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %v", results)
	}
}

func TestRequestRescanProgressResetsToZero(t *testing.T) {
	stateDir := t.TempDir()
	cfg := config.Defaults(stateDir)
	cfg.ScanIOPSLimit = 5 // throttle so Scanning stays observable long enough to assert on

	svc, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer svc.Shutdown()

	// Let the initial (likely empty-root) scan settle before reusing the
	// scanner for the rescan under test.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && svc.Running() {
		time.Sleep(time.Millisecond)
	}

	scanRoot := t.TempDir()
	for i := 0; i < 50; i++ {
		path := filepath.Join(scanRoot, fmt.Sprintf("file_%d.txt", i))
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	// Populate the index before rescanning, mirroring a rescan request
	// arriving against an already-populated pool.
	for i := 0; i < 500; i++ {
		svc.index.Insert(fmt.Sprintf("/preexisting/file_%d.txt", i))
	}

	svc.mu.Lock()
	svc.roots = []string{scanRoot}
	svc.mu.Unlock()

	if ok := svc.RequestRescan(); !ok {
		t.Fatal("expected RequestRescan to be accepted")
	}

	time.Sleep(50 * time.Millisecond)
	if !svc.Running() {
		t.Fatal("expected rescan still running")
	}

	st := svc.State()
	if st.Phase != PhaseScanning {
		t.Fatalf("expected PhaseScanning, got %v", st.Phase)
	}
	if st.Progress != 0 {
		t.Errorf("expected Progress reset to 0 at rescan start despite %d pre-existing entries, got %d", svc.Len(), st.Progress)
	}

	svc.scan.Cancel()
	deadline = time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && svc.Running() {
		time.Sleep(time.Millisecond)
	}
}

func TestStateReflectsIdleOnceInitialScanSettles(t *testing.T) {
	svc := newTestService(t)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && svc.Running() {
		time.Sleep(time.Millisecond)
	}

	if got := svc.State().Phase; got != PhaseIdle {
		t.Errorf("expected Idle once the initial scan settles, got %v", got)
	}
}
