// Command flashfindd runs the FlashFind indexing core as a standalone
// daemon, driven by a minimal line-oriented console protocol on stdin.
// The full interactive UI shell is an external collaborator (see
// SPEC_FULL.md §1); this console exists so the core is runnable and
// testable on its own.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/flashfind/flashfind/internal/config"
	"github.com/flashfind/flashfind/internal/orchestrator"
)

func main() {
	stateDir, err := defaultStateDir()
	if err != nil {
		log.Fatalf("flashfindd: resolving state directory: %v", err)
	}

	cfg, warn := config.Load(os.Args[1:], stateDir)
	if warn != nil {
		log.Printf("flashfindd: %v", warn)
	}

	svc, err := orchestrator.New(cfg)
	if err != nil {
		log.Fatalf("flashfindd: starting: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go runConsole(svc, done)

	select {
	case <-sigCh:
		log.Print("flashfindd: signal received, shutting down")
	case <-done:
		log.Print("flashfindd: stdin closed, shutting down")
	}

	svc.Shutdown()
}

func defaultStateDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "flashfind"), nil
}

// runConsole implements the line-oriented control protocol:
//
//	search <query>   run a query against the index
//	rescan           request a fresh full scan of the default roots
//	save             force an immediate save
//	state            report the current scanner phase
//	stats            report insertion/duplicate/search counters
//	quit             exit
//
// It closes done when stdin reaches EOF, signaling main to shut down.
func runConsole(svc *orchestrator.Service, done chan<- struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		cmd, arg, _ := strings.Cut(line, " ")
		switch cmd {
		case "search":
			for _, path := range svc.Search(arg) {
				fmt.Println(path)
			}
		case "rescan":
			if svc.RequestRescan() {
				fmt.Println("rescan started")
			} else {
				fmt.Println("rescan already in progress")
			}
		case "save":
			if err := svc.RequestSave(); err != nil {
				fmt.Printf("save failed: %v\n", err)
			} else {
				fmt.Println("saved")
			}
		case "state":
			st := svc.State()
			fmt.Printf("phase=%v progress=%d\n", st.Phase, st.Progress)
		case "stats":
			stats := svc.Stats()
			fmt.Printf("entries=%d insertions=%d duplicates=%d searches=%d\n",
				svc.Len(), stats.Insertions, stats.Duplicates, stats.Searches)
		case "quit":
			return
		default:
			fmt.Printf("unknown command: %s\n", cmd)
		}
	}
}
