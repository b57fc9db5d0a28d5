// Package config handles FlashFind's configuration file and its CLI/env
// overrides. Precedence, highest first: CLI flags, environment variables,
// the persisted config.json, compiled-in defaults.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FileName is the leaf name of the configuration file within the
// application-data directory.
const FileName = "config.json"

// Theme is the UI color scheme preference. FlashFind's core never reads
// this value itself (theming belongs to the out-of-scope UI shell); it is
// carried here only because it is part of the persisted config.json
// contract in spec §6.
type Theme string

const (
	ThemeDark   Theme = "Dark"
	ThemeLight  Theme = "Light"
	ThemeSystem Theme = "System"
)

func (t Theme) valid() bool {
	switch t {
	case ThemeDark, ThemeLight, ThemeSystem:
		return true
	}
	return false
}

// Config is the fully-resolved runtime configuration.
type Config struct {
	// AutoSaveInterval is how much time must elapse since the last save
	// before the orchestrator's periodic check triggers another one. Zero
	// disables autosave entirely.
	AutoSaveInterval time.Duration

	// Theme is the persisted UI color-scheme preference.
	Theme Theme

	// EnabledDrives is the set of Windows drive letters (e.g. "C", "D")
	// whose roots are added to the default scan set. Ignored on
	// non-Windows platforms, per spec §6.
	EnabledDrives []string

	// ScanIOPSLimit caps the scanner's filesystem syscall rate, in
	// operations per second. Zero means unlimited. This is a domain-stack
	// addition beyond spec.md; see SPEC_FULL.md §4.2.G.
	ScanIOPSLimit float64

	// StateDir is the application-data directory holding config.json and
	// index.bin. Not itself persisted — it is how the files are found.
	StateDir string
}

// persisted is the on-disk JSON shape, matching spec §6 field names.
type persisted struct {
	AutoSaveInterval uint64   `json:"auto_save_interval"`
	Theme            Theme    `json:"theme"`
	EnabledDrives    []string `json:"enabled_drives"`
	ScanIOPSLimit    float64  `json:"scan_iops_limit,omitempty"`
}

// Defaults returns the compiled-in configuration.
func Defaults(stateDir string) *Config {
	return &Config{
		AutoSaveInterval: 5 * time.Minute,
		Theme:            ThemeSystem,
		EnabledDrives:    nil,
		ScanIOPSLimit:    0,
		StateDir:         stateDir,
	}
}

// Load resolves configuration from, in increasing priority: the persisted
// config.json in stateDir, environment variables, and CLI flags parsed
// from args. It never fails on a missing or corrupt config.json — per
// spec §7, InvalidConfig falls back to defaults with a logged warning
// left to the caller (Load returns the warning as a non-fatal error
// alongside a fully usable Config).
func Load(args []string, stateDir string) (*Config, error) {
	cfg := Defaults(stateDir)
	var warn error

	if p, err := loadFile(filepath.Join(stateDir, FileName)); err != nil {
		if !os.IsNotExist(err) {
			warn = fmt.Errorf("config: %w (using defaults)", err)
		}
	} else {
		applyPersisted(cfg, p)
	}

	applyEnv(cfg)

	if err := applyFlags(cfg, args); err != nil {
		return cfg, err
	}

	return cfg, warn
}

func loadFile(path string) (*persisted, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &p, nil
}

func applyPersisted(cfg *Config, p *persisted) {
	cfg.AutoSaveInterval = time.Duration(p.AutoSaveInterval) * time.Second
	if p.Theme.valid() {
		cfg.Theme = p.Theme
	}
	if len(p.EnabledDrives) > 0 {
		cfg.EnabledDrives = p.EnabledDrives
	}
	cfg.ScanIOPSLimit = p.ScanIOPSLimit
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FLASHFIND_AUTOSAVE_SECONDS"); v != "" {
		if secs, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.AutoSaveInterval = time.Duration(secs) * time.Second
		}
	}
	if v := Theme(os.Getenv("FLASHFIND_THEME")); v.valid() {
		cfg.Theme = v
	}
	if v := os.Getenv("FLASHFIND_ENABLED_DRIVES"); v != "" {
		cfg.EnabledDrives = splitDrives(v)
	}
	if v := os.Getenv("FLASHFIND_SCAN_IOPS_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ScanIOPSLimit = f
		}
	}
}

// applyFlags parses a fresh flag.FlagSet every call (rather than the
// package-level flag.CommandLine) so Load is safe to call more than once
// within a process, which matters for tests.
func applyFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("flashfind", flag.ContinueOnError)

	autosave := fs.Uint64("autosave-seconds", 0, "autosave interval in seconds (0 keeps the configured value)")
	theme := fs.String("theme", "", "UI theme: Dark, Light, or System")
	drives := fs.String("drives", "", "comma-separated drive letters to enable (Windows only)")
	iopsLimit := fs.Float64("scan-iops-limit", 0, "cap the scanner's filesystem syscalls per second (0 = unlimited)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *autosave > 0 {
		cfg.AutoSaveInterval = time.Duration(*autosave) * time.Second
	}
	if t := Theme(*theme); t.valid() {
		cfg.Theme = t
	}
	if *drives != "" {
		cfg.EnabledDrives = splitDrives(*drives)
	}
	if *iopsLimit > 0 {
		cfg.ScanIOPSLimit = *iopsLimit
	}

	return nil
}

func splitDrives(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		part = strings.TrimSuffix(part, ":")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Save persists cfg to stateDir/config.json using the same atomic
// write-then-rename pattern as the index file.
func Save(cfg *Config) error {
	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		return fmt.Errorf("config: creating %s: %w", cfg.StateDir, err)
	}

	p := persisted{
		AutoSaveInterval: uint64(cfg.AutoSaveInterval / time.Second),
		Theme:            cfg.Theme,
		EnabledDrives:    cfg.EnabledDrives,
		ScanIOPSLimit:    cfg.ScanIOPSLimit,
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("config: encoding: %w", err)
	}

	path := filepath.Join(cfg.StateDir, FileName)
	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("config: publishing %s: %w", path, err)
	}
	return nil
}
