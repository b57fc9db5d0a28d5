// Package knownfolders resolves the platform's well-known user folders
// (Documents, Downloads, Desktop, Pictures, Videos, Music) used to seed
// the default scan roots. This is explicitly an out-of-scope collaborator
// per spec §1 ("OS-specific known-folder resolution"); the implementation
// here is intentionally minimal.
package knownfolders

import (
	"os"
	"path/filepath"

	"github.com/flashfind/flashfind/internal/config"
)

// names are the well-known folders spec.md asks for, in the order it
// lists them.
var names = []string{"Documents", "Downloads", "Desktop", "Pictures", "Videos", "Music"}

// Default returns the existing well-known user folders for the current
// platform. Non-existent entries are skipped, per spec.md.
func Default() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	var dirs []string
	for _, name := range names {
		path, ok := platformFolder(home, name)
		if !ok {
			continue
		}
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			dirs = append(dirs, path)
		}
	}
	return dirs
}

// fallbackFolder joins the home directory with name using the host's
// native separator; used by platformFolder when no richer OS-specific
// lookup is available.
func fallbackFolder(home, name string) string {
	return filepath.Join(home, name)
}

// EnabledDriveRoots returns the root path for each drive letter enabled in
// cfg. It is a Windows-only concept; on other platforms spec.md says the
// enabled-drive set is ignored, so this always returns nil there (see
// knownfolders_windows.go for the Windows implementation).
func EnabledDriveRoots(cfg *config.Config) []string {
	return enabledDriveRoots(cfg)
}
