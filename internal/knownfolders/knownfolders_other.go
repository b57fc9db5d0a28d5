//go:build !windows

package knownfolders

import "github.com/flashfind/flashfind/internal/config"

func platformFolder(home, name string) (string, bool) {
	return fallbackFolder(home, name), true
}

// enabledDriveRoots is a no-op on non-Windows platforms: spec.md says the
// enabled-drive set is ignored there in favor of the home directory's
// well-known folders.
func enabledDriveRoots(cfg *config.Config) []string {
	return nil
}
