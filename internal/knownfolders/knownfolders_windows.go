//go:build windows

package knownfolders

import (
	"golang.org/x/sys/windows/registry"

	"github.com/flashfind/flashfind/internal/config"
)

// shellFolderValues maps our folder names to their value names under the
// per-user Shell Folders registry key. Reading this key (rather than
// hard-coding "%USERPROFILE%\Documents") respects folders the user has
// relocated to another drive.
var shellFolderValues = map[string]string{
	"Documents": "Personal",
	"Downloads": "{374DE290-123F-4565-9164-39C4925E467B}",
	"Desktop":   "Desktop",
	"Pictures":  "My Pictures",
	"Videos":    "My Video",
	"Music":     "My Music",
}

const shellFoldersKey = `Software\Microsoft\Windows\CurrentVersion\Explorer\User Shell Folders`

func platformFolder(home, name string) (string, bool) {
	valueName, ok := shellFolderValues[name]
	if !ok {
		return fallbackFolder(home, name), true
	}

	k, err := registry.OpenKey(registry.CURRENT_USER, shellFoldersKey, registry.QUERY_VALUE)
	if err != nil {
		return fallbackFolder(home, name), true
	}
	defer k.Close()

	value, valType, err := k.GetStringValue(valueName)
	if err != nil || value == "" {
		return fallbackFolder(home, name), true
	}
	// Most values are REG_EXPAND_SZ, e.g. "%USERPROFILE%\Documents".
	if valType == registry.EXPAND_SZ {
		if expanded, err := registry.ExpandString(value); err == nil {
			value = expanded
		}
	}
	return value, true
}

func enabledDriveRoots(cfg *config.Config) []string {
	var roots []string
	for _, letter := range cfg.EnabledDrives {
		if letter == "" {
			continue
		}
		roots = append(roots, letter[:1]+`:\`)
	}
	return roots
}
