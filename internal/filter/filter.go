// Package filter implements the pure, stateless exclusion predicates that
// decide which filesystem paths are eligible for indexing.
package filter

import (
	"strings"
)

// excludedSubstrings is matched case-insensitively against the whole path.
// Order does not matter; every entry is checked.
var excludedSubstrings = []string{
	// System/trash
	`$recycle.bin`,
	`windows\temp`,
	`windows\winsxs`,
	`windows\installer`,
	`programdata\microsoft`,

	// Local caches and temp trees
	`appdata\local`,
	`appdata\locallow`,
	`temp`,
	`tmp`,
	`.cache`,

	// Dev artifacts
	`node_modules`,
	`.git`,
	`.svn`,
	`.hg`,
	`__pycache__`,
	`target\debug`,
	`target\release`,
	`bin\debug`,
	`bin\release`,
	`obj`,
	`packages`,
	`bower_components`,
	`.vs`,
	`.vscode`,
}

// excludedExtensions are matched against the lowercased path suffix.
var excludedExtensions = []string{".sys", ".dll", ".tmp"}

// IsExcluded reports whether path should never be indexed, regardless of
// whether the candidate was discovered by a scan or a watch event.
func IsExcluded(path string) bool {
	lower := strings.ToLower(path)

	for _, pattern := range excludedSubstrings {
		if strings.Contains(lower, pattern) {
			return true
		}
	}

	for _, ext := range excludedExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}

	if isDotfile(basename(path)) {
		return true
	}

	return false
}

// basename returns the final path component without relying on
// path/filepath, since excluded paths may use either separator style
// (the exclusion table itself is written with backslashes) and the
// caller's raw OS path should be matched on its own terms.
func basename(path string) string {
	i := strings.LastIndexAny(path, `/\`)
	if i < 0 {
		return path
	}
	return path[i+1:]
}

func isDotfile(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// transientPrefixes and transientSuffixes implement the watcher-only
// transient-file rules from spec §4.3: files that are clearly a partial
// download or an editor/office lock file and should never be indexed even
// momentarily, regardless of the stability check in the watcher.
var transientPrefixes = []string{"~$", ".~"}

var transientSuffixes = []string{".tmp", ".temp", ".crdownload", ".part", ".download"}

// IsTransient reports whether a bare filename (no directory component)
// matches one of the watcher-only transient-file heuristics.
func IsTransient(name string) bool {
	lower := strings.ToLower(name)

	for _, p := range transientPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	for _, s := range transientSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	if strings.Contains(lower, ".tmp.") {
		return true
	}
	return false
}
