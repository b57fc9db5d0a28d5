// Package safepath implements the safety gate from spec §6: the checks a
// caller must run on a path before handing it to an external "open this
// file" operation, defending against accidental shell interpretation in
// whatever downstream opener is used.
//
// This is three string/path comparisons with no parsing, state, or
// external format involved; none of the retrieval pack's libraries target
// anything this narrow, so it stays on the standard library (path/filepath
// and strings) rather than pulling one in for its own sake.
package safepath

import (
	"path/filepath"
	"strings"
)

// shellMetacharacters are characters that could cause accidental command
// interpretation if a path were ever passed through a shell by a
// downstream opener.
const shellMetacharacters = "&|;"

// SafeToOpen reports whether path may be handed to an external opener.
// It requires that path be absolute, not a UNC path, and free of shell
// metacharacters.
func SafeToOpen(path string) bool {
	if !filepath.IsAbs(path) {
		return false
	}
	if strings.HasPrefix(path, `\\`) {
		return false
	}
	if strings.ContainsAny(path, shellMetacharacters) {
		return false
	}
	return true
}
