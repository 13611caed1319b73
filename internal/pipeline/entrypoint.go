package pipeline

import "strings"

// SelectRoot picks the archive path to serve as the app's root document.
// Priority, first match wins:
//
//  1. a root-level index.html
//  2. the first index.html in any subdirectory
//  3. the first .html or .htm file anywhere
//
// Ties within tiers 2 and 3 resolve to whichever entry Extract enumerated
// first; archive member order is implementation-defined across ZIP writers,
// so archives relying on it get a stable but arbitrary pick.
// Returns false when the archive has nothing servable.
func SelectRoot(entries []Entry) (string, bool) {
	for _, e := range entries {
		if e.Path == "index.html" {
			return e.Path, true
		}
	}
	for _, e := range entries {
		// Some Windows ZIP writers separate paths with backslashes.
		if strings.HasSuffix(e.Path, "/index.html") || strings.HasSuffix(e.Path, `\index.html`) {
			return e.Path, true
		}
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Path, ".html") || strings.HasSuffix(e.Path, ".htm") {
			return e.Path, true
		}
	}
	return "", false
}
