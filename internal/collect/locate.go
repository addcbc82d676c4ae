package collect

import (
	"os"
	"path/filepath"
	"strings"
)

// Locator turns candidate names into file locations. Relative names are
// searched next to the master file, in order:
//
//	<masterDir>/<masterStem>/<detector>/<name>
//	<masterDir>/<masterStem>/<name>
//	<masterDir>/<name>
//	<searchDir>/<name> for each configured search dir
type Locator struct {
	masterDir  string
	masterStem string
	searchDirs []string
}

// NewLocator builds a locator for an absolute master file path.
func NewLocator(masterPath string, searchDirs []string) Locator {
	base := filepath.Base(masterPath)
	return Locator{
		masterDir:  filepath.Dir(masterPath),
		masterStem: strings.TrimSuffix(base, filepath.Ext(base)),
		searchDirs: searchDirs,
	}
}

// Locations lists where name may be found, most specific first.
func (l Locator) Locations(detector, name string) []string {
	if filepath.IsAbs(name) {
		return []string{filepath.Clean(name)}
	}
	var locs []string
	if detector != "" {
		locs = append(locs, filepath.Join(l.masterDir, l.masterStem, detector, name))
	}
	locs = append(locs,
		filepath.Join(l.masterDir, l.masterStem, name),
		filepath.Join(l.masterDir, name),
	)
	for _, dir := range l.searchDirs {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(l.masterDir, dir)
		}
		locs = append(locs, filepath.Join(dir, name))
	}
	return dedupe(locs)
}

// Find returns the first existing regular location. Existence is checked on
// every call; nothing is cached.
func (l Locator) Find(detector, name string) (string, []string, bool) {
	locs := l.Locations(detector, name)
	for _, loc := range locs {
		if info, err := os.Stat(loc); err == nil && !info.IsDir() {
			return loc, locs, true
		}
	}
	return "", locs, false
}

// Display renders a location relative to the master file's directory when it
// lies beneath it, absolute otherwise.
func (l Locator) Display(path string) string {
	rel, err := filepath.Rel(l.masterDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}

// DisplayAll renders locations as "[a, b, c]".
func (l Locator) DisplayAll(paths []string) string {
	shown := make([]string, len(paths))
	for i, p := range paths {
		shown[i] = l.Display(p)
	}
	return "[" + strings.Join(shown, ", ") + "]"
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := paths[:0]
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
