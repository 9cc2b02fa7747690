package zipup

import (
	"path"
	"strings"
)

// ignorePattern is a parsed ignore pattern with its matching strategy.
type ignorePattern struct {
	pattern   string
	matchPath bool // true = match against the full archive path; false = basename only
	dirPrefix bool // pattern ended in '/': matches everything under that directory
}

// IgnoreMatcher decides which archive members are left out of an upload.
// Patterns without '/' match a member's basename. Patterns with '/' match the
// full slash-separated archive path. A trailing '/' (e.g. "__MACOSX/") matches
// every member below a directory of that name.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern strings.
// Blank lines and lines starting with '#' are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []ignorePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		if strings.HasSuffix(raw, "/") {
			patterns = append(patterns, ignorePattern{pattern: strings.TrimSuffix(raw, "/"), dirPrefix: true})
			continue
		}
		patterns = append(patterns, ignorePattern{
			pattern:   raw,
			matchPath: strings.Contains(raw, "/"),
		})
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Match reports whether the archive path should be ignored.
// A nil matcher ignores nothing.
func (m *IgnoreMatcher) Match(archivePath string) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}

	basename := path.Base(archivePath)
	for _, p := range m.patterns {
		var matched bool
		var err error
		switch {
		case p.dirPrefix:
			matched = matchDirComponent(p.pattern, archivePath)
		case p.matchPath:
			matched, err = path.Match(p.pattern, archivePath)
		default:
			matched, err = path.Match(p.pattern, basename)
		}
		if err != nil {
			// Bad pattern, skip rather than fail the upload.
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// matchDirComponent reports whether any directory component of archivePath
// matches pattern.
func matchDirComponent(pattern, archivePath string) bool {
	parts := strings.Split(archivePath, "/")
	for _, dir := range parts[:len(parts)-1] {
		if ok, err := path.Match(pattern, dir); err == nil && ok {
			return true
		}
	}
	return false
}
