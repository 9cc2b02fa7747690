package zipup

import "testing"

func TestNewIgnoreMatcher(t *testing.T) {
	t.Run("skips blank lines and comments", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"", "  ", "# comment", "*.log"})
		if len(m.patterns) != 1 {
			t.Fatalf("expected 1 pattern, got %d", len(m.patterns))
		}
		if m.patterns[0].pattern != "*.log" {
			t.Errorf("expected *.log, got %s", m.patterns[0].pattern)
		}
	})

	t.Run("classifies pattern kinds", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"*.log", "build/output", "__MACOSX/"})
		if m.patterns[0].matchPath || m.patterns[0].dirPrefix {
			t.Error("*.log should be a basename pattern")
		}
		if !m.patterns[1].matchPath {
			t.Error("build/output should be a path pattern")
		}
		if !m.patterns[2].dirPrefix || m.patterns[2].pattern != "__MACOSX" {
			t.Errorf("__MACOSX/ should be a directory pattern, got %+v", m.patterns[2])
		}
	})
}

func TestIgnoreMatcher_Match(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		path     string
		want     bool
	}{
		{"basename glob matches root file", []string{"*.log"}, "app.log", true},
		{"basename glob matches nested file", []string{"*.log"}, "sub/app.log", true},
		{"basename glob skips other extension", []string{"*.log"}, "app.txt", false},
		{"exact basename", []string{".DS_Store"}, "a/b/.DS_Store", true},
		{"path pattern matches full path", []string{"build/output"}, "build/output", true},
		{"path pattern does not match basename", []string{"build/output"}, "x/build/output", false},
		{"directory pattern matches member below it", []string{"__MACOSX/"}, "__MACOSX/._index.ts", true},
		{"directory pattern matches nested directory", []string{"node_modules/"}, "web/node_modules/lib/a.js", true},
		{"directory pattern ignores same-named file", []string{"node_modules/"}, "web/node_modules", false},
		{"bad pattern is skipped", []string{"[", "*.tmp"}, "x.tmp", true},
		{"no patterns", nil, "anything", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewIgnoreMatcher(tt.patterns)
			if got := m.Match(tt.path); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}

	t.Run("nil matcher", func(t *testing.T) {
		t.Parallel()
		var m *IgnoreMatcher
		if m.Match("a.log") {
			t.Error("nil matcher should ignore nothing")
		}
	})
}
