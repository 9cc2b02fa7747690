package zipup

import "strings"

// SanitizeRepositoryName drops every character GitHub does not allow in a
// repository name, keeping ASCII letters, digits, '-', '.' and '_'.
// Case is preserved; Publish lower-cases the name itself.
func SanitizeRepositoryName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-', r == '.', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}
