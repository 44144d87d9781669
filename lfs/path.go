package lfs

import "strings"

// cleanPath collapses repeated separators and drops a trailing
// separator, without touching "." or ".." components: this
// filesystem resolves paths component-by-component against directory
// blocks, it does not walk the host's notion of "..".
func cleanPath(path string) string {
	if path == "" {
		return PathSeparator
	}
	parts := splitNonEmpty(path)
	if len(parts) == 0 {
		return PathSeparator
	}
	return PathSeparator + strings.Join(parts, PathSeparator)
}

// parentPath returns the cleaned parent directory of path. The root's
// parent is the root itself.
func parentPath(path string) string {
	parts := splitNonEmpty(path)
	if len(parts) <= 1 {
		return PathSeparator
	}
	return PathSeparator + strings.Join(parts[:len(parts)-1], PathSeparator)
}

// entityName returns the final path component. The root has no name
// component of its own and entityName("/") returns "".
func entityName(path string) string {
	parts := splitNonEmpty(path)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

func splitNonEmpty(path string) []string {
	raw := strings.Split(path, PathSeparator)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
