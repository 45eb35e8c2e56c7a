package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// Normalize returns a canonical filesystem path string.
// It removes trailing slashes, collapses "." and "..", and
// preserves relative paths when provided.
func Normalize(path string) string {
	if path == "" {
		return path
	}
	return filepath.Clean(path)
}

// Absolute returns the cleaned absolute form of path with symlinks
// resolved as far as they exist.
func Absolute(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	// Resolve the longest existing prefix so a not-yet-created output
	// under a symlinked parent still compares correctly.
	rest := ""
	cur := abs
	for {
		if resolved, err := filepath.EvalSymlinks(cur); err == nil {
			return filepath.Join(resolved, rest), nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(cur), rest)
		cur = parent
	}
}

// Within reports whether path equals root or lies beneath it.
// Both arguments must already be normalized.
func Within(path, root string) bool {
	if path == root {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

// Overlaps reports whether deleting b would touch a, or the other way
// round: the two paths are equal or one contains the other.
func Overlaps(a, b string) (bool, error) {
	absA, err := Absolute(a)
	if err != nil {
		return false, err
	}
	absB, err := Absolute(b)
	if err != nil {
		return false, err
	}
	return Within(absA, absB) || Within(absB, absA), nil
}

// ToSlash joins path elements relative to root with forward slashes,
// the separator object stores expect in keys.
func ToSlash(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
