package pathutil

import (
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

// Display returns path relative to base for reporting. Paths outside base,
// or that cannot be made relative, are returned cleaned but otherwise intact.
func Display(base, path string) string {
	if base == "" {
		return Normalize(path)
	}
	rel, err := filepath.Rel(Normalize(base), Normalize(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Normalize(path)
	}
	return rel
}

// Stem returns the file name without its final extension.
func Stem(path string) string {
	name := filepath.Base(path)
	if ext := filepath.Ext(name); ext != "" && ext != name {
		return strings.TrimSuffix(name, ext)
	}
	return name
}

// Extension returns the final extension without its leading dot.
func Extension(path string) string {
	name := filepath.Base(path)
	ext := filepath.Ext(name)
	if ext == name {
		return ""
	}
	return strings.TrimPrefix(ext, ".")
}
