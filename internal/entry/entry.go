// Package entry holds the walk record shared by the walker and the metadata
// builder.
package entry

import (
	"io/fs"
	"path/filepath"
)

// Entry is one filesystem entry yielded by the directory walk.
// Depth counts from the scan root: the root's direct children are at depth 1.
type Entry struct {
	Path  string
	Name  string
	Depth int

	// Info is the Lstat result the entry was built from. Symlinks are not
	// followed.
	Info fs.FileInfo
}

// FromInfo builds an Entry from an Lstat result.
func FromInfo(path string, info fs.FileInfo, depth int) Entry {
	return Entry{
		Path:  path,
		Name:  filepath.Base(path),
		Depth: depth,
		Info:  info,
	}
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.Info != nil && e.Info.IsDir()
}

// Type names the entry's file type: file, dir, symlink or other.
func (e Entry) Type() string {
	if e.Info == nil {
		return "other"
	}
	mode := e.Info.Mode()
	switch {
	case mode.IsRegular():
		return "file"
	case mode.IsDir():
		return "dir"
	case mode&fs.ModeSymlink != 0:
		return "symlink"
	default:
		return "other"
	}
}
