package filemeta

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/michaelscutari/romlint/internal/config"
	"github.com/michaelscutari/romlint/internal/entry"
	rlerrors "github.com/michaelscutari/romlint/internal/errors"
	"github.com/michaelscutari/romlint/internal/pathutil"
)

// Stat is the subset of filesystem metadata rules may observe.
type Stat struct {
	IsDir  bool
	IsFile bool
	Mode   fs.FileMode // permission bits only
	Size   int64
}

func statFromInfo(info fs.FileInfo) Stat {
	return Stat{
		IsDir:  info.IsDir(),
		IsFile: info.Mode().IsRegular(),
		Mode:   info.Mode().Perm(),
		Size:   info.Size(),
	}
}

// Options control how a FileMeta is built.
type Options struct {
	// System overrides directory-based system inference.
	System string
	Config *config.Config
	// Extractors lists archives by extension. Nil disables archive listing.
	Extractors Extractors
}

// FileMeta describes one scanned filesystem entry. It is immutable once built.
type FileMeta struct {
	path         string
	depth        int
	stat         Stat
	archive      *ArchiveInfo
	config       *config.ResolvedConfig
	label        string
	forcedSystem string
}

// FromPath builds a FileMeta for a path given explicitly rather than found
// by the walk. The path is treated as a direct child of the scan root.
func FromPath(path string, opts Options) (*FileMeta, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, rlerrors.IO(err, path)
	}
	return build(path, info, 1, opts)
}

// FromWalkEntry builds a FileMeta from a walk entry, reusing its metadata.
func FromWalkEntry(e entry.Entry, opts Options) (*FileMeta, error) {
	info := e.Info
	if info == nil {
		var err error
		if info, err = os.Lstat(e.Path); err != nil {
			return nil, rlerrors.IO(err, e.Path)
		}
	}
	return build(e.Path, info, e.Depth, opts)
}

func build(path string, info fs.FileInfo, depth int, opts Options) (*FileMeta, error) {
	fm := &FileMeta{
		path:         path,
		depth:        depth,
		stat:         statFromInfo(info),
		forcedSystem: opts.System,
	}

	fm.label = systemLabel(opts, path, depth, fm.stat.IsDir)
	if resolved, ok := opts.Config.Resolve(fm.label); ok {
		fm.config = resolved
	}

	if fm.stat.IsFile {
		if x, ok := opts.Extractors.For(path); ok {
			archive, err := x.Extract(path)
			if err != nil {
				if rlerrors.IsErrorCode(err, rlerrors.ErrArchiveRead) {
					return nil, err
				}
				return nil, rlerrors.Wrapf(err, rlerrors.ErrArchiveRead, "failed to read archive %s", path).
					WithDetail("path", path)
			}
			fm.archive = archive
		}
	}
	return fm, nil
}

// systemLabel picks the system name a file claims: the override, else the
// name of its parent directory. A top-level directory named after a
// configured system is labelled with its own name.
func systemLabel(opts Options, path string, depth int, isDir bool) string {
	if opts.System != "" {
		return opts.System
	}
	if isDir && depth == 1 {
		if own := filepath.Base(path); opts.Config.HasSystem(own) {
			return own
		}
	}
	parent := filepath.Base(filepath.Dir(filepath.Clean(path)))
	if parent == "." || parent == string(filepath.Separator) {
		return ""
	}
	return parent
}

func (f *FileMeta) Path() string { return f.path }
func (f *FileMeta) Depth() int { return f.depth }
func (f *FileMeta) Stat() Stat { return f.stat }
func (f *FileMeta) IsDir() bool { return f.stat.IsDir }
func (f *FileMeta) Size() int64 { return f.stat.Size }

// Archive returns the archive listing, or nil if the file is not a listed
// container.
func (f *FileMeta) Archive() *ArchiveInfo { return f.archive }

// Config returns the resolved system policy, or nil when the system is unknown.
func (f *FileMeta) Config() *config.ResolvedConfig { return f.config }

// System returns the resolved system name, or "" when the system is unknown.
func (f *FileMeta) System() string {
	if f.config == nil {
		return ""
	}
	return f.config.System
}

// SystemLabel returns the system name the file claims whether or not it is
// configured.
func (f *FileMeta) SystemLabel() string { return f.label }

// ForcedSystem returns the override the FileMeta was built with.
func (f *FileMeta) ForcedSystem() string { return f.forcedSystem }

func (f *FileMeta) FileName() string { return filepath.Base(f.path) }
func (f *FileMeta) Stem() string { return pathutil.Stem(f.path) }
func (f *FileMeta) Extension() string { return pathutil.Extension(f.path) }
