package scan

import (
	"context"
	"iter"
	"os"
	"path/filepath"
	"syscall"

	"github.com/michaelscutari/romlint/internal/entry"
	rlerrors "github.com/michaelscutari/romlint/internal/errors"
)

type walker struct {
	opts    *ScanOptions
	rootDev uint64
}

// Walk yields every entry below root in pre-order, directories before their
// contents and each directory's children in lexical order. The root itself
// is not yielded. Symlinks are reported, not followed. The first error ends
// the walk.
func Walk(ctx context.Context, root string, opts *ScanOptions) iter.Seq2[entry.Entry, error] {
	if opts == nil {
		opts = DefaultOptions()
	}
	return func(yield func(entry.Entry, error) bool) {
		w := &walker{opts: opts}
		if opts.Xdev {
			info, err := os.Lstat(root)
			if err != nil {
				yield(entry.Entry{}, rlerrors.IO(err, root))
				return
			}
			w.rootDev = deviceOf(info)
		}
		w.walkDir(ctx, root, 0, yield)
	}
}

func (w *walker) walkDir(ctx context.Context, dir string, depth int, yield func(entry.Entry, error) bool) bool {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		yield(entry.Entry{}, rlerrors.IO(err, dir))
		return false
	}

	for _, de := range dirEntries {
		if err := ctx.Err(); err != nil {
			yield(entry.Entry{}, err)
			return false
		}

		childPath := filepath.Join(dir, de.Name())
		if w.opts.ShouldExclude(childPath) {
			continue
		}

		// Always use Lstat to avoid following symlinks
		info, err := os.Lstat(childPath)
		if err != nil {
			yield(entry.Entry{}, rlerrors.IO(err, childPath))
			return false
		}

		// Cross-device check
		if w.opts.Xdev {
			if dev := deviceOf(info); dev != 0 && dev != w.rootDev {
				continue
			}
		}

		e := entry.FromInfo(childPath, info, depth+1)
		if !yield(e, nil) {
			return false
		}
		if e.IsDir() {
			if !w.walkDir(ctx, childPath, depth+1, yield) {
				return false
			}
		}
	}
	return true
}

func deviceOf(info os.FileInfo) uint64 {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return uint64(stat.Dev)
	}
	return 0
}
