package scan

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
)

// ScanOptions configures the scanning behavior.
type ScanOptions struct {
	// System forces every file into one system instead of inferring it from
	// the parent directory.
	System string

	// Xdev prevents crossing filesystem boundaries.
	Xdev bool

	// ExcludePatterns are regular expressions for paths to skip. A skipped
	// directory is not descended into.
	ExcludePatterns []*regexp.Regexp

	// NoArchiveChecks disables listing archive contents even when a rule
	// asks for them.
	NoArchiveChecks bool

	// ArchiveWorkers is the number of files whose metadata and archive
	// listing are built in parallel ahead of the checker.
	ArchiveWorkers int

	// Prefetch is how many built files may wait for the checker.
	Prefetch int
}

// DefaultOptions returns sensible defaults for scanning.
func DefaultOptions() *ScanOptions {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}
	opts := &ScanOptions{
		ArchiveWorkers: workers,
		Prefetch:       workers * 4,
	}
	// Exclude NFS snapshot directories by default
	opts.AddExcludePattern(`/\.snapshot(/|$)`)
	return opts
}

// WithSystem sets the system override.
func (o *ScanOptions) WithSystem(system string) *ScanOptions {
	o.System = system
	return o
}

// Root returns the directory a lint of cwd walks. With a system override
// and a directory of that name under cwd, only that directory is walked;
// otherwise cwd itself is taken to hold the system's files.
func (o *ScanOptions) Root(cwd string) string {
	if o.System == "" {
		return cwd
	}
	dir := filepath.Join(cwd, o.System)
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir
	}
	return cwd
}

// WithXdev sets cross-device behavior.
func (o *ScanOptions) WithXdev(xdev bool) *ScanOptions {
	o.Xdev = xdev
	return o
}

// WithArchiveWorkers sets the archive worker count. Values below one keep
// the default.
func (o *ScanOptions) WithArchiveWorkers(n int) *ScanOptions {
	if n > 0 {
		o.ArchiveWorkers = n
		if o.Prefetch < n {
			o.Prefetch = n
		}
	}
	return o
}

// WithNoArchiveChecks disables archive listing.
func (o *ScanOptions) WithNoArchiveChecks(disabled bool) *ScanOptions {
	o.NoArchiveChecks = disabled
	return o
}

// AddExcludePattern adds a pattern to exclude.
func (o *ScanOptions) AddExcludePattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	o.ExcludePatterns = append(o.ExcludePatterns, re)
	return nil
}

// ShouldExclude checks if a path matches any exclude pattern.
func (o *ScanOptions) ShouldExclude(path string) bool {
	for _, re := range o.ExcludePatterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}
