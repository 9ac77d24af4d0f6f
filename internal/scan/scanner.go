package scan

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/michaelscutari/romlint/internal/catalog"
	"github.com/michaelscutari/romlint/internal/config"
	"github.com/michaelscutari/romlint/internal/entry"
	rlerrors "github.com/michaelscutari/romlint/internal/errors"
	"github.com/michaelscutari/romlint/internal/event"
	"github.com/michaelscutari/romlint/internal/filemeta"
	"github.com/michaelscutari/romlint/internal/logging"
	"github.com/michaelscutari/romlint/internal/scripts"
)

// Scanner walks a ROM tree, runs every loaded rule against each entry and
// streams the results to a sink.
type Scanner struct {
	opts     *ScanOptions
	cfg      *config.Config
	host     *scripts.Host
	catalogs *catalog.Set
	sink     event.Sink
	logger   zerolog.Logger

	reqs       scripts.Requirements
	extractors filemeta.Extractors
}

// NewScanner creates a new scanner. catalogs may be nil when no rule needs
// catalog lookups.
func NewScanner(cfg *config.Config, host *scripts.Host, catalogs *catalog.Set, sink event.Sink, opts *ScanOptions) *Scanner {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.ArchiveWorkers < 1 {
		opts.ArchiveWorkers = 1
	}
	s := &Scanner{
		opts:     opts,
		cfg:      cfg,
		host:     host,
		catalogs: catalogs,
		sink:     sink,
		logger:   logging.GetLogger("scan"),
		reqs:     host.Requirements(),
	}
	if s.reqs.Has(scripts.CapArchive) && !opts.NoArchiveChecks {
		s.extractors = filemeta.DefaultExtractors()
	}
	return s
}

// pendingFile is a file whose metadata is being built off the checking
// goroutine. done is closed once meta or err is set.
type pendingFile struct {
	entry entry.Entry
	meta  *filemeta.FileMeta
	err   error
	done  chan struct{}
}

// Run checks every entry below root, then sends Finished. Files are checked
// one at a time in walk order while the metadata and archive listings of
// upcoming files are built in parallel.
func (s *Scanner) Run(ctx context.Context, root string) (*event.Summary, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, rlerrors.IO(err, root)
	}
	if !info.IsDir() {
		return nil, rlerrors.Newf(rlerrors.ErrIO, "%s is not a directory", root).WithDetail("path", root)
	}

	s.logger.Info().
		Str("root", root).
		Str("requires", s.reqs.String()).
		Bool("archives", s.extractors != nil).
		Msg("Scan started")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan *pendingFile, s.opts.Prefetch)
	go s.produce(ctx, root, queue)
	// Unblock and drain the producer on early return.
	defer func() {
		cancel()
		for range queue {
		}
	}()

	summary := event.NewSummary()
	for pf := range queue {
		select {
		case <-pf.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fm, diag, err := s.resolve(pf.entry, pf.meta, pf.err)
		if err != nil {
			return nil, err
		}
		if err := s.check(ctx, fm, diag, summary); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return summary, s.finish(ctx, summary)
}

// CheckFile checks a single path without walking, then sends Finished.
func (s *Scanner) CheckFile(ctx context.Context, path string) (*event.Summary, error) {
	summary := event.NewSummary()

	fm, err := filemeta.FromPath(path, s.metaOptions(s.extractors))
	var diag *event.Diagnostic
	if rlerrors.IsErrorCode(err, rlerrors.ErrArchiveRead) {
		d := archiveDiagnostic(path, err)
		diag = &d
		fm, err = filemeta.FromPath(path, s.metaOptions(nil))
	}
	if err != nil {
		return nil, err
	}

	if err := s.check(ctx, fm, diag, summary); err != nil {
		return nil, err
	}
	return summary, s.finish(ctx, summary)
}

func (s *Scanner) metaOptions(extractors filemeta.Extractors) filemeta.Options {
	return filemeta.Options{System: s.opts.System, Config: s.cfg, Extractors: extractors}
}

// produce walks root and builds file metadata on a bounded worker pool,
// queueing results in walk order.
func (s *Scanner) produce(ctx context.Context, root string, queue chan<- *pendingFile) {
	defer close(queue)

	var g errgroup.Group
	g.SetLimit(s.opts.ArchiveWorkers)
	defer g.Wait()

	opts := s.metaOptions(s.extractors)
	for e, err := range Walk(ctx, root, s.opts) {
		pf := &pendingFile{entry: e, done: make(chan struct{})}
		if err != nil {
			pf.err = err
			close(pf.done)
		}

		select {
		case queue <- pf:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}

		g.Go(func() error {
			defer close(pf.done)
			pf.meta, pf.err = filemeta.FromWalkEntry(pf.entry, opts)
			return nil
		})
	}
}

// resolve turns a build result into a FileMeta to check. An unreadable
// archive becomes a terminal diagnostic; other errors are fatal.
func (s *Scanner) resolve(e entry.Entry, fm *filemeta.FileMeta, err error) (*filemeta.FileMeta, *event.Diagnostic, error) {
	if err == nil {
		return fm, nil, nil
	}
	if !rlerrors.IsErrorCode(err, rlerrors.ErrArchiveRead) {
		return nil, nil, err
	}

	s.logger.Warn().Err(err).Str("path", e.Path).Msg("Failed to read archive")
	diag := archiveDiagnostic(e.Path, err)
	fm, err = filemeta.FromWalkEntry(e, s.metaOptions(nil))
	if err != nil {
		return nil, nil, err
	}
	return fm, &diag, nil
}

func archiveDiagnostic(path string, err error) event.Diagnostic {
	return event.Diagnostic{
		Message:  "Unable to read archive",
		Path:     path,
		Hints:    []string{err.Error()},
		Terminal: true,
	}
}

// check runs every rule against one file and sends its status and report.
// pre is a diagnostic found before any rule ran.
func (s *Scanner) check(ctx context.Context, fm *filemeta.FileMeta, pre *event.Diagnostic, summary *event.Summary) error {
	path := fm.Path()
	if err := s.sink.Send(ctx, event.SetStatus{Path: path}); err != nil {
		return err
	}

	report := event.Report{Path: path, System: fm.System()}
	switch {
	case pre != nil:
		report.Diagnostics = []event.Diagnostic{*pre}
	case fm.Config() == nil:
		report.Diagnostics = []event.Diagnostic{s.unknownSystem(fm)}
	default:
		var db *catalog.Database
		if s.reqs.Has(scripts.CapFileDB) {
			var err error
			if db, err = s.catalogs.Wait(ctx, fm.System()); err != nil {
				return err
			}
		}

		diags, err := s.host.RunAll(ctx, scripts.Env{File: fm, Catalog: db})
		if err != nil {
			return err
		}
		report.Diagnostics = diags
	}

	summary.Add(report)
	if fm.Stat().IsFile {
		summary.ScannedBytes += fm.Size()
		if archive := fm.Archive(); archive != nil {
			summary.ArchiveCount++
			summary.ArchiveCompressed += archive.CompressedSize
			summary.ArchiveUncompressed += archive.UncompressedSize
		} else {
			summary.UncompressedFileCount++
			summary.UncompressedFileBytes += fm.Size()
		}
	}

	s.logger.Trace().Str("path", path).Int("diagnostics", len(report.Diagnostics)).Msg("File checked")
	return s.sink.Send(ctx, report)
}

func (s *Scanner) unknownSystem(fm *filemeta.FileMeta) event.Diagnostic {
	msg := "Unknown system"
	if label := fm.SystemLabel(); label != "" {
		msg = fmt.Sprintf("Unknown system '%s'", label)
	}
	var hints []string
	if names := s.cfg.SystemNames(); len(names) > 0 {
		hints = append(hints, "configured systems: "+strings.Join(names, ", "))
	}
	hints = append(hints, "use --system to set the system explicitly")
	return event.Diagnostic{Message: msg, Path: fm.Path(), Hints: hints, Terminal: true}
}

// finish waits for outstanding catalog loads so no progress event follows
// Finished, then sends the summary.
func (s *Scanner) finish(ctx context.Context, summary *event.Summary) error {
	if err := s.catalogs.Settle(ctx); err != nil {
		return err
	}
	summary.MarkEnded()
	s.logger.Info().
		Int("pass", summary.TotalPass()).
		Int("fail", summary.TotalFail()).
		Dur("duration", summary.Duration()).
		Msg("Scan finished")
	return s.sink.Send(ctx, event.Finished{Summary: summary})
}
