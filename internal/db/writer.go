package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/michaelscutari/romlint/internal/event"
	"github.com/michaelscutari/romlint/internal/logging"
)

const insertReportSQL = `INSERT INTO reports (path, system, passed) VALUES (?, ?, ?)`
const insertDiagnosticSQL = `INSERT INTO diagnostics (report_id, message, terminal, hints) VALUES (?, ?, ?, ?)`
const insertSystemSQL = `INSERT OR REPLACE INTO system_summary (system, pass_count, fail_count) VALUES (?, ?, ?)`
const insertRunMetaSQL = `INSERT OR REPLACE INTO run_meta (id, root_path, start_time) VALUES (1, ?, ?)`
const finishRunMetaSQL = `
UPDATE run_meta SET end_time = ?, total_pass = ?, total_fail = ?, scanned_bytes = ?,
    archive_count = ?, archive_compressed = ?, archive_uncompressed = ?
WHERE id = 1`

// ErrRecorderStopped is returned by Handle once Run has returned.
var ErrRecorderStopped = errors.New("recorder stopped")

// Recorder batches reports from the event stream and writes them to the
// database. Handle feeds it; Run does the writing.
type Recorder struct {
	db            *sql.DB
	root          string
	events        chan event.Event
	stopped       chan struct{}
	batchSize     int
	flushInterval time.Duration
	logger        zerolog.Logger

	reportBatch []event.Report
	reportCount int64
	failCount   int64
	finished    bool

	reportStmt *sql.Stmt
	diagStmt   *sql.Stmt

	closeOnce sync.Once
}

// NewRecorder creates a recorder for a run rooted at root.
func NewRecorder(db *sql.DB, root string, batchSize int, flushInterval time.Duration) *Recorder {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Recorder{
		db:            db,
		root:          root,
		events:        make(chan event.Event, batchSize),
		stopped:       make(chan struct{}),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logging.GetLogger("db"),
		reportBatch:   make([]event.Report, 0, batchSize),
	}
}

// Handle queues ev for writing.
func (r *Recorder) Handle(ev event.Event) error {
	select {
	case <-r.stopped:
		return ErrRecorderStopped
	default:
	}

	select {
	case r.events <- ev:
		return nil
	case <-r.stopped:
		return ErrRecorderStopped
	}
}

// Close ends the input. Run drains what is queued and returns.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() { close(r.events) })
	return nil
}

// Run consumes queued events until Close, writing reports in batches. The
// run summary is written when Finished arrives.
func (r *Recorder) Run(ctx context.Context) error {
	defer close(r.stopped)

	if _, err := r.db.Exec(insertRunMetaSQL, r.root, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to write run metadata: %w", err)
	}

	var err error
	r.reportStmt, err = r.db.Prepare(insertReportSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare report statement: %w", err)
	}
	defer r.reportStmt.Close()

	r.diagStmt, err = r.db.Prepare(insertDiagnosticSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare diagnostic statement: %w", err)
	}
	defer r.diagStmt.Close()

	interval := r.flushInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Debug().Int("batch_size", r.batchSize).Dur("flush_interval", interval).Msg("Recorder started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug().Int("pending", len(r.reportBatch)).Msg("Recorder cancelled")
			return r.flushReports()

		case ev, ok := <-r.events:
			if !ok {
				return r.flushReports()
			}
			if err := r.record(ev); err != nil {
				return err
			}

		case <-ticker.C:
			if err := r.flushReports(); err != nil {
				return err
			}
		}
	}
}

func (r *Recorder) record(ev event.Event) error {
	switch ev := ev.(type) {
	case event.Report:
		r.reportBatch = append(r.reportBatch, ev)
		if len(r.reportBatch) >= r.batchSize {
			return r.flushReports()
		}
	case event.Finished:
		if err := r.flushReports(); err != nil {
			return err
		}
		return r.writeSummary(ev.Summary)
	}
	return nil
}

func (r *Recorder) flushReports() error {
	if len(r.reportBatch) == 0 {
		return nil
	}

	batchLen := len(r.reportBatch)
	flushStart := time.Now()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	reportStmt := tx.Stmt(r.reportStmt)
	diagStmt := tx.Stmt(r.diagStmt)
	failures := 0
	for _, rep := range r.reportBatch {
		res, err := reportStmt.Exec(rep.Path, systemOrUnknown(rep.System), boolInt(rep.Passed()))
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert report %q: %w", rep.Path, err)
		}
		if rep.Passed() {
			continue
		}
		failures++
		id, err := res.LastInsertId()
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to read report id for %q: %w", rep.Path, err)
		}
		for _, d := range rep.Diagnostics {
			if _, err := diagStmt.Exec(id, d.Message, boolInt(d.Terminal), strings.Join(d.Hints, "\n")); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to insert diagnostic for %q: %w", rep.Path, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	atomic.AddInt64(&r.reportCount, int64(batchLen))
	atomic.AddInt64(&r.failCount, int64(failures))
	r.logger.Debug().Int("reports", batchLen).Dur("took", time.Since(flushStart)).Msg("Flushed reports")

	r.reportBatch = r.reportBatch[:0]
	return nil
}

func (r *Recorder) writeSummary(s *event.Summary) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin summary transaction: %w", err)
	}

	stmt, err := tx.Prepare(insertSystemSQL)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare summary statement: %w", err)
	}
	defer stmt.Close()

	for _, system := range s.Systems() {
		c := s.PerSystem[system]
		if _, err := stmt.Exec(system, c.Pass, c.Fail); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert summary for %q: %w", system, err)
		}
	}

	end := s.End
	if end.IsZero() {
		end = time.Now()
	}
	_, err = tx.Exec(finishRunMetaSQL,
		end.Unix(), s.TotalPass(), s.TotalFail(), s.ScannedBytes,
		s.ArchiveCount, int64(s.ArchiveCompressed), int64(s.ArchiveUncompressed))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to update run metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit summary transaction: %w", err)
	}
	r.finished = true
	return nil
}

// ReportCount returns how many reports have been written.
func (r *Recorder) ReportCount() int64 {
	return atomic.LoadInt64(&r.reportCount)
}

// FailureCount returns how many failing reports have been written.
func (r *Recorder) FailureCount() int64 {
	return atomic.LoadInt64(&r.failCount)
}

// Finished reports whether the run summary was written. Only valid after
// Run has returned.
func (r *Recorder) Finished() bool {
	return r.finished
}

func systemOrUnknown(system string) string {
	if system == "" {
		return event.UnknownSystem
	}
	return system
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
