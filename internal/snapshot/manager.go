// Package snapshot records lint runs to timestamped SQLite files in an
// output directory, keeping a latest.db link and a bounded history.
package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/michaelscutari/romlint/internal/db"
	"github.com/michaelscutari/romlint/internal/event"
	"github.com/michaelscutari/romlint/internal/logging"

	_ "modernc.org/sqlite"
)

const (
	snapshotPrefix = "romlint-"
	snapshotSuffix = ".db"
	stampLayout    = "20060102-150405"
	latestName     = "latest.db"
	lockName       = ".romlint.lock"

	defaultBatchSize     = 256
	defaultFlushInterval = time.Second
)

// Manager owns an output directory of recorded runs.
type Manager struct {
	outputDir string
	retention int
	logger    zerolog.Logger
	now       func() time.Time
}

// NewManager creates a new snapshot manager. A retention of 0 keeps every
// snapshot.
func NewManager(outputDir string, retention int) *Manager {
	return &Manager{
		outputDir: outputDir,
		retention: retention,
		logger:    logging.GetLogger("snapshot"),
		now:       time.Now,
	}
}

// Recording is a run being written to a temporary database. It consumes the
// event stream as a reporter and becomes a snapshot on Close.
type Recording struct {
	mgr      *Manager
	lock     *dirLock
	database *sql.DB
	tempPath string
	recorder *db.Recorder
	done     chan error
	cancel   context.CancelFunc
	path     string
}

// Begin locks the output directory and starts recording a run of root.
func (m *Manager) Begin(ctx context.Context, root string) (*Recording, error) {
	if err := os.MkdirAll(m.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	lock, err := lockDir(m.outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	tempPath := filepath.Join(m.outputDir, fmt.Sprintf(".romlint-temp-%d.db", m.now().UnixNano()))
	database, err := openForWrite(tempPath)
	if err != nil {
		os.Remove(tempPath)
		lock.unlock()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	rec := &Recording{
		mgr:      m,
		lock:     lock,
		database: database,
		tempPath: tempPath,
		recorder: db.NewRecorder(database, root, defaultBatchSize, defaultFlushInterval),
		done:     make(chan error, 1),
		cancel:   cancel,
	}
	go func() {
		rec.done <- rec.recorder.Run(runCtx)
	}()

	m.logger.Debug().Str("path", tempPath).Str("root", root).Msg("Recording started")
	return rec, nil
}

func openForWrite(path string) (*sql.DB, error) {
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	database.SetMaxOpenConns(1)

	if err := db.InitSchema(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := db.ApplyWritePragmas(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	return database, nil
}

// Handle forwards an event to the recorder.
func (r *Recording) Handle(ev event.Event) error {
	return r.recorder.Handle(ev)
}

// Close finishes the recording. A run that never reached Finished is
// discarded; otherwise the database is indexed, renamed into place and
// latest.db is repointed.
func (r *Recording) Close() error {
	defer r.lock.unlock()
	defer r.cancel()

	r.recorder.Close()
	if err := <-r.done; err != nil {
		r.discard()
		return fmt.Errorf("recording failed: %w", err)
	}
	if !r.recorder.Finished() {
		r.discard()
		r.mgr.logger.Info().Msg("Run did not finish; recording discarded")
		return nil
	}

	if err := db.BuildIndexes(r.database); err != nil {
		r.discard()
		return fmt.Errorf("failed to build indexes: %w", err)
	}
	if err := db.Finalize(r.database); err != nil {
		r.discard()
		return fmt.Errorf("failed to finalize database: %w", err)
	}
	r.database.Close()

	path, err := r.mgr.install(r.tempPath)
	if err != nil {
		return err
	}
	r.path = path
	r.mgr.logger.Debug().
		Str("path", path).
		Int64("reports", r.recorder.ReportCount()).
		Int64("failures", r.recorder.FailureCount()).
		Msg("Recording installed")
	return nil
}

func (r *Recording) discard() {
	r.database.Close()
	os.Remove(r.tempPath)
}

// Path is the final snapshot path, set once Close succeeds.
func (r *Recording) Path() string {
	return r.path
}

// install moves a finished database to its timestamped name. Failing to
// repoint latest.db or prune is logged, not returned: the snapshot itself
// is already in place.
func (m *Manager) install(tempPath string) (string, error) {
	name := m.snapshotName()
	finalPath := filepath.Join(m.outputDir, name)
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to rename database: %w", err)
	}

	if err := m.pointLatest(name); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to update latest.db")
	}
	if err := m.prune(); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to prune old snapshots")
	}
	return finalPath, nil
}

// pointLatest swaps latest.db to name through a temporary link so readers
// never see it missing.
func (m *Manager) pointLatest(name string) error {
	tempLink := filepath.Join(m.outputDir, ".latest.db.tmp")
	os.Remove(tempLink)
	if err := os.Symlink(name, tempLink); err != nil {
		return err
	}
	if err := os.Rename(tempLink, filepath.Join(m.outputDir, latestName)); err != nil {
		os.Remove(tempLink)
		return err
	}
	return nil
}

// snapshotName picks a timestamped name, adding a counter when two runs land
// in the same second.
func (m *Manager) snapshotName() string {
	stamp := m.now().Format(stampLayout)
	name := snapshotPrefix + stamp + snapshotSuffix
	for i := 1; ; i++ {
		if _, err := os.Lstat(filepath.Join(m.outputDir, name)); os.IsNotExist(err) {
			return name
		}
		name = fmt.Sprintf("%s%s_%02d%s", snapshotPrefix, stamp, i, snapshotSuffix)
	}
}

func (m *Manager) prune() error {
	if m.retention <= 0 {
		return nil
	}
	snapshots, err := m.ListSnapshots()
	if err != nil {
		return err
	}
	excess := len(snapshots) - m.retention
	for _, path := range snapshots[:max(excess, 0)] {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		m.logger.Debug().Str("path", path).Msg("Pruned snapshot")
	}
	return nil
}

// GetLatest resolves latest.db to the snapshot it points at.
func (m *Manager) GetLatest() (string, error) {
	resolved, err := filepath.EvalSymlinks(filepath.Join(m.outputDir, latestName))
	if err != nil {
		return "", fmt.Errorf("no latest snapshot in %s: %w", m.outputDir, err)
	}
	return resolved, nil
}

// ListSnapshots returns every recorded snapshot, oldest first. Names embed
// the timestamp, so lexical order is chronological.
func (m *Manager) ListSnapshots() ([]string, error) {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return nil, err
	}

	var snapshots []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotSuffix) {
			continue
		}
		snapshots = append(snapshots, filepath.Join(m.outputDir, name))
	}
	slices.Sort(snapshots)
	return snapshots, nil
}
