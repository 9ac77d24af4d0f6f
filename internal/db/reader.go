package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/michaelscutari/romlint/internal/event"
)

// RunMeta describes one recorded lint run.
type RunMeta struct {
	RootPath            string
	StartTime           time.Time
	EndTime             time.Time
	TotalPass           int
	TotalFail           int
	ScannedBytes        int64
	ArchiveCount        int
	ArchiveCompressed   int64
	ArchiveUncompressed int64
}

// Complete reports whether the run reached its summary.
func (m *RunMeta) Complete() bool {
	return !m.EndTime.IsZero()
}

// Duration is the recorded wall time of a complete run.
func (m *RunMeta) Duration() time.Duration {
	if !m.Complete() {
		return 0
	}
	return m.EndTime.Sub(m.StartTime)
}

// SystemSummary is one row of the per-system tally.
type SystemSummary struct {
	System string
	Pass   int
	Fail   int
}

// Failure is a failing file with its diagnostics.
type Failure struct {
	Path        string
	System      string
	Diagnostics []event.Diagnostic
}

// GetRunMeta retrieves run metadata.
func GetRunMeta(db *sql.DB) (*RunMeta, error) {
	var m RunMeta
	var startTime, endTime int64

	err := db.QueryRow(`
		SELECT root_path, start_time, COALESCE(end_time, 0), total_pass, total_fail,
		       scanned_bytes, archive_count, archive_compressed, archive_uncompressed
		FROM run_meta WHERE id = 1
	`).Scan(&m.RootPath, &startTime, &endTime, &m.TotalPass, &m.TotalFail,
		&m.ScannedBytes, &m.ArchiveCount, &m.ArchiveCompressed, &m.ArchiveUncompressed)

	if err != nil {
		return nil, err
	}

	m.StartTime = time.Unix(startTime, 0)
	if endTime > 0 {
		m.EndTime = time.Unix(endTime, 0)
	}

	return &m, nil
}

// LoadSystemSummaries returns the per-system tallies sorted by system name.
func LoadSystemSummaries(db *sql.DB) ([]SystemSummary, error) {
	rows, err := db.Query(`SELECT system, pass_count, fail_count FROM system_summary ORDER BY system`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []SystemSummary
	for rows.Next() {
		var s SystemSummary
		if err := rows.Scan(&s.System, &s.Pass, &s.Fail); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LoadFailures returns up to limit failing files in the order they were
// checked, each with its diagnostics.
func LoadFailures(db *sql.DB, limit int) ([]Failure, error) {
	rows, err := db.Query(`
		SELECT r.id, r.path, r.system, d.message, d.terminal, d.hints
		FROM (SELECT id, path, system FROM reports WHERE passed = 0 ORDER BY id LIMIT ?) r
		JOIN diagnostics d ON d.report_id = r.id
		ORDER BY r.id, d.id
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []Failure
	lastID := int64(-1)
	for rows.Next() {
		var (
			id       int64
			path     string
			system   string
			message  string
			terminal bool
			hints    string
		)
		if err := rows.Scan(&id, &path, &system, &message, &terminal, &hints); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		if id != lastID {
			out = append(out, Failure{Path: path, System: system})
			lastID = id
		}
		d := event.Diagnostic{Message: message, Path: path, Terminal: terminal}
		if hints != "" {
			d.Hints = strings.Split(hints, "\n")
		}
		cur := &out[len(out)-1]
		cur.Diagnostics = append(cur.Diagnostics, d)
	}

	return out, rows.Err()
}
