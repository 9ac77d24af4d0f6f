package db

import (
	"database/sql"
	"fmt"
)

const runMetaTableDDL = `
CREATE TABLE IF NOT EXISTS run_meta (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    root_path TEXT NOT NULL,
    start_time INTEGER NOT NULL,
    end_time INTEGER,
    total_pass INTEGER DEFAULT 0,
    total_fail INTEGER DEFAULT 0,
    scanned_bytes INTEGER DEFAULT 0,
    archive_count INTEGER DEFAULT 0,
    archive_compressed INTEGER DEFAULT 0,
    archive_uncompressed INTEGER DEFAULT 0
);
`

const reportsTableDDL = `
CREATE TABLE IF NOT EXISTS reports (
    id INTEGER PRIMARY KEY,
    path TEXT NOT NULL,
    system TEXT NOT NULL,
    passed INTEGER NOT NULL
);
`

const diagnosticsTableDDL = `
CREATE TABLE IF NOT EXISTS diagnostics (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    report_id INTEGER NOT NULL,
    message TEXT NOT NULL,
    terminal INTEGER NOT NULL,
    hints TEXT NOT NULL DEFAULT ''
);
`

const systemSummaryTableDDL = `
CREATE TABLE IF NOT EXISTS system_summary (
    system TEXT PRIMARY KEY,
    pass_count INTEGER NOT NULL,
    fail_count INTEGER NOT NULL
);
`

const reportsPassedIndexDDL = `CREATE INDEX IF NOT EXISTS idx_reports_passed ON reports(passed, id);`
const reportsSystemIndexDDL = `CREATE INDEX IF NOT EXISTS idx_reports_system ON reports(system);`
const diagnosticsReportIndexDDL = `CREATE INDEX IF NOT EXISTS idx_diagnostics_report ON diagnostics(report_id);`

// execAll runs stmts in order, stopping at the first failure.
func execAll(db *sql.DB, what string, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("%s: %q: %w", what, stmt, err)
		}
	}
	return nil
}

// InitSchema creates all tables in the database.
func InitSchema(db *sql.DB) error {
	return execAll(db, "create table",
		runMetaTableDDL, reportsTableDDL, diagnosticsTableDDL, systemSummaryTableDDL)
}

// ApplyWritePragmas configures SQLite for batched inserts while recording.
func ApplyWritePragmas(db *sql.DB) error {
	return execAll(db, "apply pragma",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -16000",
		"PRAGMA temp_store = MEMORY",
	)
}

// ApplyReadPragmas makes a connection read-only for history queries.
func ApplyReadPragmas(db *sql.DB) error {
	return execAll(db, "apply pragma", "PRAGMA temp_store = MEMORY", "PRAGMA query_only = ON")
}

// BuildIndexes creates indexes once the run has been recorded.
func BuildIndexes(db *sql.DB) error {
	return execAll(db, "create index",
		reportsPassedIndexDDL, reportsSystemIndexDDL, diagnosticsReportIndexDDL)
}

// Finalize optimizes the database and leaves WAL mode so the snapshot is a
// single file.
func Finalize(db *sql.DB) error {
	return execAll(db, "finalize", "PRAGMA optimize", "PRAGMA journal_mode = DELETE")
}
