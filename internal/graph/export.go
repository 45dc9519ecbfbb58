package graph

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/agentic-research/fingerpack/internal/refparse"
	_ "modernc.org/sqlite"
)

const exportSchema = `
CREATE TABLE IF NOT EXISTS files (
	path TEXT PRIMARY KEY,
	output TEXT,
	before_ext TEXT,
	after_ext TEXT
);

CREATE TABLE IF NOT EXISTS refs (
	parent TEXT NOT NULL,
	child TEXT NOT NULL,
	phase TEXT NOT NULL,
	PRIMARY KEY (parent, child, phase)
) WITHOUT ROWID;
CREATE INDEX IF NOT EXISTS idx_refs_child ON refs(child);
`

// ExportSQLite writes every tracked file, its current output and both
// reference sets to the SQLite database at dbPath. Rows from an earlier
// export are dropped, so the database mirrors l exactly.
func ExportSQLite(l *Ledger, outputs map[string]string, dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		return err
	}
	if _, err := db.Exec(exportSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin export: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op after commit

	for _, table := range []string{"files", "refs"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	fileStmt, err := tx.Prepare(`INSERT OR REPLACE INTO files (path, output, before_ext, after_ext) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare files insert: %w", err)
	}
	defer func() { _ = fileStmt.Close() }()

	refStmt, err := tx.Prepare(`INSERT OR IGNORE INTO refs (parent, child, phase) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare refs insert: %w", err)
	}
	defer func() { _ = refStmt.Close() }()

	for _, p := range l.Paths() {
		before, _ := l.Before(p)
		after, _ := l.After(p)
		var out any
		if o, ok := outputs[p]; ok {
			out = filepath.ToSlash(o)
		}
		if _, err := fileStmt.Exec(filepath.ToSlash(p), out, extOf(before), extOf(after)); err != nil {
			return fmt.Errorf("insert file %s: %w", p, err)
		}
	}
	for _, e := range l.Edges() {
		if _, err := refStmt.Exec(filepath.ToSlash(e.Parent), filepath.ToSlash(e.Child), string(e.Phase)); err != nil {
			return fmt.Errorf("insert ref %s -> %s: %w", e.Parent, e.Child, err)
		}
	}
	return tx.Commit()
}

func extOf(f *refparse.File) any {
	if f == nil {
		return nil
	}
	return f.Ext
}
