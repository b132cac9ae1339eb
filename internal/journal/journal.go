// Package journal records variant lifecycle events in a per-project
// SQLite database beside the metadata file. The journal is purely
// observational; losing it never affects variant state.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one recorded lifecycle event.
type Entry struct {
	ID        int64
	VariantID string
	Event     string
	Detail    string
	CreatedAt time.Time
}

// Journal wraps the per-project journal database.
type Journal struct {
	conn *sql.DB
	path string
	mu   sync.Mutex
}

// Path returns the journal database path inside a project's managed
// directory.
func Path(projectDir string) string {
	return filepath.Join(projectDir, "journal.db")
}

// Open opens (creating if needed) the journal for a project directory
// and applies pending migrations. WAL mode is enabled so status readers
// don't block writers.
func Open(projectDir string) (*Journal, error) {
	if err := os.MkdirAll(projectDir, 0755); err != nil {
		return nil, fmt.Errorf("create project directory: %w", err)
	}

	conn, err := sql.Open("sqlite", Path(projectDir))
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	j := &Journal{conn: conn, path: Path(projectDir)}
	if err := j.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return j, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.conn.Close()
}

// migrate applies all pending schema migrations.
func (j *Journal) migrate() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := j.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{
			version: 1,
			sql: `
				CREATE TABLE events (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					variant_id TEXT NOT NULL,
					event TEXT NOT NULL,
					detail TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);
				CREATE INDEX idx_events_variant ON events(variant_id);
				CREATE INDEX idx_events_created ON events(created_at);
			`,
		},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := j.conn.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := j.conn.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

// Record appends one event row.
func (j *Journal) Record(variantID, event, detail string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.conn.Exec(
		"INSERT INTO events (variant_id, event, detail) VALUES (?, ?, ?)",
		variantID, event, detail,
	)
	if err != nil {
		return fmt.Errorf("record journal event: %w", err)
	}
	return nil
}

// ListRecent returns up to limit events, newest first. A limit of zero
// or less defaults to 50.
func (j *Journal) ListRecent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.conn.Query(`
		SELECT id, variant_id, event, detail, created_at
		FROM events ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list journal events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.VariantID, &e.Event, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan journal event: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListForVariant returns all events for one variant, oldest first.
func (j *Journal) ListForVariant(variantID string) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.conn.Query(`
		SELECT id, variant_id, event, detail, created_at
		FROM events WHERE variant_id = ? ORDER BY id ASC
	`, variantID)
	if err != nil {
		return nil, fmt.Errorf("list journal events for variant %s: %w", variantID, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.VariantID, &e.Event, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan journal event: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Purge deletes events older than the retention window and returns the
// number removed.
func (j *Journal) Purge(olderThan time.Duration) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	cutoff := time.Now().Add(-olderThan).UTC()
	res, err := j.conn.Exec("DELETE FROM events WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge journal events: %w", err)
	}
	return res.RowsAffected()
}
