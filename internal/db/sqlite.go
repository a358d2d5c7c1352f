package db

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB records the history of catalog builds.
type DB struct {
	conn *sql.DB
}

func New(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	// An existing file that isn't SQLite is left over from something else.
	if info, err := os.Stat(dbPath); err == nil && info.Size() >= 4 {
		f, err := os.Open(dbPath)
		if err == nil {
			header := make([]byte, 4)
			n, _ := f.Read(header)
			f.Close()
			if n >= 4 && string(header) != "SQLi" {
				log.Printf("Removing non-SQLite database file at %s", dbPath)
				os.Remove(dbPath)
			}
		}
	}

	dsn := "file:" + dbPath + "?_txlock=immediate&_busy_timeout=5000&_journal_mode=WAL"
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	d := &DB{conn: conn}
	if err := d.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return d, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS builds (
			id TEXT PRIMARY KEY,
			version TEXT NOT NULL DEFAULT '',
			active INTEGER NOT NULL DEFAULT 0,
			deprecated INTEGER NOT NULL DEFAULT 0,
			data_types INTEGER NOT NULL DEFAULT 0,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_builds_finished ON builds (finished_at)`,
		`CREATE INDEX IF NOT EXISTS idx_builds_version ON builds (version)`,
	}

	for _, q := range queries {
		if _, err := db.conn.Exec(q); err != nil {
			return fmt.Errorf("executing %q: %w", q, err)
		}
	}
	return nil
}

// Build is one recorded build attempt. Error is empty for successful builds.
type Build struct {
	ID         string
	Version    string
	Active     int
	Deprecated int
	DataTypes  int
	StartedAt  time.Time
	FinishedAt time.Time
	Error      string
}

func (b *Build) Succeeded() bool { return b.Error == "" }

const buildColumns = `id, version, active, deprecated, data_types, started_at, finished_at, error`

func (db *DB) InsertBuild(b *Build) error {
	var errText sql.NullString
	if b.Error != "" {
		errText = sql.NullString{String: b.Error, Valid: true}
	}
	_, err := db.conn.Exec(
		`INSERT INTO builds (`+buildColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Version, b.Active, b.Deprecated, b.DataTypes,
		b.StartedAt.UTC(), b.FinishedAt.UTC(), errText,
	)
	if err != nil {
		return fmt.Errorf("inserting build %s: %w", b.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBuild(s scanner) (*Build, error) {
	var b Build
	var errText sql.NullString
	if err := s.Scan(&b.ID, &b.Version, &b.Active, &b.Deprecated, &b.DataTypes, &b.StartedAt, &b.FinishedAt, &errText); err != nil {
		return nil, err
	}
	b.Error = errText.String
	return &b, nil
}

// ListBuilds returns up to limit builds, newest first.
func (db *DB) ListBuilds(limit int) ([]Build, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.conn.Query(
		`SELECT `+buildColumns+` FROM builds ORDER BY finished_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing builds: %w", err)
	}
	defer rows.Close()

	var builds []Build
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning build: %w", err)
		}
		builds = append(builds, *b)
	}
	return builds, rows.Err()
}

// LastSuccessfulBuild returns the newest build without an error, or nil if
// there is none.
func (db *DB) LastSuccessfulBuild() (*Build, error) {
	b, err := scanBuild(db.conn.QueryRow(
		`SELECT ` + buildColumns + ` FROM builds WHERE error IS NULL ORDER BY finished_at DESC, rowid DESC LIMIT 1`,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying last build: %w", err)
	}
	return b, nil
}

// PruneBuilds deletes all but the newest keep builds and returns how many
// were removed.
func (db *DB) PruneBuilds(keep int) (int64, error) {
	result, err := db.conn.Exec(
		`DELETE FROM builds WHERE rowid NOT IN (
			SELECT rowid FROM builds ORDER BY finished_at DESC, rowid DESC LIMIT ?
		)`, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("pruning builds: %w", err)
	}
	return result.RowsAffected()
}

// ClearBuilds removes the whole history.
func (db *DB) ClearBuilds() (int64, error) {
	result, err := db.conn.Exec(`DELETE FROM builds`)
	if err != nil {
		return 0, fmt.Errorf("clearing builds: %w", err)
	}
	return result.RowsAffected()
}
