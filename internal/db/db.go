package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/acta/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 3

// FileName is the database file inside the base directory.
const FileName = "acta.db"

// Init initializes the SQLite database at baseDir/acta.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.acta.
func Init(baseDir string) (*sql.DB, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	exportsDir := filepath.Join(baseDir, "exports")
	if err := os.MkdirAll(exportsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create exports directory: %w", err)
	}
	_ = os.Chmod(exportsDir, 0700)

	// Pragmas in the connection string apply to every pooled connection.
	// foreign_keys is per-connection in SQLite, so it has to live here.
	dbPath := filepath.Join(baseDir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: meetings and images
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS meetings (
		  id          INTEGER PRIMARY KEY AUTOINCREMENT,
		  title       TEXT NOT NULL DEFAULT '',
		  date        INTEGER NOT NULL,
		  notes       TEXT NOT NULL DEFAULT '',
		  minutes     TEXT,
		  tags_json   TEXT NOT NULL DEFAULT '[]',
		  created_at  INTEGER NOT NULL,
		  updated_at  INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_meetings_created
		ON meetings(created_at DESC, id DESC);

		CREATE INDEX IF NOT EXISTS idx_meetings_title
		ON meetings(title);

		CREATE INDEX IF NOT EXISTS idx_meetings_date
		ON meetings(date);

		CREATE TABLE IF NOT EXISTS images (
		  id          INTEGER PRIMARY KEY AUTOINCREMENT,
		  meeting_id  INTEGER NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
		  blob        BLOB NOT NULL,
		  mime_type   TEXT NOT NULL,
		  name        TEXT NOT NULL DEFAULT '',
		  created_at  INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_images_meeting_created
		ON images(meeting_id, created_at, id);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Migration 1 -> 2: multi-entry tag index, backfilled from tags_json
	if version < 2 {
		schema := `
		CREATE TABLE IF NOT EXISTS meeting_tags (
		  meeting_id  INTEGER NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
		  tag         TEXT NOT NULL,
		  position    INTEGER NOT NULL,
		  PRIMARY KEY (meeting_id, tag)
		);

		CREATE INDEX IF NOT EXISTS idx_meeting_tags_tag
		ON meeting_tags(tag);

		INSERT OR IGNORE INTO meeting_tags (meeting_id, tag, position)
		SELECT m.id, j.value, j.key
		FROM meetings m, json_each(m.tags_json) j;
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 2 failed: %w", err)
		}
		if err := SetUserVersion(db, 2); err != nil {
			return err
		}
	}

	// v3: timestamps move from unix milliseconds to unix nanoseconds.
	if version < 3 {
		schema := `
		UPDATE meetings SET
		  date = date * 1000000,
		  created_at = created_at * 1000000,
		  updated_at = updated_at * 1000000;
		UPDATE images SET created_at = created_at * 1000000;
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 3 failed: %w", err)
		}
		if err := SetUserVersion(db, 3); err != nil {
			return err
		}
	}

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
