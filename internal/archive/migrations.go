package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type migration struct {
	Version int
	UpSQL   string
}

var migrations = []migration{
	{
		Version: 1,
		UpSQL: `
CREATE TABLE IF NOT EXISTS sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	study_id TEXT NOT NULL DEFAULT '',
	session_name TEXT NOT NULL DEFAULT '',
	full_path TEXT NOT NULL,
	device_address TEXT NOT NULL DEFAULT '',
	started_at TEXT,
	ended_at TEXT NOT NULL,
	csv_path TEXT NOT NULL DEFAULT '',
	bundle_path TEXT NOT NULL DEFAULT '',
	comment TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_sessions_study ON sessions(study_id, ended_at);

CREATE TABLE IF NOT EXISTS trials (
	session_row INTEGER NOT NULL,
	position INTEGER NOT NULL,
	trial_id TEXT NOT NULL,
	name TEXT NOT NULL,
	started_at TEXT NOT NULL,
	note TEXT NOT NULL DEFAULT '',
	PRIMARY KEY(session_row, position),
	FOREIGN KEY(session_row) REFERENCES sessions(id) ON DELETE CASCADE
);
`,
	},
	{
		Version: 2,
		UpSQL:   `ALTER TABLE sessions ADD COLUMN video_count INTEGER NOT NULL DEFAULT 0;`,
	},
}

// applyMigrations brings db up to the latest schema version.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations(version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM schema_migrations WHERE version = ?`, m.Version).Scan(&exists)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("apply migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, applied_at) VALUES (?, datetime('now'))`, m.Version); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}
