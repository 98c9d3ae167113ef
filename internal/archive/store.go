// Package archive keeps a local SQLite history of ended capture sessions.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fakeyudi/capturectl/internal/bundle"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the archive at path and migrates it.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Entry is one archived session.
type Entry struct {
	ID            int64
	SessionID     string
	StudyID       string
	SessionName   string
	FullPath      string
	DeviceAddress string
	StartedAt     *time.Time
	EndedAt       time.Time
	CSVPath       string
	BundlePath    string
	Comment       string
	VideoCount    int
	TrialCount    int
	Trials        []bundle.TrialNote // only filled by Get
}

// Record stores an ended session and its trials in one transaction and
// returns the new row id.
func (s *Store) Record(ctx context.Context, b *bundle.SessionBundle, bundlePath string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var started any
	if !b.Session.StartTime.IsZero() {
		started = ts(b.Session.StartTime)
	}
	res, err := tx.ExecContext(ctx, `
INSERT INTO sessions(session_id, study_id, session_name, full_path, device_address, started_at, ended_at, csv_path, bundle_path, comment, video_count)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Session.ID, b.Session.StudyID, b.Session.SessionName, b.Session.FullPath, b.Session.DeviceAddress,
		started, ts(b.Session.EndTime), b.CSVPath, bundlePath, b.Comment, len(b.Videos),
	)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for i, t := range b.Trials {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO trials(session_row, position, trial_id, name, started_at, note)
VALUES (?, ?, ?, ?, ?, ?)`,
			rowID, i, t.ID, t.Name, ts(t.StartedAt), t.Note,
		); err != nil {
			return 0, fmt.Errorf("insert trial %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit archive tx: %w", err)
	}
	return rowID, nil
}

const entryColumns = `s.id, s.session_id, s.study_id, s.session_name, s.full_path, s.device_address,
	s.started_at, s.ended_at, s.csv_path, s.bundle_path, s.comment, s.video_count,
	(SELECT COUNT(*) FROM trials t WHERE t.session_row = s.id)`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e       Entry
		started sql.NullString
		ended   string
	)
	if err := row.Scan(&e.ID, &e.SessionID, &e.StudyID, &e.SessionName, &e.FullPath, &e.DeviceAddress,
		&started, &ended, &e.CSVPath, &e.BundlePath, &e.Comment, &e.VideoCount, &e.TrialCount); err != nil {
		return Entry{}, err
	}
	endedAt, err := parseTS(ended)
	if err != nil {
		return Entry{}, fmt.Errorf("parse ended_at: %w", err)
	}
	e.EndedAt = endedAt
	if started.Valid {
		st, err := parseTS(started.String)
		if err != nil {
			return Entry{}, fmt.Errorf("parse started_at: %w", err)
		}
		e.StartedAt = &st
	}
	return e, nil
}

// List returns archived sessions, newest first. An empty studyID lists all
// studies; limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, studyID string, limit int) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM sessions s`
	var args []any
	if studyID != "" {
		query += ` WHERE s.study_id = ?`
		args = append(args, studyID)
	}
	query += ` ORDER BY s.ended_at DESC, s.id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get returns one archived session with its trials.
func (s *Store) Get(ctx context.Context, id int64) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM sessions s WHERE s.id = ?`, id)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("get session %d: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT trial_id, name, started_at, note FROM trials WHERE session_row = ? ORDER BY position`, id)
	if err != nil {
		return Entry{}, fmt.Errorf("list trials: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			t       bundle.TrialNote
			started string
		)
		if err := rows.Scan(&t.ID, &t.Name, &started, &t.Note); err != nil {
			return Entry{}, err
		}
		if t.StartedAt, err = parseTS(started); err != nil {
			return Entry{}, fmt.Errorf("parse trial started_at: %w", err)
		}
		t.SessionID = e.SessionID
		e.Trials = append(e.Trials, t)
	}
	return e, rows.Err()
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
