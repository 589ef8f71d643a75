// Package journal keeps a local history of update attempts in SQLite.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	apperrors "puzzlemania/internal/errors"
	"puzzlemania/internal/update"
)

// DefaultListLimit is used when List is called with a non-positive limit.
const DefaultListLimit = 20

// Compile-time interface guard.
var _ update.Recorder = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS update_attempts (
	id              TEXT PRIMARY KEY,
	started_at      INTEGER NOT NULL,
	finished_at     INTEGER NOT NULL,
	current_version TEXT NOT NULL,
	remote_version  TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL,
	mode            TEXT NOT NULL DEFAULT '',
	declined        INTEGER NOT NULL DEFAULT 0,
	verified        INTEGER NOT NULL DEFAULT 0,
	digest          TEXT NOT NULL DEFAULT '',
	error_code      TEXT NOT NULL DEFAULT '',
	error_message   TEXT NOT NULL DEFAULT '',
	target          TEXT NOT NULL DEFAULT '',
	backup_path     TEXT NOT NULL DEFAULT '',
	installed_path  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_update_attempts_started ON update_attempts(started_at);
`

// Entry is one recorded attempt.
type Entry struct {
	ID string
	update.Attempt
}

// Succeeded reports whether the attempt installed a new version.
func (e Entry) Succeeded() bool {
	return e.State == update.StateDone
}

// Store is the SQLite-backed journal.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	newID  func() string
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open opens (or creates) the journal at path and applies the schema.
func Open(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, journalError("create journal directory", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, journalError(fmt.Sprintf("open journal %q", path), err)
	}

	// SQLite performs best with a single write connection.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, journalError(fmt.Sprintf("ping journal %q", path), err)
	}

	// modernc.org/sqlite takes pragmas as statements, not DSN params.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, journalError(fmt.Sprintf("exec %q", p), err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, journalError("apply journal schema", err)
	}

	s := &Store{
		db:     db,
		logger: zap.NewNop(),
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record implements update.Recorder.
func (s *Store) Record(ctx context.Context, a update.Attempt) error {
	id := s.newID()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO update_attempts (
			id, started_at, finished_at, current_version, remote_version, state, mode,
			declined, verified, digest, error_code, error_message, target, backup_path, installed_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, a.StartedAt.UnixNano(), a.FinishedAt.UnixNano(), a.CurrentVersion, a.RemoteVersion,
		string(a.State), a.Mode, a.Declined, a.Verified, a.Digest, string(a.ErrorCode),
		a.ErrorMessage, a.Target, a.BackupPath, a.InstalledPath,
	)
	if err != nil {
		return journalError("record update attempt", err)
	}
	s.logger.Debug("attempt recorded", zap.String("id", id), zap.String("state", string(a.State)))
	return nil
}

// List returns up to limit attempts, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, current_version, remote_version, state, mode,
			declined, verified, digest, error_code, error_message, target, backup_path, installed_path
		FROM update_attempts
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, journalError("query update attempts", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []Entry
	for rows.Next() {
		var (
			e                  Entry
			started, finished  int64
			state, code        string
			declined, verified bool
		)
		if err := rows.Scan(
			&e.ID, &started, &finished, &e.CurrentVersion, &e.RemoteVersion, &state, &e.Mode,
			&declined, &verified, &e.Digest, &code, &e.ErrorMessage, &e.Target, &e.BackupPath, &e.InstalledPath,
		); err != nil {
			return nil, journalError("scan update attempt", err)
		}
		e.StartedAt = time.Unix(0, started)
		e.FinishedAt = time.Unix(0, finished)
		e.State = update.State(state)
		e.Declined = declined
		e.Verified = verified
		e.ErrorCode = apperrors.Code(code)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, journalError("read update attempts", err)
	}
	return entries, nil
}

func journalError(msg string, err error) error {
	return apperrors.New(apperrors.CodeJournal, msg, err)
}
