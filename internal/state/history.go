package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/surge-downloader/ytdlp-remote/internal/dispatch"
)

const (
	StatusQueued = "queued"
	StatusFailed = "failed"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;

CREATE TABLE IF NOT EXISTS dispatches (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  task_id TEXT NOT NULL UNIQUE,
  url TEXT NOT NULL,
  location TEXT,
  audio_only INTEGER NOT NULL DEFAULT 0,
  force INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  message TEXT,
  remote_ids TEXT,
  error TEXT,
  created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dispatches_status ON dispatches(status);
`

// Entry is one recorded dispatch.
type Entry struct {
	ID        int64
	TaskID    string
	URL       string
	Location  string
	AudioOnly bool
	Force     bool
	Status    string
	Message   string
	RemoteIDs []string
	Error     string
	CreatedAt time.Time
}

// History keeps a local record of every dispatch outcome.
type History struct {
	db *sql.DB
}

var _ dispatch.Recorder = (*History)(nil)

// DefaultPath returns the history database location inside dir.
func DefaultPath(dir string) string {
	return filepath.Join(dir, "history.db")
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	// A single connection serializes writers from concurrent dispatches.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply history schema: %w", err)
	}
	return &History{db: db}, nil
}

// Close releases the database.
func (h *History) Close() error {
	return h.db.Close()
}

// RecordOutcome implements dispatch.Recorder.
func (h *History) RecordOutcome(o dispatch.Outcome) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return h.Record(ctx, o)
}

// Record stores o. Recording the same task twice keeps the latest outcome.
func (h *History) Record(ctx context.Context, o dispatch.Outcome) error {
	status := StatusQueued
	var errText sql.NullString
	if o.Err != nil {
		status = StatusFailed
		errText = sql.NullString{String: o.Err.Error(), Valid: true}
	}
	at := o.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err := h.db.ExecContext(ctx, `
INSERT INTO dispatches (task_id, url, location, audio_only, force, status, message, remote_ids, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(task_id) DO UPDATE SET
  status = excluded.status,
  message = excluded.message,
  remote_ids = excluded.remote_ids,
  error = excluded.error,
  created_at = excluded.created_at
`,
		o.TaskID,
		o.Request.URL,
		nullString(o.Request.LocationName()),
		o.Request.AudioOnly,
		o.Request.Force,
		status,
		nullString(o.Ack.Message),
		nullString(strings.Join(o.Ack.TaskIDs, ",")),
		errText,
		at.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to record dispatch %s: %w", o.TaskID, err)
	}
	return nil
}

// List returns recorded dispatches, newest first. An empty status matches
// every entry and a non-positive limit returns all of them.
func (h *History) List(ctx context.Context, status string, limit int) ([]Entry, error) {
	query := `
SELECT id, task_id, url, location, audio_only, force, status, message, remote_ids, error, created_at
FROM dispatches`
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                                   Entry
			location, message, remoteIDs, errTx sql.NullString
			createdAt                           string
		)
		if err := rows.Scan(&e.ID, &e.TaskID, &e.URL, &location, &e.AudioOnly, &e.Force,
			&e.Status, &message, &remoteIDs, &errTx, &createdAt); err != nil {
			return nil, err
		}
		e.Location = location.String
		e.Message = message.String
		e.Error = errTx.String
		if remoteIDs.String != "" {
			e.RemoteIDs = strings.Split(remoteIDs.String, ",")
		}
		if t, err := time.Parse(timeLayout, createdAt); err == nil {
			e.CreatedAt = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes entries recorded before cutoff and reports how many went.
func (h *History) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := h.db.ExecContext(ctx, `DELETE FROM dispatches WHERE created_at < ?`,
		cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return res.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
