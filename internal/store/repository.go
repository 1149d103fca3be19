package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/simplecut/simplecut-agent/internal/encode"
)

// Repository is the agent's persistent state: a key/value config table and
// the encode session history.
type Repository interface {
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
	ListConfig(ctx context.Context) ([]ConfigEntry, error)

	CreateSession(ctx context.Context, rec encode.SessionRecord) error
	GetSession(ctx context.Context, id string) (*SessionRow, error)
	ListSessions(ctx context.Context, limit int) ([]*SessionRow, error)
	UpdateSessionProgress(ctx context.Context, id string, progress int) error
	FinishSession(ctx context.Context, id string, state encode.State, errMsg string) error
}

var _ encode.Recorder = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// timeFormat is fixed width so created_at sorts lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func (r *SQLiteRepository) timestamp() string {
	return r.now().UTC().Format(timeFormat)
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, rec encode.SessionRecord) error {
	ts := r.timestamp()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, input_path, output_path, status, progress, error, log_path, encoder, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, NULL, ?, ?, ?, ?)
	`, rec.ID, rec.InputPath, rec.OutputPath, string(encode.StateRunning),
		nullString(rec.LogPath), nullString(rec.Encoder), ts, ts)
	return err
}

func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (*SessionRow, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, input_path, output_path, status, progress, error, log_path, encoder, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func (r *SQLiteRepository) ListSessions(ctx context.Context, limit int) ([]*SessionRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, input_path, output_path, status, progress, error, log_path, encoder, created_at, updated_at
		FROM sessions ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*SessionRow
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*SessionRow, error) {
	var s SessionRow
	var status string
	var errMsg, logPath, encoder sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(&s.ID, &s.InputPath, &s.OutputPath, &status, &s.Progress,
		&errMsg, &logPath, &encoder, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	s.Status = encode.State(status)
	s.Error = errMsg.String
	s.LogPath = logPath.String
	s.Encoder = encoder.String
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return &s, nil
}

func (r *SQLiteRepository) UpdateSessionProgress(ctx context.Context, id string, progress int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET progress = ?, updated_at = ? WHERE id = ?
	`, progress, r.timestamp(), id)
	return err
}

func (r *SQLiteRepository) FinishSession(ctx context.Context, id string, state encode.State, errMsg string) error {
	progress := "progress"
	if state == encode.StateSucceeded {
		progress = "100"
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET status = ?, error = ?, progress = `+progress+`, updated_at = ? WHERE id = ?
	`, string(state), nullString(errMsg), r.timestamp(), id)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func (r *SQLiteRepository) ListConfig(ctx context.Context) ([]ConfigEntry, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT key, value FROM config ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ConfigEntry
	for rows.Next() {
		var e ConfigEntry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// parseTime accepts both our own timestamps and SQLite's datetime('now').
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, _ := time.Parse("2006-01-02 15:04:05", s)
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
