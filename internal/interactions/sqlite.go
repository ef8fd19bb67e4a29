package interactions

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteLog persists interactions in a local SQLite file.
type SQLiteLog struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the interaction database at path.
func OpenSQLite(path string) (*SQLiteLog, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("interactions: mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("interactions: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("interactions: init schema: %w", err)
	}
	return &SQLiteLog{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS interactions (
		id      INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		job_id  TEXT NOT NULL,
		event   TEXT NOT NULL,
		at      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS interactions_user ON interactions(user_id);`)
	return err
}

func (l *SQLiteLog) Close() error {
	return l.db.Close()
}

func (l *SQLiteLog) Append(ctx context.Context, in Interaction) error {
	if in.At.IsZero() {
		in.At = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO interactions (user_id, job_id, event, at) VALUES (?, ?, ?, ?)`,
		in.UserID, in.JobID, string(in.Event), in.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append interaction: %w", err)
	}
	return nil
}

func (l *SQLiteLog) All(ctx context.Context) ([]Interaction, error) {
	return l.query(ctx, `SELECT user_id, job_id, event, at FROM interactions ORDER BY id`)
}

func (l *SQLiteLog) ByUser(ctx context.Context, userID string) ([]Interaction, error) {
	return l.query(ctx, `SELECT user_id, job_id, event, at FROM interactions WHERE user_id = ? ORDER BY id`, userID)
}

func (l *SQLiteLog) query(ctx context.Context, q string, args ...any) ([]Interaction, error) {
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var (
			in         Interaction
			event, raw string
		)
		if err := rows.Scan(&in.UserID, &in.JobID, &event, &raw); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		in.Event = Event(event)
		if at, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			in.At = at
		}
		out = append(out, in)
	}
	return out, rows.Err()
}
