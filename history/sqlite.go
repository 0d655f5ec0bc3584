package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"access-api/result"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS command_history (
	command_id   TEXT NOT NULL,
	action       TEXT NOT NULL,
	command_date TEXT NOT NULL,
	json_data    TEXT NOT NULL,
	PRIMARY KEY (command_id, action)
)`

// SQLiteStore keeps records in a local SQLite file. It serves single-node
// deployments and local runs without Azure Storage.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Find(ctx context.Context, commandID, action string) (result.Option[Record], error) {
	var date, payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT command_date, json_data FROM command_history WHERE command_id = ? AND action = ?`,
		commandID, action).Scan(&date, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return result.None[Record](), nil
	}
	if err != nil {
		return result.None[Record](), fmt.Errorf("select history: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, date)
	if err != nil {
		return result.None[Record](), fmt.Errorf("parse history date: %w", err)
	}
	return result.Some(Record{CommandID: commandID, Action: action, Date: ts, Payload: payload}), nil
}

func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO command_history(command_id, action, command_date, json_data)
VALUES (?, ?, ?, ?)
ON CONFLICT(command_id, action) DO NOTHING
`, rec.CommandID, rec.Action, rec.Date.UTC().Format(time.RFC3339Nano), rec.Payload)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	if n == 0 {
		return ErrDuplicate
	}
	return nil
}
