package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/handoff/pkg/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	thread_id  TEXT PRIMARY KEY,
	version    INTEGER NOT NULL,
	status     TEXT NOT NULL,
	data       BLOB NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_status ON checkpoints(status);
`

// Store implements ports.CheckpointStore on an embedded SQLite database.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) and opens the checkpoint database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to ensure database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}
	// SQLite serializes writers anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate checkpoint database: %w", err)
	}

	return &Store{db: db}, nil
}

// Save upserts the checkpoint.
func (s *Store) Save(ctx context.Context, threadID string, cp *domain.Checkpoint) error {
	data, err := domain.EncodeCheckpoint(cp)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (thread_id, version, status, data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET
			version = excluded.version,
			status = excluded.status,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		threadID, cp.Version, string(cp.Status), data, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Load retrieves the checkpoint.
func (s *Store) Load(ctx context.Context, threadID string) (*domain.Checkpoint, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM checkpoints WHERE thread_id = ?`, threadID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrThreadNotFound
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	return domain.DecodeCheckpoint(threadID, data)
}

// Delete removes the checkpoint.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// List returns all stored thread IDs, most recently updated first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	return s.query(ctx, `SELECT thread_id FROM checkpoints ORDER BY updated_at DESC`)
}

// ListAwaiting returns the threads suspended at the approval gate.
func (s *Store) ListAwaiting(ctx context.Context) ([]string, error) {
	return s.query(ctx, `SELECT thread_id FROM checkpoints WHERE status = ? ORDER BY updated_at`,
		string(domain.StatusAwaitingApproval))
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	threads := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan thread id: %w", err)
		}
		threads = append(threads, id)
	}
	return threads, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
