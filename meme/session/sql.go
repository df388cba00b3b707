package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const (
	selectSessionSQL = `SELECT payload FROM sessions WHERE chat_key = $1`
	upsertSessionSQL = `INSERT INTO sessions (chat_key, payload, updated_at) VALUES ($1, $2, now())
ON CONFLICT (chat_key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`
)

// SQLStore keeps records in the Postgres sessions table.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQL wraps an open pool. The sessions table must exist.
func NewSQL(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	var payload string
	err := s.db.GetContext(ctx, &payload, selectSessionSQL, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}
	return []byte(payload), nil
}

func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, upsertSessionSQL, key, string(value)); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
