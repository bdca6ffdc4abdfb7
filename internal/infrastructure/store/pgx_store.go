package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxQuerier is the subset of *pgxpool.Pool used by PgxStore.
type PgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgxStore is the pooled Postgres backend. It shares the catalog_state
// table layout with PostgresStore.
type PgxStore struct {
	db PgxQuerier
}

var _ StateStore = (*PgxStore)(nil)

func NewPgxStore(db PgxQuerier) *PgxStore {
	return &PgxStore{db: db}
}

func (s *PgxStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, createStateTable)
	return err
}

func (s *PgxStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(ctx, "SELECT value FROM catalog_state WHERE key = $1", key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *PgxStore) Put(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO catalog_state (key, value, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key,
		string(value),
		time.Now(),
	)
	return err
}
