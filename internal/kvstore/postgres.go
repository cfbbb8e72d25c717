package kvstore

import (
	"context"
	"errors"

	"backend-postboard/internal/db"

	"github.com/jackc/pgx/v5"
)

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS kv_entries (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

const upsertSQL = `
	INSERT INTO kv_entries (key, value, updated_at)
	VALUES ($1,$2, now())
	ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
`

// PostgresStore keeps every key as one row of kv_entries. When the querier
// can open transactions, Update holds a transaction-scoped advisory lock on
// the key, which serializes writers across processes. Otherwise writes are
// serialized per key inside this process only.
type PostgresStore struct {
	db db.Querier
}

func NewPostgresStore(q db.Querier) *PostgresStore {
	return &PostgresStore{db: q}
}

// EnsureSchema creates the backing table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return storageErr("schema", "kv_entries", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	row := s.db.QueryRow(ctx, `SELECT value FROM kv_entries WHERE key = $1`, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", storageErr("get", key, err)
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.Exec(ctx, upsertSQL, key, value)
	if err != nil {
		return storageErr("set", key, err)
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, key); err != nil {
		return storageErr("remove", key, err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	txdb, ok := s.db.(db.TxQuerier)
	if !ok {
		unlock := defaultLocks.Lock(key)
		defer unlock()
		return readModifyWrite(ctx, s, key, fn)
	}

	tx, err := txdb.Begin(ctx)
	if err != nil {
		return storageErr("begin", key, err)
	}
	done := false
	defer func() {
		if !done {
			_ = tx.Rollback(ctx)
		}
	}()

	// absent rows cannot be locked with FOR UPDATE, the advisory lock covers them
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return storageErr("lock", key, err)
	}

	var current string
	found := true
	if err := tx.QueryRow(ctx, `SELECT value FROM kv_entries WHERE key = $1`, key).Scan(&current); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return storageErr("get", key, err)
		}
		found = false
	}

	next, err := fn(current, found)
	if errors.Is(err, ErrSkipWrite) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, upsertSQL, key, next); err != nil {
		return storageErr("update", key, err)
	}
	done = true
	if err := tx.Commit(ctx); err != nil {
		return storageErr("commit", key, err)
	}
	return nil
}
