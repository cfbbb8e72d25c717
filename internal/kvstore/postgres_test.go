package kvstore

import (
	"context"
	"errors"
	"testing"

	"backend-postboard/internal/db"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDB = errors.New("db down")

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestPostgresStoreGet(t *testing.T) {
	mock := newMockPool(t)
	s := NewPostgresStore(mock)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT value FROM kv_entries WHERE key = \$1`).
		WithArgs("@posts").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(`[]`))
	value, err := s.Get(ctx, "@posts")
	require.NoError(t, err)
	assert.Equal(t, "[]", value)

	mock.ExpectQuery(`SELECT value FROM kv_entries`).
		WithArgs("@likes").
		WillReturnRows(pgxmock.NewRows([]string{"value"}))
	_, err = s.Get(ctx, "@likes")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery(`SELECT value FROM kv_entries`).
		WithArgs("@likes").
		WillReturnError(errDB)
	_, err = s.Get(ctx, "@likes")
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, errDB)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSetRemoveSchema(t *testing.T) {
	mock := newMockPool(t)
	s := NewPostgresStore(mock)
	ctx := context.Background()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS kv_entries`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`INSERT INTO kv_entries`).
		WithArgs("alice", `{"password":"pw"}`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM kv_entries`).
		WithArgs("alice").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`INSERT INTO kv_entries`).
		WithArgs("bob", "x").
		WillReturnError(errDB)

	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.Set(ctx, "alice", `{"password":"pw"}`))
	require.NoError(t, s.Remove(ctx, "alice"))
	assert.ErrorIs(t, s.Set(ctx, "bob", "x"), ErrStorage)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// queryOnly hides Begin so the store cannot open transactions.
type queryOnly struct {
	db.Querier
}

func TestPostgresStoreUpdateWithoutTransactions(t *testing.T) {
	mock := newMockPool(t)
	s := NewPostgresStore(queryOnly{mock})

	mock.ExpectQuery(`SELECT value FROM kv_entries`).
		WithArgs("counter").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow("41"))
	mock.ExpectExec(`INSERT INTO kv_entries`).
		WithArgs("counter", "42").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, Update(context.Background(), s, "counter", increment))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreUpdateHoldsAdvisoryLock(t *testing.T) {
	mock := newMockPool(t)
	s := NewPostgresStore(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`).
		WithArgs("counter").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(`SELECT value FROM kv_entries`).
		WithArgs("counter").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow("41"))
	mock.ExpectExec(`INSERT INTO kv_entries`).
		WithArgs("counter", "42").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, Update(context.Background(), s, "counter", increment))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreUpdateAbsentKey(t *testing.T) {
	mock := newMockPool(t)
	s := NewPostgresStore(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).
		WithArgs("counter").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(`SELECT value FROM kv_entries`).
		WithArgs("counter").
		WillReturnRows(pgxmock.NewRows([]string{"value"}))
	mock.ExpectExec(`INSERT INTO kv_entries`).
		WithArgs("counter", "1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.Update(context.Background(), "counter", increment))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreUpdateRollsBack(t *testing.T) {
	mock := newMockPool(t)
	s := NewPostgresStore(mock)
	ctx := context.Background()
	errRejected := errors.New("rejected")

	for range []error{ErrSkipWrite, errRejected} {
		mock.ExpectBegin()
		mock.ExpectExec(`pg_advisory_xact_lock`).
			WithArgs("counter").
			WillReturnResult(pgxmock.NewResult("SELECT", 1))
		mock.ExpectQuery(`SELECT value FROM kv_entries`).
			WithArgs("counter").
			WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow("7"))
		mock.ExpectRollback()
	}

	require.NoError(t, s.Update(ctx, "counter", func(string, bool) (string, error) { return "", ErrSkipWrite }))
	err := s.Update(ctx, "counter", func(string, bool) (string, error) { return "", errRejected })
	assert.ErrorIs(t, err, errRejected)

	mock.ExpectBegin().WillReturnError(errDB)
	assert.ErrorIs(t, s.Update(ctx, "counter", increment), ErrStorage)

	assert.NoError(t, mock.ExpectationsWereMet())
}
