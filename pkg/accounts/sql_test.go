package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/haven/pkg/auth"
)

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	backend, err := Open(context.Background(), Options{Type: StorageSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return backend
}

func setupMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLStore(db, DialectPostgres), mock
}

var publicColumnNames = []string{
	"id", "email", "name", "role", "is_active", "is_email_verified",
	"last_ip", "last_user_agent", "last_activity_at", "created_at", "updated_at",
}

func TestSQLStore_Rebind(t *testing.T) {
	pg := NewSQLStore(nil, DialectPostgres)
	lite := NewSQLStore(nil, DialectSQLite)

	q := `UPDATE accounts SET a = $2, b = $10 WHERE id = $1`
	assert.Equal(t, q, pg.rebind(q))
	assert.Equal(t, `UPDATE accounts SET a = ?2, b = ?10 WHERE id = ?1`, lite.rebind(q))
}

func TestSQLStore_Migrate(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		store, mock := setupMockStore(t)
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS accounts").WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, store.Migrate(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error", func(t *testing.T) {
		store, mock := setupMockStore(t)
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS accounts").WillReturnError(errors.New("permission denied"))

		err := store.Migrate(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create accounts table")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSQLStore_FindByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		store, mock := setupMockStore(t)
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

		rows := sqlmock.NewRows(publicColumnNames).
			AddRow("acc-1", "a@example.com", "A", "agent", true, false, "", "", nil, now, now)
		mock.ExpectQuery(`SELECT (.+) FROM accounts WHERE id = \$1`).
			WithArgs("acc-1").
			WillReturnRows(rows)

		acc, err := store.FindByID(context.Background(), "acc-1")
		require.NoError(t, err)
		assert.Equal(t, "acc-1", acc.ID)
		assert.Equal(t, auth.RoleAgent, acc.Role)
		assert.True(t, acc.IsActive)
		assert.True(t, acc.LastActivity.At.IsZero())
		assert.Empty(t, acc.PasswordHash)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		store, mock := setupMockStore(t)
		mock.ExpectQuery(`SELECT (.+) FROM accounts WHERE id = \$1`).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(publicColumnNames))

		_, err := store.FindByID(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		store, mock := setupMockStore(t)
		mock.ExpectQuery(`SELECT (.+) FROM accounts WHERE id = \$1`).
			WillReturnError(errors.New("connection reset"))

		_, err := store.FindByID(context.Background(), "acc-1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSQLStore_FindByEmailWithCredentials(t *testing.T) {
	store, mock := setupMockStore(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	lock := now.Add(time.Hour)

	cols := append(append([]string{}, publicColumnNames...), "password_hash", "login_attempts", "lock_until")
	rows := sqlmock.NewRows(cols).
		AddRow("acc-1", "a@example.com", "A", "user", true, true, "1.2.3.4", "ua", now, now, now, "hash", 5, lock)
	mock.ExpectQuery(`SELECT (.+), password_hash, login_attempts, lock_until FROM accounts WHERE email = \$1`).
		WithArgs("a@example.com").
		WillReturnRows(rows)

	acc, err := store.FindByEmailWithCredentials(context.Background(), " A@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "hash", acc.PasswordHash)
	assert.Equal(t, 5, acc.Security.LoginAttempts)
	require.NotNil(t, acc.Security.LockUntil)
	assert.True(t, acc.Security.LockUntil.Equal(lock))
	assert.True(t, acc.LastActivity.At.Equal(now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_Create(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		store, mock := setupMockStore(t)
		mock.ExpectExec("INSERT INTO accounts").
			WithArgs(sqlmock.AnyArg(), "new@example.com", "hash", "New", "user", true, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		acc := &auth.Account{Email: "New@Example.com", PasswordHash: "hash", Name: "New", IsActive: true}
		require.NoError(t, store.Create(context.Background(), acc))
		assert.NotEmpty(t, acc.ID)
		assert.Equal(t, auth.RoleUser, acc.Role)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation", func(t *testing.T) {
		store, mock := setupMockStore(t)
		mock.ExpectExec("INSERT INTO accounts").WillReturnError(&pq.Error{Code: "23505"})

		err := store.Create(context.Background(), &auth.Account{Email: "dup@example.com"})
		assert.ErrorIs(t, err, ErrEmailExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("primary key violation", func(t *testing.T) {
		store, mock := setupMockStore(t)
		mock.ExpectExec("INSERT INTO accounts").WillReturnError(&pq.Error{Code: "23505", Constraint: "accounts_pkey"})

		err := store.Create(context.Background(), &auth.Account{ID: "acct-1", Email: "dup@example.com"})
		assert.ErrorIs(t, err, ErrIDExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSQLStore_RecordLoginFailure(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("below threshold", func(t *testing.T) {
		store, mock := setupMockStore(t)
		mock.ExpectQuery(`SELECT lock_until FROM accounts WHERE id = \$1`).
			WithArgs("acc-1").
			WillReturnRows(sqlmock.NewRows([]string{"lock_until"}).AddRow(nil))
		mock.ExpectQuery(`UPDATE accounts SET login_attempts = login_attempts \+ 1`).
			WithArgs("acc-1", now).
			WillReturnRows(sqlmock.NewRows([]string{"login_attempts"}).AddRow(2))

		state, err := store.RecordLoginFailure(context.Background(), "acc-1", 5, 2*time.Hour, now)
		require.NoError(t, err)
		assert.Equal(t, 2, state.LoginAttempts)
		assert.Nil(t, state.LockUntil)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reaching threshold locks", func(t *testing.T) {
		store, mock := setupMockStore(t)
		mock.ExpectQuery(`SELECT lock_until FROM accounts WHERE id = \$1`).
			WithArgs("acc-1").
			WillReturnRows(sqlmock.NewRows([]string{"lock_until"}).AddRow(nil))
		mock.ExpectQuery(`UPDATE accounts SET login_attempts = login_attempts \+ 1`).
			WithArgs("acc-1", now).
			WillReturnRows(sqlmock.NewRows([]string{"login_attempts"}).AddRow(5))
		mock.ExpectExec(`UPDATE accounts SET lock_until = \$2 WHERE id = \$1 AND lock_until IS NULL`).
			WithArgs("acc-1", now.Add(2*time.Hour)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		state, err := store.RecordLoginFailure(context.Background(), "acc-1", 5, 2*time.Hour, now)
		require.NoError(t, err)
		require.NotNil(t, state.LockUntil)
		assert.True(t, state.LockUntil.Equal(now.Add(2*time.Hour)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("expired lock restarts count", func(t *testing.T) {
		store, mock := setupMockStore(t)
		mock.ExpectQuery(`SELECT lock_until FROM accounts WHERE id = \$1`).
			WithArgs("acc-1").
			WillReturnRows(sqlmock.NewRows([]string{"lock_until"}).AddRow(now.Add(-time.Minute)))
		mock.ExpectExec(`UPDATE accounts SET login_attempts = 1, lock_until = NULL`).
			WithArgs("acc-1", now).
			WillReturnResult(sqlmock.NewResult(0, 1))

		state, err := store.RecordLoginFailure(context.Background(), "acc-1", 5, 2*time.Hour, now)
		require.NoError(t, err)
		assert.Equal(t, 1, state.LoginAttempts)
		assert.Nil(t, state.LockUntil)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		store, mock := setupMockStore(t)
		mock.ExpectQuery(`SELECT lock_until FROM accounts WHERE id = \$1`).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"lock_until"}))

		_, err := store.RecordLoginFailure(context.Background(), "missing", 5, 2*time.Hour, now)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSQLStore_UpdateActivity(t *testing.T) {
	store, mock := setupMockStore(t)
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE accounts SET last_ip = \$2, last_user_agent = \$3, last_activity_at = \$4`).
		WithArgs("acc-1", "10.0.0.1", "curl", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpdateActivity(context.Background(), "acc-1", auth.Activity{IP: "10.0.0.1", UserAgent: "curl", At: at})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen(t *testing.T) {
	t.Run("memory by default", func(t *testing.T) {
		backend, err := Open(context.Background(), Options{})
		require.NoError(t, err)
		assert.IsType(t, &MemoryStore{}, backend)
	})

	t.Run("sqlite", func(t *testing.T) {
		backend, err := Open(context.Background(), Options{Type: StorageSQLite, DSN: ":memory:"})
		require.NoError(t, err)
		defer backend.Close()
		assert.NoError(t, backend.Ping(context.Background()))
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := Open(context.Background(), Options{Type: "mongo"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported storage type")
	})

	t.Run("missing dsn", func(t *testing.T) {
		_, err := Open(context.Background(), Options{Type: StoragePostgres})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires a DSN")
	})
}
