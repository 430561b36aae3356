package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/platinummonkey/haven/pkg/auth"
)

// Dialect selects SQL placeholder syntax and schema types
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id                TEXT PRIMARY KEY,
	email             TEXT NOT NULL UNIQUE,
	password_hash     TEXT NOT NULL,
	name              TEXT NOT NULL DEFAULT '',
	role              TEXT NOT NULL DEFAULT 'user',
	is_active         BOOLEAN NOT NULL DEFAULT TRUE,
	is_email_verified BOOLEAN NOT NULL DEFAULT FALSE,
	login_attempts    INTEGER NOT NULL DEFAULT 0,
	lock_until        TIMESTAMPTZ,
	last_ip           TEXT NOT NULL DEFAULT '',
	last_user_agent   TEXT NOT NULL DEFAULT '',
	last_activity_at  TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
)`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id                TEXT PRIMARY KEY,
	email             TEXT NOT NULL UNIQUE,
	password_hash     TEXT NOT NULL,
	name              TEXT NOT NULL DEFAULT '',
	role              TEXT NOT NULL DEFAULT 'user',
	is_active         BOOLEAN NOT NULL DEFAULT 1,
	is_email_verified BOOLEAN NOT NULL DEFAULT 0,
	login_attempts    INTEGER NOT NULL DEFAULT 0,
	lock_until        TIMESTAMP,
	last_ip           TEXT NOT NULL DEFAULT '',
	last_user_agent   TEXT NOT NULL DEFAULT '',
	last_activity_at  TIMESTAMP,
	created_at        TIMESTAMP NOT NULL,
	updated_at        TIMESTAMP NOT NULL
)`

const publicColumns = `id, email, name, role, is_active, is_email_verified, last_ip, last_user_agent, last_activity_at, created_at, updated_at`

const credentialColumns = publicColumns + `, password_hash, login_attempts, lock_until`

var placeholderRe = regexp.MustCompile(`\$(\d+)`)

// SQLStore is a Store backed by database/sql
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// NewSQLStore creates a store over an open database handle
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, now: time.Now}
}

// DB returns the underlying handle
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Migrate creates the accounts table if it does not exist
func (s *SQLStore) Migrate(ctx context.Context) error {
	schema := postgresSchema
	if s.dialect == DialectSQLite {
		schema = sqliteSchema
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create accounts table: %w", err)
	}
	return nil
}

// Ping checks the database connection
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites $n placeholders for SQLite, which numbers them as ?n
func (s *SQLStore) rebind(query string) string {
	if s.dialect == DialectSQLite {
		return placeholderRe.ReplaceAllString(query, "?$1")
	}
	return query
}

// Create inserts an account
func (s *SQLStore) Create(ctx context.Context, acc *auth.Account) error {
	if acc.ID == "" {
		acc.ID = uuid.New().String()
	}
	if acc.Role == "" {
		acc.Role = auth.RoleUser
	}
	now := s.now().UTC()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = now
	}
	acc.UpdatedAt = now
	acc.Email = auth.NormalizeEmail(acc.Email)

	query := s.rebind(`
		INSERT INTO accounts (id, email, password_hash, name, role, is_active, is_email_verified, login_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9)
	`)

	_, err := s.db.ExecContext(ctx, query,
		acc.ID,
		acc.Email,
		acc.PasswordHash,
		acc.Name,
		string(acc.Role),
		acc.IsActive,
		acc.IsEmailVerified,
		acc.CreatedAt,
		acc.UpdatedAt,
	)
	if conflict := uniqueConflict(err); conflict != nil {
		return conflict
	}
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// FindByID returns an account by ID
func (s *SQLStore) FindByID(ctx context.Context, id string) (*auth.Account, error) {
	query := s.rebind(`SELECT ` + publicColumns + ` FROM accounts WHERE id = $1`)
	return s.scanPublic(s.db.QueryRowContext(ctx, query, id))
}

// FindByEmail returns an account by email
func (s *SQLStore) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	query := s.rebind(`SELECT ` + publicColumns + ` FROM accounts WHERE email = $1`)
	return s.scanPublic(s.db.QueryRowContext(ctx, query, auth.NormalizeEmail(email)))
}

// FindByEmailWithCredentials returns an account by email including its hash
func (s *SQLStore) FindByEmailWithCredentials(ctx context.Context, email string) (*auth.Account, error) {
	query := s.rebind(`SELECT ` + credentialColumns + ` FROM accounts WHERE email = $1`)

	var r accountRow
	dest := append(r.publicDest(), &r.acc.PasswordHash, &r.acc.Security.LoginAttempts, &r.lockUntil)
	if err := s.db.QueryRowContext(ctx, query, auth.NormalizeEmail(email)).Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return r.account(), nil
}

// UpdateActivity records the last activity of an account
func (s *SQLStore) UpdateActivity(ctx context.Context, id string, activity auth.Activity) error {
	query := s.rebind(`
		UPDATE accounts SET last_ip = $2, last_user_agent = $3, last_activity_at = $4
		WHERE id = $1
	`)
	res, err := s.db.ExecContext(ctx, query, id, activity.IP, activity.UserAgent, activity.At.UTC())
	if err != nil {
		return fmt.Errorf("failed to update activity: %w", err)
	}
	return requireRow(res)
}

// RecordLoginFailure counts a failed login. The counter is incremented in place
// so concurrent failures are never lost.
func (s *SQLStore) RecordLoginFailure(ctx context.Context, id string, maxAttempts int, lockFor time.Duration, now time.Time) (*auth.SecurityState, error) {
	now = now.UTC()

	var lockUntil sql.NullTime
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT lock_until FROM accounts WHERE id = $1`), id).Scan(&lockUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read lock state: %w", err)
	}

	if lockUntil.Valid && !lockUntil.Time.After(now) {
		query := s.rebind(`UPDATE accounts SET login_attempts = 1, lock_until = NULL, updated_at = $2 WHERE id = $1`)
		if _, err := s.db.ExecContext(ctx, query, id, now); err != nil {
			return nil, fmt.Errorf("failed to reset expired lock: %w", err)
		}
		return &auth.SecurityState{LoginAttempts: 1}, nil
	}

	query := s.rebind(`
		UPDATE accounts SET login_attempts = login_attempts + 1, updated_at = $2
		WHERE id = $1
		RETURNING login_attempts
	`)
	state := &auth.SecurityState{}
	if err := s.db.QueryRowContext(ctx, query, id, now).Scan(&state.LoginAttempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to record login failure: %w", err)
	}

	if lockUntil.Valid {
		lu := lockUntil.Time.UTC()
		state.LockUntil = &lu
		return state, nil
	}

	if maxAttempts > 0 && state.LoginAttempts >= maxAttempts {
		until := now.Add(lockFor)
		query := s.rebind(`UPDATE accounts SET lock_until = $2 WHERE id = $1 AND lock_until IS NULL`)
		if _, err := s.db.ExecContext(ctx, query, id, until); err != nil {
			return nil, fmt.Errorf("failed to lock account: %w", err)
		}
		state.LockUntil = &until
	}

	return state, nil
}

// ResetLoginFailures clears the failure count and lock
func (s *SQLStore) ResetLoginFailures(ctx context.Context, id string) error {
	query := s.rebind(`UPDATE accounts SET login_attempts = 0, lock_until = NULL WHERE id = $1`)
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to reset login failures: %w", err)
	}
	return requireRow(res)
}

// SetActive toggles an account's active flag
func (s *SQLStore) SetActive(ctx context.Context, id string, active bool) error {
	query := s.rebind(`UPDATE accounts SET is_active = $2, updated_at = $3 WHERE id = $1`)
	res, err := s.db.ExecContext(ctx, query, id, active, s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set active: %w", err)
	}
	return requireRow(res)
}

func (s *SQLStore) scanPublic(row *sql.Row) (*auth.Account, error) {
	var r accountRow
	if err := row.Scan(r.publicDest()...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return r.account(), nil
}

// accountRow holds scan targets for the nullable columns
type accountRow struct {
	acc            auth.Account
	role           string
	lastActivityAt sql.NullTime
	lockUntil      sql.NullTime
}

func (r *accountRow) publicDest() []any {
	return []any{
		&r.acc.ID,
		&r.acc.Email,
		&r.acc.Name,
		&r.role,
		&r.acc.IsActive,
		&r.acc.IsEmailVerified,
		&r.acc.LastActivity.IP,
		&r.acc.LastActivity.UserAgent,
		&r.lastActivityAt,
		&r.acc.CreatedAt,
		&r.acc.UpdatedAt,
	}
}

func (r *accountRow) account() *auth.Account {
	acc := r.acc
	acc.Role = auth.Role(r.role)
	acc.CreatedAt = acc.CreatedAt.UTC()
	acc.UpdatedAt = acc.UpdatedAt.UTC()
	if r.lastActivityAt.Valid {
		acc.LastActivity.At = r.lastActivityAt.Time.UTC()
	}
	if r.lockUntil.Valid {
		lu := r.lockUntil.Time.UTC()
		acc.Security.LockUntil = &lu
	}
	return &acc
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// uniqueConflict maps a unique constraint violation to ErrIDExists for the
// primary key and ErrEmailExists otherwise. Other errors yield nil.
func uniqueConflict(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code != "23505" {
			return nil
		}
		if pqErr.Constraint == "accounts_pkey" {
			return ErrIDExists
		}
		return ErrEmailExists
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintPrimaryKey:
			return ErrIDExists
		case sqlite3.ErrConstraintUnique:
			return ErrEmailExists
		}
	}
	return nil
}
