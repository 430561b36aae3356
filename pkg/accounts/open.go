package accounts

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Storage types accepted by Open
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Backend is a Store with a connection lifecycle
type Backend interface {
	Store
	Ping(ctx context.Context) error
	Close() error
}

// Options configures Open
type Options struct {
	Type        string
	DSN         string
	MaxConns    int
	MinConns    int
	MaxLifetime time.Duration
	Timeout     time.Duration
}

// Open creates the store selected by opts.Type. SQL stores are pinged and migrated.
func Open(ctx context.Context, opts Options) (Backend, error) {
	var (
		driver  string
		dialect Dialect
	)
	switch opts.Type {
	case "", StorageMemory:
		return NewMemoryStore(), nil
	case StorageSQLite:
		driver, dialect = "sqlite3", DialectSQLite
	case StoragePostgres:
		driver, dialect = "postgres", DialectPostgres
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", opts.Type)
	}

	if opts.DSN == "" {
		return nil, fmt.Errorf("%s storage requires a DSN", opts.Type)
	}

	db, err := sql.Open(driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", opts.Type, err)
	}

	if dialect == DialectSQLite {
		// :memory: databases are per connection
		db.SetMaxOpenConns(1)
	} else {
		if opts.MaxConns > 0 {
			db.SetMaxOpenConns(opts.MaxConns)
		}
		if opts.MinConns > 0 {
			db.SetMaxIdleConns(opts.MinConns)
		}
		if opts.MaxLifetime > 0 {
			db.SetConnMaxLifetime(opts.MaxLifetime)
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", opts.Type, err)
	}

	store := NewSQLStore(db, dialect)
	if err := store.Migrate(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
