package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sakenfor/pixsim7-sub004/internal/domain/repositories"
)

// RepositoryConfig holds configuration for repository implementations
type RepositoryConfig struct {
	Pool   *pgxpool.Pool
	Tables *TableNames
	Logger *slog.Logger

	// LockTimeout bounds how long a row lock request may wait (SET LOCAL lock_timeout).
	// Zero leaves the server default.
	LockTimeout time.Duration
}

// TableNames holds dynamically prefixed table and constraint names
type TableNames struct {
	Families string
	Entities string

	// VersionIndex is the partial unique index on (family_id, version_number).
	// Unique violations on it are reported as version conflicts.
	VersionIndex string
}

// NewTableNames creates table names with the given prefix
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Families:     fmt.Sprintf("%sfamilies", prefix),
		Entities:     fmt.Sprintf("%sentities", prefix),
		VersionIndex: fmt.Sprintf("%sentities_family_version_key", prefix),
	}
}

// CreateConnectionPool creates a new pgx connection pool with automatic PgBouncer compatibility.
//
// PgBouncer in transaction pooling mode (port 6543 on Supabase) does not
// support prepared statements, so that port switches to
// QueryExecModeCacheDescribe unless default_query_exec_mode is set
// explicitly in the connection string. Row locks (SELECT ... FOR UPDATE)
// and SET LOCAL both work under transaction pooling because every
// allocation runs inside a single transaction.
func CreateConnectionPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5

	if config.ConnConfig.Port == 6543 && config.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
		slog.Debug("auto-configured cache_describe mode for PgBouncer compatibility", "port", 6543)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// GetExecutor returns the transaction from ctx if there is one, otherwise the pool.
// This lets repositories join a caller's transaction transparently.
func GetExecutor(ctx context.Context, pool *pgxpool.Pool) repositories.DBTX {
	if tx := repositories.GetTx(ctx); tx != nil {
		return tx
	}
	return pool
}

// LockExecutor returns the transaction from ctx after applying the lock
// timeout to it. Row locks outside a transaction would be released
// immediately, so a missing transaction is an error.
func LockExecutor(ctx context.Context, lockTimeout time.Duration) (repositories.DBTX, error) {
	tx := repositories.GetTx(ctx)
	if tx == nil {
		return nil, fmt.Errorf("row lock requested outside a transaction")
	}
	if lockTimeout > 0 {
		// SET does not accept bind parameters
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("set lock timeout: %w", err)
		}
	}
	return tx, nil
}
