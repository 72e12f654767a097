// Package repository opens the configured versioning store
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sakenfor/pixsim7-sub004/internal/config"
	"github.com/Sakenfor/pixsim7-sub004/internal/domain/repositories"
	versionRepo "github.com/Sakenfor/pixsim7-sub004/internal/domain/repositories/versioning"
	"github.com/Sakenfor/pixsim7-sub004/internal/repository/postgres"
	postgresVersioning "github.com/Sakenfor/pixsim7-sub004/internal/repository/postgres/versioning"
	"github.com/Sakenfor/pixsim7-sub004/internal/repository/sqlite"
)

// Store bundles the repositories and transaction manager of one backend
type Store struct {
	Families  versionRepo.FamilyRepository
	Entities  versionRepo.EntityRepository
	TxManager repositories.TransactionManager

	// Migrate creates the schema; Drop removes it
	Migrate func(ctx context.Context) error
	Drop    func(ctx context.Context) error

	closeFn func()
}

// Close releases the underlying connection pool
func (s *Store) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

// Open connects to the backend named by cfg.DatabaseDriver
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return newPostgresStore(pool, cfg, logger), nil
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return newSQLiteStore(db, logger), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
}

func newPostgresStore(pool *pgxpool.Pool, cfg *config.Config, logger *slog.Logger) *Store {
	tables := postgres.NewTableNames(cfg.TablePrefix)
	repoConfig := &postgres.RepositoryConfig{
		Pool:        pool,
		Tables:      tables,
		Logger:      logger,
		LockTimeout: cfg.LockTimeout,
	}

	logger.Info("database connected",
		"driver", config.DriverPostgres,
		"table_prefix", cfg.TablePrefix,
		"lock_timeout", cfg.LockTimeout,
	)

	return &Store{
		Families:  postgresVersioning.NewFamilyRepository(repoConfig),
		Entities:  postgresVersioning.NewEntityRepository(repoConfig),
		TxManager: postgres.NewTransactionManager(pool, logger),
		Migrate: func(ctx context.Context) error {
			return postgres.Migrate(ctx, pool, tables, cfg.TablePrefix)
		},
		Drop: func(ctx context.Context) error {
			return postgres.Drop(ctx, pool, tables)
		},
		closeFn: pool.Close,
	}
}

func newSQLiteStore(db *sql.DB, logger *slog.Logger) *Store {
	logger.Info("database connected", "driver", config.DriverSQLite)

	return &Store{
		Families:  sqlite.NewFamilyRepository(db, logger),
		Entities:  sqlite.NewEntityRepository(db, logger),
		TxManager: sqlite.NewTransactionManager(db, logger),
		Migrate: func(ctx context.Context) error {
			return sqlite.Migrate(ctx, db)
		},
		Drop: func(ctx context.Context) error {
			return sqlite.Drop(ctx, db)
		},
		closeFn: func() {
			if err := db.Close(); err != nil {
				logger.Warn("failed to close database", "error", err)
			}
		},
	}
}
