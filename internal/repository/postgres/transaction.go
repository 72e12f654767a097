package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sakenfor/pixsim7-sub004/internal/domain/repositories"
)

// TransactionManager implements the TransactionManager interface
type TransactionManager struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewTransactionManager creates a new transaction manager
func NewTransactionManager(pool *pgxpool.Pool, logger *slog.Logger) repositories.TransactionManager {
	return &TransactionManager{pool: pool, logger: logger}
}

// ExecTx executes a function within a transaction. A transaction already
// present in ctx is reused; the outermost caller commits.
func (tm *TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if tm.InTransaction(ctx) {
		return fn(ctx)
	}

	tx, err := tm.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	// Safe even if commit succeeds
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			tm.logger.Warn("rollback failed", "error", err)
		}
	}()

	txCtx := repositories.SetTx(ctx, tx)

	if err := fn(txCtx); err != nil {
		return classifyError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classifyError(fmt.Errorf("commit transaction: %w", err))
	}

	return nil
}

// InTransaction reports whether ctx carries a pgx transaction
func (tm *TransactionManager) InTransaction(ctx context.Context) bool {
	return repositories.GetTx(ctx) != nil
}
