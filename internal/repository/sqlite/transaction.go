package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Sakenfor/pixsim7-sub004/internal/domain/repositories"
)

type txContextKey string

const txKey txContextKey = "sqlite_tx"

// dbtx is satisfied by both *sql.DB and *sql.Tx
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func setTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey, tx)
}

func getTx(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey).(*sql.Tx)
	return tx
}

// getExecutor returns the transaction from ctx if there is one, otherwise db.
// With a single pooled connection, using db while a transaction is open on
// the same goroutine would deadlock, so repositories must always go through here.
func getExecutor(ctx context.Context, db *sql.DB) dbtx {
	if tx := getTx(ctx); tx != nil {
		return tx
	}
	return db
}

// lockExecutor is getExecutor for row-locking reads. The open transaction
// already owns the only connection, so no extra locking statement is needed.
func lockExecutor(ctx context.Context) (dbtx, error) {
	tx := getTx(ctx)
	if tx == nil {
		return nil, fmt.Errorf("row lock requested outside a transaction")
	}
	return tx, nil
}

// TransactionManager implements repositories.TransactionManager for SQLite
type TransactionManager struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTransactionManager creates a new transaction manager
func NewTransactionManager(db *sql.DB, logger *slog.Logger) repositories.TransactionManager {
	return &TransactionManager{db: db, logger: logger}
}

// ExecTx executes fn within a transaction, joining one already in ctx
func (tm *TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if tm.InTransaction(ctx) {
		return fn(ctx)
	}

	tx, err := tm.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyError(fmt.Errorf("begin transaction: %w", err))
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			tm.logger.Warn("rollback failed", "error", err)
		}
	}()

	if err := fn(setTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return classifyError(fmt.Errorf("commit transaction: %w", err))
	}

	return nil
}

// InTransaction reports whether ctx carries a SQLite transaction
func (tm *TransactionManager) InTransaction(ctx context.Context) bool {
	return getTx(ctx) != nil
}
