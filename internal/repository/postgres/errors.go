package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Sakenfor/pixsim7-sub004/internal/domain"
)

// SQLSTATE codes we classify
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeLockNotAvailable    = "55P03"
	codeDeadlockDetected    = "40P01"
	codeSerializationFailed = "40001"
)

func pgCode(err error) (string, *pgconn.PgError) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr
	}
	return "", nil
}

// IsPgDuplicateError checks if error is a unique constraint violation
func IsPgDuplicateError(err error) bool {
	code, _ := pgCode(err)
	return code == codeUniqueViolation
}

// IsPgNoRowsError checks if error is a "no rows" error
func IsPgNoRowsError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsPgForeignKeyError checks if error is a foreign key violation
func IsPgForeignKeyError(err error) bool {
	code, _ := pgCode(err)
	return code == codeForeignKeyViolation
}

// IsPgCheckError checks if error is a check constraint violation
func IsPgCheckError(err error) bool {
	code, _ := pgCode(err)
	return code == codeCheckViolation
}

// IsPgLockTimeoutError checks if a lock wait was abandoned: lock_timeout,
// deadlock detection or a serialization failure
func IsPgLockTimeoutError(err error) bool {
	code, _ := pgCode(err)
	return code == codeLockNotAvailable || code == codeDeadlockDetected || code == codeSerializationFailed
}

// IsConstraintViolation checks whether a unique violation hit the named constraint
func IsConstraintViolation(err error, constraint string) bool {
	code, pgErr := pgCode(err)
	return code == codeUniqueViolation && pgErr.ConstraintName == constraint
}

// classifyError maps lock failures that can surface at any statement
// (including COMMIT) onto domain.ErrLockTimeout. Other errors pass through.
func classifyError(err error) error {
	if err == nil || errors.Is(err, domain.ErrLockTimeout) {
		return err
	}
	if IsPgLockTimeoutError(err) {
		return fmt.Errorf("%w: %v", domain.ErrLockTimeout, err)
	}
	return err
}

// ClassifyError is classifyError for repository packages
func ClassifyError(err error) error {
	return classifyError(err)
}

// IsPgInvalidInputError checks if a parameter could not be parsed by the
// server (22P02), e.g. a malformed UUID
func IsPgInvalidInputError(err error) bool {
	code, _ := pgCode(err)
	return code == "22P02"
}
