package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Sakenfor/pixsim7-sub004/internal/domain"
)

func sqliteCode(err error) int {
	var sqliteErr *moderncsqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()
	}
	return 0
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isConstraint matches an extended constraint code, or the primary
// SQLITE_CONSTRAINT code plus the message SQLite prints for that kind
func isConstraint(err error, extended int, message string) bool {
	code := sqliteCode(err)
	if code == extended {
		return true
	}
	return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(err.Error(), message)
}

// isVersionConflict checks for a unique violation on (family_id, version_number)
func isVersionConflict(err error) bool {
	return isConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE, "UNIQUE constraint failed") &&
		strings.Contains(err.Error(), "entities.family_id, entities.version_number")
}

func isCheckViolation(err error) bool {
	return isConstraint(err, sqlite3.SQLITE_CONSTRAINT_CHECK, "CHECK constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return isConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY, "FOREIGN KEY constraint failed")
}

func isBusy(err error) bool {
	code := sqliteCode(err)
	// Extended codes keep the primary code in the low byte
	return code&0xff == sqlite3.SQLITE_BUSY || code&0xff == sqlite3.SQLITE_LOCKED
}

// classifyError maps SQLITE_BUSY/LOCKED onto domain.ErrLockTimeout
func classifyError(err error) error {
	if err == nil || errors.Is(err, domain.ErrLockTimeout) {
		return err
	}
	if isBusy(err) {
		return fmt.Errorf("%w: %v", domain.ErrLockTimeout, err)
	}
	return err
}
