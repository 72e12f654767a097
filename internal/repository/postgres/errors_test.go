package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Sakenfor/pixsim7-sub004/internal/domain"
)

func TestErrorClassification(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "dev_entities_family_version_key"}
	wrapped := fmt.Errorf("insert entity: %w", unique)

	if !IsPgDuplicateError(wrapped) {
		t.Error("wrapped 23505 should be a duplicate error")
	}
	if !IsConstraintViolation(wrapped, "dev_entities_family_version_key") {
		t.Error("constraint name should match")
	}
	if IsConstraintViolation(wrapped, "dev_families_pkey") {
		t.Error("different constraint should not match")
	}
	if !IsPgForeignKeyError(&pgconn.PgError{Code: "23503"}) {
		t.Error("23503 should be a foreign key error")
	}
	if !IsPgCheckError(&pgconn.PgError{Code: "23514"}) {
		t.Error("23514 should be a check error")
	}
	if !IsPgNoRowsError(fmt.Errorf("get: %w", pgx.ErrNoRows)) {
		t.Error("wrapped ErrNoRows should be detected")
	}
	if IsPgDuplicateError(errors.New("plain")) {
		t.Error("plain error is not a pg error")
	}
}

func TestClassifyError_LockFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantLock bool
	}{
		{name: "lock timeout", err: &pgconn.PgError{Code: "55P03"}, wantLock: true},
		{name: "deadlock", err: &pgconn.PgError{Code: "40P01"}, wantLock: true},
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, wantLock: true},
		{name: "unique", err: &pgconn.PgError{Code: "23505"}, wantLock: false},
		{name: "plain", err: errors.New("boom"), wantLock: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(fmt.Errorf("lock family: %w", tt.err))
			if errors.Is(got, domain.ErrLockTimeout) != tt.wantLock {
				t.Errorf("classifyError(%v) lock=%v, want %v", tt.err, !tt.wantLock, tt.wantLock)
			}
			if !domain.IsRetryable(got) && tt.wantLock {
				t.Errorf("lock failure should be retryable")
			}
		})
	}
}
