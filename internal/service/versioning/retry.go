package versioning

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Sakenfor/pixsim7-sub004/internal/domain"
	"github.com/Sakenfor/pixsim7-sub004/internal/domain/repositories"
	"github.com/Sakenfor/pixsim7-sub004/internal/metrics"
)

// RetryConfig controls how allocation transactions are retried after a
// version conflict or lock timeout
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
}

// DefaultRetryConfig returns the retry settings used when none are configured
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 25 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
		MaxElapsed:      5 * time.Second,
	}
}

// retrier re-runs a whole transaction from scratch. Retrying inside a
// caller's transaction is pointless (the transaction is already aborted),
// so a joined transaction runs exactly once and the outermost caller decides.
type retrier struct {
	config    RetryConfig
	txManager repositories.TransactionManager
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func (r *retrier) do(ctx context.Context, op string, fn func() error) error {
	if r.txManager.InTransaction(ctx) {
		err := fn()
		r.noteConflict(op, err)
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.config.InitialInterval
	b.MaxInterval = r.config.MaxInterval
	b.MaxElapsedTime = r.config.MaxElapsed
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.config.MaxRetries)), ctx)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		r.noteConflict(op, err)
		if domain.IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, policy, func(err error, wait time.Duration) {
		r.metrics.AllocationRetriesTotal.Inc()
		r.logger.Warn("retrying version allocation",
			"op", op,
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	})

	if err != nil && domain.IsRetryable(err) {
		r.logger.Error("version allocation failed after retries",
			"op", op,
			"attempts", attempt,
			"error", err,
		)
	}
	return err
}

// noteConflict logs unique-index violations. The family lock should make
// them impossible, so each one points at a locking regression.
func (r *retrier) noteConflict(op string, err error) {
	var conflict *domain.VersionConflictError
	if !errors.As(err, &conflict) {
		return
	}
	r.metrics.VersionConflictsTotal.Inc()
	r.logger.Error("version conflict: possible locking regression",
		"op", op,
		"family_id", conflict.FamilyID,
		"version_number", conflict.VersionNumber,
	)
}
