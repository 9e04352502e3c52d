package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lib/pq"

	"gatekeeper/internal/errs"
	"gatekeeper/internal/logger"
)

const maxRetries = 3

// WithRetry runs op, retrying transient storage failures with
// exponential backoff a bounded number of times. Domain errors and
// row-not-found results are never retried; exhausting the retries
// surfaces the last error to the caller.
func WithRetry(ctx context.Context, log *logger.Logger, label string, op func() error) error {
	attempt := 0

	wrapped := func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return backoff.Permanent(err)
		}
		if log != nil {
			log.Warn("DATABASE", fmt.Sprintf("%s failed (attempt %d): %v", label, attempt, err))
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 1 * time.Second

	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx))
}

func isTransient(err error) bool {
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if _, ok := errs.As(err); ok {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// Connection failures, deadlocks and serialization conflicts are
		// retryable; constraint and data errors never resolve on retry.
		return pqErr.Code.Class() == "08" ||
			pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	// Remaining driver-level failures (connection drops, timeouts) are
	// worth another attempt.
	return true
}
