package recordstore

import (
	"math/rand/v2"
	"strings"
	"time"
)

// retrySleep is swapped out by tests.
var retrySleep = time.Sleep

// retryOnBusy retries f while it fails with SQLITE_BUSY or SQLITE_LOCKED,
// using exponential backoff with jitter. Other errors return immediately.
func retryOnBusy(maxRetries int, f func() error, onRetry func(attempt int, err error)) error {
	const baseDelay = 20 * time.Millisecond
	const maxDelay = 500 * time.Millisecond

	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = f()
		if err == nil {
			return nil
		}
		if !isSQLiteBusy(err) {
			return err
		}
		if attempt == maxRetries {
			return err
		}
		if onRetry != nil {
			onRetry(attempt+1, err)
		}
		retrySleep(BackoffDelay(attempt, baseDelay, maxDelay))
	}
	return err
}

// BackoffDelay returns base<<attempt capped at ceiling, with ±25% jitter.
func BackoffDelay(attempt int, base, ceiling time.Duration) time.Duration {
	delay := base << uint(attempt)
	if delay > ceiling || delay <= 0 {
		delay = ceiling
	}
	if delay < 4 {
		return delay
	}
	jitter := time.Duration(rand.IntN(int(delay / 2)))
	return delay - delay/4 + jitter
}

// isSQLiteBusy checks if an error is a SQLite BUSY (5) or LOCKED (6) error.
// The driver's error codes are matched by message so callers above this
// package never depend on the driver's types.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED")
}
