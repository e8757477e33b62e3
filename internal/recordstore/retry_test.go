package recordstore

import (
	"fmt"
	"testing"
	"time"

	"github.com/mcfearsome/cc-colony-sub001/internal/errors"
)

func TestBackoffDelay(t *testing.T) {
	base := 20 * time.Millisecond
	ceiling := 500 * time.Millisecond

	tests := []struct {
		attempt int
		nominal time.Duration
	}{
		{0, 20 * time.Millisecond},
		{1, 40 * time.Millisecond},
		{3, 160 * time.Millisecond},
		{5, 500 * time.Millisecond}, // capped
		{70, 500 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.attempt), func(t *testing.T) {
			for range 50 {
				got := BackoffDelay(tt.attempt, base, ceiling)
				lo := tt.nominal - tt.nominal/4
				hi := tt.nominal + tt.nominal/4
				if got < lo || got > hi {
					t.Fatalf("BackoffDelay(%d) = %v, want within [%v, %v]", tt.attempt, got, lo, hi)
				}
			}
		})
	}

	if got := BackoffDelay(0, 0, 0); got != 0 {
		t.Errorf("BackoffDelay with zero base = %v, want 0", got)
	}
}

func TestIsSQLiteBusy(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{errors.New("database table is locked"), true},
		{fmt.Errorf("update: %w", errors.New("SQLITE_LOCKED")), true},
		{errors.New("no such table: records"), false},
	}
	for _, tt := range tests {
		if got := isSQLiteBusy(tt.err); got != tt.want {
			t.Errorf("isSQLiteBusy(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestRetryOnBusy(t *testing.T) {
	var slept []time.Duration
	orig := retrySleep
	retrySleep = func(d time.Duration) { slept = append(slept, d) }
	t.Cleanup(func() { retrySleep = orig })

	busy := errors.New("database is locked")

	t.Run("succeeds after busy", func(t *testing.T) {
		slept = nil
		calls := 0
		var retried []int
		err := retryOnBusy(5, func() error {
			calls++
			if calls < 3 {
				return busy
			}
			return nil
		}, func(attempt int, err error) { retried = append(retried, attempt) })

		if err != nil {
			t.Fatalf("error = %v", err)
		}
		if calls != 3 || len(slept) != 2 {
			t.Errorf("calls = %d, sleeps = %d; want 3 and 2", calls, len(slept))
		}
		if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
			t.Errorf("onRetry attempts = %v, want [1 2]", retried)
		}
	})

	t.Run("gives up", func(t *testing.T) {
		slept = nil
		calls := 0
		err := retryOnBusy(2, func() error { calls++; return busy }, nil)
		if !errors.Is(err, busy) {
			t.Errorf("error = %v, want busy error", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		slept = nil
		calls := 0
		err := retryOnBusy(5, func() error { calls++; return ErrVersionMismatch }, nil)
		if !errors.Is(err, ErrVersionMismatch) || calls != 1 || len(slept) != 0 {
			t.Errorf("err = %v, calls = %d, sleeps = %d", err, calls, len(slept))
		}
	})
}
