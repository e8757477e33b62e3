package taskqueue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mcfearsome/cc-colony-sub001/internal/errors"
	"github.com/mcfearsome/cc-colony-sub001/internal/recordstore"
)

// racingStore lets a test run code between a mutation's read and its
// compare-and-swap, reproducing a lost race deterministically.
type racingStore struct {
	recordstore.Store
	beforeCAS func(attempt int)
	casCalls  int
}

func (s *racingStore) CompareAndSwap(table, id string, version int64, data []byte) (recordstore.Record, error) {
	s.casCalls++
	if s.beforeCAS != nil {
		s.beforeCAS(s.casCalls)
	}
	return s.Store.CompareAndSwap(table, id, version, data)
}

// bumpVersion rewrites the record unchanged so the next CAS loses.
func bumpVersion(t *testing.T, store recordstore.Store, id string) {
	t.Helper()
	rec, err := store.Get(TasksTable, id)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.CompareAndSwap(TasksTable, id, rec.Version, rec.Data); err != nil {
		t.Fatal(err)
	}
}

func TestArbiter_LoserRevalidatesAgainstWinner(t *testing.T) {
	inner := openStore(t, recordstore.BackendFile, t.TempDir())
	mustCreate(t, New(inner), "T1")

	var sleeps []time.Duration
	racing := &racingStore{Store: inner}
	q := New(racing, WithSleep(func(d time.Duration) { sleeps = append(sleeps, d) }),
		WithBackoff(func(attempt int) time.Duration { return time.Duration(attempt+1) * time.Millisecond }))

	racing.beforeCAS = func(call int) {
		if call == 1 {
			// Agent B wins between A's read and A's write.
			mustClaim(t, New(inner), "T1", "B")
		}
	}

	_, attempts, err := q.TryClaim("T1", "A")
	var conflict *errors.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("error = %v, want ConflictError", err)
	}
	if conflict.Owner != "B" {
		t.Errorf("owner = %q, want B", conflict.Owner)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2 (lost swap, then re-read)", attempts)
	}
	if len(sleeps) != 1 || sleeps[0] != time.Millisecond {
		t.Errorf("sleeps = %v, want [1ms]", sleeps)
	}

	tk, err := q.Get("T1")
	if err != nil {
		t.Fatal(err)
	}
	if tk.ClaimedBy != "B" {
		t.Errorf("claimed_by = %q, want B", tk.ClaimedBy)
	}
}

func TestArbiter_RetriesUnrelatedWriteThenSucceeds(t *testing.T) {
	inner := openStore(t, recordstore.BackendFile, t.TempDir())
	mustCreate(t, New(inner), "T1")

	racing := &racingStore{Store: inner}
	racing.beforeCAS = func(call int) {
		if call <= 2 {
			bumpVersion(t, inner, "T1")
		}
	}

	var hooks []int
	q := New(racing,
		WithSleep(func(time.Duration) {}),
		WithRetryHook(func(id string, attempt int, _ time.Duration) { hooks = append(hooks, attempt) }))

	tk, attempts, err := q.TryClaim("T1", "A")
	if err != nil {
		t.Fatalf("TryClaim: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if tk.Version != 4 {
		t.Errorf("version = %d, want 4 (create + two bumps + claim)", tk.Version)
	}
	if len(hooks) != 2 || hooks[0] != 1 || hooks[1] != 2 {
		t.Errorf("retry hook attempts = %v, want [1 2]", hooks)
	}
}

func TestArbiter_ExhaustedBudgetIsConflict(t *testing.T) {
	tests := []struct {
		maxRetries   int
		wantAttempts int
		wantSleeps   int
	}{
		{0, 1, 0},
		{1, 2, 1},
		{3, 4, 3},
	}
	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			inner := openStore(t, recordstore.BackendFile, t.TempDir())
			mustCreate(t, New(inner), "T1")

			racing := &racingStore{Store: inner}
			racing.beforeCAS = func(int) { bumpVersion(t, inner, "T1") }

			sleeps := 0
			a := NewArbiter(racing, WithMaxRetries(tt.maxRetries), WithSleep(func(time.Duration) { sleeps++ }))
			_, attempts, err := a.Mutate("T1", func(tk *Task) error {
				tk.Progress = 1
				return nil
			})

			var conflict *errors.ConflictError
			if !errors.As(err, &conflict) {
				t.Fatalf("error = %v, want ConflictError", err)
			}
			if conflict.Attempts != tt.wantAttempts || attempts != tt.wantAttempts {
				t.Errorf("attempts = %d (error says %d), want %d", attempts, conflict.Attempts, tt.wantAttempts)
			}
			if sleeps != tt.wantSleeps {
				t.Errorf("sleeps = %d, want %d", sleeps, tt.wantSleeps)
			}
		})
	}
}

func TestArbiter_CallbackErrorAbortsWithoutWrite(t *testing.T) {
	store := openStore(t, recordstore.BackendFile, t.TempDir())
	mustCreate(t, New(store), "T1")

	a := NewArbiter(store)
	want := errors.NewValidationError("nope")
	_, attempts, err := a.Mutate("T1", func(tk *Task) error {
		tk.Title = "changed"
		return want
	})
	if err != want {
		t.Fatalf("error = %v, want callback error", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}

	rec, err := store.Get(TasksTable, "T1")
	if err != nil {
		t.Fatal(err)
	}
	var tk Task
	if err := json.Unmarshal(rec.Data, &tk); err != nil {
		t.Fatal(err)
	}
	if rec.Version != 1 || tk.Title != "task T1" {
		t.Errorf("record changed: version %d title %q", rec.Version, tk.Title)
	}
}

func TestArbiter_MissingTask(t *testing.T) {
	store := openStore(t, recordstore.BackendFile, t.TempDir())
	a := NewArbiter(store)

	_, _, err := a.Mutate("nope", func(*Task) error { return nil })
	wantErr(t, err, &errors.NotFoundError{})

	_, err = a.Remove("nope", nil)
	wantErr(t, err, &errors.NotFoundError{})

	_, _, err = a.Mutate("bad/id", func(*Task) error { return nil })
	wantErr(t, err, &errors.NotFoundError{})
}

func TestArbiter_RemoveCheck(t *testing.T) {
	store := openStore(t, recordstore.BackendFile, t.TempDir())
	mustCreate(t, New(store), "T1")
	a := NewArbiter(store)

	refuse := errors.NewValidationError("keep it")
	if _, err := a.Remove("T1", func(*Task) error { return refuse }); err != refuse {
		t.Fatalf("Remove error = %v, want check error", err)
	}
	if _, err := store.Get(TasksTable, "T1"); err != nil {
		t.Fatalf("task removed despite check: %v", err)
	}

	tk, err := a.Remove("T1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if tk.ID != "T1" {
		t.Errorf("removed %q", tk.ID)
	}
}

func TestExponentialBackoff(t *testing.T) {
	f := ExponentialBackoff(4*time.Millisecond, 20*time.Millisecond)
	for attempt := range 10 {
		d := f(attempt)
		if d <= 0 || d > 25*time.Millisecond {
			t.Errorf("attempt %d: delay %v out of range", attempt, d)
		}
	}
}
