package recordstore

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mcfearsome/cc-colony-sub001/internal/errors"
)

// eachBackend runs fn once per backend against a fresh root.
func eachBackend(t *testing.T, fn func(t *testing.T, open func() Store)) {
	t.Helper()
	for _, backend := range ValidBackends() {
		t.Run(backend, func(t *testing.T) {
			root := t.TempDir()
			open := func() Store {
				s, err := Open(backend, root)
				if err != nil {
					t.Fatalf("Open(%s) error = %v", backend, err)
				}
				t.Cleanup(func() { _ = s.Close() })
				return s
			}
			fn(t, open)
		})
	}
}

type counter struct {
	N int `json:"n"`
}

func encode(n int) []byte {
	data, _ := json.Marshal(counter{N: n})
	return data
}

func parseCounter(data []byte) (int, error) {
	var c counter
	err := json.Unmarshal(data, &c)
	return c.N, err
}

func decode(t *testing.T, data []byte) int {
	t.Helper()
	n, err := parseCounter(data)
	if err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return n
}

func TestStore_CreateAndGet(t *testing.T) {
	eachBackend(t, func(t *testing.T, open func() Store) {
		s := open()

		rec, err := s.Create("tasks", "T1", encode(1))
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if rec.Version != 1 {
			t.Errorf("Create() version = %d, want 1", rec.Version)
		}

		got, err := s.Get("tasks", "T1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Version != 1 || decode(t, got.Data) != 1 || got.Table != "tasks" || got.ID != "T1" {
			t.Errorf("Get() = %+v", got)
		}
		if got.UpdatedAt.IsZero() {
			t.Error("UpdatedAt not set")
		}

		if _, err := s.Create("tasks", "T1", encode(2)); !errors.Is(err, ErrExists) {
			t.Errorf("duplicate Create() error = %v, want ErrExists", err)
		}
		if _, err := s.Get("tasks", "missing"); !errors.Is(err, ErrNoRecord) {
			t.Errorf("Get(missing) error = %v, want ErrNoRecord", err)
		}
		if _, err := s.Get("other", "T1"); !errors.Is(err, ErrNoRecord) {
			t.Errorf("Get(other table) error = %v, want ErrNoRecord", err)
		}
	})
}

func TestStore_CompareAndSwap(t *testing.T) {
	eachBackend(t, func(t *testing.T, open func() Store) {
		s := open()
		if _, err := s.Create("tasks", "T1", encode(0)); err != nil {
			t.Fatal(err)
		}

		rec, err := s.CompareAndSwap("tasks", "T1", 1, encode(1))
		if err != nil {
			t.Fatalf("CompareAndSwap() error = %v", err)
		}
		if rec.Version != 2 {
			t.Errorf("version after swap = %d, want 2", rec.Version)
		}

		// A writer holding the old version loses.
		if _, err := s.CompareAndSwap("tasks", "T1", 1, encode(99)); !errors.Is(err, ErrVersionMismatch) {
			t.Errorf("stale CompareAndSwap() error = %v, want ErrVersionMismatch", err)
		}

		got, err := s.Get("tasks", "T1")
		if err != nil {
			t.Fatal(err)
		}
		if got.Version != 2 || decode(t, got.Data) != 1 {
			t.Errorf("after stale swap Get() = version %d n %d, want 2 and 1", got.Version, decode(t, got.Data))
		}

		if _, err := s.CompareAndSwap("tasks", "missing", 1, encode(1)); !errors.Is(err, ErrNoRecord) {
			t.Errorf("CompareAndSwap(missing) error = %v, want ErrNoRecord", err)
		}
		if _, err := s.CompareAndSwap("nothing-here", "T1", 1, encode(1)); !errors.Is(err, ErrNoRecord) {
			t.Errorf("CompareAndSwap(missing table) error = %v, want ErrNoRecord", err)
		}
	})
}

func TestStore_Delete(t *testing.T) {
	eachBackend(t, func(t *testing.T, open func() Store) {
		s := open()
		if _, err := s.Create("tasks", "T1", encode(0)); err != nil {
			t.Fatal(err)
		}
		if _, err := s.CompareAndSwap("tasks", "T1", 1, encode(1)); err != nil {
			t.Fatal(err)
		}

		if err := s.Delete("tasks", "T1", 1); !errors.Is(err, ErrVersionMismatch) {
			t.Errorf("stale Delete() error = %v, want ErrVersionMismatch", err)
		}
		if err := s.Delete("tasks", "T1", 2); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := s.Get("tasks", "T1"); !errors.Is(err, ErrNoRecord) {
			t.Errorf("Get after Delete error = %v, want ErrNoRecord", err)
		}
		if err := s.Delete("tasks", "T1", 2); !errors.Is(err, ErrNoRecord) {
			t.Errorf("second Delete() error = %v, want ErrNoRecord", err)
		}

		// The id is free again.
		rec, err := s.Create("tasks", "T1", encode(5))
		if err != nil || rec.Version != 1 {
			t.Errorf("re-Create() = %+v, %v", rec, err)
		}
	})
}

func TestStore_List(t *testing.T) {
	eachBackend(t, func(t *testing.T, open func() Store) {
		s := open()

		recs, err := s.List("tasks")
		if err != nil || len(recs) != 0 {
			t.Fatalf("List(empty) = %v, %v", recs, err)
		}

		for i, id := range []string{"c", "a", "b"} {
			if _, err := s.Create("tasks", id, encode(i)); err != nil {
				t.Fatal(err)
			}
		}
		if _, err := s.Create("other", "z", encode(0)); err != nil {
			t.Fatal(err)
		}

		recs, err = s.List("tasks")
		if err != nil {
			t.Fatal(err)
		}
		var ids []string
		for _, r := range recs {
			ids = append(ids, r.ID)
		}
		if !slices.Equal(ids, []string{"a", "b", "c"}) {
			t.Errorf("List() ids = %v, want [a b c]", ids)
		}
	})
}

func TestStore_Logs(t *testing.T) {
	eachBackend(t, func(t *testing.T, open func() Store) {
		s := open()

		entries, err := s.ReadLog("mailbox/agent-b")
		if err != nil || len(entries) != 0 {
			t.Fatalf("ReadLog(never written) = %v, %v", entries, err)
		}

		for i := range 5 {
			id := fmt.Sprintf("m%d", i)
			if err := s.Append("mailbox/agent-b", id, encode(i)); err != nil {
				t.Fatalf("Append(%s) error = %v", id, err)
			}
		}
		if err := s.Append("mailbox/all", "b1", encode(100)); err != nil {
			t.Fatal(err)
		}
		if err := s.Append("audit", "x1", encode(7)); err != nil {
			t.Fatal(err)
		}

		entries, err = s.ReadLog("mailbox/agent-b")
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 5 {
			t.Fatalf("ReadLog() returned %d entries, want 5", len(entries))
		}
		for i, e := range entries {
			if e.ID != fmt.Sprintf("m%d", i) || decode(t, e.Data) != i || e.Log != "mailbox/agent-b" {
				t.Errorf("entry %d = %+v", i, e)
			}
		}

		logs, err := s.Logs()
		if err != nil {
			t.Fatal(err)
		}
		if want := []string{"audit", "mailbox/agent-b", "mailbox/all"}; !slices.Equal(logs, want) {
			t.Errorf("Logs() = %v, want %v", logs, want)
		}
	})
}

func TestStore_AppendDuplicateID(t *testing.T) {
	eachBackend(t, func(t *testing.T, open func() Store) {
		s := open()
		if err := s.Append("broadcast", "e1", encode(1)); err != nil {
			t.Fatal(err)
		}
		if err := s.Append("broadcast", "e2", encode(2)); err != nil {
			t.Fatal(err)
		}

		if err := s.Append("broadcast", "e1", encode(3)); !errors.Is(err, ErrExists) {
			t.Errorf("second Append(e1) error = %v, want ErrExists", err)
		}
		// Another handle on the same root sees the same entries.
		if err := open().Append("broadcast", "e2", encode(4)); !errors.Is(err, ErrExists) {
			t.Errorf("Append(e2) from another handle error = %v, want ErrExists", err)
		}
		// Ids are scoped to their log.
		if err := s.Append("inbox/agent-b", "e1", encode(5)); err != nil {
			t.Errorf("Append(e1) to another log error = %v", err)
		}

		entries, err := s.ReadLog("broadcast")
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 2 || decode(t, entries[0].Data) != 1 || decode(t, entries[1].Data) != 2 {
			t.Errorf("ReadLog() = %+v, want e1=1 and e2=2 only", entries)
		}
	})
}

func TestStore_AppendRejectsOversizedEntry(t *testing.T) {
	eachBackend(t, func(t *testing.T, open func() Store) {
		s := open()
		big := []byte(`"` + strings.Repeat("x", MaxEntrySize) + `"`)

		err := s.Append("broadcast", "big", big)
		if errors.Kind(err) != errors.KindValidation {
			t.Fatalf("Append(oversized) error = %v, want validation error", err)
		}
		if err := s.Append("broadcast", "small", encode(1)); err != nil {
			t.Fatal(err)
		}

		entries, err := s.ReadLog("broadcast")
		if err != nil {
			t.Fatalf("ReadLog() error = %v", err)
		}
		if len(entries) != 1 || entries[0].ID != "small" {
			t.Errorf("ReadLog() = %d entries, want only small", len(entries))
		}
	})
}

func TestStore_InvalidKeys(t *testing.T) {
	eachBackend(t, func(t *testing.T, open func() Store) {
		s := open()

		tests := []struct {
			name string
			fn   func() error
		}{
			{"empty id", func() error { _, err := s.Create("tasks", "", []byte(`{}`)); return err }},
			{"path traversal id", func() error { _, err := s.Create("tasks", "../x", []byte(`{}`)); return err }},
			{"dotfile id", func() error { _, err := s.Get("tasks", ".lock"); return err }},
			{"slash in table", func() error { _, err := s.List("a/b"); return err }},
			{"deep log", func() error { return s.Append("a/b/c", "e1", []byte(`{}`)) }},
			{"empty log segment", func() error { _, err := s.ReadLog("mailbox/"); return err }},
			{"bad entry id", func() error { return s.Append("audit", "has space", []byte(`{}`)) }},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if err := tt.fn(); !errors.Is(err, ErrInvalidKey) {
					t.Errorf("error = %v, want ErrInvalidKey", err)
				}
			})
		}
	})
}

func TestStore_Closed(t *testing.T) {
	eachBackend(t, func(t *testing.T, open func() Store) {
		s := open()
		if err := s.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if err := s.Close(); err != nil {
			t.Errorf("second Close() error = %v", err)
		}
		if _, err := s.Get("tasks", "T1"); !errors.Is(err, ErrClosed) {
			t.Errorf("Get after Close error = %v, want ErrClosed", err)
		}
		if err := s.Append("audit", "e1", []byte(`{}`)); !errors.Is(err, ErrClosed) {
			t.Errorf("Append after Close error = %v, want ErrClosed", err)
		}
	})
}

func TestStore_ReopenSeesData(t *testing.T) {
	eachBackend(t, func(t *testing.T, open func() Store) {
		first := open()
		if _, err := first.Create("tasks", "T1", encode(42)); err != nil {
			t.Fatal(err)
		}
		if err := first.Append("audit", "e1", encode(1)); err != nil {
			t.Fatal(err)
		}

		second := open()
		rec, err := second.Get("tasks", "T1")
		if err != nil || decode(t, rec.Data) != 42 {
			t.Errorf("second handle Get() = %+v, %v", rec, err)
		}
		entries, err := second.ReadLog("audit")
		if err != nil || len(entries) != 1 {
			t.Errorf("second handle ReadLog() = %v, %v", entries, err)
		}
	})
}

// Several handles on one root stand in for separate agent processes.
func TestStore_ConcurrentIncrement(t *testing.T) {
	eachBackend(t, func(t *testing.T, open func() Store) {
		const writers = 8
		const perWriter = 10

		if _, err := open().Create("counters", "c", encode(0)); err != nil {
			t.Fatal(err)
		}

		var (
			wg       sync.WaitGroup
			failures atomic.Int32
		)
		for range writers {
			s := open()
			wg.Go(func() {
				for range perWriter {
					for {
						rec, err := s.Get("counters", "c")
						if err != nil {
							failures.Add(1)
							return
						}
						n, err := parseCounter(rec.Data)
						if err != nil {
							failures.Add(1)
							return
						}
						_, err = s.CompareAndSwap("counters", "c", rec.Version, encode(n+1))
						if err == nil {
							break
						}
						if !errors.Is(err, ErrVersionMismatch) {
							failures.Add(1)
							return
						}
					}
				}
			})
		}
		wg.Wait()

		if n := failures.Load(); n != 0 {
			t.Fatalf("%d writers failed with unexpected errors", n)
		}
		rec, err := open().Get("counters", "c")
		if err != nil {
			t.Fatal(err)
		}
		if got := decode(t, rec.Data); got != writers*perWriter {
			t.Errorf("counter = %d, want %d (lost update)", got, writers*perWriter)
		}
		if rec.Version != writers*perWriter+1 {
			t.Errorf("version = %d, want %d", rec.Version, writers*perWriter+1)
		}
	})
}

func TestStore_ConcurrentCreateHasOneWinner(t *testing.T) {
	eachBackend(t, func(t *testing.T, open func() Store) {
		const racers = 10
		var (
			wg   sync.WaitGroup
			wins atomic.Int32
		)
		for i := range racers {
			s := open()
			wg.Go(func() {
				_, err := s.Create("tasks", "T1", encode(i))
				switch {
				case err == nil:
					wins.Add(1)
				case !errors.Is(err, ErrExists):
					t.Errorf("racer %d: unexpected error %v", i, err)
				}
			})
		}
		wg.Wait()

		if n := wins.Load(); n != 1 {
			t.Errorf("%d creates succeeded, want exactly 1", n)
		}
	})
}

func TestStore_ConcurrentAppendKeepsEveryEntry(t *testing.T) {
	eachBackend(t, func(t *testing.T, open func() Store) {
		const writers = 6
		const perWriter = 20

		var wg sync.WaitGroup
		for w := range writers {
			s := open()
			wg.Go(func() {
				for i := range perWriter {
					if err := s.Append("mailbox/all", fmt.Sprintf("w%d-%d", w, i), encode(i)); err != nil {
						t.Errorf("Append error = %v", err)
						return
					}
				}
			})
		}
		wg.Wait()

		entries, err := open().ReadLog("mailbox/all")
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != writers*perWriter {
			t.Fatalf("ReadLog() = %d entries, want %d", len(entries), writers*perWriter)
		}

		// Each writer's own entries stay in the order it appended them.
		next := make(map[string]int)
		for _, e := range entries {
			var w, i int
			if _, err := fmt.Sscanf(e.ID, "w%d-%d", &w, &i); err != nil {
				t.Fatalf("unexpected id %q", e.ID)
			}
			key := fmt.Sprint(w)
			if i != next[key] {
				t.Errorf("writer %d: got entry %d, want %d", w, i, next[key])
			}
			next[key] = i + 1
		}
	})
}

func TestValidKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"T1", true},
		{"agent-a", true},
		{"api.auth_v2", true},
		{"", false},
		{".hidden", false},
		{"-leading", false},
		{"a/b", false},
		{"..", false},
		{"with space", false},
		{string(make([]byte, 129)), false},
	}
	for _, tt := range tests {
		if got := ValidKey(tt.key); got != tt.want {
			t.Errorf("ValidKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}

	long := make([]byte, 128)
	for i := range long {
		long[i] = 'a'
	}
	if !ValidKey(string(long)) {
		t.Error("128-character key should be valid")
	}
}

func TestOpen(t *testing.T) {
	root := t.TempDir()

	s, err := Open("", root)
	if err != nil {
		t.Fatalf("Open(default) error = %v", err)
	}
	if _, ok := s.(*FileStore); !ok {
		t.Errorf("default backend = %T, want *FileStore", s)
	}
	_ = s.Close()

	s, err = Open(BackendSQLite, root, WithBusyTimeout(time.Second), WithBusyRetries(2))
	if err != nil {
		t.Fatalf("Open(sqlite) error = %v", err)
	}
	sq, ok := s.(*SQLiteStore)
	if !ok {
		t.Fatalf("sqlite backend = %T", s)
	}
	if sq.Path() != filepath.Join(root, SQLiteFileName) {
		t.Errorf("Path() = %q", sq.Path())
	}
	_ = s.Close()

	_, err = Open("redis", root)
	if errors.Kind(err) != errors.KindValidation {
		t.Errorf("Open(redis) error = %v, want validation error", err)
	}
}

func TestWithClock(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, backend := range ValidBackends() {
		t.Run(backend, func(t *testing.T) {
			s, err := Open(backend, t.TempDir(), WithClock(func() time.Time { return fixed }))
			if err != nil {
				t.Fatal(err)
			}
			defer s.Close()

			if _, err := s.Create("tasks", "T1", []byte(`{}`)); err != nil {
				t.Fatal(err)
			}
			rec, err := s.Get("tasks", "T1")
			if err != nil {
				t.Fatal(err)
			}
			if !rec.UpdatedAt.Equal(fixed) {
				t.Errorf("UpdatedAt = %v, want %v", rec.UpdatedAt, fixed)
			}
		})
	}
}
