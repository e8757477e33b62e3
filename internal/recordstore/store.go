// Package recordstore is the durable rendezvous point shared by every agent
// process. It stores versioned records keyed by (table, id) with optimistic
// compare-and-swap writes, plus append-only logs of immutable entries.
//
// Two backends implement [Store]:
//
//   - [FileStore] keeps one JSON file per record and one JSONL file per log
//     under a root directory. Writes are published with rename(2) while an
//     flock(2) is held on the table, so readers only ever observe complete
//     records.
//   - [SQLiteStore] keeps everything in a single SQLite database and relies
//     on conditional UPDATE statements for compare-and-swap.
//
// Callers never lock anything themselves: every mutation is a single
// Create, CompareAndSwap, Delete, or Append call that either fully applies
// or reports why it did not.
package recordstore

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mcfearsome/cc-colony-sub001/internal/errors"
)

// Sentinel errors returned by every backend.
var (
	// ErrNoRecord is returned when the requested record does not exist.
	ErrNoRecord = errors.New("record does not exist")
	// ErrExists is returned by Create and Append when the id is taken.
	ErrExists = errors.New("record already exists")
	// ErrVersionMismatch is returned when a compare-and-swap loses.
	ErrVersionMismatch = errors.New("record version changed")
	// ErrInvalidKey is returned for table, id, or log names that cannot be
	// stored safely.
	ErrInvalidKey = errors.New("invalid record key")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store is closed")
)

// Record is one versioned row of a table. Version starts at 1 and grows by
// exactly one on every successful CompareAndSwap.
type Record struct {
	Table     string
	ID        string
	Version   int64
	Data      []byte
	UpdatedAt time.Time
}

// Entry is one immutable element of an append-only log.
type Entry struct {
	Log  string
	ID   string
	Data []byte
}

// Store is the record store contract implemented by every backend.
type Store interface {
	// Get returns the current version of a record.
	Get(table, id string) (Record, error)
	// List returns every record in table ordered by id.
	List(table string) ([]Record, error)
	// Create inserts a record at version 1, failing with ErrExists if the
	// id is already present.
	Create(table, id string, data []byte) (Record, error)
	// CompareAndSwap replaces the record only if its stored version still
	// equals version. The returned record carries the new version.
	CompareAndSwap(table, id string, version int64, data []byte) (Record, error)
	// Delete removes the record only if its stored version equals version.
	Delete(table, id string, version int64) error
	// Append adds an entry to the end of log, failing with ErrExists if
	// the log already holds an entry with id. Data larger than
	// MaxEntrySize is a validation error.
	Append(log, id string, data []byte) error
	// ReadLog returns the entries of log in append order. A log that was
	// never written is empty, not an error.
	ReadLog(log string) ([]Entry, error)
	// Logs returns the names of every log that has at least one entry.
	Logs() ([]string, error)
	// Close releases backend resources.
	Close() error
}

var keyRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidKey reports whether s can be used as a table name, record id, or
// log name segment.
func ValidKey(s string) bool {
	return len(s) <= 128 && keyRegex.MatchString(s)
}

func checkKey(kind, s string) error {
	if !ValidKey(s) {
		return errors.Wrapf(ErrInvalidKey, "%s %q", kind, s)
	}
	return nil
}

// MaxEntrySize bounds the data of a single log entry. Larger entries are
// rejected by Append on every backend.
const MaxEntrySize = 1 << 20

func checkEntrySize(data []byte) error {
	if len(data) > MaxEntrySize {
		return errors.NewValidationError(fmt.Sprintf("entry data exceeds %d bytes", MaxEntrySize)).
			WithField("data").WithValue(len(data))
	}
	return nil
}

// checkLogName accepts "name" or "namespace/name".
func checkLogName(log string) error {
	parts := strings.Split(log, "/")
	if len(parts) > 2 {
		return errors.Wrapf(ErrInvalidKey, "log %q", log)
	}
	for _, p := range parts {
		if !ValidKey(p) {
			return errors.Wrapf(ErrInvalidKey, "log %q", log)
		}
	}
	return nil
}

// formatTime renders timestamps the same way in both backends.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
