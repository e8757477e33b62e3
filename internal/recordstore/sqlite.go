package recordstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mcfearsome/cc-colony-sub001/internal/errors"
	"github.com/mcfearsome/cc-colony-sub001/internal/logging"
)

// SQLiteFileName is the database file created under the coordination root.
const SQLiteFileName = "colony.db"

// SQLitePath returns the database path for a coordination root.
func SQLitePath(root string) string {
	return filepath.Join(root, SQLiteFileName)
}

// SQLiteStore implements Store on a single SQLite database in WAL mode.
// Compare-and-swap is a conditional UPDATE, so concurrent processes sharing
// the file serialize through SQLite's own write lock.
type SQLiteStore struct {
	conn    *sql.DB
	path    string
	now     func() time.Time
	logger  *logging.Logger
	retries int
	closed  atomic.Bool
}

// NewSQLiteStore opens (and migrates) the database at path.
func NewSQLiteStore(path string, opts ...Option) (*SQLiteStore, error) {
	o := buildOptions(opts)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.NewStoreError("create db directory", err).WithBackend(BackendSQLite).WithPath(dir)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		path, o.busyTimeout.Milliseconds())
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.NewStoreError("open database", err).WithBackend(BackendSQLite).WithPath(path)
	}

	s := &SQLiteStore{
		conn:    conn,
		path:    path,
		now:     o.now,
		logger:  o.logger,
		retries: o.busyRetries,
	}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the path to the database file.
func (s *SQLiteStore) Path() string { return s.path }

// WatchPaths returns the database directory; WAL writes touch it on every commit.
func (s *SQLiteStore) WatchPaths() []string {
	return []string{filepath.Dir(s.path)}
}

func (s *SQLiteStore) storeErr(message string, err error) *errors.StoreError {
	return errors.NewStoreError(message, err).WithBackend(BackendSQLite).WithPath(s.path)
}

// migrate applies all pending schema migrations.
func (s *SQLiteStore) migrate() error {
	return s.retry(func() error {
		if _, err := s.conn.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (
				version INTEGER PRIMARY KEY,
				applied_at TEXT NOT NULL
			)
		`); err != nil {
			return s.storeErr("create schema_version table", err)
		}

		var current int
		if err := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
			return s.storeErr("get schema version", err)
		}

		migrations := []struct {
			version int
			sql     string
		}{
			{
				version: 1,
				sql: `
					CREATE TABLE IF NOT EXISTS records (
						tbl        TEXT    NOT NULL,
						id         TEXT    NOT NULL,
						version    INTEGER NOT NULL,
						data       TEXT    NOT NULL,
						updated_at TEXT    NOT NULL,
						PRIMARY KEY (tbl, id)
					);
					CREATE TABLE IF NOT EXISTS log_entries (
						seq  INTEGER PRIMARY KEY AUTOINCREMENT,
						log  TEXT NOT NULL,
						id   TEXT NOT NULL,
						data TEXT NOT NULL,
						UNIQUE (log, id)
					);
					CREATE INDEX IF NOT EXISTS idx_log_entries_log ON log_entries(log, seq);
				`,
			},
		}

		for _, m := range migrations {
			if m.version <= current {
				continue
			}
			tx, err := s.conn.Begin()
			if err != nil {
				return s.storeErr("begin migration", err)
			}
			if _, err := tx.Exec(m.sql); err != nil {
				_ = tx.Rollback()
				return s.storeErr(fmt.Sprintf("apply migration %d", m.version), err)
			}
			if _, err := tx.Exec("INSERT OR IGNORE INTO schema_version (version, applied_at) VALUES (?, ?)",
				m.version, formatTime(s.now())); err != nil {
				_ = tx.Rollback()
				return s.storeErr(fmt.Sprintf("record migration %d", m.version), err)
			}
			if err := tx.Commit(); err != nil {
				return s.storeErr(fmt.Sprintf("commit migration %d", m.version), err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) retry(f func() error) error {
	return retryOnBusy(s.retries, f, func(attempt int, err error) {
		s.logger.Debug("sqlite busy, retrying", "attempt", attempt, "error", err)
	})
}

func (s *SQLiteStore) checkRecordKeys(table, id string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := checkKey("table", table); err != nil {
		return err
	}
	return checkKey("id", id)
}

// Get returns the current version of a record.
func (s *SQLiteStore) Get(table, id string) (Record, error) {
	if err := s.checkRecordKeys(table, id); err != nil {
		return Record{}, err
	}

	var rec Record
	err := s.retry(func() error {
		var (
			data      string
			updatedAt string
		)
		row := s.conn.QueryRow("SELECT version, data, updated_at FROM records WHERE tbl = ? AND id = ?", table, id)
		if err := row.Scan(&rec.Version, &data, &updatedAt); err != nil {
			if err == sql.ErrNoRows {
				return ErrNoRecord
			}
			return s.storeErr("get record", err)
		}
		rec.Table, rec.ID = table, id
		rec.Data = []byte(data)
		rec.UpdatedAt = parseTime(updatedAt)
		return nil
	})
	return rec, err
}

// List returns every record in table ordered by id.
func (s *SQLiteStore) List(table string) ([]Record, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := checkKey("table", table); err != nil {
		return nil, err
	}

	var records []Record
	err := s.retry(func() error {
		records = records[:0]
		rows, err := s.conn.Query("SELECT id, version, data, updated_at FROM records WHERE tbl = ? ORDER BY id", table)
		if err != nil {
			return s.storeErr("list records", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				rec       Record
				data      string
				updatedAt string
			)
			if err := rows.Scan(&rec.ID, &rec.Version, &data, &updatedAt); err != nil {
				return s.storeErr("scan record", err)
			}
			rec.Table = table
			rec.Data = []byte(data)
			rec.UpdatedAt = parseTime(updatedAt)
			records = append(records, rec)
		}
		if err := rows.Err(); err != nil {
			return s.storeErr("iterate records", err)
		}
		return nil
	})
	return records, err
}

// Create inserts a record at version 1.
func (s *SQLiteStore) Create(table, id string, data []byte) (Record, error) {
	if err := s.checkRecordKeys(table, id); err != nil {
		return Record{}, err
	}

	now := s.now()
	err := s.retry(func() error {
		res, err := s.conn.Exec(`
			INSERT INTO records (tbl, id, version, data, updated_at)
			VALUES (?, ?, 1, ?, ?)
			ON CONFLICT (tbl, id) DO NOTHING
		`, table, id, string(data), formatTime(now))
		if err != nil {
			return s.storeErr("insert record", err)
		}
		return requireOneRow(res, ErrExists)
	})
	if err != nil {
		return Record{}, err
	}

	return Record{Table: table, ID: id, Version: 1, Data: append([]byte(nil), data...), UpdatedAt: now}, nil
}

// CompareAndSwap replaces the record if its stored version equals version.
func (s *SQLiteStore) CompareAndSwap(table, id string, version int64, data []byte) (Record, error) {
	if err := s.checkRecordKeys(table, id); err != nil {
		return Record{}, err
	}

	now := s.now()
	err := s.retry(func() error {
		res, err := s.conn.Exec(`
			UPDATE records SET version = version + 1, data = ?, updated_at = ?
			WHERE tbl = ? AND id = ? AND version = ?
		`, string(data), formatTime(now), table, id, version)
		if err != nil {
			return s.storeErr("update record", err)
		}
		return requireOneRow(res, errNoRowsChanged)
	})
	if errors.Is(err, errNoRowsChanged) {
		return Record{}, s.missOrMismatch(table, id)
	}
	if err != nil {
		return Record{}, err
	}

	return Record{Table: table, ID: id, Version: version + 1, Data: append([]byte(nil), data...), UpdatedAt: now}, nil
}

// Delete removes the record if its stored version equals version.
func (s *SQLiteStore) Delete(table, id string, version int64) error {
	if err := s.checkRecordKeys(table, id); err != nil {
		return err
	}

	err := s.retry(func() error {
		res, err := s.conn.Exec("DELETE FROM records WHERE tbl = ? AND id = ? AND version = ?", table, id, version)
		if err != nil {
			return s.storeErr("delete record", err)
		}
		return requireOneRow(res, errNoRowsChanged)
	})
	if errors.Is(err, errNoRowsChanged) {
		return s.missOrMismatch(table, id)
	}
	return err
}

var errNoRowsChanged = errors.New("no rows changed")

// missOrMismatch tells a vanished record apart from a stale version after a
// conditional statement touched no rows.
func (s *SQLiteStore) missOrMismatch(table, id string) error {
	if _, err := s.Get(table, id); err != nil {
		return err
	}
	return ErrVersionMismatch
}

func requireOneRow(res sql.Result, otherwise error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return otherwise
	}
	return nil
}

// Append adds an entry to the end of log. Duplicate ids report ErrExists.
func (s *SQLiteStore) Append(log, id string, data []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := checkLogName(log); err != nil {
		return err
	}
	if err := checkKey("entry id", id); err != nil {
		return err
	}
	if err := checkEntrySize(data); err != nil {
		return err
	}

	return s.retry(func() error {
		res, err := s.conn.Exec(`
			INSERT INTO log_entries (log, id, data) VALUES (?, ?, ?)
			ON CONFLICT (log, id) DO NOTHING
		`, log, id, string(data))
		if err != nil {
			return s.storeErr("append entry", err)
		}
		return requireOneRow(res, ErrExists)
	})
}

// ReadLog returns the entries of log in append order.
func (s *SQLiteStore) ReadLog(log string) ([]Entry, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := checkLogName(log); err != nil {
		return nil, err
	}

	var entries []Entry
	err := s.retry(func() error {
		entries = entries[:0]
		rows, err := s.conn.Query("SELECT id, data FROM log_entries WHERE log = ? ORDER BY seq", log)
		if err != nil {
			return s.storeErr("read log", err)
		}
		defer rows.Close()

		for rows.Next() {
			var id, data string
			if err := rows.Scan(&id, &data); err != nil {
				return s.storeErr("scan entry", err)
			}
			entries = append(entries, Entry{Log: log, ID: id, Data: []byte(data)})
		}
		if err := rows.Err(); err != nil {
			return s.storeErr("iterate entries", err)
		}
		return nil
	})
	return entries, err
}

// Logs returns the names of every log that has at least one entry.
func (s *SQLiteStore) Logs() ([]string, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	var logs []string
	err := s.retry(func() error {
		logs = logs[:0]
		rows, err := s.conn.Query("SELECT DISTINCT log FROM log_entries ORDER BY log")
		if err != nil {
			return s.storeErr("list logs", err)
		}
		defer rows.Close()

		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return s.storeErr("scan log name", err)
			}
			logs = append(logs, name)
		}
		if err := rows.Err(); err != nil {
			return s.storeErr("iterate logs", err)
		}
		return nil
	})
	return logs, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.conn.Close()
}
