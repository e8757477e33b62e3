package recordstore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mcfearsome/cc-colony-sub001/internal/errors"
	"github.com/mcfearsome/cc-colony-sub001/internal/logging"
)

const (
	tablesDir = "tables"
	logsDir   = "logs"
	recordExt = ".json"
	logExt    = ".jsonl"

	// maxLogLine bounds a line kept by ReadLog. It leaves room for the
	// entry envelope around MaxEntrySize of JSON-escaped data.
	maxLogLine = 8 * MaxEntrySize
)

// envelope is the on-disk form of a record.
type envelope struct {
	Version   int64           `json:"version"`
	UpdatedAt string          `json:"updated_at"`
	Data      json.RawMessage `json:"data"`
}

// logLine is the on-disk form of a log entry.
type logLine struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// FileStore implements Store on a plain directory tree:
//
//	<root>/tables/<table>/<id>.json   one envelope per record
//	<root>/tables/<table>/.lock       flock guarding compare-and-publish
//	<root>/logs/<log>.jsonl           one entry per line
//
// Record data must be a JSON document. FileStore is safe for concurrent use
// by goroutines and by separate processes sharing the same root.
type FileStore struct {
	root   string
	now    func() time.Time
	logger *logging.Logger

	appendMu sync.Mutex
	closed   atomic.Bool
}

// NewFileStore creates the directory layout under root if needed.
func NewFileStore(root string, opts ...Option) (*FileStore, error) {
	o := buildOptions(opts)
	for _, dir := range []string{filepath.Join(root, tablesDir), filepath.Join(root, logsDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.NewStoreError("create store directory", err).WithBackend(BackendFile).WithPath(dir)
		}
	}
	return &FileStore{root: root, now: o.now, logger: o.logger}, nil
}

// Root returns the coordination root directory.
func (s *FileStore) Root() string { return s.root }

// WatchPaths returns the directories whose changes signal new data.
func (s *FileStore) WatchPaths() []string {
	paths := []string{filepath.Join(s.root, logsDir)}
	entries, err := os.ReadDir(filepath.Join(s.root, logsDir))
	if err == nil {
		for _, e := range entries {
			if e.IsDir() {
				paths = append(paths, filepath.Join(s.root, logsDir, e.Name()))
			}
		}
	}
	if entries, err := os.ReadDir(filepath.Join(s.root, tablesDir)); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				paths = append(paths, filepath.Join(s.root, tablesDir, e.Name()))
			}
		}
	}
	return paths
}

func (s *FileStore) tableDir(table string) string {
	return filepath.Join(s.root, tablesDir, table)
}

func (s *FileStore) recordPath(table, id string) string {
	return filepath.Join(s.tableDir(table), id+recordExt)
}

func (s *FileStore) logPath(log string) string {
	return filepath.Join(s.root, logsDir, filepath.FromSlash(log)+logExt)
}

func (s *FileStore) storeErr(message, path string, err error) *errors.StoreError {
	return errors.NewStoreError(message, err).WithBackend(BackendFile).WithPath(path)
}

// Get returns the current version of a record.
func (s *FileStore) Get(table, id string) (Record, error) {
	if s.closed.Load() {
		return Record{}, ErrClosed
	}
	if err := checkKey("table", table); err != nil {
		return Record{}, err
	}
	if err := checkKey("id", id); err != nil {
		return Record{}, err
	}
	return s.read(table, id)
}

func (s *FileStore) read(table, id string) (Record, error) {
	path := s.recordPath(table, id)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, ErrNoRecord
		}
		return Record{}, s.storeErr("read record", path, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Record{}, s.storeErr("decode record", path, errors.Join(errors.ErrStoreCorrupted, err)).WithRetryable(false)
	}

	return Record{
		Table:     table,
		ID:        id,
		Version:   env.Version,
		Data:      []byte(env.Data),
		UpdatedAt: parseTime(env.UpdatedAt),
	}, nil
}

// List returns every record in table ordered by id.
func (s *FileStore) List(table string) ([]Record, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := checkKey("table", table); err != nil {
		return nil, err
	}

	dir := s.tableDir(table)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, s.storeErr("list table", dir, err)
	}

	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, recordExt) {
			continue
		}
		id := strings.TrimSuffix(name, recordExt)
		rec, err := s.read(table, id)
		if err != nil {
			// Deleted between ReadDir and read.
			if errors.Is(err, ErrNoRecord) {
				continue
			}
			return nil, err
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// Create inserts a record at version 1.
func (s *FileStore) Create(table, id string, data []byte) (Record, error) {
	if s.closed.Load() {
		return Record{}, ErrClosed
	}
	if err := checkKey("table", table); err != nil {
		return Record{}, err
	}
	if err := checkKey("id", id); err != nil {
		return Record{}, err
	}

	dir := s.tableDir(table)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Record{}, s.storeErr("create table directory", dir, err)
	}

	var rec Record
	err := withLock(dir, func() error {
		if _, err := os.Stat(s.recordPath(table, id)); err == nil {
			return ErrExists
		} else if !os.IsNotExist(err) {
			return s.storeErr("stat record", s.recordPath(table, id), err)
		}
		var werr error
		rec, werr = s.publish(table, id, 1, data)
		return werr
	})
	return rec, err
}

// CompareAndSwap replaces the record if its stored version equals version.
func (s *FileStore) CompareAndSwap(table, id string, version int64, data []byte) (Record, error) {
	if s.closed.Load() {
		return Record{}, ErrClosed
	}
	if err := checkKey("table", table); err != nil {
		return Record{}, err
	}
	if err := checkKey("id", id); err != nil {
		return Record{}, err
	}

	dir := s.tableDir(table)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return Record{}, ErrNoRecord
	}

	var rec Record
	err := withLock(dir, func() error {
		cur, err := s.read(table, id)
		if err != nil {
			return err
		}
		if cur.Version != version {
			return ErrVersionMismatch
		}
		rec, err = s.publish(table, id, version+1, data)
		return err
	})
	return rec, err
}

// Delete removes the record if its stored version equals version.
func (s *FileStore) Delete(table, id string, version int64) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := checkKey("table", table); err != nil {
		return err
	}
	if err := checkKey("id", id); err != nil {
		return err
	}

	dir := s.tableDir(table)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return ErrNoRecord
	}

	return withLock(dir, func() error {
		cur, err := s.read(table, id)
		if err != nil {
			return err
		}
		if cur.Version != version {
			return ErrVersionMismatch
		}
		path := s.recordPath(table, id)
		if err := os.Remove(path); err != nil {
			return s.storeErr("remove record", path, err)
		}
		return nil
	})
}

// publish writes the envelope to a temporary file and renames it over the
// record path. The caller must hold the table lock.
func (s *FileStore) publish(table, id string, version int64, data []byte) (Record, error) {
	now := s.now()
	raw, err := json.Marshal(envelope{
		Version:   version,
		UpdatedAt: formatTime(now),
		Data:      json.RawMessage(data),
	})
	if err != nil {
		return Record{}, errors.NewValidationError("record data must be a JSON document").WithField("data").WithCause(err)
	}

	target := s.recordPath(table, id)
	if err := writeFileAtomic(target, raw); err != nil {
		return Record{}, s.storeErr("write record", target, err)
	}

	return Record{
		Table:     table,
		ID:        id,
		Version:   version,
		Data:      append([]byte(nil), data...),
		UpdatedAt: now,
	}, nil
}

// writeFileAtomic writes data next to target, syncs it, then renames it into
// place so a crash leaves either the old or the new content.
func writeFileAtomic(target string, data []byte) error {
	dir, base := filepath.Split(target)
	tmp := filepath.Join(dir, "."+base+".tmp-"+uuid.NewString()[:8])

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Append adds an entry to the end of log with a single O_APPEND write. The
// duplicate id check and the write happen under the log's lock.
func (s *FileStore) Append(log, id string, data []byte) error {
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

	line, err := json.Marshal(logLine{ID: id, Data: json.RawMessage(data)})
	if err != nil {
		return errors.NewValidationError("entry data must be a JSON document").WithField("data").WithCause(err)
	}
	line = append(line, '\n')

	path := s.logPath(log)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return s.storeErr("create log directory", dir, err)
	}

	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	return withLock(dir, func() error {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
		if err != nil {
			return s.storeErr("open log", path, err)
		}
		defer f.Close()

		dup, err := containsEntry(f, id)
		if err != nil {
			return s.storeErr("scan log", path, err)
		}
		if dup {
			return errors.Wrapf(ErrExists, "entry %q in log %q", id, log)
		}

		torn, err := endsWithoutNewline(f)
		if err != nil {
			return s.storeErr("inspect log", path, err)
		}
		if torn {
			// A writer died mid-line; terminate it so our entry starts clean.
			s.logger.Warn("repairing torn log line", "log", log)
			line = append([]byte{'\n'}, line...)
		}

		if _, err := f.Write(line); err != nil {
			return s.storeErr("append log", path, err)
		}
		return nil
	})
}

// containsEntry reports whether the log file already holds an entry with id.
func containsEntry(f *os.File, id string) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	needle := []byte(`"` + id + `"`)
	r := bufio.NewReader(io.NewSectionReader(f, 0, info.Size()))
	for {
		raw, oversized, err := nextLine(r, maxLogLine)
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if oversized || !bytes.Contains(raw, needle) {
			continue
		}
		var ll struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(raw, &ll) == nil && ll.ID == id {
			return true, nil
		}
	}
}

// nextLine returns the next line of r without its line ending. A line longer
// than limit is consumed in full and reported as oversized with no content.
func nextLine(r *bufio.Reader, limit int) ([]byte, bool, error) {
	var (
		line      []byte
		oversized bool
	)
	for {
		frag, isPrefix, err := r.ReadLine()
		if err != nil {
			return nil, false, err
		}
		if !oversized {
			if len(line)+len(frag) > limit {
				oversized = true
				line = nil
			} else {
				line = append(line, frag...)
			}
		}
		if !isPrefix {
			return line, oversized, nil
		}
	}
}

func endsWithoutNewline(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	buf := make([]byte, 1)
	if _, err := f.ReadAt(buf, info.Size()-1); err != nil && err != io.EOF {
		return false, err
	}
	return buf[0] != '\n', nil
}

// ReadLog returns the entries of log in append order. Malformed lines,
// including a partially written final line, and lines longer than
// maxLogLine are skipped.
func (s *FileStore) ReadLog(log string) ([]Entry, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := checkLogName(log); err != nil {
		return nil, err
	}

	path := s.logPath(log)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, s.storeErr("open log", path, err)
	}
	defer f.Close()

	var entries []Entry
	r := bufio.NewReaderSize(f, 64*1024)
	for {
		line, oversized, err := nextLine(r, maxLogLine)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, s.storeErr("scan log", path, err)
		}
		if oversized {
			s.logger.Warn("skipping oversized log line", "log", log, "limit", maxLogLine)
			continue
		}
		raw := bytes.TrimSpace(line)
		if len(raw) == 0 {
			continue
		}
		var ll logLine
		if err := json.Unmarshal(raw, &ll); err != nil || ll.ID == "" {
			s.logger.Debug("skipping malformed log line", "log", log)
			continue
		}
		entries = append(entries, Entry{Log: log, ID: ll.ID, Data: []byte(ll.Data)})
	}
	return entries, nil
}

// Logs returns every log name under the store, sorted.
func (s *FileStore) Logs() ([]string, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	base := filepath.Join(s.root, logsDir)
	var logs []string
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), logExt) {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		logs = append(logs, filepath.ToSlash(strings.TrimSuffix(rel, logExt)))
		return nil
	})
	if err != nil {
		return nil, s.storeErr("walk logs", base, err)
	}
	sort.Strings(logs)
	return logs, nil
}

// Close marks the store closed. FileStore holds no open handles between calls.
func (s *FileStore) Close() error {
	s.closed.Store(true)
	return nil
}
