// Package semidbm implements an embedded, single-process, on-disk
// key-value store: an append-only data log with a crash-tolerant
// reconstructed in-memory index, modeled on the classic semidbm design.
package semidbm

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/rsavin/semidbm/datalog"
	"github.com/rsavin/semidbm/index"
	"github.com/rsavin/semidbm/loader"
	"github.com/rsavin/semidbm/record"
)

// Store is a single open handle on a store directory. It is not safe
// for concurrent use from multiple goroutines, processes, or threads —
// there is no internal locking, matching the single-threaded scheduling
// model this store assumes.
type Store struct {
	dir    string
	mode   Mode
	opts   *Options
	writer *datalog.Writer
	idx    *index.Index
	closed bool
}

// Open opens the store directory at dir under the given mode, applying
// any Options. See Mode's doc comments for the per-mode preflight
// rules.
func Open(dir string, mode Mode, options ...Option) (*Store, error) {
	if !mode.valid() {
		return nil, newError(KindInvalidMode, "open", nil, fmt.Errorf("unrecognized mode %d", int(mode)))
	}
	opts := resolveOptions(options)
	dataPath := filepath.Join(dir, datalog.FileName)

	if err := preflight(dir, dataPath, mode); err != nil {
		return nil, err
	}

	var w *datalog.Writer
	var err error
	switch mode {
	case Read:
		w, err = datalog.OpenReadOnly(dataPath)
	case ReadWrite:
		w, err = datalog.OpenExisting(dataPath)
	default:
		w, err = datalog.Open(dataPath)
	}
	if err != nil {
		return nil, newError(KindIOError, "open", nil, err)
	}

	idx := index.New()
	if err := rebuildIndex(opts.loader, dataPath, idx); err != nil {
		w.Close()
		return nil, err
	}

	opts.logger.Infow("opened store", "dir", dir, "mode", mode.String(), "keys", idx.Len())

	return &Store{dir: dir, mode: mode, opts: opts, writer: w, idx: idx}, nil
}

// preflight enforces the per-mode file-existence rules from §4.1
// before any file descriptor is acquired.
func preflight(dir, dataPath string, mode Mode) error {
	switch mode {
	case Read:
		if err := requireExistingDir(dir); err != nil {
			return err
		}
		return requireRegularFile(dataPath)
	case ReadWrite:
		if err := requireExistingDir(dir); err != nil {
			return err
		}
		return requireRegularFile(dataPath)
	case Create:
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return newError(KindIOError, "open", nil, err)
		}
		return nil
	case New:
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return newError(KindIOError, "open", nil, err)
		}
		if err := os.Remove(dataPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return newError(KindIOError, "open", nil, err)
		}
		return nil
	}
	return nil
}

func requireExistingDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return newError(KindIOError, "open", nil, fmt.Errorf("store directory %s: %w", dir, err))
	}
	if !info.IsDir() {
		return newError(KindIOError, "open", nil, fmt.Errorf("%s is not a directory", dir))
	}
	return nil
}

func requireRegularFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return newError(KindIOError, "open", nil, fmt.Errorf("data file %s: %w", path, err))
	}
	if info.IsDir() {
		return newError(KindIOError, "open", nil, fmt.Errorf("%s is a directory, not a file", path))
	}
	return nil
}

// rebuildIndex drains l.Load(path) into idx: a live entry overwrites
// any prior one for its key, a tombstone (Size == record.Deleted)
// removes the key, tolerating removal of a key already absent.
func rebuildIndex(l loader.Loader, path string, idx *index.Index) error {
	for e, err := range l.Load(path) {
		if err != nil {
			return newError(KindLoadError, "open", nil, err)
		}
		if e.Size == record.Deleted {
			idx.Delete(e.Key)
			continue
		}
		idx.Put(e.Key, index.Entry{Offset: e.Offset, Size: e.Size})
	}
	return nil
}

// Get returns the value stored for key, or a not-found error.
func (s *Store) Get(key []byte) ([]byte, error) {
	entry, ok := s.idx.Get(key)
	if !ok {
		return nil, newError(KindNotFound, "get", key, nil)
	}

	if s.opts.verifyChecksums {
		buf, err := s.writer.ReadAt(entry.Offset, int(entry.Size)+4)
		if err != nil {
			return nil, newError(KindIOError, "get", key, err)
		}
		value, err := record.VerifyChecksum(key, buf)
		if err != nil {
			return nil, newError(KindChecksumError, "get", key, err)
		}
		return value, nil
	}

	value, err := s.writer.ReadAt(entry.Offset, int(entry.Size))
	if err != nil {
		return nil, newError(KindIOError, "get", key, err)
	}
	return value, nil
}

// GetString is a convenience wrapper returning the value as a string.
func (s *Store) GetString(key string) (string, error) {
	v, err := s.Get([]byte(key))
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// Put encodes and appends a record for key/value, then updates the
// in-memory index. Both may be arbitrary bytes; PutString is the
// UTF-8 text convenience variant.
func (s *Store) Put(key, value []byte) error {
	if s.mode.readOnly() {
		return newError(KindReadOnly, "put", key, nil)
	}
	rec := &record.Record{Key: key, Value: value}
	if value == nil {
		rec.Value = []byte{}
	}
	valueOffset, err := s.writer.Append(rec)
	if err != nil {
		return newError(KindIOError, "put", key, err)
	}
	s.idx.Put(key, index.Entry{Offset: valueOffset, Size: int32(len(rec.Value))})
	return nil
}

// PutString stores text key/value, UTF-8 encoded on write; Get always
// returns raw bytes regardless of how a value was written.
func (s *Store) PutString(key, value string) error {
	return s.Put([]byte(key), []byte(value))
}

// Contains reports whether key is present, via an index lookup only.
func (s *Store) Contains(key []byte) bool {
	return s.idx.Contains(key)
}

// Delete removes key, appending a tombstone record. It fails with
// not-found if key is absent.
func (s *Store) Delete(key []byte) error {
	if s.mode.readOnly() {
		return newError(KindReadOnly, "delete", key, nil)
	}
	if !s.idx.Contains(key) {
		return newError(KindNotFound, "delete", key, nil)
	}
	rec := &record.Record{Key: key, Value: nil}
	if _, err := s.writer.Append(rec); err != nil {
		return newError(KindIOError, "delete", key, err)
	}
	s.idx.Delete(key)
	return nil
}

// Iterate returns the live keys in arbitrary order, snapshotting the
// index's key set at call time.
func (s *Store) Iterate() iter.Seq[[]byte] {
	keys := make([][]byte, 0, s.idx.Len())
	for k := range s.idx.Keys() {
		keys = append(keys, k)
	}
	return func(yield func([]byte) bool) {
		for _, k := range keys {
			if !yield(k) {
				return
			}
		}
	}
}

// Keys materializes Iterate into a slice.
func (s *Store) Keys() [][]byte {
	keys := make([][]byte, 0, s.idx.Len())
	for k := range s.Iterate() {
		keys = append(keys, k)
	}
	return keys
}

// Values materializes Get(k) for every live key, in Iterate's order.
func (s *Store) Values() ([][]byte, error) {
	values := make([][]byte, 0, s.idx.Len())
	for k := range s.Iterate() {
		v, err := s.Get(k)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// Len returns the number of live keys.
func (s *Store) Len() int {
	return s.idx.Len()
}

// Sync fsyncs the data file. A no-op, not an error, if nothing new was
// written.
func (s *Store) Sync() error {
	if s.mode.readOnly() {
		return newError(KindReadOnly, "sync", nil, nil)
	}
	if err := s.writer.Sync(); err != nil {
		return newError(KindIOError, "sync", nil, err)
	}
	return nil
}

// Close releases the store's descriptors. If compact is true,
// compaction runs first. A second Close is a programming error.
func (s *Store) Close(compact bool) error {
	if s.closed {
		return fmt.Errorf("semidbm: store already closed")
	}

	if compact {
		if err := s.Compact(); err != nil {
			return err
		}
	}

	if !s.mode.readOnly() {
		if err := s.writer.Sync(); err != nil {
			s.writer.Close()
			s.closed = true
			return newError(KindIOError, "close", nil, err)
		}
	}

	s.closed = true
	if err := s.writer.Close(); err != nil {
		return newError(KindIOError, "close", nil, err)
	}
	s.opts.logger.Infow("closed store", "dir", s.dir)
	return nil
}

func (s *Store) logger() *zap.SugaredLogger {
	return s.opts.logger
}
