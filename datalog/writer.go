// Package datalog owns the single append-only data file descriptor: it
// appends encoded records, tracks the current end-of-file offset, and
// fsyncs on demand. It mirrors the teacher's segmentmanager package,
// minus segment rotation — a semidbm store has exactly one active file.
package datalog

import (
	"fmt"
	"io"
	"os"

	"github.com/rsavin/semidbm/record"
)

// FileName is the name of the single active data file inside a store
// directory.
const FileName = "data"

// Writer appends records to a data file and keeps the cached byte offset
// that the file's length would report, per spec: "the writer's cached
// current_offset equals the byte length of the data file at all times
// between operations".
type Writer struct {
	f             *os.File
	currentOffset int64
}

// Open opens (creating if necessary) the data file at path for append +
// read, writing the file header if the file is new/empty, and returns a
// Writer positioned at end-of-file.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("datalog: failed to open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("datalog: failed to stat %s: %w", path, err)
	}

	w := &Writer{f: f}

	if info.Size() == 0 {
		if err := record.WriteHeader(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("datalog: failed to write header: %w", err)
		}
		w.currentOffset = record.HeaderSize
		return w, nil
	}

	w.currentOffset = info.Size()
	return w, nil
}

// OpenExisting opens a data file that must already exist, failing
// otherwise. Used by read_write mode, which requires a pre-existing
// file rather than creating one but still allows mutation (including
// writing the header if the existing file happens to be empty).
func OpenExisting(path string) (*Writer, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("datalog: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("datalog: %s is a directory, not a file", path)
	}
	return Open(path)
}

// OpenReadOnly opens an existing data file for reads only. Unlike Open,
// it never creates the file, acquires an O_RDONLY descriptor, and never
// writes a header even if the file happens to be empty — a read-only
// handle must not be able to mutate a store, including by the side
// effect of opening it. Used by read mode.
func OpenReadOnly(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("datalog: failed to open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("datalog: failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("datalog: %s is a directory, not a file", path)
	}

	return &Writer{f: f, currentOffset: info.Size()}, nil
}

// CurrentOffset returns the writer's cached end-of-file byte offset.
func (w *Writer) CurrentOffset() int64 {
	return w.currentOffset
}

// Append encodes rec and writes it at the current end of the file,
// returning the offset at which its value bytes begin (record start + 8
// + key length) and advancing CurrentOffset by the record's encoded
// size.
func (w *Writer) Append(rec *record.Record) (valueOffset int64, err error) {
	if _, err := w.f.Seek(w.currentOffset, io.SeekStart); err != nil {
		return 0, fmt.Errorf("datalog: seek to end failed: %w", err)
	}
	if err := record.Encode(w.f, rec); err != nil {
		return 0, fmt.Errorf("datalog: append failed: %w", err)
	}

	valueOffset = w.currentOffset + 8 + int64(len(rec.Key))
	w.currentOffset += int64(record.Size(rec))
	return valueOffset, nil
}

// ReadAt reads n bytes starting at offset, positioned independently of
// the writer's append cursor.
func (w *Writer) ReadAt(offset int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := w.f.ReadAt(buf, offset); err != nil {
		return nil, fmt.Errorf("datalog: read at %d failed: %w", offset, err)
	}
	return buf, nil
}

// Sync fsyncs the data file, making prior writes durable.
func (w *Writer) Sync() error {
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("datalog: sync failed: %w", err)
	}
	return nil
}

// Close releases the file descriptor. It does not sync — callers that
// need durability must call Sync first.
func (w *Writer) Close() error {
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("datalog: close failed: %w", err)
	}
	return nil
}

// Path returns the path the underlying data file was opened from, as
// reported by the OS (for diagnostics only).
func (w *Writer) Path() string {
	return w.f.Name()
}
