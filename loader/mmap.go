package loader

import (
	"fmt"
	"io"
	"iter"
	"os"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/rsavin/semidbm/record"
)

// mappedLoadPages is the number of allocation-granularity-sized pages
// the mmap loader maps in each window, matching semidbm's
// _MAPPED_LOAD_PAGES = 300 in mmapload.py.
const mappedLoadPages = 300

// MmapLoader maps a sliding window of the data file into memory and
// scans it directly instead of issuing a read() syscall per record. On
// platforms with limited address space the whole file is never mapped
// at once: once the scan cursor crosses the window boundary, the
// loader unmaps and remaps the next window forward. Reported offsets
// are always absolute file offsets, never in-window offsets.
//
// WindowSize overrides the default window byte size when positive;
// the zero value uses the default (os.Getpagesize() * 300). Exposed
// mainly so tests can exercise the remap path without a multi-megabyte
// fixture; callers configure it via semidbm.WithMmapWindowSize.
//
// Grounded on semidbm's loaders/mmapload.py, translated from Python's
// mmap+offset slicing to github.com/edsrzf/mmap-go's MapRegion.
type MmapLoader struct {
	WindowSize int64
}

func (l MmapLoader) windowSize() int64 {
	pageSize := int64(os.Getpagesize())
	if l.WindowSize > 0 {
		// mmap offsets must be a multiple of the platform's allocation
		// granularity, so ensureWindow always remaps at a page-aligned
		// boundary; a window smaller than one page would let the
		// remapped base land back on the window it just left,
		// stranding the scan. Silently clamp instead of requiring
		// every caller to know that constraint.
		if l.WindowSize < pageSize {
			return pageSize
		}
		return l.WindowSize
	}
	// mmap-go has no portable ALLOCATIONGRANULARITY constant; the page
	// size is the closest portable analog and, multiplied by 300,
	// keeps each window comfortably larger than any realistic record.
	return pageSize * mappedLoadPages
}

// Load implements Loader.
func (l MmapLoader) Load(path string) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(Entry{}, wrapLoadErr(err))
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			yield(Entry{}, wrapLoadErr(err))
			return
		}
		fileSize := info.Size()
		if fileSize == 0 {
			return
		}

		var header [record.HeaderSize]byte
		if _, err := io.ReadFull(f, header[:]); err != nil {
			yield(Entry{}, wrapLoadErr(err))
			return
		}
		if err := record.VerifyHeader(header[:]); err != nil {
			yield(Entry{}, wrapLoadErr(err))
			return
		}

		win := l.windowSize()
		pageSize := int64(os.Getpagesize())
		windowBase := int64(0)
		m, err := mapWindow(f, fileSize, windowBase, win)
		if err != nil {
			yield(Entry{}, wrapLoadErr(err))
			return
		}
		defer func() { _ = m.Unmap() }()

		// ensureWindow remaps so that the half-open absolute range
		// [start, end) is covered by m, reporting offsets relative to
		// the (possibly new) windowBase. The new window is anchored at
		// start's own page-aligned offset rather than advanced by a
		// fixed stride from the old base: that way a record landing
		// near the tail of the current window is never itself split
		// across the boundary of the next one. Mirrors mmapload.py's
		// "remap at the start of the record being read" behavior.
		ensureWindow := func(start, end int64) error {
			if start >= windowBase && end <= windowBase+int64(len(m)) {
				return nil
			}
			if end-start > win {
				// A single record spans more than one window's worth
				// of bytes. The spec sizes the window to comfortably
				// exceed any realistic record; treat this as
				// corruption rather than risk slicing with a negative
				// index.
				return fmt.Errorf("record at offset %d exceeds mmap window size", start)
			}
			newBase := (start / pageSize) * pageSize
			// start may sit near the end of its page, so a window of
			// win bytes from newBase can still stop short of end.
			length := win
			if end-newBase > length {
				length = end - newBase
			}
			if err := m.Unmap(); err != nil {
				return err
			}
			nm, err := mapWindow(f, fileSize, newBase, length)
			if err != nil {
				return err
			}
			windowBase = newBase
			m = nm
			return nil
		}

		current := int64(record.HeaderSize)
		for current != fileSize {
			if current+8 > fileSize {
				// Fewer than 8 bytes remain: a crashed write left a
				// partial header. Recoverable crash tail, not an error.
				return
			}
			if err := ensureWindow(current, current+8); err != nil {
				yield(Entry{}, wrapLoadErr(err))
				return
			}
			local := current - windowBase
			keyLen, valLen := decodeLengths(m[local : local+8])
			if keyLen <= 0 || valLen < record.Deleted {
				return
			}

			keyAbsStart := current + 8
			valueOffset := keyAbsStart + int64(keyLen)
			recordEnd := valueOffset + 4 // +4 for the checksum
			if valLen != record.Deleted {
				recordEnd += int64(valLen)
			}
			if recordEnd > fileSize {
				// The record, checksum included, runs past end of
				// file: crash tail, stop cleanly.
				return
			}

			if err := ensureWindow(keyAbsStart, valueOffset); err != nil {
				yield(Entry{}, wrapLoadErr(err))
				return
			}
			keyLocal := keyAbsStart - windowBase
			key := make([]byte, keyLen)
			copy(key, m[keyLocal:keyLocal+int64(keyLen)])

			if !yield(Entry{Key: key, Offset: valueOffset, Size: valLen}, nil) {
				return
			}

			skipVal := valLen
			if skipVal == record.Deleted {
				skipVal = 0
			}
			current = valueOffset + int64(skipVal) + 4 // +4 for the checksum
			if current > fileSize {
				return
			}
		}
	}
}

func mapWindow(f *os.File, fileSize, base, win int64) (mmap.MMap, error) {
	length := fileSize - base
	if length > win {
		length = win
	}
	if length <= 0 {
		return nil, fmt.Errorf("mmap window base %d at or past end of file (size %d)", base, fileSize)
	}
	return mmap.MapRegion(f, int(length), mmap.RDONLY, 0, base)
}
