package loader

import (
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/rsavin/semidbm/record"
)

// StreamLoader reads the data file sequentially with a single *os.File,
// never mapping it into memory. It trades the mmap loader's zero-copy
// reads for a bounded, predictable memory footprint, and is grounded on
// semidbm's simpleload.py: read the 8-byte header, then the key, yield,
// then seek past the value and its checksum.
//
// Policy (per spec §4.3 item 5): a partial read *inside* a header or key
// that returns a non-zero but short byte count is corruption and fails
// with a wrapped ErrLoad. A header read that returns exactly zero bytes
// at a record boundary is a clean end of stream.
type StreamLoader struct{}

// Load implements Loader.
func (StreamLoader) Load(path string) iter.Seq2[Entry, error] {
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

		header := make([]byte, record.HeaderSize)
		if _, err := io.ReadFull(f, header); err != nil {
			yield(Entry{}, wrapLoadErr(err))
			return
		}
		if err := record.VerifyHeader(header); err != nil {
			yield(Entry{}, wrapLoadErr(err))
			return
		}

		currentOffset := int64(record.HeaderSize)

		for {
			headerBuf := make([]byte, 8)
			n, err := io.ReadFull(f, headerBuf)
			if err != nil {
				if n == 0 {
					// Clean end of stream: nothing follows the last
					// complete record.
					return
				}
				// Non-zero, short read inside the header: a crashed
				// write left a partial length field. That's
				// corruption, not a recoverable tail, per policy.
				yield(Entry{}, wrapLoadErr(err))
				return
			}

			keyLen, valLen := decodeLengths(headerBuf)
			if keyLen <= 0 {
				yield(Entry{}, wrapLoadErr(errInvalidKeyLen(keyLen)))
				return
			}
			if valLen < record.Deleted {
				yield(Entry{}, wrapLoadErr(fmt.Errorf("invalid value length %d", valLen)))
				return
			}

			valueOffset := currentOffset + 8 + int64(keyLen)
			recordEnd := valueOffset + 4 // +4 for the trailing checksum
			if valLen != record.Deleted {
				recordEnd += int64(valLen)
			}
			if recordEnd > fileSize {
				// The record, checksum included, runs past end of
				// file: crash tail, stop cleanly.
				return
			}

			key := make([]byte, keyLen)
			n, err = io.ReadFull(f, key)
			if err != nil {
				if n == 0 {
					return
				}
				yield(Entry{}, wrapLoadErr(err))
				return
			}

			if !yield(Entry{Key: key, Offset: valueOffset, Size: valLen}, nil) {
				return
			}

			skipVal := valLen
			if skipVal == record.Deleted {
				skipVal = 0
			}
			// 4 bytes for the trailing checksum.
			nextOffset := valueOffset + int64(skipVal) + 4
			if nextOffset > fileSize {
				return
			}
			if _, err := f.Seek(nextOffset, io.SeekStart); err != nil {
				yield(Entry{}, wrapLoadErr(err))
				return
			}
			currentOffset = nextOffset
		}
	}
}
