package semidbm

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rsavin/semidbm/datalog"
	"github.com/rsavin/semidbm/index"
	"github.com/rsavin/semidbm/rename"
)

// compactDirName is the transient subdirectory compaction builds its
// rewritten data file in before the atomic rename.
const compactDirName = "compact"

// Compact rebuilds the data file with exactly one live record per
// remaining key, dropping superseded updates and tombstones, per
// §4.4. It fails with read-only on a read-only handle.
func (s *Store) Compact() error {
	if s.mode.readOnly() {
		return newError(KindReadOnly, "compact", nil, nil)
	}

	compactDir := filepath.Join(s.dir, compactDirName)
	if err := os.MkdirAll(compactDir, 0o755); err != nil {
		return newError(KindIOError, "compact", nil, err)
	}

	temp, err := Open(compactDir, New, WithVerifyChecksums(s.opts.verifyChecksums), WithLogger(s.opts.logger))
	if err != nil {
		return fmt.Errorf("semidbm: compact: failed to open temp store: %w", err)
	}

	for k := range s.Iterate() {
		v, err := s.Get(k)
		if err != nil {
			temp.Close(false)
			return fmt.Errorf("semidbm: compact: failed to read live key %q: %w", k, err)
		}
		if err := temp.Put(k, v); err != nil {
			temp.Close(false)
			return fmt.Errorf("semidbm: compact: failed to write live key %q: %w", k, err)
		}
	}

	if err := temp.Sync(); err != nil {
		temp.Close(false)
		return fmt.Errorf("semidbm: compact: failed to sync temp store: %w", err)
	}
	if err := temp.Close(false); err != nil {
		return fmt.Errorf("semidbm: compact: failed to close temp store: %w", err)
	}

	if err := s.writer.Close(); err != nil {
		return newError(KindIOError, "compact", nil, err)
	}

	dataPath := filepath.Join(s.dir, datalog.FileName)
	compactDataPath := filepath.Join(compactDir, datalog.FileName)
	if err := rename.Replace(compactDataPath, dataPath); err != nil {
		return newError(KindIOError, "compact", nil, err)
	}

	if err := os.Remove(compactDir); err != nil {
		s.logger().Warnw("compact: failed to remove transient directory", "dir", compactDir, "error", err)
	}

	w, err := datalog.Open(dataPath)
	if err != nil {
		return newError(KindIOError, "compact", nil, err)
	}
	s.writer = w

	s.idx = index.New()
	if err := rebuildIndex(s.opts.loader, dataPath, s.idx); err != nil {
		return err
	}

	return nil
}
