// Package rename provides the atomic file replace used by compaction
// to swap a freshly rebuilt data file in for the live one. It mirrors
// semidbm's _Renamer / _WindowsRenamer split: a single POSIX rename(2)
// call atomically replaces the destination on every platform Go's
// os.Rename treats that way, with a build-tag-gated fallback for
// platforms that do not support rename-over-existing.
package rename

import (
	"fmt"
	"os"
)

// Replace atomically makes newPath's contents appear at oldPath,
// replacing whatever was at oldPath. On return, newPath no longer
// exists.
func Replace(newPath, oldPath string) error {
	if err := replace(newPath, oldPath); err != nil {
		return fmt.Errorf("rename: failed to replace %s with %s: %w", oldPath, newPath, err)
	}
	return nil
}

// replace is overridden per-platform; see rename_windows.go for the
// fallback strategy on platforms without atomic rename-over-existing.
var replace = func(newPath, oldPath string) error {
	return os.Rename(newPath, oldPath)
}
