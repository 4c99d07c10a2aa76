//go:build windows

package rename

import (
	"os"

	"golang.org/x/sys/windows"
)

// On Windows, os.Rename fails if oldPath already exists, so the
// fallback calls ReplaceFile directly, mirroring semidbm's
// win32.py _WindowsRenamer which wraps the same Win32 call.
func init() {
	replace = replaceWindows
}

func replaceWindows(newPath, oldPath string) error {
	newPtr, err := windows.UTF16PtrFromString(newPath)
	if err != nil {
		return err
	}
	oldPtr, err := windows.UTF16PtrFromString(oldPath)
	if err != nil {
		return err
	}

	if _, err := os.Stat(oldPath); os.IsNotExist(err) {
		return os.Rename(newPath, oldPath)
	}

	return windows.ReplaceFile(oldPtr, newPtr, nil, windows.REPLACEFILE_IGNORE_MERGE_ERRORS, 0, 0)
}
