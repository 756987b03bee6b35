//go:build windows

package index

import (
	"errors"
	"os"

	"golang.org/x/sys/windows"
)

// One byte at offset zero stands in for the whole file; every locker must
// use the same region.
const lockRegionBytes uint32 = 1

// flockTake takes an exclusive non-blocking lock on f. Returns
// ErrIndexLocked when another process already holds it.
func flockTake(f *os.File) error {
	var ov windows.Overlapped
	err := windows.LockFileEx(
		windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0, lockRegionBytes, 0, &ov,
	)
	if errors.Is(err, windows.ERROR_LOCK_VIOLATION) ||
		errors.Is(err, windows.ERROR_SHARING_VIOLATION) {
		return ErrIndexLocked
	}
	return err
}

func flockDrop(f *os.File) error {
	var ov windows.Overlapped
	return windows.UnlockFileEx(windows.Handle(f.Fd()), 0, lockRegionBytes, 0, &ov)
}
