//go:build !windows

package index

import (
	"errors"
	"os"
	"syscall"
)

// flockTake takes an exclusive non-blocking lock on f. Returns
// ErrIndexLocked when another process already holds it.
func flockTake(f *os.File) error {
	err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN) {
		return ErrIndexLocked
	}
	return err
}

func flockDrop(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}
