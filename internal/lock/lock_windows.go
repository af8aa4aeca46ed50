//go:build windows

package lock

import (
	"errors"
	"os"

	"golang.org/x/sys/windows"
)

// The locked byte range sits far past the PID so other processes can still
// read the file while it is held.
const (
	lockOffsetLow  = 0xFFFFFFFE
	lockOffsetHigh = 0x7FFFFFFF
)

// Windows refuses to delete a file with open handles, so the lock file is
// removed after the handle is closed.
const removeWhileLocked = false

// platformLock applies a LockFileEx lock matching mode
func platformLock(file *os.File, mode Mode) error {
	var flags uint32 = windows.LOCKFILE_EXCLUSIVE_LOCK
	switch {
	case mode.Has(Exclusive):
	case mode.Has(Shared):
		flags = 0
	case mode.Has(Unlock):
		return nil
	}
	if mode.Has(NonBlocking) {
		flags |= windows.LOCKFILE_FAIL_IMMEDIATELY
	}

	ol := &windows.Overlapped{Offset: lockOffsetLow, OffsetHigh: lockOffsetHigh}
	return windows.LockFileEx(windows.Handle(file.Fd()), flags, 0, 1, 0, ol)
}

// platformUnlock releases the LockFileEx lock. Unlocking a range that is not
// locked is not an error, matching flock(2).
func platformUnlock(file *os.File) error {
	ol := &windows.Overlapped{Offset: lockOffsetLow, OffsetHigh: lockOffsetHigh}
	err := windows.UnlockFileEx(windows.Handle(file.Fd()), 0, 1, 0, ol)
	if errors.Is(err, windows.ERROR_NOT_LOCKED) {
		return nil
	}
	return err
}

// probeLock takes a non-blocking exclusive lock
func probeLock(file *os.File) error {
	return platformLock(file, Exclusive|NonBlocking)
}

// isWouldBlock reports whether err means the lock is held elsewhere
func isWouldBlock(err error) bool {
	return errors.Is(err, windows.ERROR_LOCK_VIOLATION) || errors.Is(err, windows.ERROR_IO_PENDING)
}
