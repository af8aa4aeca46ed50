//go:build unix

package lock

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// An open file can be unlinked on unix, so the holder removes the lock file
// before giving up the lock.
const removeWhileLocked = true

// platformLock applies a flock(2) lock matching mode
func platformLock(file *os.File, mode Mode) error {
	how := unix.LOCK_EX
	switch {
	case mode.Has(Exclusive):
	case mode.Has(Shared):
		how = unix.LOCK_SH
	case mode.Has(Unlock):
		how = unix.LOCK_UN
	}
	if mode.Has(NonBlocking) {
		how |= unix.LOCK_NB
	}

	for {
		err := unix.Flock(int(file.Fd()), how)
		// A blocking flock can be interrupted by a signal before the lock
		// is granted.
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return err
	}
}

// platformUnlock releases the flock(2) lock
func platformUnlock(file *os.File) error {
	return unix.Flock(int(file.Fd()), unix.LOCK_UN)
}

// probeLock takes a non-blocking exclusive lock
func probeLock(file *os.File) error {
	return unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

// isWouldBlock reports whether err means the lock is held elsewhere. Some
// older systems report EAGAIN instead of EWOULDBLOCK.
func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN)
}
