// Package lock implements per-action advisory file locks. A lock file lives
// at {runtimeDir}/lock/{command}-{action}.lock and holds the decimal PID of
// the process currently owning it.
package lock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Error variables for lock operations
var (
	// ErrInvalidMode is returned when a lock mode contains unknown flags
	ErrInvalidMode = errors.New("invalid lock mode")
	// ErrAlreadyLocked is returned when a non-blocking acquisition finds the lock held
	ErrAlreadyLocked = errors.New("lock is held by another process")
	// ErrWriteFailed is returned when the holder PID cannot be written after locking
	ErrWriteFailed = errors.New("failed to write lock owner")
	// ErrReleaseFailed is returned when unlocking, closing or removing the lock file fails
	ErrReleaseFailed = errors.New("failed to release lock")
)

// DirName is the directory created under the runtime dir for lock files
const DirName = "lock"

// Guard acquires action locks with a fixed, validated mode.
type Guard struct {
	mode Mode
}

// NewGuard validates mode and returns a guard using it
func NewGuard(mode Mode) (*Guard, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	return &Guard{mode: mode}, nil
}

// Mode returns the configured lock mode
func (g *Guard) Mode() Mode {
	return g.mode
}

// Path returns the lock file path for a command action. Action names are
// case-insensitive, so the action part is lowercased.
func Path(command, action, runtimeDir string) string {
	return filepath.Join(runtimeDir, DirName, fmt.Sprintf("%s-%s.lock", command, strings.ToLower(action)))
}

// Handle is one held advisory lock. It must be released by the goroutine
// that acquired it.
type Handle struct {
	path     string
	mode     Mode
	lockFile *os.File
}

// Path returns the lock file path
func (h *Handle) Path() string {
	return h.path
}

// Mode returns the mode the lock was acquired with
func (h *Handle) Mode() Mode {
	return h.mode
}

// Acquire takes the lock for command/action under runtimeDir. With
// NonBlocking set it returns ErrAlreadyLocked instead of waiting.
func (g *Guard) Acquire(command, action, runtimeDir string) (*Handle, error) {
	// MkdirAll succeeds when the directory already exists, including when
	// another process creates it concurrently.
	dir := filepath.Join(runtimeDir, DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	path := Path(command, action, runtimeDir)

	for {
		// Never truncate on open: the previous holder's PID must survive
		// until the lock is ours.
		file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
		}

		if err := platformLock(file, g.mode); err != nil {
			file.Close()
			if isWouldBlock(err) {
				return nil, fmt.Errorf("%w: %s", ErrAlreadyLocked, path)
			}
			return nil, fmt.Errorf("failed to lock %s: %w", path, err)
		}

		// The holder we waited on may have removed the file after we opened
		// it. A lock on an unlinked file excludes nobody, so start over on
		// whatever is at path now.
		current, err := isCurrent(file, path)
		if err != nil {
			_ = platformUnlock(file)
			file.Close()
			return nil, fmt.Errorf("failed to verify lock file %s: %w", path, err)
		}
		if !current {
			_ = platformUnlock(file)
			file.Close()
			continue
		}

		if err := writePID(file); err != nil {
			_ = platformUnlock(file)
			file.Close()
			return nil, fmt.Errorf("%w: %s: %w", ErrWriteFailed, path, err)
		}

		return &Handle{
			path:     path,
			mode:     g.mode,
			lockFile: file,
		}, nil
	}
}

// Release releases h. See Handle.Release.
func (g *Guard) Release(h *Handle) error {
	return h.Release()
}

// Release removes the lock file, unlocks it and closes it. A lock file that
// is already gone, or that was replaced by another holder's file, counts as
// released, so calling Release twice is safe. When the descriptor is no
// longer usable the file is left on disk.
func (h *Handle) Release() error {
	if h == nil || h.lockFile == nil {
		return nil
	}

	current, err := isCurrent(h.lockFile, h.path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrReleaseFailed, h.path, err)
	}
	if !current {
		h.closeQuietly()
		return nil
	}

	var removeErr error
	if removeWhileLocked {
		// Unlinking before unlocking means nobody can lock this file and
		// still find it at path.
		removeErr = removeLockFile(h.path)
	}

	if err := platformUnlock(h.lockFile); err != nil {
		return fmt.Errorf("%w: unlock %s: %w", ErrReleaseFailed, h.path, err)
	}
	err = h.lockFile.Close()
	h.lockFile = nil
	if err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrReleaseFailed, h.path, err)
	}

	if !removeWhileLocked {
		removeErr = removeLockFile(h.path)
	}
	if removeErr != nil {
		return fmt.Errorf("%w: remove %s: %w", ErrReleaseFailed, h.path, removeErr)
	}

	return nil
}

func (h *Handle) closeQuietly() {
	if h.lockFile == nil {
		return
	}
	_ = h.lockFile.Close()
	h.lockFile = nil
}

// isCurrent reports whether file is still the file found at path.
func isCurrent(file *os.File, path string) (bool, error) {
	held, err := file.Stat()
	if err != nil {
		return false, err
	}
	onDisk, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return os.SameFile(held, onDisk), nil
}

func removeLockFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// writePID replaces the file content with the current process ID.
var writePID = func(file *os.File) error {
	if err := file.Truncate(0); err != nil {
		return err
	}
	if _, err := file.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0); err != nil {
		return err
	}
	return file.Sync()
}
