package lock

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Info describes one lock file found under a runtime dir
type Info struct {
	Path    string    `json:"path"`
	Name    string    `json:"name"`
	PID     int       `json:"pid"`
	Held    bool      `json:"held"`
	ModTime time.Time `json:"modified"`
}

// Inspect lists the lock files under runtimeDir. A lock is reported as held
// when a non-blocking exclusive probe fails; a file that is not held was left
// behind by a holder that exited without releasing it.
func Inspect(runtimeDir string) ([]Info, error) {
	var infos []Info
	err := walkLocks(runtimeDir, func(info Info, _ *os.File) error {
		infos = append(infos, info)
		return nil
	})
	return infos, err
}

// Clean removes lock files whose advisory lock is not held and returns them.
// Held locks are left alone.
func Clean(runtimeDir string) ([]Info, error) {
	var removed []Info
	err := walkLocks(runtimeDir, func(info Info, file *os.File) error {
		if info.Held {
			return nil
		}
		if err := probeLock(file); err != nil {
			if isWouldBlock(err) {
				return nil
			}
			return fmt.Errorf("failed to lock %s: %w", info.Path, err)
		}
		defer func() { _ = platformUnlock(file) }()

		// A holder may have released and another taken a new file at the
		// same path since it was opened; that file is not ours to remove.
		current, err := isCurrent(file, info.Path)
		if err != nil {
			return fmt.Errorf("failed to verify lock file %s: %w", info.Path, err)
		}
		if !current {
			return nil
		}

		if err := os.Remove(info.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove stale lock %s: %w", info.Path, err)
		}
		removed = append(removed, info)
		return nil
	})
	return removed, err
}

func walkLocks(runtimeDir string, fn func(Info, *os.File) error) error {
	dir := filepath.Join(runtimeDir, DirName)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read lock directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".lock") {
			continue
		}
		if err := inspectOne(filepath.Join(dir, entry.Name()), fn); err != nil {
			return err
		}
	}
	return nil
}

func inspectOne(path string, fn func(Info, *os.File) error) error {
	// Read-only is enough for flock and lets other users' lock files be listed
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		// Released between ReadDir and open
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open lock file %s: %w", path, err)
	}
	defer file.Close()

	info := Info{
		Path: path,
		Name: strings.TrimSuffix(filepath.Base(path), ".lock"),
		PID:  readPID(file),
	}
	if st, err := file.Stat(); err == nil {
		info.ModTime = st.ModTime()
	}

	if err := probeLock(file); err != nil {
		if !isWouldBlock(err) {
			return fmt.Errorf("failed to probe lock %s: %w", path, err)
		}
		info.Held = true
	} else if err := platformUnlock(file); err != nil {
		return fmt.Errorf("failed to unlock probe on %s: %w", path, err)
	}

	return fn(info, file)
}

// readPID returns the PID stored in file, or 0 when it cannot be parsed.
func readPID(file *os.File) int {
	data, err := io.ReadAll(io.LimitReader(file, 32))
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}
