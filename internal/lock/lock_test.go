//go:build unix

package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGuard(t *testing.T, mode Mode) *Guard {
	t.Helper()
	g, err := NewGuard(mode)
	require.NoError(t, err)
	return g
}

func TestPath(t *testing.T) {
	got := Path("backup", "nightly", "/var/run/app")
	assert.Equal(t, filepath.Join("/var/run/app", "lock", "backup-nightly.lock"), got)
	assert.Equal(t, got, Path("backup", "Nightly", "/var/run/app"))
}

func TestAcquire_ActionNameIsCaseInsensitive(t *testing.T) {
	runtimeDir := t.TempDir()
	g := newTestGuard(t, DefaultMode)

	h, err := g.Acquire("backup", "nightly", runtimeDir)
	require.NoError(t, err)
	defer h.Release()

	_, err = g.Acquire("backup", "NIGHTLY", runtimeDir)
	assert.ErrorIs(t, err, ErrAlreadyLocked)
}

func TestAcquire_WritesPIDAndCreatesDirectory(t *testing.T) {
	runtimeDir := t.TempDir()
	g := newTestGuard(t, DefaultMode)

	h, err := g.Acquire("backup", "nightly", runtimeDir)
	require.NoError(t, err)
	defer h.Release()

	assert.Equal(t, Path("backup", "nightly", runtimeDir), h.Path())
	assert.Equal(t, DefaultMode, h.Mode())

	data, err := os.ReadFile(h.Path())
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}

func TestAcquire_OverwritesPreviousContent(t *testing.T) {
	runtimeDir := t.TempDir()
	path := Path("backup", "nightly", runtimeDir)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("99999999 left by a crashed run"), 0o644))

	g := newTestGuard(t, DefaultMode)
	h, err := g.Acquire("backup", "nightly", runtimeDir)
	require.NoError(t, err)
	defer h.Release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}

func TestAcquire_NonBlockingFailsWhileHeld(t *testing.T) {
	runtimeDir := t.TempDir()
	g := newTestGuard(t, Exclusive|NonBlocking)

	first, err := g.Acquire("backup", "nightly", runtimeDir)
	require.NoError(t, err)
	defer first.Release()

	start := time.Now()
	second, err := g.Acquire("backup", "nightly", runtimeDir)
	assert.Nil(t, second)
	assert.ErrorIs(t, err, ErrAlreadyLocked)
	assert.Less(t, time.Since(start), time.Second)

	// The holder's PID must survive the failed attempt
	data, err := os.ReadFile(first.Path())
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}

func TestAcquire_DifferentActionsDoNotConflict(t *testing.T) {
	runtimeDir := t.TempDir()
	g := newTestGuard(t, DefaultMode)

	a, err := g.Acquire("backup", "nightly", runtimeDir)
	require.NoError(t, err)
	defer a.Release()

	b, err := g.Acquire("backup", "weekly", runtimeDir)
	require.NoError(t, err)
	defer b.Release()

	c, err := g.Acquire("report", "nightly", runtimeDir)
	require.NoError(t, err)
	defer c.Release()
}

func TestAcquire_SharedLocksCoexist(t *testing.T) {
	runtimeDir := t.TempDir()
	shared := newTestGuard(t, Shared|NonBlocking)

	a, err := shared.Acquire("backup", "read", runtimeDir)
	require.NoError(t, err)
	b, err := shared.Acquire("backup", "read", runtimeDir)
	require.NoError(t, err)

	exclusive := newTestGuard(t, Exclusive|NonBlocking)
	_, err = exclusive.Acquire("backup", "read", runtimeDir)
	assert.ErrorIs(t, err, ErrAlreadyLocked)

	require.NoError(t, b.Release())
	require.NoError(t, a.Release())
}

func TestAcquire_BlockingWaitsForRelease(t *testing.T) {
	runtimeDir := t.TempDir()
	g := newTestGuard(t, Exclusive)

	first, err := g.Acquire("backup", "nightly", runtimeDir)
	require.NoError(t, err)

	type result struct {
		h   *Handle
		err error
	}
	done := make(chan result, 1)
	go func() {
		h, err := g.Acquire("backup", "nightly", runtimeDir)
		done <- result{h, err}
	}()

	select {
	case <-done:
		t.Fatal("blocking acquire returned while the lock was held")
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, first.Release())

	select {
	case r := <-done:
		require.NoError(t, r.err)
		// The waiter opened the file the first holder removed, so it must
		// hold a lock on the file now found at the path.
		data, err := os.ReadFile(r.h.Path())
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
		_, err = newTestGuard(t, DefaultMode).Acquire("backup", "nightly", runtimeDir)
		assert.ErrorIs(t, err, ErrAlreadyLocked)
		assert.NoError(t, r.h.Release())
	case <-time.After(5 * time.Second):
		t.Fatal("blocking acquire did not return after release")
	}
}

func TestAcquire_ContendedNeverDoubleHeld(t *testing.T) {
	runtimeDir := t.TempDir()
	g := newTestGuard(t, DefaultMode)

	var inside, overlaps, acquired atomic.Int32
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 500; n++ {
				h, err := g.Acquire("backup", "nightly", runtimeDir)
				if errors.Is(err, ErrAlreadyLocked) {
					continue
				}
				if !assert.NoError(t, err) {
					return
				}
				acquired.Add(1)
				if inside.Add(1) > 1 {
					overlaps.Add(1)
				}
				time.Sleep(50 * time.Microsecond)
				inside.Add(-1)
				assert.NoError(t, h.Release())
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, overlaps.Load(), "two holders owned the lock at once")
	assert.Positive(t, acquired.Load())
}

func TestAcquire_WriteFailureReleasesLock(t *testing.T) {
	runtimeDir := t.TempDir()
	g := newTestGuard(t, DefaultMode)

	original := writePID
	writePID = func(*os.File) error { return errors.New("disk full") }
	_, err := g.Acquire("backup", "nightly", runtimeDir)
	writePID = original

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWriteFailed)
	assert.Contains(t, err.Error(), "disk full")

	// The lock must not be left held after the failed write
	h, err := g.Acquire("backup", "nightly", runtimeDir)
	require.NoError(t, err)
	assert.NoError(t, h.Release())
}

func TestAcquire_ConcurrentDirectoryCreation(t *testing.T) {
	runtimeDir := filepath.Join(t.TempDir(), "not", "yet", "there")
	g := newTestGuard(t, DefaultMode)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := g.Acquire("job", fmt.Sprintf("action%d", i), runtimeDir)
			if err != nil {
				errs <- err
				return
			}
			errs <- h.Release()
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestRelease_RemovesFileAndAllowsReacquire(t *testing.T) {
	runtimeDir := t.TempDir()
	g := newTestGuard(t, DefaultMode)

	h, err := g.Acquire("backup", "nightly", runtimeDir)
	require.NoError(t, err)
	require.NoError(t, g.Release(h))

	_, err = os.Stat(h.Path())
	assert.True(t, errors.Is(err, os.ErrNotExist), "lock file should be removed")

	again, err := g.Acquire("backup", "nightly", runtimeDir)
	require.NoError(t, err)
	assert.NoError(t, again.Release())
}

func TestRelease_Twice(t *testing.T) {
	g := newTestGuard(t, DefaultMode)

	h, err := g.Acquire("backup", "nightly", t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, h.Release())
	assert.NoError(t, h.Release())
}

func TestRelease_FileRemovedByOthers(t *testing.T) {
	runtimeDir := t.TempDir()
	g := newTestGuard(t, DefaultMode)

	h, err := g.Acquire("backup", "nightly", runtimeDir)
	require.NoError(t, err)
	require.NoError(t, os.Remove(h.Path()))

	assert.NoError(t, h.Release())
	assert.Nil(t, h.lockFile, "descriptor should be closed")

	// The unlinked inode is no longer reachable, so a new lock succeeds
	again, err := g.Acquire("backup", "nightly", runtimeDir)
	require.NoError(t, err)
	assert.NoError(t, again.Release())
}

func TestRelease_BrokenDescriptorLeavesFile(t *testing.T) {
	runtimeDir := t.TempDir()
	g := newTestGuard(t, DefaultMode)

	h, err := g.Acquire("backup", "nightly", runtimeDir)
	require.NoError(t, err)

	// Close the descriptor behind the handle's back
	require.NoError(t, h.lockFile.Close())

	err = h.Release()
	assert.ErrorIs(t, err, ErrReleaseFailed)

	_, statErr := os.Stat(h.Path())
	assert.NoError(t, statErr, "lock file should be left for inspection")
}

func TestRelease_NilHandle(t *testing.T) {
	var h *Handle
	assert.NoError(t, h.Release())
}

func TestAcquire_UnlockModeHoldsNothing(t *testing.T) {
	runtimeDir := t.TempDir()
	g := newTestGuard(t, Unlock|NonBlocking)

	a, err := g.Acquire("backup", "nightly", runtimeDir)
	require.NoError(t, err)
	defer a.Release()

	exclusive := newTestGuard(t, DefaultMode)
	b, err := exclusive.Acquire("backup", "nightly", runtimeDir)
	require.NoError(t, err)
	assert.NoError(t, b.Release())
}

func TestAcquire_UnwritableRuntimeDir(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	g := newTestGuard(t, DefaultMode)
	_, err := g.Acquire("backup", "nightly", blocker)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAlreadyLocked)
}
