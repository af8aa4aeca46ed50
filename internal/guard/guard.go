// Package guard wraps command actions in per-action locks. A dispatcher calls
// BeforeAction before running an action and AfterAction once it finished,
// whatever its outcome, or hands the action to Run which does both.
package guard

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/autolock-cli/autolock/internal/filter"
	"github.com/autolock-cli/autolock/internal/lock"
)

// ErrSkipped is returned by Run when the action did not run because its lock
// could not be acquired.
var ErrSkipped = errors.New("action skipped")

// Interceptor holds the locks of the actions of one command
type Interceptor struct {
	command    string
	runtimeDir string
	locker     *lock.Guard
	policy     filter.Policy
	logger     *log.Logger

	mu      sync.Mutex
	handles map[string]*lock.Handle
}

// New creates an Interceptor. A nil logger falls back to log.Default().
func New(command, runtimeDir string, locker *lock.Guard, policy filter.Policy, logger *log.Logger) *Interceptor {
	if logger == nil {
		logger = log.Default()
	}
	return &Interceptor{
		command:    command,
		runtimeDir: runtimeDir,
		locker:     locker,
		policy:     policy,
		logger:     logger.With("command", command),
		handles:    make(map[string]*lock.Handle),
	}
}

// BeforeAction reports whether action may run. It returns false and the
// acquisition error when the lock is unavailable.
func (i *Interceptor) BeforeAction(action string) (bool, error) {
	if !i.policy.Requires(action) {
		i.logger.Debug("action not guarded", "action", action)
		return true, nil
	}

	key := strings.ToLower(action)

	i.mu.Lock()
	defer i.mu.Unlock()

	if _, held := i.handles[key]; held {
		return false, fmt.Errorf("%w: action %q is already running in this process", lock.ErrAlreadyLocked, action)
	}

	h, err := i.locker.Acquire(i.command, action, i.runtimeDir)
	if err != nil {
		if errors.Is(err, lock.ErrAlreadyLocked) {
			i.logger.Warn("lock held by another process", "action", action, "path", lock.Path(i.command, action, i.runtimeDir))
		} else {
			i.logger.Error("failed to acquire lock", "action", action, "err", err)
		}
		return false, err
	}

	i.handles[key] = h
	i.logger.Debug("lock acquired", "action", action, "path", h.Path(), "mode", h.Mode())
	return true, nil
}

// AfterAction releases the lock taken for action, if any
func (i *Interceptor) AfterAction(action string) error {
	key := strings.ToLower(action)

	i.mu.Lock()
	h, ok := i.handles[key]
	delete(i.handles, key)
	i.mu.Unlock()

	if !ok {
		return nil
	}

	if err := i.locker.Release(h); err != nil {
		i.logger.Error("failed to release lock", "action", action, "path", h.Path(), "err", err)
		return err
	}
	i.logger.Debug("lock released", "action", action, "path", h.Path())
	return nil
}

// Run executes fn as action between BeforeAction and AfterAction. fn is not
// called when the lock cannot be taken. A release failure is joined with the
// error returned by fn and never hides it.
func (i *Interceptor) Run(action string, fn func() error) (err error) {
	ok, err := i.BeforeAction(action)
	if !ok {
		return fmt.Errorf("%w: %s: %w", ErrSkipped, action, err)
	}

	defer func() {
		if releaseErr := i.AfterAction(action); releaseErr != nil {
			err = errors.Join(err, releaseErr)
		}
	}()

	return fn()
}
