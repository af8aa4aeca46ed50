package util

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/autolock-cli/autolock/internal/lock"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"generic", errors.New("boom"), ExitError},
		{"already locked", fmt.Errorf("skipped: %w", lock.ErrAlreadyLocked), ExitLocked},
		{"invalid mode", fmt.Errorf("config: %w", lock.ErrInvalidMode), ExitInvalidInput},
		{"invalid input", ErrInvalidInput, ExitInvalidInput},
		{"program status", &ExitStatus{Code: 42}, 42},
		{"program status joined with release failure", errors.Join(&ExitStatus{Code: 5}, lock.ErrReleaseFailed), 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, "ctx"))

	err := WrapError(lock.ErrAlreadyLocked, "run")
	assert.ErrorIs(t, err, lock.ErrAlreadyLocked)
	assert.Equal(t, "run: lock is held by another process", err.Error())
}
