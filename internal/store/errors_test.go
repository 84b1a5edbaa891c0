package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("some error"), false},
		{"ErrNotFound", ErrNotFound, true},
		{"ErrUserNotFound", ErrUserNotFound, true},
		{"ErrTaskNotFound", ErrTaskNotFound, true},
		{"ErrTeamNotFound", ErrTeamNotFound, true},
		{"wrapped ErrTaskNotFound", fmt.Errorf("load task: %w", ErrTaskNotFound), true},
		{"duplicate is not not-found", ErrEmailExists, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsNotFoundError(tt.err))
		})
	}
}

func TestIsDuplicateError(t *testing.T) {
	assert.True(t, IsDuplicateError(ErrEmailExists))
	assert.True(t, IsDuplicateError(ErrUsernameExists))
	assert.True(t, IsDuplicateError(fmt.Errorf("insert: %w", ErrHumanIDTaken)))
	assert.False(t, IsDuplicateError(ErrTaskNotFound))
	assert.False(t, errors.Is(ErrHumanIDTaken, ErrEmailExists))
}

func TestStoreError(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewStoreError("task", "update", "query failed", cause)

	assert.Equal(t, "update operation on task failed: query failed: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "create operation on user failed: bad", NewStoreError("user", "create", "bad", nil).Error())
}
