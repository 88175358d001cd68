package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserErrorUnwraps(t *testing.T) {
	err := NewUserError("not logged in", ErrNotAuthenticated)

	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Equal(t, "not logged in: not authenticated", err.Error())
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil error", nil, "fallback"},
		{"plain error", errors.New("boom"), "boom"},
		{"user error", NewUserError("friendly", errors.New("boom")), "friendly"},
		{"wrapped user error", fmt.Errorf("op: %w", NewUserError("friendly", nil)), "friendly"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Message(tt.err, "fallback"))
		})
	}
}
