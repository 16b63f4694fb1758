package core

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsShutdown(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"shutdown", NewShutdownError(ErrStoreClosed), true},
		{"wrapped twice", errors.Wrap(errors.Wrap(NewShutdownError(ErrStoreClosed), "getting user"), "login"), true},
		{"validation", NewValidationError(errors.New("invalid")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsShutdown(tt.err))
		})
	}

	err := errors.Wrap(NewShutdownError(ErrStoreClosed), "querying")
	assert.True(t, errors.Is(err, ErrStoreClosed))
	assert.Equal(t, "querying: shutdown: document store is closed", err.Error())
}
