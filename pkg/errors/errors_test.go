package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSentinel = stderrors.New("slot taken")

func TestWrap_PreservesSentinel(t *testing.T) {
	err := Wrap(ErrorTypeConflict, "doctor already booked", errSentinel)

	assert.True(t, stderrors.Is(err, errSentinel))
	assert.Equal(t, "CONFLICT: doctor already booked: slot taken", err.Error())
}

func TestTypeOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorType
	}{
		{"not found", NewNotFoundError("missing"), ErrorTypeNotFound},
		{"wrapped validation", fmt.Errorf("booking: %w", NewValidationError("bad")), ErrorTypeValidation},
		{"plain error", stderrors.New("boom"), ErrorTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TypeOf(tt.err))
		})
	}
}

func TestIsType(t *testing.T) {
	err := NewExternalError("calendar unavailable", stderrors.New("503"))

	assert.True(t, IsType(err, ErrorTypeExternal))
	assert.False(t, IsType(err, ErrorTypeConflict))
	assert.False(t, IsType(nil, ErrorTypeConflict))
}
