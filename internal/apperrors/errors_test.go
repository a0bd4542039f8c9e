package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCustomError_UnwrapsToSentinel(t *testing.T) {
	err := fmt.Errorf("load topic: %w", NotFound("topic not found"))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))

	var ce *CustomError
	if assert.True(t, errors.As(err, &ce)) {
		assert.Equal(t, "topic not found", ce.Message)
	}
}

func TestCustomError_MessageFallback(t *testing.T) {
	assert.Equal(t, "resource not found", (&CustomError{Err: ErrNotFound}).Error())
	assert.Equal(t, "unknown error", (&CustomError{}).Error())
}

func TestValidation_Details(t *testing.T) {
	err := Validation("bad input", map[string]string{"count": "must be positive"})

	var ce *CustomError
	assert.True(t, errors.As(err, &ce))
	assert.Equal(t, "must be positive", ce.Details["count"])
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestIs_Multiple(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", ErrTokenExpired)
	assert.True(t, Is(err, ErrTokenInvalid, ErrTokenExpired))
	assert.False(t, Is(err, ErrTokenInvalid))
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := errors.New("provider unavailable")
	err := fmt.Errorf("generate: %w", Wrap(ErrGeneration, cause))

	assert.True(t, errors.Is(err, ErrGeneration))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "provider unavailable")
}
