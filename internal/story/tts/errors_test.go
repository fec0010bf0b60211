package tts

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesByKind(t *testing.T) {
	aborted := NewError(KindAborted, "speech", "stopped by user", nil)
	assert.ErrorIs(t, aborted, ErrAborted)
	assert.ErrorIs(t, fmt.Errorf("batch 3: %w", ErrAborted), ErrAborted)
	assert.NotErrorIs(t, NewError(KindTransient, "", "x", nil), ErrAborted)
}

func TestErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("503 overloaded")
	err := NewError(KindTransient, "gemini", "server error", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "[transient:gemini] server error: 503 overloaded", err.Error())
}

func TestDailyQuotaMessage(t *testing.T) {
	err := &Error{Kind: KindDailyQuota, Message: "daily quota exhausted", RetryAfter: 90 * time.Minute}
	assert.InDelta(t, 1.5, err.Hours(), 1e-9)
	assert.Contains(t, err.Error(), "1.50h")
}

func TestAsErrorAndIsKind(t *testing.T) {
	wrapped := fmt.Errorf("generate: %w", RateLimited("gemini", 30*time.Second, nil))
	typed, ok := AsError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, typed.RetryAfter)
	assert.True(t, IsKind(wrapped, KindRateLimited))
	assert.False(t, IsKind(errors.New("plain"), KindRateLimited))
}
