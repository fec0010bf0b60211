package tts

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a synthesis failure by how the pipeline must react to it.
type Kind string

const (
	// KindAborted is a user-requested stop. Never retried.
	KindAborted Kind = "aborted"
	// KindRateLimited is a short-lived quota rejection; recovered by waiting.
	KindRateLimited Kind = "rate_limited"
	// KindDailyQuota is a rate limit whose suggested wait is too long to sit out.
	KindDailyQuota Kind = "daily_quota_exceeded"
	// KindTransient is a 5xx-style server failure worth a bounded retry.
	KindTransient Kind = "transient"
	// KindPermanent is a malformed request, unknown voice, bad credentials...
	KindPermanent Kind = "permanent"
	// KindFailed is a transient failure that outlived its retry budget.
	KindFailed Kind = "synthesis_failed"
)

// Error is the typed failure surfaced by backends and by the call wrapper.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	// RetryAfter is the wait the service suggested, if it sent one.
	RetryAfter time.Duration
	Cause      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Op != "" {
		msg = fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
	}
	if e.Kind == KindDailyQuota {
		msg = fmt.Sprintf("%s (retry in about %.2fh)", msg, e.Hours())
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match on kind alone, so ErrAborted matches any aborted error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Cause == nil && t.Kind == e.Kind
}

// Hours is the suggested wait expressed in hours.
func (e *Error) Hours() float64 {
	return e.RetryAfter.Hours()
}

// ErrAborted is returned when a job's abort flag is observed.
var ErrAborted = &Error{Kind: KindAborted, Message: "generation aborted"}

func NewError(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Cause: cause}
}

// RateLimited builds a rate-limit failure carrying the service's suggested wait
// (zero when none was given).
func RateLimited(op string, retryAfter time.Duration, cause error) *Error {
	return &Error{
		Kind:       KindRateLimited,
		Op:         op,
		Message:    "quota exhausted",
		RetryAfter: retryAfter,
		Cause:      cause,
	}
}

// AsError returns the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var typed *Error
	if errors.As(err, &typed) {
		return typed, true
	}
	return nil, false
}

// IsKind checks whether the first *Error in the chain has the given kind.
func IsKind(err error, kind Kind) bool {
	typed, ok := AsError(err)
	return ok && typed.Kind == kind
}
