// Package speech wraps a single synthesis call with abort checks, rate-limit
// countdowns, daily-quota detection and bounded retries for server faults.
package speech

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"storynarrator/internal/narration/abort"
	"storynarrator/internal/story/tts"
)

// StatusFunc receives human-readable progress text. Advisory only.
type StatusFunc func(msg string)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Options struct {
	// MaxAttempts bounds calls for transient server failures, first call included.
	MaxAttempts int
	// BackoffUnit is multiplied by the failed attempt number.
	BackoffUnit time.Duration
	// DefaultWait applies when a rate limit carries no suggested wait.
	DefaultWait time.Duration
	// SafetyBuffer is added to every rate-limit wait.
	SafetyBuffer time.Duration
	// DailyQuotaThreshold: suggested waits above it mean the daily quota is gone.
	DailyQuotaThreshold time.Duration
	// Sleep is replaced in tests.
	Sleep SleepFunc
}

func DefaultOptions() Options {
	return Options{
		MaxAttempts:         3,
		BackoffUnit:         2 * time.Second,
		DefaultWait:         60 * time.Second,
		SafetyBuffer:        2 * time.Second,
		DailyQuotaThreshold: 600 * time.Second,
		Sleep:               SleepContext,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxAttempts < 1 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.BackoffUnit < 0 {
		o.BackoffUnit = 0
	}
	if o.DefaultWait <= 0 {
		o.DefaultWait = d.DefaultWait
	}
	if o.SafetyBuffer < 0 {
		o.SafetyBuffer = 0
	}
	if o.DailyQuotaThreshold <= 0 {
		o.DailyQuotaThreshold = d.DailyQuotaThreshold
	}
	if o.Sleep == nil {
		o.Sleep = SleepContext
	}
	return o
}

// Call is one request through the wrapper.
type Call struct {
	Text  string
	Voice string
	Seed  *int32
	// Label is appended to status messages, e.g. "(batch 3/12, 40%)".
	Label string
}

type waitReason int

const (
	waitNone waitReason = iota
	waitRateLimit
	waitBackoff
)

func (w waitReason) String() string {
	switch w {
	case waitRateLimit:
		return "rate_limit"
	case waitBackoff:
		return "backoff"
	default:
		return "none"
	}
}

// decision is the outcome of one failed attempt.
type decision struct {
	reason waitReason
	wait   time.Duration
	// err is returned to the caller when reason is waitNone.
	err error
}

type Caller struct {
	synth tts.Synthesizer
	opts  Options
}

func NewCaller(synth tts.Synthesizer, opts Options) *Caller {
	return &Caller{synth: synth, opts: opts.withDefaults()}
}

// Synthesize runs call until it yields audio, a terminal error or an abort.
// Nil audio with a nil error means the service had nothing to speak.
//
// Rate-limit waits retry at the same attempt number; only transient server
// failures consume the attempt budget.
func (c *Caller) Synthesize(ctx context.Context, call Call, aborted abort.Checker, onStatus StatusFunc) ([]byte, error) {
	req := tts.Request{Text: call.Text, Voice: call.Voice, Seed: call.Seed}
	attempt := 1

	for {
		if abort.Check(aborted) {
			return nil, tts.ErrAborted
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := c.synth.Synthesize(ctx, req)
		if err == nil {
			return data, nil
		}

		d := c.decide(err, attempt)
		switch d.reason {
		case waitRateLimit:
			if err := c.countdown(ctx, d.wait, call.Label, aborted, onStatus); err != nil {
				return nil, err
			}
		case waitBackoff:
			logrus.WithError(err).WithFields(logrus.Fields{
				"attempt": attempt,
				"reason":  d.reason,
				"delay":   d.wait,
			}).Warn("transient synthesis failure, retrying")
			notify(onStatus, fmt.Sprintf("Server error. Retrying in %s (attempt %d/%d)...%s",
				d.wait, attempt+1, c.opts.MaxAttempts, labelSuffix(call.Label)))
			if err := c.opts.Sleep(ctx, d.wait); err != nil {
				return nil, err
			}
			attempt++
		default:
			return nil, d.err
		}
	}
}

func (c *Caller) decide(err error, attempt int) decision {
	typed, ok := tts.AsError(err)
	if !ok {
		return decision{reason: waitNone, err: err}
	}

	switch typed.Kind {
	case tts.KindRateLimited:
		suggested := typed.RetryAfter
		if suggested <= 0 {
			suggested = c.opts.DefaultWait
		}
		if suggested > c.opts.DailyQuotaThreshold {
			return decision{reason: waitNone, err: &tts.Error{
				Kind:       tts.KindDailyQuota,
				Op:         typed.Op,
				Message:    "daily quota exhausted",
				RetryAfter: suggested,
				Cause:      err,
			}}
		}
		return decision{reason: waitRateLimit, wait: suggested + c.opts.SafetyBuffer}
	case tts.KindTransient:
		if attempt >= c.opts.MaxAttempts {
			return decision{reason: waitNone, err: tts.NewError(tts.KindFailed, typed.Op,
				fmt.Sprintf("giving up after %d attempts", attempt), err)}
		}
		return decision{reason: waitBackoff, wait: time.Duration(attempt) * c.opts.BackoffUnit}
	default:
		return decision{reason: waitNone, err: err}
	}
}

// countdown sleeps one second at a time so an abort is noticed within a
// second and the user sees the remaining wait.
func (c *Caller) countdown(ctx context.Context, wait time.Duration, label string, aborted abort.Checker, onStatus StatusFunc) error {
	seconds := int(math.Ceil(wait.Seconds()))
	logrus.WithField("wait_seconds", seconds).Warn("rate limited, waiting before retry")

	for remaining := seconds; remaining > 0; remaining-- {
		if abort.Check(aborted) {
			return tts.ErrAborted
		}
		notify(onStatus, fmt.Sprintf("Rate limited. Retrying in %ds...%s", remaining, labelSuffix(label)))
		if err := c.opts.Sleep(ctx, time.Second); err != nil {
			return err
		}
	}
	if abort.Check(aborted) {
		return tts.ErrAborted
	}
	return nil
}

// SleepContext waits for d unless ctx is cancelled first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func notify(onStatus StatusFunc, msg string) {
	if onStatus != nil {
		onStatus(msg)
	}
}

func labelSuffix(label string) string {
	if label == "" {
		return ""
	}
	return " " + label
}
