// Package abort holds the per-job stop flag shared between the caller and
// the narration pipeline.
package abort

import "sync/atomic"

// Checker reports whether the current job has been asked to stop.
type Checker interface {
	Aborted() bool
}

// Flag is a one-way stop signal. It starts unset, can only be set, and
// stays set for the rest of the job. A nil *Flag never reports aborted.
type Flag struct {
	set atomic.Bool
}

// New returns a fresh, unset flag. Every job gets its own.
func New() *Flag {
	return &Flag{}
}

// Abort sets the flag. Calling it more than once is harmless.
func (f *Flag) Abort() {
	if f == nil {
		return
	}
	f.set.Store(true)
}

func (f *Flag) Aborted() bool {
	if f == nil {
		return false
	}
	return f.set.Load()
}

// Func adapts a plain function to the Checker interface.
type Func func() bool

func (fn Func) Aborted() bool {
	if fn == nil {
		return false
	}
	return fn()
}

// Check is c.Aborted() for a checker that may be nil.
func Check(c Checker) bool {
	return c != nil && c.Aborted()
}
