// internal/story/tts/tts.go
package tts

import (
	"context"
	"time"
)

// Output format shared by every backend: raw little-endian 16-bit mono PCM
// at 24 kHz, which is what the Gemini speech models return.
const (
	SampleRate = 24000
	Channels   = 1
	BitDepth   = 16
)

type Config struct {
	Type              string
	Model             string
	APIKey            string
	LanguageCode      string
	RequestsPerMinute int
	CacheEnabled      bool
	CachePath         string
	RequestTimeout    time.Duration
}

// Request is one synthesis call: a span of text spoken by one voice.
type Request struct {
	Text  string
	Voice string
	// Seed makes the model's variation deterministic. Nil lets the service pick.
	Seed *int32
}

// Synthesizer turns text into raw PCM in the shared output format. A nil or
// empty slice with a nil error means there was nothing to speak.
//
// Implementations classify service failures as *Error values so the caller
// can tell rate limits, transient faults and permanent rejections apart.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
	Name() string
}

// VoiceLister is implemented by backends that can enumerate their voices.
type VoiceLister interface {
	Voices(ctx context.Context) ([]string, error)
}

// StylePrompter reports whether spoken style instructions ("Please speak
// slowly:") are understood by the model rather than read aloud.
type StylePrompter interface {
	SupportsStylePrompts() bool
}

// SupportsStylePrompts checks s, defaulting to false for backends that do
// not say.
func SupportsStylePrompts(s Synthesizer) bool {
	if sp, ok := s.(StylePrompter); ok {
		return sp.SupportsStylePrompts()
	}
	return false
}
