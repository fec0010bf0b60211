package tts

import (
	"context"
	"strings"
	"sync"
)

// mockSamplesPerRune gives roughly natural speech duration: ~15 characters a
// second at 24 kHz.
const mockSamplesPerRune = SampleRate / 15

// MockSynthesizer produces silence proportional to the text length. Used
// offline and in tests; it records every request it receives.
type MockSynthesizer struct {
	mu       sync.Mutex
	requests []Request
}

func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{}
}

func (m *MockSynthesizer) Name() string {
	return "mock"
}

// SupportsStylePrompts reports true so dry runs send the same prompts Gemini
// would receive.
func (m *MockSynthesizer) SupportsStylePrompts() bool {
	return true
}

func (m *MockSynthesizer) Voices(ctx context.Context) ([]string, error) {
	return []string{"mock-voice"}, nil
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, nil
	}
	samples := len([]rune(text)) * mockSamplesPerRune
	return make([]byte, samples*BitDepth/8*Channels), nil
}

// Requests returns a copy of the requests seen so far.
func (m *MockSynthesizer) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}
