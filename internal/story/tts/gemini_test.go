package tts

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModels struct {
	resp   *genai.GenerateContentResponse
	err    error
	calls  int
	model  string
	text   string
	config *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.model = model
	f.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.text = contents[0].Parts[0].Text
	}
	return f.resp, f.err
}

func audioResponse(data []byte) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "ignored"},
				{InlineData: &genai.Blob{MIMEType: "audio/L16;rate=24000", Data: data}},
			}},
		}},
	}
}

func TestGeminiSynthesize(t *testing.T) {
	fake := &fakeModels{resp: audioResponse([]byte{1, 2, 3, 4})}
	g := newGeminiWithModels(fake, Config{})
	seed := int32(42)

	data, err := g.Synthesize(context.Background(), Request{Text: "Hello.", Voice: "Kore", Seed: &seed})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)

	assert.Equal(t, DefaultGeminiModel, fake.model)
	assert.Equal(t, "Hello.", fake.text)
	assert.Equal(t, []string{"AUDIO"}, fake.config.ResponseModalities)
	assert.Equal(t, "Kore", fake.config.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
	require.NotNil(t, fake.config.Seed)
	assert.Equal(t, int32(42), *fake.config.Seed)
	assert.Equal(t, "gemini:"+DefaultGeminiModel, g.Name())
	assert.True(t, SupportsStylePrompts(g))
}

func TestGeminiEmptyTextSkipsCall(t *testing.T) {
	fake := &fakeModels{}
	g := newGeminiWithModels(fake, Config{Model: "other"})
	data, err := g.Synthesize(context.Background(), Request{Text: "   "})
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.Zero(t, fake.calls)
}

func TestGeminiNoAudioIsNotAnError(t *testing.T) {
	g := newGeminiWithModels(&fakeModels{resp: &genai.GenerateContentResponse{}}, Config{})
	data, err := g.Synthesize(context.Background(), Request{Text: "Hi", Voice: "Puck"})
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestClassifyGeminiError(t *testing.T) {
	t.Run("rate limit with retry info", func(t *testing.T) {
		err := classifyGeminiError(genai.APIError{
			Code:    http.StatusTooManyRequests,
			Status:  "RESOURCE_EXHAUSTED",
			Message: "Quota exceeded.",
			Details: []map[string]any{
				{"@type": "type.googleapis.com/google.rpc.QuotaFailure"},
				{"@type": retryInfoType, "retryDelay": "37s"},
			},
		})
		typed, ok := AsError(err)
		require.True(t, ok)
		assert.Equal(t, KindRateLimited, typed.Kind)
		assert.Equal(t, 37*time.Second, typed.RetryAfter)
	})

	t.Run("rate limit with wait in message", func(t *testing.T) {
		err := classifyGeminiError(genai.APIError{Code: 429, Message: "Please retry in 12.5s."})
		typed, ok := AsError(err)
		require.True(t, ok)
		assert.Equal(t, KindRateLimited, typed.Kind)
		assert.Equal(t, 12500*time.Millisecond, typed.RetryAfter)
	})

	t.Run("rate limit without wait", func(t *testing.T) {
		err := classifyGeminiError(genai.APIError{Code: 400, Status: "RESOURCE_EXHAUSTED"})
		typed, ok := AsError(err)
		require.True(t, ok)
		assert.Equal(t, KindRateLimited, typed.Kind)
		assert.Zero(t, typed.RetryAfter)
	})

	t.Run("server errors are transient", func(t *testing.T) {
		for _, code := range []int{500, 502, 503, 504} {
			assert.True(t, IsKind(classifyGeminiError(genai.APIError{Code: code}), KindTransient), code)
		}
		assert.True(t, IsKind(classifyGeminiError(genai.APIError{Code: 0, Status: "UNAVAILABLE"}), KindTransient))
	})

	t.Run("client errors are permanent", func(t *testing.T) {
		err := classifyGeminiError(genai.APIError{Code: 400, Status: "INVALID_ARGUMENT", Message: "bad voice"})
		assert.True(t, IsKind(err, KindPermanent))
		assert.Contains(t, err.Error(), "bad voice")
	})

	t.Run("other errors pass through", func(t *testing.T) {
		plain := errors.New("dial tcp: no route to host")
		assert.Same(t, plain, classifyGeminiError(plain))
		_, ok := AsError(classifyGeminiError(context.DeadlineExceeded))
		assert.False(t, ok)
	})
}

func TestGeminiSynthesizeClassifies(t *testing.T) {
	g := newGeminiWithModels(&fakeModels{err: genai.APIError{Code: 503, Message: "overloaded"}}, Config{})
	_, err := g.Synthesize(context.Background(), Request{Text: "Hi", Voice: "Puck"})
	assert.True(t, IsKind(err, KindTransient))

	var apiErr genai.APIError
	assert.True(t, errors.As(err, &apiErr), "cause stays reachable")
}

func TestGeminiThrottle(t *testing.T) {
	g := newGeminiWithModels(&fakeModels{resp: audioResponse([]byte{0, 0})}, Config{RequestsPerMinute: 1})
	require.NotNil(t, g.limiter)

	_, err := g.Synthesize(context.Background(), Request{Text: "one", Voice: "Puck"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Synthesize(ctx, Request{Text: "two", Voice: "Puck"})
	assert.Error(t, err, "second call within the minute waits and sees the cancelled context")
}

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := newGeminiSynthesizer(Config{})
	assert.Error(t, err)
}
