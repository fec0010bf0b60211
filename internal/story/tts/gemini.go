package tts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const (
	DefaultGeminiModel = "gemini-2.5-flash-preview-tts"

	retryInfoType = "type.googleapis.com/google.rpc.RetryInfo"
)

// GeminiVoices are the prebuilt voices offered by the Gemini speech models.
var GeminiVoices = []string{
	"Zephyr", "Puck", "Charon", "Kore", "Fenrir", "Leda", "Orus", "Aoede",
	"Callirrhoe", "Autonoe", "Enceladus", "Iapetus", "Umbriel", "Algieba",
	"Despina", "Erinome", "Algenib", "Rasalgethi", "Laomedeia", "Achernar",
	"Alnilam", "Schedar", "Gacrux", "Pulcherrima", "Achird", "Zubenelgenubi",
	"Vindemiatrix", "Sadachbia", "Sadaltager", "Sulafat",
}

// contentGenerator is the slice of the genai client the synthesizer uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiSynthesizer speaks through the Gemini generateContent endpoint with
// the AUDIO response modality.
type GeminiSynthesizer struct {
	models  contentGenerator
	model   string
	limiter *rate.Limiter
}

func newGeminiSynthesizer(config Config) (*GeminiSynthesizer, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini engine requires an API key (tts.api_key or GEMINI_API_KEY)")
	}

	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     config.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return newGeminiWithModels(client.Models, config), nil
}

func newGeminiWithModels(models contentGenerator, config Config) *GeminiSynthesizer {
	model := config.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	g := &GeminiSynthesizer{models: models, model: model}
	if config.RequestsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 1)
	}
	return g
}

func (g *GeminiSynthesizer) Name() string {
	return "gemini:" + g.model
}

func (g *GeminiSynthesizer) SupportsStylePrompts() bool {
	return true
}

func (g *GeminiSynthesizer) Voices(ctx context.Context) ([]string, error) {
	return append([]string(nil), GeminiVoices...), nil
}

func (g *GeminiSynthesizer) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, nil
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("request throttle: %w", err)
		}
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		Seed:               req.Seed,
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: req.Voice},
			},
		},
	}

	logrus.WithFields(logrus.Fields{
		"model": g.model,
		"voice": req.Voice,
		"chars": len(req.Text),
	}).Debug("gemini synthesis request")

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(req.Text), config)
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	return inlineAudio(resp), nil
}

func inlineAudio(resp *genai.GenerateContentResponse) []byte {
	if resp == nil {
		return nil
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data
			}
		}
	}
	return nil
}

// classifyGeminiError maps a genai failure onto the error taxonomy. Errors
// that are not API errors (DNS, TLS, context) are returned unchanged.
func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	status := strings.ToUpper(apiErr.Status)
	msg := strings.TrimSpace(apiErr.Message)

	switch {
	case apiErr.Code == http.StatusTooManyRequests || strings.Contains(status, "RESOURCE_EXHAUSTED"):
		wait, _ := geminiRetryAfter(apiErr)
		return RateLimited("gemini", wait, err)
	case apiErr.Code >= 500 || strings.Contains(status, "INTERNAL") || strings.Contains(status, "UNAVAILABLE"):
		return NewError(KindTransient, "gemini", fmt.Sprintf("server error %d: %s", apiErr.Code, msg), err)
	default:
		return NewError(KindPermanent, "gemini", fmt.Sprintf("request rejected %d: %s", apiErr.Code, msg), err)
	}
}

func geminiRetryAfter(apiErr genai.APIError) (time.Duration, bool) {
	for _, detail := range apiErr.Details {
		if t, _ := detail["@type"].(string); t != retryInfoType {
			continue
		}
		if delay, ok := detail["retryDelay"].(string); ok {
			if d, ok := ParseRetryDelay(delay); ok {
				return d, true
			}
		}
	}
	return RetryAfterFromMessage(apiErr.Message)
}
