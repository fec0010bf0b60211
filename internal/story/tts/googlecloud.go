package tts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/texttospeech/apiv1"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	texttospeechpb "google.golang.org/genproto/googleapis/cloud/texttospeech/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"storynarrator/internal/story/audio"
)

// speechClient is the part of the Cloud Text-to-Speech client we call.
type speechClient interface {
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error)
	ListVoices(ctx context.Context, req *texttospeechpb.ListVoicesRequest, opts ...gax.CallOption) (*texttospeechpb.ListVoicesResponse, error)
}

// GoogleCloudSynthesizer speaks through Cloud Text-to-Speech. Gemini voice
// names are mapped onto the matching Chirp 3 HD voices.
type GoogleCloudSynthesizer struct {
	client       speechClient
	languageCode string
}

func newGoogleCloudSynthesizer(config Config) (*GoogleCloudSynthesizer, error) {
	client, err := texttospeech.NewClient(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS client: %w", err)
	}
	return newGoogleCloudWithClient(client, config.LanguageCode), nil
}

func newGoogleCloudWithClient(client speechClient, languageCode string) *GoogleCloudSynthesizer {
	if languageCode == "" {
		languageCode = "en-US"
	}
	return &GoogleCloudSynthesizer{client: client, languageCode: languageCode}
}

func (g *GoogleCloudSynthesizer) Name() string {
	return "googlecloud:" + g.languageCode
}

// Chirp voices often don't support SSML or style instructions; a prefix
// would be read out loud.
func (g *GoogleCloudSynthesizer) SupportsStylePrompts() bool {
	return false
}

// cloudVoiceName expands a bare voice name ("Charon") into a Cloud voice
// ("en-US-Chirp3-HD-Charon"). Fully qualified names pass through.
func (g *GoogleCloudSynthesizer) cloudVoiceName(voice string) string {
	if voice == "" || strings.Contains(voice, "-") {
		return voice
	}
	return fmt.Sprintf("%s-Chirp3-HD-%s", g.languageCode, voice)
}

// Synthesize ignores req.Seed; Cloud TTS output is already deterministic.
func (g *GoogleCloudSynthesizer) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, nil
	}

	resp, err := g.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: req.Text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: g.languageCode,
			Name:         g.cloudVoiceName(req.Voice),
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding:   texttospeechpb.AudioEncoding_LINEAR16,
			SampleRateHertz: SampleRate,
		},
	})
	if err != nil {
		return nil, classifyCloudError(err)
	}
	if len(resp.GetAudioContent()) == 0 {
		return nil, nil
	}

	// LINEAR16 responses carry a WAV header; strip it to get raw samples.
	pcm, format, err := audio.Decode(resp.GetAudioContent())
	if err != nil {
		return nil, NewError(KindPermanent, "googlecloud", "undecodable audio", err)
	}
	if format != audio.DefaultFormat {
		return nil, NewError(KindPermanent, "googlecloud", fmt.Sprintf("unexpected audio format %+v", format), nil)
	}
	return pcm, nil
}

func (g *GoogleCloudSynthesizer) Voices(ctx context.Context) ([]string, error) {
	resp, err := g.client.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{LanguageCode: g.languageCode})
	if err != nil {
		return nil, classifyCloudError(err)
	}
	voices := []string{}
	for _, v := range resp.Voices {
		voices = append(voices, v.Name)
	}
	return voices, nil
}

func classifyCloudError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.ResourceExhausted:
		wait, found := cloudRetryAfter(st)
		if !found {
			wait, _ = RetryAfterFromMessage(st.Message())
		}
		return RateLimited("googlecloud", wait, err)
	case codes.Unavailable, codes.Internal, codes.DeadlineExceeded, codes.Aborted:
		return NewError(KindTransient, "googlecloud", st.Message(), err)
	case codes.Canceled:
		return err
	default:
		return NewError(KindPermanent, "googlecloud", fmt.Sprintf("%s: %s", st.Code(), st.Message()), err)
	}
}

func cloudRetryAfter(st *status.Status) (d time.Duration, ok bool) {
	for _, detail := range st.Details() {
		if info, isInfo := detail.(*errdetails.RetryInfo); isInfo && info.GetRetryDelay() != nil {
			return info.GetRetryDelay().AsDuration(), true
		}
	}
	return 0, false
}
