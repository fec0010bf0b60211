package tts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	texttospeechpb "google.golang.org/genproto/googleapis/cloud/texttospeech/v1"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"storynarrator/internal/story/audio"
)

type fakeSpeechClient struct {
	audio  []byte
	err    error
	voices []string
	last   *texttospeechpb.SynthesizeSpeechRequest
}

func (f *fakeSpeechClient) SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &texttospeechpb.SynthesizeSpeechResponse{AudioContent: f.audio}, nil
}

func (f *fakeSpeechClient) ListVoices(ctx context.Context, req *texttospeechpb.ListVoicesRequest, opts ...gax.CallOption) (*texttospeechpb.ListVoicesResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	resp := &texttospeechpb.ListVoicesResponse{}
	for _, v := range f.voices {
		resp.Voices = append(resp.Voices, &texttospeechpb.Voice{Name: v})
	}
	return resp, nil
}

func TestGoogleCloudSynthesizeStripsHeader(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0}
	wav, err := audio.Assemble([][]byte{pcm})
	require.NoError(t, err)

	client := &fakeSpeechClient{audio: wav}
	g := newGoogleCloudWithClient(client, "")
	seed := int32(5)

	got, err := g.Synthesize(context.Background(), Request{Text: "Hello.", Voice: "Charon", Seed: &seed})
	require.NoError(t, err)
	assert.Equal(t, pcm, got)

	assert.Equal(t, "en-US-Chirp3-HD-Charon", client.last.GetVoice().GetName())
	assert.Equal(t, texttospeechpb.AudioEncoding_LINEAR16, client.last.GetAudioConfig().GetAudioEncoding())
	assert.Equal(t, int32(SampleRate), client.last.GetAudioConfig().GetSampleRateHertz())
	assert.Equal(t, "Hello.", client.last.GetInput().GetText())
	assert.False(t, SupportsStylePrompts(g))
	assert.Equal(t, "googlecloud:en-US", g.Name())
}

func TestGoogleCloudRejectsWrongFormat(t *testing.T) {
	wav, err := audio.AssembleFormat([][]byte{make([]byte, 8)}, audio.Format{SampleRate: 16000, Channels: 1, BitDepth: 16})
	require.NoError(t, err)

	g := newGoogleCloudWithClient(&fakeSpeechClient{audio: wav}, "en-GB")
	_, err = g.Synthesize(context.Background(), Request{Text: "Hi", Voice: "Kore"})
	assert.True(t, IsKind(err, KindPermanent))
}

func TestGoogleCloudEmptyAudio(t *testing.T) {
	g := newGoogleCloudWithClient(&fakeSpeechClient{}, "en-US")
	got, err := g.Synthesize(context.Background(), Request{Text: "Hi", Voice: "Kore"})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCloudVoiceName(t *testing.T) {
	g := newGoogleCloudWithClient(&fakeSpeechClient{}, "en-GB")
	assert.Equal(t, "en-GB-Chirp3-HD-Puck", g.cloudVoiceName("Puck"))
	assert.Equal(t, "en-US-Neural2-A", g.cloudVoiceName("en-US-Neural2-A"))
	assert.Equal(t, "", g.cloudVoiceName(""))
}

func TestGoogleCloudVoices(t *testing.T) {
	g := newGoogleCloudWithClient(&fakeSpeechClient{voices: []string{"en-US-Chirp3-HD-Kore"}}, "en-US")
	voices, err := g.Voices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"en-US-Chirp3-HD-Kore"}, voices)
}

func TestClassifyCloudError(t *testing.T) {
	st, err := status.New(codes.ResourceExhausted, "quota").WithDetails(&errdetails.RetryInfo{
		RetryDelay: durationpb.New(45 * time.Second),
	})
	require.NoError(t, err)

	typed, ok := AsError(classifyCloudError(st.Err()))
	require.True(t, ok)
	assert.Equal(t, KindRateLimited, typed.Kind)
	assert.Equal(t, 45*time.Second, typed.RetryAfter)

	typed, ok = AsError(classifyCloudError(status.Error(codes.ResourceExhausted, "Retry-After: 20")))
	require.True(t, ok)
	assert.Equal(t, 20*time.Second, typed.RetryAfter)

	for _, c := range []codes.Code{codes.Unavailable, codes.Internal, codes.DeadlineExceeded, codes.Aborted} {
		assert.True(t, IsKind(classifyCloudError(status.Error(c, "x")), KindTransient), c.String())
	}
	for _, c := range []codes.Code{codes.InvalidArgument, codes.NotFound, codes.PermissionDenied, codes.Unauthenticated} {
		assert.True(t, IsKind(classifyCloudError(status.Error(c, "x")), KindPermanent), c.String())
	}

	cancelled := status.Error(codes.Canceled, "bye")
	assert.Same(t, cancelled, classifyCloudError(cancelled))

	plain := errors.New("boom")
	assert.Same(t, plain, classifyCloudError(plain))
}
