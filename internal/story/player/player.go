// Package player plays assembled WAV narration through the system speaker.
package player

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
)

type Options struct {
	// Volume is a linear gain; 1 is unchanged, 0 or less is silent.
	Volume float64
	// Speed is a playback rate; 1 is unchanged, 0 means unset.
	Speed float64
}

// DefaultOptions plays at normal speed and volume.
func DefaultOptions() Options {
	return Options{Volume: 1, Speed: 1}
}

// Player owns the speaker. Only one narration plays at a time.
type Player struct {
	mu         sync.Mutex
	sampleRate beep.SampleRate
	ctrl       *beep.Ctrl
	isPlaying  bool
}

func New() *Player {
	return &Player{}
}

// Play blocks until the audio finishes or ctx is cancelled.
func (p *Player) Play(ctx context.Context, wavData []byte, opts Options) error {
	streamer, format, err := wav.Decode(bytes.NewReader(wavData))
	if err != nil {
		return fmt.Errorf("failed to decode WAV: %w", err)
	}

	p.Stop()

	p.mu.Lock()
	if p.sampleRate != format.SampleRate {
		if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
			p.mu.Unlock()
			streamer.Close()
			return fmt.Errorf("failed to init speaker: %w", err)
		}
		p.sampleRate = format.SampleRate
	}

	done := make(chan struct{})
	ctrl := &beep.Ctrl{Streamer: shape(streamer, opts), Paused: false}
	p.ctrl = ctrl
	p.isPlaying = true
	p.mu.Unlock()

	speaker.Play(beep.Seq(ctrl, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
	case <-ctx.Done():
		speaker.Clear()
	}

	p.mu.Lock()
	p.isPlaying = false
	p.ctrl = nil
	p.mu.Unlock()
	streamer.Close()

	return ctx.Err()
}

// shape applies speed and volume to s.
func shape(s beep.Streamer, opts Options) beep.Streamer {
	if opts.Speed > 0 && opts.Speed != 1 {
		s = beep.ResampleRatio(4, opts.Speed, s)
	}
	silent, level := volumeLevel(opts.Volume)
	if silent || level != 0 {
		s = &effects.Volume{Streamer: s, Base: 2, Volume: level, Silent: silent}
	}
	return s
}

// volumeLevel converts a linear gain into beep's base-2 exponent.
func volumeLevel(gain float64) (silent bool, level float64) {
	switch {
	case gain <= 0:
		return true, 0
	case gain == 1:
		return false, 0
	default:
		return false, math.Log2(gain)
	}
}

func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isPlaying {
		speaker.Clear()
		p.isPlaying = false
		p.ctrl = nil
	}
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctrl != nil {
		speaker.Lock()
		p.ctrl.Paused = true
		speaker.Unlock()
	}
}

func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctrl != nil {
		speaker.Lock()
		p.ctrl.Paused = false
		speaker.Unlock()
	}
}

func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isPlaying && (p.ctrl == nil || !p.ctrl.Paused)
}

// Length reports the duration of a WAV without playing it.
func Length(wavData []byte) (time.Duration, error) {
	streamer, format, err := wav.Decode(bytes.NewReader(wavData))
	if err != nil {
		return 0, fmt.Errorf("failed to decode WAV: %w", err)
	}
	defer streamer.Close()
	return format.SampleRate.D(streamer.Len()), nil
}
