package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"storynarrator/internal/domain/story"
	"storynarrator/internal/narration/abort"
	"storynarrator/internal/narration/speech"
	"storynarrator/internal/story/audio"
	"storynarrator/internal/story/tts"
)

const (
	DefaultMaxChars           = 2500
	DefaultMaxCharsPerSpeaker = 4500
	DefaultInterBatchDelay    = 500 * time.Millisecond
)

// Progress is reported before each batch is dispatched.
type Progress struct {
	Speaker string
	Batch   int // 1-based
	Batches int
	Percent int
}

type ProgressFunc func(Progress)

// Dispatcher is the speech call wrapper as the scheduler sees it.
type Dispatcher interface {
	Synthesize(ctx context.Context, call speech.Call, aborted abort.Checker, onStatus speech.StatusFunc) ([]byte, error)
}

type Options struct {
	// MaxChars is the interleaved batch budget.
	MaxChars int
	// MaxCharsPerSpeaker is the per-speaker batch budget.
	MaxCharsPerSpeaker int
	// InterBatchDelay paces consecutive successful batches.
	InterBatchDelay time.Duration
	// UsePrefixes sends each speaker's prompt prefix. Disable for backends
	// that would read the instruction aloud.
	UsePrefixes bool
	Sleep       speech.SleepFunc
	OnProgress  ProgressFunc
}

func DefaultOptions() Options {
	return Options{
		MaxChars:           DefaultMaxChars,
		MaxCharsPerSpeaker: DefaultMaxCharsPerSpeaker,
		InterBatchDelay:    DefaultInterBatchDelay,
		UsePrefixes:        true,
		Sleep:              speech.SleepContext,
	}
}

// Result of an interleaved job.
type Result struct {
	// Audio is the assembled WAV, nil when nothing was produced.
	Audio []byte
	// Batches counts batches that returned audio.
	Batches  int
	Chunks   int
	Duration time.Duration
	// Aborted is set when the job stopped early; Audio then holds what was
	// finished before the stop.
	Aborted bool
}

// SpeakerResult of a per-speaker job.
type SpeakerResult struct {
	// Tracks maps speaker to WAV. Speakers without audio are absent.
	Tracks map[string][]byte
	// Order lists the speakers of Tracks in cast order.
	Order   []string
	Batches int
	Aborted bool
}

// Scheduler runs batches sequentially through a Dispatcher. Synthesis calls
// are never issued in parallel.
type Scheduler struct {
	caller Dispatcher
	opts   Options
}

func NewScheduler(caller Dispatcher, opts Options) *Scheduler {
	if opts.MaxChars < 1 {
		opts.MaxChars = DefaultMaxChars
	}
	if opts.MaxCharsPerSpeaker < 1 {
		opts.MaxCharsPerSpeaker = DefaultMaxCharsPerSpeaker
	}
	if opts.InterBatchDelay < 0 {
		opts.InterBatchDelay = 0
	}
	if opts.Sleep == nil {
		opts.Sleep = speech.SleepContext
	}
	return &Scheduler{caller: caller, opts: opts}
}

// Interleaved synthesizes lines in script order into a single track.
// An abort yields a partial result and no error.
func (s *Scheduler) Interleaved(ctx context.Context, lines []story.DialogueLine, cast *story.Cast, aborted abort.Checker, onStatus speech.StatusFunc) (*Result, error) {
	cast = cast.Snapshot()
	batches := Plan(lines, s.opts.MaxChars)
	j := newJob(TotalChars(lines), len(batches))

	logrus.WithFields(logrus.Fields{
		"mode":    "interleaved",
		"lines":   len(lines),
		"batches": len(batches),
		"chars":   j.totalChars,
	}).Info("starting generation")

	stopped, err := s.run(ctx, j, batches, cast, aborted, onStatus)
	if err != nil {
		return nil, err
	}

	result := &Result{Batches: j.produced, Chunks: len(j.chunks), Aborted: stopped}
	if pcm := j.pcmBytes(); pcm > 0 {
		result.Audio, err = audio.Assemble(j.chunks)
		if err != nil {
			return nil, fmt.Errorf("assemble audio: %w", err)
		}
		result.Duration = audio.DefaultFormat.Duration(pcm)
	}

	logrus.WithFields(logrus.Fields{
		"batches": result.Batches,
		"aborted": result.Aborted,
	}).Info("generation finished")
	return result, nil
}

// PerSpeaker synthesizes one track per speaker, in cast order. Speakers
// with no lines are skipped.
func (s *Scheduler) PerSpeaker(ctx context.Context, lines []story.DialogueLine, cast *story.Cast, aborted abort.Checker, onStatus speech.StatusFunc) (*SpeakerResult, error) {
	cast = cast.Snapshot()
	result := &SpeakerResult{Tracks: map[string][]byte{}}

	plans := map[string][]Batch{}
	total := 0
	for _, name := range cast.Names() {
		plans[name] = PlanPerSpeaker(lines, name, s.opts.MaxCharsPerSpeaker)
		total += len(plans[name])
	}

	logrus.WithFields(logrus.Fields{
		"mode":     "separate",
		"lines":    len(lines),
		"speakers": cast.Len(),
		"batches":  total,
	}).Info("starting generation")

	// One progress denominator for the whole job; chunks are per speaker.
	j := newJob(TotalChars(lines), total)
	for _, name := range cast.Names() {
		if len(plans[name]) == 0 {
			logrus.WithField("speaker", name).Debug("speaker has no lines, skipping")
			continue
		}
		if abort.Check(aborted) {
			result.Aborted = true
			break
		}

		j.resetChunks()
		stopped, err := s.run(ctx, j, plans[name], cast, aborted, onStatus)
		if err != nil {
			return nil, err
		}

		if j.pcmBytes() > 0 {
			track, err := audio.Assemble(j.chunks)
			if err != nil {
				return nil, fmt.Errorf("assemble audio for %s: %w", name, err)
			}
			result.Tracks[name] = track
			result.Order = append(result.Order, name)
		}
		if stopped {
			result.Aborted = true
			break
		}
	}
	result.Batches = j.produced

	logrus.WithFields(logrus.Fields{
		"tracks":  len(result.Tracks),
		"aborted": result.Aborted,
	}).Info("generation finished")
	return result, nil
}

// run dispatches batches in order. It reports whether the job was aborted;
// any other failure is returned as an error.
func (s *Scheduler) run(ctx context.Context, j *job, batches []Batch, cast *story.Cast, aborted abort.Checker, onStatus speech.StatusFunc) (bool, error) {
	warned := map[string]bool{}

	for i, b := range batches {
		if abort.Check(aborted) {
			return true, nil
		}

		cfg, ok := cast.Get(b.Speaker)
		if !ok {
			if !warned[b.Speaker] {
				logrus.WithField("speaker", b.Speaker).Warn("no configuration for speaker, skipping lines")
				warned[b.Speaker] = true
			}
			j.advance(b.Chars())
			continue
		}

		slot := j.nextSlot()
		percent := j.percent()
		label := fmt.Sprintf("(batch %d/%d, %d%%)", slot+1, j.totalBatches, percent)
		if s.opts.OnProgress != nil {
			s.opts.OnProgress(Progress{Speaker: b.Speaker, Batch: slot + 1, Batches: j.totalBatches, Percent: percent})
		}
		if onStatus != nil {
			onStatus(fmt.Sprintf("Generating %s %s", b.Speaker, label))
		}

		text := b.Text
		if s.opts.UsePrefixes {
			text = story.WithPrefix(cfg.PromptPrefix, b.Text)
		}
		logrus.WithFields(logrus.Fields{
			"speaker": b.Speaker,
			"slot":    slot,
			"chars":   len(text),
		}).Debug("dispatching batch")

		data, err := s.caller.Synthesize(ctx, speech.Call{
			Text:  text,
			Voice: cfg.Voice,
			Seed:  cfg.SeedPtr(),
			Label: label,
		}, aborted, onStatus)
		if err != nil {
			if errors.Is(err, tts.ErrAborted) {
				return true, nil
			}
			return false, err
		}

		if err := j.append(slot, data); err != nil {
			return false, err
		}
		j.advance(b.Chars())

		if i < len(batches)-1 && s.opts.InterBatchDelay > 0 {
			if err := s.opts.Sleep(ctx, s.opts.InterBatchDelay); err != nil {
				return false, err
			}
		}
	}
	return false, nil
}
