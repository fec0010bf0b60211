// Package narrator wires scripts, casts, the speech backend and the batch
// scheduler into the commands of the CLI.
package narrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"storynarrator/internal/cli/scheme/colours"
	"storynarrator/internal/config"
	"storynarrator/internal/domain/history"
	"storynarrator/internal/domain/library"
	"storynarrator/internal/domain/script"
	"storynarrator/internal/domain/story"
	"storynarrator/internal/narration/abort"
	"storynarrator/internal/narration/batch"
	"storynarrator/internal/narration/speech"
	"storynarrator/internal/story/player"
	"storynarrator/internal/story/tts"
)

// historyKeep bounds the job history table.
const historyKeep = 500

type Mode string

const (
	ModeCombined Mode = "combined"
	ModeSeparate Mode = "separate"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeCombined:
		return ModeCombined, nil
	case ModeSeparate:
		return ModeSeparate, nil
	}
	return "", fmt.Errorf("unknown mode %q (want combined or separate)", s)
}

// audioPlayer is the part of player.Player the narrator drives.
type audioPlayer interface {
	Play(ctx context.Context, wav []byte, opts player.Options) error
	Stop()
	Pause()
	Resume()
	IsPlaying() bool
}

// Narrator main application structure
type Narrator struct {
	config   *config.Config
	synth    tts.Synthesizer
	library  *library.Library
	projects *library.ProjectStore
	history  *history.Store
	player   audioPlayer

	in    io.Reader
	out   io.Writer
	clock func() time.Time
	sleep speech.SleepFunc

	mu  sync.Mutex
	job *abort.Flag
}

func NewNarrator() *Narrator {
	return &Narrator{
		player: player.New(),
		in:     os.Stdin,
		out:    color.Output,
		clock:  time.Now,
		sleep:  speech.SleepContext,
	}
}

// Setup builds the speech backend and opens the stores. It runs once the
// command line has been parsed so flag overrides are visible in cfg.
func (n *Narrator) Setup(ctx context.Context, cfg *config.Config) error {
	synth, err := tts.NewSynthesizer(cfg.TTSConfig())
	if err != nil {
		return fmt.Errorf("failed to create tts engine: %w", err)
	}

	var hist *history.Store
	if cfg.Store.HistoryPath != "" {
		hist, err = history.Open(ctx, cfg.Store.HistoryPath)
		if err != nil {
			logrus.WithError(err).Warn("job history unavailable")
			hist = nil
		}
	}

	return n.attach(cfg, synth, hist)
}

func (n *Narrator) attach(cfg *config.Config, synth tts.Synthesizer, hist *history.Store) error {
	n.config = cfg
	n.synth = synth
	n.history = hist
	n.projects = library.NewProjectStore(cfg.Store.ProjectPath)

	project, err := n.projects.Load()
	if err != nil {
		logrus.WithError(err).Warn("ignoring unreadable project file")
		project = &library.Project{Cast: story.NewCast()}
	}
	n.library = library.New(project.CustomVoices)

	logrus.WithFields(logrus.Fields{
		"engine":  synth.Name(),
		"project": n.projects.Path(),
	}).Debug("narrator ready")
	return nil
}

func (n *Narrator) Close() error {
	n.player.Stop()
	return n.history.Close()
}

// Abort stops the running job after its current batch. It reports whether
// a job was running.
func (n *Narrator) Abort() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.job == nil {
		return false
	}
	n.job.Abort()
	n.player.Stop()
	return true
}

func (n *Narrator) startJob() *abort.Flag {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.job = abort.New()
	return n.job
}

func (n *Narrator) endJob() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.job = nil
}

// Script is a parsed script file and the cast it would be narrated with.
type Script struct {
	Path  string
	Text  string
	Lines []story.DialogueLine
	Cast  *story.Cast
}

// LoadScript parses the script at path. Speakers already configured in the
// project keep their settings; new speakers get default voices.
func (n *Narrator) LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return n.parseScript(path, string(data))
}

func (n *Narrator) parseScript(path, text string) (*Script, error) {
	lines := script.Parse(text)
	if len(lines) == 0 {
		return nil, fmt.Errorf("script %s has no dialogue lines", path)
	}

	project, err := n.projects.Load()
	if err != nil {
		return nil, err
	}
	cast := script.MergeCast(project.Cast, lines, library.BuiltinIDs(), n.config.Voice.DefaultSeed)

	return &Script{Path: path, Text: text, Lines: lines, Cast: cast}, nil
}

// ResolveCast turns voice library ids into the voices the backend speaks
// and fills in each speaker's prompt prefix.
func (n *Narrator) ResolveCast(cast *story.Cast) (*story.Cast, error) {
	resolved := story.NewCast()
	for _, name := range cast.Names() {
		cfg, _ := cast.Get(name)
		cfg = cfg.Clone()

		voice, err := n.library.Resolve(cfg.Voice)
		if err != nil {
			return nil, fmt.Errorf("speaker %s: %w", name, err)
		}
		if v, ok := n.library.Find(cfg.Voice); ok && cfg.ToneDescription == "" {
			cfg.ToneDescription = v.ToneDescription
		}
		cfg.Voice = voice
		cfg.PromptPrefix = cfg.EffectivePrefix()

		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("speaker %s: %w", name, err)
		}
		resolved.Set(name, cfg)
	}
	return resolved, nil
}

// GenerateRequest describes one generate run.
type GenerateRequest struct {
	Script *Script
	Mode   Mode
	OutDir string
	// MaxChars overrides the configured batch budget of the chosen mode.
	MaxChars int
	// Delay overrides the configured inter-batch delay when set.
	Delay   *time.Duration
	NoCache bool
}

// GenerateResult lists the files a run wrote.
type GenerateResult struct {
	Files    []string
	Batches  int
	Duration time.Duration
	Aborted  bool
}

// Generate synthesizes the script and writes the WAV output. An aborted
// run still writes whatever audio was finished.
func (n *Narrator) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if req.Mode == "" {
		req.Mode = ModeCombined
	}
	cast, err := n.ResolveCast(req.Script.Cast)
	if err != nil {
		return nil, err
	}

	flag := n.startJob()
	defer n.endJob()

	started := n.clock()
	job := history.Job{
		Mode:      string(req.Mode),
		Speakers:  cast.Len(),
		Chars:     batch.TotalChars(req.Script.Lines),
		StartedAt: started,
	}

	scheduler := batch.NewScheduler(n.caller(req.NoCache), n.batchOptions(req))
	result, err := n.runScheduler(ctx, scheduler, req, cast, flag, started)
	if err != nil {
		job.Status = history.StatusFailed
		job.Error = err.Error()
		n.record(ctx, job)
		return nil, err
	}

	job.Batches = result.Batches
	job.Status = history.StatusCompleted
	if result.Aborted {
		job.Status = history.StatusAborted
	}
	if len(result.Files) > 0 {
		job.Output = result.Files[0]
	}
	n.record(ctx, job)
	return result, nil
}

func (n *Narrator) runScheduler(ctx context.Context, s *batch.Scheduler, req GenerateRequest, cast *story.Cast, flag *abort.Flag, started time.Time) (*GenerateResult, error) {
	outDir := req.OutDir
	if outDir == "" {
		outDir = n.config.Output.Dir
	}
	stamp := started.Unix()

	if req.Mode == ModeSeparate {
		res, err := s.PerSpeaker(ctx, req.Script.Lines, cast, flag, n.status)
		if err != nil {
			return nil, err
		}
		out := &GenerateResult{Batches: res.Batches, Aborted: res.Aborted}
		for _, name := range res.Order {
			file := filepath.Join(outDir, fmt.Sprintf("%s_%d.wav", fileSafe(name), stamp))
			if err := writeFile(file, res.Tracks[name]); err != nil {
				return nil, err
			}
			if d, err := player.Length(res.Tracks[name]); err == nil {
				out.Duration += d
			}
			out.Files = append(out.Files, file)
		}
		return out, nil
	}

	res, err := s.Interleaved(ctx, req.Script.Lines, cast, flag, n.status)
	if err != nil {
		return nil, err
	}
	out := &GenerateResult{Batches: res.Batches, Duration: res.Duration, Aborted: res.Aborted}
	if res.Audio != nil {
		file := filepath.Join(outDir, fmt.Sprintf("narration_%d.wav", stamp))
		if err := writeFile(file, res.Audio); err != nil {
			return nil, err
		}
		out.Files = append(out.Files, file)
	}
	return out, nil
}

// PreviewRequest picks what to preview: a script line, all of a speaker's
// lines, or free text spoken by a speaker.
type PreviewRequest struct {
	Script  *Script
	Line    int // 1-based, 0 when unset
	Speaker string
	Text    string
	NoCache bool
}

// PreviewResult carries the preview audio and how to play it.
type PreviewResult struct {
	Audio   []byte
	Speaker string
	// Volume is the speaker's playback gain.
	Volume  float64
	Batches int
	Aborted bool
}

// previewFallbackText is spoken for a speaker that has no lines yet.
const previewFallbackText = "This is a preview of my voice profile. Please add script text to hear a full performance."

// Preview runs the picked lines through the batch scheduler with only the
// previewed speaker in the cast. An aborted preview is a partial result,
// not an error.
func (n *Narrator) Preview(ctx context.Context, req PreviewRequest) (*PreviewResult, error) {
	speaker, lines, err := previewLines(req)
	if err != nil {
		return nil, err
	}

	cast, err := n.ResolveCast(req.Script.Cast)
	if err != nil {
		return nil, err
	}
	cfg, ok := cast.Get(speaker)
	if !ok {
		return nil, fmt.Errorf("speaker %q is not in the cast", speaker)
	}
	solo := story.NewCast()
	solo.Set(speaker, cfg)

	flag := n.startJob()
	defer n.endJob()

	started := n.clock()
	job := history.Job{Mode: "preview", Speakers: 1, Chars: batch.TotalChars(lines), StartedAt: started}

	scheduler := batch.NewScheduler(n.caller(req.NoCache), n.batchOptions(GenerateRequest{}))
	res, err := scheduler.Interleaved(ctx, lines, solo, flag, n.status)
	if err != nil {
		job.Status = history.StatusFailed
		job.Error = err.Error()
		n.record(ctx, job)
		return nil, err
	}

	job.Batches = res.Batches
	job.Status = history.StatusCompleted
	if res.Aborted {
		job.Status = history.StatusAborted
	}
	n.record(ctx, job)

	if res.Audio == nil && !res.Aborted {
		return nil, errors.New("preview produced no audio")
	}
	return &PreviewResult{
		Audio:   res.Audio,
		Speaker: speaker,
		Volume:  cfg.Volume,
		Batches: res.Batches,
		Aborted: res.Aborted,
	}, nil
}

// previewLines returns the speaker being previewed and the lines to speak.
func previewLines(req PreviewRequest) (string, []story.DialogueLine, error) {
	lines := req.Script.Lines
	switch {
	case req.Line > 0:
		if req.Line > len(lines) {
			return "", nil, fmt.Errorf("line %d out of range (script has %d lines)", req.Line, len(lines))
		}
		line := lines[req.Line-1]
		if req.Text != "" {
			line.Text = req.Text
		}
		return line.Speaker, []story.DialogueLine{line}, nil
	case req.Speaker != "":
		if req.Text != "" {
			return req.Speaker, []story.DialogueLine{{ID: "preview-" + req.Speaker, Speaker: req.Speaker, Text: req.Text}}, nil
		}
		speakerLines := story.LinesFor(lines, req.Speaker)
		if len(speakerLines) == 0 {
			return req.Speaker, []story.DialogueLine{{ID: "preview-" + req.Speaker, Speaker: req.Speaker, Text: previewFallbackText}}, nil
		}
		return req.Speaker, speakerLines, nil
	case len(lines) == 0:
		return "", nil, errors.New("script has no lines")
	case req.Text != "":
		return lines[0].Speaker, []story.DialogueLine{{ID: "preview", Speaker: lines[0].Speaker, Text: req.Text}}, nil
	default:
		return lines[0].Speaker, lines[:1], nil
	}
}

// SaveProject stores the script and its cast as the current project.
func (n *Narrator) SaveProject(s *Script) error {
	return n.projects.Save(&library.Project{
		Script:       s.Text,
		Cast:         s.Cast,
		CustomVoices: n.library.Custom(),
	})
}

// ResetProject forgets the saved script and cast. Custom voices are kept.
func (n *Narrator) ResetProject() error {
	if err := n.projects.Clear(); err != nil {
		return err
	}
	if len(n.library.Custom()) == 0 {
		return nil
	}
	return n.projects.Save(&library.Project{Cast: story.NewCast(), CustomVoices: n.library.Custom()})
}

func (n *Narrator) caller(noCache bool) *speech.Caller {
	synth := n.synth
	if noCache {
		if c, ok := synth.(*tts.CachingSynthesizer); ok {
			synth = c.Unwrap()
		}
	}
	opts := n.config.SpeechOptions()
	opts.Sleep = n.sleep
	return speech.NewCaller(synth, opts)
}

func (n *Narrator) batchOptions(req GenerateRequest) batch.Options {
	opts := n.config.BatchOptions()
	opts.Sleep = n.sleep
	opts.UsePrefixes = tts.SupportsStylePrompts(n.synth)
	if req.MaxChars > 0 {
		opts.MaxChars = req.MaxChars
		opts.MaxCharsPerSpeaker = req.MaxChars
	}
	if req.Delay != nil && *req.Delay >= 0 {
		opts.InterBatchDelay = *req.Delay
	}
	return opts
}

func (n *Narrator) status(msg string) {
	colours.Progress.Fprintln(n.out, msg)
}

func (n *Narrator) record(ctx context.Context, job history.Job) {
	job.FinishedAt = n.clock()
	if _, err := n.history.Record(ctx, job); err != nil {
		logrus.WithError(err).Warn("failed to record job history")
		return
	}
	if err := n.history.Prune(ctx, historyKeep); err != nil {
		logrus.WithError(err).Debug("failed to prune job history")
	}
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func fileSafe(name string) string {
	s := unsafeFileChars.ReplaceAllString(name, "_")
	if s == "" || s == "_" {
		return "speaker"
	}
	return s
}
