package narrator

import (
	"bufio"
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"storynarrator/internal/cli/scheme/colours"
	"storynarrator/internal/domain/story"
	"storynarrator/internal/narration/abort"
	"storynarrator/internal/narration/batch"
	"storynarrator/internal/story/player"
	"storynarrator/internal/story/tts"
)

func (n *Narrator) ShowWelcome() {
	fmt.Fprintln(n.out)
	colours.Title.Fprintln(n.out, "🎙️  Welcome to StoryNarrator! 🎙️")
	fmt.Fprintln(n.out)
	colours.Info.Fprintln(n.out, "📚 Available commands:")
	fmt.Fprintln(n.out, "  • storynarrator generate <script>  - Narrate a script to WAV")
	fmt.Fprintln(n.out, "  • storynarrator preview <script>   - Hear one line before generating")
	fmt.Fprintln(n.out, "  • storynarrator speakers <script>  - Show the cast of a script")
	fmt.Fprintln(n.out, "  • storynarrator save <script>      - Store the script and cast settings")
	fmt.Fprintln(n.out, "  • storynarrator play <file.wav>    - Play a narration")
	fmt.Fprintln(n.out, "  • storynarrator voices             - List and manage voices")
	fmt.Fprintln(n.out, "  • storynarrator history            - Recent generation jobs")
	fmt.Fprintln(n.out, "  • storynarrator cache status|clear - Inspect the audio cache")
	fmt.Fprintln(n.out, "  • storynarrator settings           - Show the active settings")
	fmt.Fprintln(n.out)
}

func (n *Narrator) GenerateStory(cmd *cobra.Command, args []string) error {
	s, err := n.LoadScript(args[0])
	if err != nil {
		return err
	}

	modeFlag, _ := cmd.Flags().GetString("mode")
	mode, err := ParseMode(modeFlag)
	if err != nil {
		return err
	}
	outDir, _ := cmd.Flags().GetString("out")
	maxChars, _ := cmd.Flags().GetInt("max-chars")
	noCache, _ := cmd.Flags().GetBool("no-cache")

	req := GenerateRequest{Script: s, Mode: mode, OutDir: outDir, MaxChars: maxChars, NoCache: noCache}
	if cmd.Flags().Changed("delay") {
		delay, _ := cmd.Flags().GetDuration("delay")
		req.Delay = &delay
	}

	fmt.Fprintln(n.out)
	colours.Title.Fprintf(n.out, "📖 Narrating %s (%d lines, %d speakers, %s mode)\n",
		s.Path, len(s.Lines), s.Cast.Len(), mode)
	colours.Info.Fprintln(n.out, "💡 Press Ctrl+C to stop and keep what is finished")
	fmt.Fprintln(n.out)

	result, err := n.Generate(cmd.Context(), req)
	if err != nil {
		if tts.IsKind(err, tts.KindDailyQuota) {
			if e, ok := tts.AsError(err); ok {
				colours.Error.Fprintf(n.out, "❌ Daily quota reached. Try again in about %.1f hours.\n", e.Hours())
			}
			colours.Info.Fprintln(n.out, "💡 Finished batches are cached; re-run the same command to resume.")
		}
		return err
	}

	fmt.Fprintln(n.out)
	if result.Aborted {
		colours.Warning.Fprintln(n.out, "⏹️  Generation stopped. Keeping the audio finished so far.")
	}
	if len(result.Files) == 0 {
		colours.Warning.Fprintln(n.out, "🔇 No audio was produced.")
		return nil
	}
	for _, f := range result.Files {
		colours.Success.Fprintf(n.out, "✅ Wrote %s\n", f)
	}
	colours.Info.Fprintf(n.out, "⏱️  %s of audio from %d batches\n", result.Duration.Round(time.Second/10), result.Batches)
	return nil
}

func (n *Narrator) PreviewLine(cmd *cobra.Command, args []string) error {
	s, err := n.LoadScript(args[0])
	if err != nil {
		return err
	}

	line, _ := cmd.Flags().GetInt("line")
	speaker, _ := cmd.Flags().GetString("speaker")
	text, _ := cmd.Flags().GetString("text")
	out, _ := cmd.Flags().GetString("out")
	noCache, _ := cmd.Flags().GetBool("no-cache")

	res, err := n.Preview(cmd.Context(), PreviewRequest{
		Script:  s,
		Line:    line,
		Speaker: speaker,
		Text:    text,
		NoCache: noCache,
	})
	if err != nil {
		return err
	}
	if res.Aborted {
		colours.Warning.Fprintln(n.out, "⏹️  Preview stopped")
		if res.Audio == nil {
			return nil
		}
	}

	if out != "" {
		if err := writeFile(out, res.Audio); err != nil {
			return err
		}
		colours.Success.Fprintf(n.out, "✅ Wrote %s\n", out)
		return nil
	}
	if res.Aborted {
		return nil
	}
	colours.Success.Fprintf(n.out, "🎵 Playing preview of %s...\n", res.Speaker)
	opts := player.DefaultOptions()
	opts.Volume = res.Volume
	return n.play(cmd.Context(), res.Audio, opts)
}

func (n *Narrator) PlayFile(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read audio: %w", err)
	}
	speed, _ := cmd.Flags().GetFloat64("speed")
	volume, _ := cmd.Flags().GetFloat64("volume")

	length, err := player.Length(data)
	if err != nil {
		return err
	}
	colours.Success.Fprintf(n.out, "🎵 Playing %s (%s)\n", args[0], length.Round(time.Second))
	colours.Info.Fprintln(n.out, "💡 Press Ctrl+C to stop")
	return n.play(cmd.Context(), data, player.Options{Speed: speed, Volume: volume})
}

func (n *Narrator) play(ctx context.Context, wav []byte, opts player.Options) error {
	flag := n.startJob()
	defer n.endJob()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go n.watchAbort(ctx, flag, cancel)
	if n.in != nil {
		go n.waitForUserInput(ctx, flag)
	}

	err := n.player.Play(ctx, wav, opts)
	if flag.Aborted() {
		colours.Warning.Fprintln(n.out, "⏹️  Stopped")
		return nil
	}
	return err
}

func (n *Narrator) watchAbort(ctx context.Context, flag *abort.Flag, cancel context.CancelFunc) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if flag.Aborted() {
				cancel()
				return
			}
		}
	}
}

// waitForUserInput handles pause/resume and stop while audio plays.
func (n *Narrator) waitForUserInput(ctx context.Context, flag *abort.Flag) {
	colours.Info.Fprintln(n.out, "⏸️  Type 'p' + Enter to pause/resume, 's' + Enter to stop")
	reader := bufio.NewReader(n.in)
	for {
		input, err := reader.ReadString('\n')
		if ctx.Err() != nil {
			return
		}
		switch strings.TrimSpace(strings.ToLower(input)) {
		case "p", "pause":
			if n.player.IsPlaying() {
				n.player.Pause()
				colours.Warning.Fprintln(n.out, "⏸️  Paused")
			} else {
				n.player.Resume()
				colours.Success.Fprintln(n.out, "▶️  Resumed")
			}
		case "s", "stop":
			flag.Abort()
			return
		case "":
		default:
			colours.Info.Fprintln(n.out, "ℹ️  Use 'p' for pause/resume, 's' to stop")
		}
		if err != nil {
			return
		}
	}
}

func (n *Narrator) ListVoices(cmd *cobra.Command, args []string) error {
	fmt.Fprintln(n.out)
	colours.Title.Fprintln(n.out, "🎤 Voices 🎤")
	fmt.Fprintln(n.out)

	w := tabwriter.NewWriter(n.out, 0, 4, 2, ' ', 0)
	for _, v := range n.library.Voices() {
		kind := "built-in"
		if v.IsCustom {
			kind = "custom → " + v.BaseVoiceID
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", v.ID, v.Name, kind, v.ToneDescription)
	}
	w.Flush()

	if lister, ok := n.synth.(tts.VoiceLister); ok {
		if remote, _ := cmd.Flags().GetBool("remote"); remote {
			names, err := lister.Voices(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list engine voices: %w", err)
			}
			fmt.Fprintln(n.out)
			colours.Info.Fprintf(n.out, "🔊 %s offers %d voices:\n", n.synth.Name(), len(names))
			for _, name := range names {
				fmt.Fprintf(n.out, "  • %s\n", name)
			}
		}
	}
	return nil
}

func (n *Narrator) AddVoice(cmd *cobra.Command, args []string) error {
	base, _ := cmd.Flags().GetString("base")
	tone, _ := cmd.Flags().GetString("tone")

	v, err := n.library.AddCustom(args[0], base, tone)
	if err != nil {
		return err
	}
	if err := n.saveLibrary(); err != nil {
		return err
	}
	colours.Success.Fprintf(n.out, "✅ Added %s (%s), speaking as %s\n", v.Name, v.ID, v.BaseVoiceID)
	return nil
}

func (n *Narrator) RemoveVoice(cmd *cobra.Command, args []string) error {
	if !n.library.RemoveCustom(args[0]) {
		return fmt.Errorf("no custom voice %q", args[0])
	}
	if err := n.saveLibrary(); err != nil {
		return err
	}
	colours.Success.Fprintf(n.out, "🗑️  Removed %s\n", args[0])
	return nil
}

// saveLibrary persists custom voices without touching the saved script.
func (n *Narrator) saveLibrary() error {
	project, err := n.projects.Load()
	if err != nil {
		return err
	}
	project.CustomVoices = n.library.Custom()
	return n.projects.Save(project)
}

func (n *Narrator) ShowSpeakers(cmd *cobra.Command, args []string) error {
	s, err := n.LoadScript(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintln(n.out)
	colours.Title.Fprintf(n.out, "🎭 Cast of %s 🎭\n", s.Path)
	fmt.Fprintln(n.out)

	w := tabwriter.NewWriter(n.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  SPEAKER\tLINES\tCHARS\tVOICE\tSEED\tPREFIX")
	for _, name := range s.Cast.Names() {
		cfg, _ := s.Cast.Get(name)
		lines := story.LinesFor(s.Lines, name)
		seed, _ := cfg.Seed()
		fmt.Fprintf(w, "  %s\t%d\t%d\t%s\t%d\t%s\n",
			colours.Speaker.Sprint(name), len(lines), batch.TotalChars(lines), cfg.Voice, seed, cfg.EffectivePrefix())
	}
	w.Flush()

	fmt.Fprintln(n.out)
	colours.Info.Fprintf(n.out, "📦 %d combined batches, %d separate-mode batches\n",
		len(batch.Plan(s.Lines, n.config.BatchOptions().MaxChars)), n.perSpeakerBatches(s))
	return nil
}

func (n *Narrator) perSpeakerBatches(s *Script) int {
	budget := n.config.BatchOptions().MaxCharsPerSpeaker
	total := 0
	for _, name := range s.Cast.Names() {
		total += len(batch.PlanPerSpeaker(s.Lines, name, budget))
	}
	return total
}

func (n *Narrator) SaveScript(cmd *cobra.Command, args []string) error {
	if reset, _ := cmd.Flags().GetBool("reset"); reset {
		if err := n.ResetProject(); err != nil {
			return err
		}
	}

	s, err := n.LoadScript(args[0])
	if err != nil {
		return err
	}

	var edits []CastEdit
	for _, field := range []string{FieldVoice, FieldSpeed, FieldEmotion, FieldPrefix, FieldSeed, FieldVolume} {
		pairs, _ := cmd.Flags().GetStringArray(field)
		e, err := ParseCastEdits(field, pairs)
		if err != nil {
			return err
		}
		edits = append(edits, e...)
	}
	if err := n.ApplyCastEdits(s.Cast, edits); err != nil {
		return err
	}

	if cmd.Flags().Changed("randomize-seeds") {
		names, _ := cmd.Flags().GetStringSlice("randomize-seeds")
		r := rand.New(rand.NewSource(n.clock().UnixNano()))
		if err := RandomizeSeeds(s.Cast, names, r); err != nil {
			return err
		}
	}

	if err := n.SaveProject(s); err != nil {
		return err
	}
	colours.Success.Fprintf(n.out, "💾 Saved %s with %d speakers to %s\n", s.Path, s.Cast.Len(), n.projects.Path())
	return nil
}

func (n *Narrator) ShowHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	jobs, err := n.history.List(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	fmt.Fprintln(n.out)
	colours.Title.Fprintln(n.out, "🕰️  Recent jobs 🕰️")
	fmt.Fprintln(n.out)
	if len(jobs) == 0 {
		colours.Warning.Fprintln(n.out, "🔍 No jobs recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(n.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  STARTED\tMODE\tSTATUS\tBATCHES\tCHARS\tTOOK\tOUTPUT")
	for _, j := range jobs {
		detail := j.Output
		if j.Error != "" {
			detail = j.Error
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			j.StartedAt.Local().Format("2006-01-02 15:04"), j.Mode, j.Status,
			j.Batches, j.Chars, j.Duration().Round(time.Second), detail)
	}
	return w.Flush()
}

func (n *Narrator) cache() (*tts.CachingSynthesizer, error) {
	c, ok := n.synth.(*tts.CachingSynthesizer)
	if !ok {
		return nil, fmt.Errorf("audio cache is disabled (tts.cache_enabled)")
	}
	return c, nil
}

func (n *Narrator) ShowCacheStatus(cmd *cobra.Command, args []string) error {
	c, err := n.cache()
	if err != nil {
		return err
	}
	stats, err := c.Stats()
	if err != nil {
		return err
	}

	fmt.Fprintln(n.out)
	colours.Title.Fprintln(n.out, "🗄️  Audio cache 🗄️")
	fmt.Fprintf(n.out, "  • Directory: %s\n", stats.Directory)
	fmt.Fprintf(n.out, "  • Cached batches: %d\n", stats.CachedFiles)
	fmt.Fprintf(n.out, "  • Size: %.2f MB\n", stats.TotalSizeMB())
	for engine, count := range stats.Engines {
		fmt.Fprintf(n.out, "    - %s: %d\n", engine, count)
	}
	return nil
}

func (n *Narrator) ClearCache(cmd *cobra.Command, args []string) error {
	c, err := n.cache()
	if err != nil {
		return err
	}
	if all, _ := cmd.Flags().GetBool("all"); all {
		err = c.Clear()
	} else {
		err = c.ClearEngine()
	}
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	colours.Success.Fprintln(n.out, "🧹 Cache cleared")
	return nil
}

func (n *Narrator) ShowSettings(cmd *cobra.Command, args []string) error {
	c := n.config

	fmt.Fprintln(n.out)
	colours.Title.Fprintln(n.out, "⚙️ Settings ⚙️")
	fmt.Fprintln(n.out)

	colours.Prompt.Fprintln(n.out, "🎤 Speech engine:")
	fmt.Fprintf(n.out, "  • Active: %s\n", n.synth.Name())
	engines := make([]string, 0, 3)
	for _, e := range tts.AvailableEngines(c.TTSConfig()) {
		engines = append(engines, e.String())
	}
	fmt.Fprintf(n.out, "  • Available: %s\n", strings.Join(engines, ", "))
	fmt.Fprintf(n.out, "  • Model: %s\n", c.TTS.Model)
	fmt.Fprintf(n.out, "  • Style prompts: %t\n", tts.SupportsStylePrompts(n.synth))
	fmt.Fprintf(n.out, "  • Cache: %t (%s)\n", c.TTS.CacheEnabled, c.TTS.CachePath)
	fmt.Fprintln(n.out)

	colours.Prompt.Fprintln(n.out, "📦 Batching:")
	fmt.Fprintf(n.out, "  • Combined budget: %d chars\n", c.Batch.MaxChars)
	fmt.Fprintf(n.out, "  • Separate budget: %d chars\n", c.Batch.MaxCharsPerSpeaker)
	fmt.Fprintf(n.out, "  • Delay between batches: %s\n", c.Batch.InterBatchDelay)
	fmt.Fprintln(n.out)

	colours.Prompt.Fprintln(n.out, "🔁 Retries:")
	fmt.Fprintf(n.out, "  • Attempts: %d, backoff unit %s\n", c.Retry.MaxAttempts, c.Retry.BackoffUnit)
	fmt.Fprintf(n.out, "  • Rate limit wait: %s (+%s), daily quota above %s\n",
		c.Retry.DefaultWait, c.Retry.SafetyBuffer, c.Retry.DailyQuotaThreshold)
	fmt.Fprintln(n.out)

	colours.Prompt.Fprintln(n.out, "💾 Storage:")
	fmt.Fprintf(n.out, "  • Project: %s\n", n.projects.Path())
	fmt.Fprintf(n.out, "  • History: %s\n", c.Store.HistoryPath)
	fmt.Fprintf(n.out, "  • Output: %s\n", c.Output.Dir)
	return nil
}
