package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"storynarrator/internal/cli/scheme/colours"
	"storynarrator/internal/config"
	"storynarrator/internal/story/narrator"
)

func main() {
	if err := config.Init(); err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := narrator.NewNarrator()

	// First Ctrl+C stops the running job after its current batch, the
	// second one quits.
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		if app.Abort() {
			fmt.Println()
			colours.Warning.Println("⏹️  Stopping after the current batch... (Ctrl+C again to quit)")
			<-sigChan
		}
		cancel()
		_ = app.Close()
		fmt.Println("\n" + colours.Warning.Sprint("👋 Goodbye!"))
		os.Exit(130)
	}()

	rootCmd := &cobra.Command{
		Use:   "storynarrator",
		Short: "🎙️ Turn dialogue scripts into narrated audio",
		Long: `
┌──────────────────────────────────────────┐
│  🎙️  StoryNarrator                        │
│  Multi-voice narration for your stories  │
└──────────────────────────────────────────┘

Write a script as "Speaker: line" pairs, give every speaker a voice,
and StoryNarrator renders it to WAV with a text-to-speech model.
		`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
				colours.Disable()
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.SetupLogging(); err != nil {
				return err
			}
			return app.Setup(cmd.Context(), cfg)
		},
		Run: func(cmd *cobra.Command, args []string) {
			app.ShowWelcome()
		},
	}

	rootCmd.PersistentFlags().String("engine", "", "TTS engine: auto, gemini, googlecloud or mock")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable coloured output")
	for key, name := range map[string]string{"tts.type": "engine", "log.level": "log-level"} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			logrus.WithError(err).WithField("key", key).Fatal("failed to bind flag")
		}
	}

	// Generate command
	generateCmd := &cobra.Command{
		Use:   "generate <script>",
		Short: "🎧 Narrate a script to WAV",
		Long:  "Synthesize every line of a script, either as one combined track or one track per speaker",
		Args:  cobra.ExactArgs(1),
		RunE:  app.GenerateStory,
	}
	generateCmd.Flags().StringP("mode", "m", string(narrator.ModeCombined), "Output mode: combined or separate")
	generateCmd.Flags().StringP("out", "o", "", "Output directory (defaults to output.dir)")
	generateCmd.Flags().Int("max-chars", 0, "Characters per synthesis request (defaults to batch.max_chars)")
	generateCmd.Flags().Duration("delay", 0, "Pause between batches (defaults to batch.inter_batch_delay)")
	generateCmd.Flags().Bool("no-cache", false, "Synthesize every batch again, ignoring cached audio")

	// Preview command
	previewCmd := &cobra.Command{
		Use:   "preview <script>",
		Short: "👂 Hear one line",
		Long:  "Synthesize a single line with its speaker's settings and play it",
		Args:  cobra.ExactArgs(1),
		RunE:  app.PreviewLine,
	}
	previewCmd.Flags().IntP("line", "l", 0, "Line number to preview (1-based)")
	previewCmd.Flags().StringP("speaker", "s", "", "Preview this speaker's first line")
	previewCmd.Flags().StringP("text", "t", "", "Custom text to speak")
	previewCmd.Flags().StringP("out", "o", "", "Save the preview to a WAV file instead of playing it")
	previewCmd.Flags().Bool("no-cache", false, "Ignore cached audio")

	// Play command
	playCmd := &cobra.Command{
		Use:   "play <file.wav>",
		Short: "▶️ Play a narration",
		Args:  cobra.ExactArgs(1),
		RunE:  app.PlayFile,
	}
	playCmd.Flags().Float64("speed", 1.0, "Playback speed")
	playCmd.Flags().Float64("volume", 1.0, "Playback volume (1 unchanged, 0 silent)")

	// Voices commands
	voicesCmd := &cobra.Command{
		Use:   "voices",
		Short: "🎤 List voices",
		RunE:  app.ListVoices,
	}
	voicesCmd.Flags().Bool("remote", false, "Also list the voices the engine offers")

	addVoiceCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a custom voice based on a built-in one",
		Args:  cobra.ExactArgs(1),
		RunE:  app.AddVoice,
	}
	addVoiceCmd.Flags().String("base", "", "Built-in voice to speak with")
	addVoiceCmd.Flags().String("tone", "", "Tone description")
	_ = addVoiceCmd.MarkFlagRequired("base")

	removeVoiceCmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a custom voice",
		Args:  cobra.ExactArgs(1),
		RunE:  app.RemoveVoice,
	}
	voicesCmd.AddCommand(addVoiceCmd, removeVoiceCmd)

	// Speakers command
	speakersCmd := &cobra.Command{
		Use:   "speakers <script>",
		Short: "🎭 Show the cast of a script",
		Args:  cobra.ExactArgs(1),
		RunE:  app.ShowSpeakers,
	}

	// Save command
	saveCmd := &cobra.Command{
		Use:   "save <script>",
		Short: "💾 Save the script and its cast settings",
		Long:  "Store the script with per-speaker settings, e.g. --voice Fox=Puck --speed Fox=slow",
		Args:  cobra.ExactArgs(1),
		RunE:  app.SaveScript,
	}
	saveCmd.Flags().StringArray(narrator.FieldVoice, nil, "NAME=VOICE_ID")
	saveCmd.Flags().StringArray(narrator.FieldSpeed, nil, "NAME=slow|slightly_slow|normal|slightly_fast")
	saveCmd.Flags().StringArray(narrator.FieldEmotion, nil, "NAME=EMOTION")
	saveCmd.Flags().StringArray(narrator.FieldPrefix, nil, "NAME=PROMPT PREFIX")
	saveCmd.Flags().StringArray(narrator.FieldSeed, nil, "NAME=SEED[,SEED...] or NAME=next")
	saveCmd.Flags().StringArray(narrator.FieldVolume, nil, "NAME=VOLUME")
	saveCmd.Flags().Bool("reset", false, "Forget previously saved speaker settings first")
	saveCmd.Flags().StringSlice("randomize-seeds", nil, "Speakers to give fresh seeds (empty for all)")

	// History command
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "🕰️ Show recent jobs",
		RunE:  app.ShowHistory,
	}
	historyCmd.Flags().IntP("limit", "n", 20, "Number of jobs to show")

	// Cache commands
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "🗄️ Inspect the audio cache",
	}
	cacheStatusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show cache size",
		RunE:  app.ShowCacheStatus,
	}
	cacheClearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete cached audio for the active engine",
		RunE:  app.ClearCache,
	}
	cacheClearCmd.Flags().Bool("all", false, "Clear the cache of every engine")
	cacheCmd.AddCommand(cacheStatusCmd, cacheClearCmd)

	// Settings command
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "⚙️ Show settings",
		Long:  "Show the engine, batching, retry and storage settings in effect",
		RunE:  app.ShowSettings,
	}

	rootCmd.AddCommand(generateCmd, previewCmd, playCmd, voicesCmd, speakersCmd,
		saveCmd, historyCmd, cacheCmd, settingsCmd)

	err := rootCmd.ExecuteContext(ctx)
	if closeErr := app.Close(); closeErr != nil {
		logrus.WithError(closeErr).Warn("failed to close narrator")
	}
	if err != nil {
		colours.Error.Printf("❌ Error: %v\n", err)
		os.Exit(1)
	}
}

