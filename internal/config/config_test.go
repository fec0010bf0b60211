package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storynarrator/internal/domain/story"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadDefaults(t *testing.T) {
	resetViper(t)
	SetDefaults()

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "auto", c.TTS.Type)
	assert.Equal(t, "gemini-2.5-flash-preview-tts", c.TTS.Model)
	assert.True(t, c.TTS.CacheEnabled)
	assert.Equal(t, 2500, c.Batch.MaxChars)
	assert.Equal(t, 4500, c.Batch.MaxCharsPerSpeaker)
	assert.Equal(t, 500*time.Millisecond, c.Batch.InterBatchDelay)
	assert.Equal(t, 3, c.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, c.Retry.BackoffUnit)
	assert.Equal(t, 60*time.Second, c.Retry.DefaultWait)
	assert.Equal(t, 600*time.Second, c.Retry.DailyQuotaThreshold)
	assert.Equal(t, story.DefaultSeed, c.Voice.DefaultSeed)
	assert.Equal(t, "narrator.json", c.Store.ProjectPath)
	assert.Equal(t, ".", c.Output.Dir)
}

func TestInitReadsConfigFileAndEnv(t *testing.T) {
	resetViper(t)
	dir := t.TempDir()
	yaml := "tts:\n  type: mock\nbatch:\n  max_chars: 1200\n  inter_batch_delay: 1s\nretry:\n  default_wait: 30s\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "narrator.yaml"), []byte(yaml), 0644))
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("NARRATOR_RETRY_MAX_ATTEMPTS", "5")

	require.NoError(t, Init())
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "mock", c.TTS.Type)
	assert.Equal(t, 1200, c.Batch.MaxChars)
	assert.Equal(t, time.Second, c.Batch.InterBatchDelay)
	assert.Equal(t, 30*time.Second, c.Retry.DefaultWait)
	assert.Equal(t, 5, c.Retry.MaxAttempts)
}

func TestInitWithoutConfigFile(t *testing.T) {
	resetViper(t)
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	assert.NoError(t, Init())
}

func TestOptionConversions(t *testing.T) {
	c := &Config{
		TTS:   TTSConfig{Type: "mock", CacheEnabled: true, CachePath: "/tmp/x"},
		Batch: BatchConfig{MaxChars: 100, InterBatchDelay: 0},
		Retry: RetryConfig{MaxAttempts: 7, SafetyBuffer: 0},
	}

	ttsConf := c.TTSConfig()
	assert.Equal(t, "mock", ttsConf.Type)
	assert.Equal(t, "/tmp/x", ttsConf.CachePath)

	so := c.SpeechOptions()
	assert.Equal(t, 7, so.MaxAttempts)
	assert.Equal(t, 2*time.Second, so.BackoffUnit, "unset keeps default")
	assert.Zero(t, so.SafetyBuffer)

	bo := c.BatchOptions()
	assert.Equal(t, 100, bo.MaxChars)
	assert.Equal(t, 4500, bo.MaxCharsPerSpeaker)
	assert.Zero(t, bo.InterBatchDelay)
	assert.True(t, bo.UsePrefixes)
}

func TestSetupLogging(t *testing.T) {
	defer logrus.SetLevel(logrus.GetLevel())
	defer logrus.SetFormatter(logrus.StandardLogger().Formatter)

	c := &Config{Log: LogConfig{Level: "debug", Format: "json"}}
	require.NoError(t, c.SetupLogging())
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logrus.StandardLogger().Formatter)

	assert.Error(t, (&Config{Log: LogConfig{Level: "loud"}}).SetupLogging())
	assert.Error(t, (&Config{Log: LogConfig{Level: "info", Format: "xml"}}).SetupLogging())
}
