package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"storynarrator/internal/domain/story"
	"storynarrator/internal/narration/batch"
	"storynarrator/internal/narration/speech"
	"storynarrator/internal/story/tts"
)

const (
	AppName   = "storynarrator"
	EnvPrefix = "NARRATOR"
)

type Config struct {
	TTS    TTSConfig    `mapstructure:"tts"`
	Batch  BatchConfig  `mapstructure:"batch"`
	Retry  RetryConfig  `mapstructure:"retry"`
	Voice  VoiceConfig  `mapstructure:"voice"`
	Store  StoreConfig  `mapstructure:"store"`
	Output OutputConfig `mapstructure:"output"`
	Log    LogConfig    `mapstructure:"log"`
}

type TTSConfig struct {
	Type              string        `mapstructure:"type"`
	Model             string        `mapstructure:"model"`
	APIKey            string        `mapstructure:"api_key"`
	LanguageCode      string        `mapstructure:"language_code"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	CacheEnabled      bool          `mapstructure:"cache_enabled"`
	CachePath         string        `mapstructure:"cache_path"`
}

type BatchConfig struct {
	MaxChars           int           `mapstructure:"max_chars"`
	MaxCharsPerSpeaker int           `mapstructure:"max_chars_per_speaker"`
	InterBatchDelay    time.Duration `mapstructure:"inter_batch_delay"`
}

type RetryConfig struct {
	MaxAttempts         int           `mapstructure:"max_attempts"`
	BackoffUnit         time.Duration `mapstructure:"backoff_unit"`
	DefaultWait         time.Duration `mapstructure:"default_wait"`
	SafetyBuffer        time.Duration `mapstructure:"safety_buffer"`
	DailyQuotaThreshold time.Duration `mapstructure:"daily_quota_threshold"`
}

type VoiceConfig struct {
	DefaultSeed int32 `mapstructure:"default_seed"`
}

type StoreConfig struct {
	ProjectPath string `mapstructure:"project_path"`
	HistoryPath string `mapstructure:"history_path"`
}

type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func SetDefaults() {
	viper.SetDefault("tts.type", tts.EngineTypeAuto.String()) // Auto-select best engine
	viper.SetDefault("tts.model", tts.DefaultGeminiModel)
	viper.SetDefault("tts.api_key", "")
	viper.SetDefault("tts.language_code", "en-US")
	viper.SetDefault("tts.requests_per_minute", 0)
	viper.SetDefault("tts.request_timeout", 2*time.Minute)
	viper.SetDefault("tts.cache_enabled", true)
	viper.SetDefault("tts.cache_path", filepath.Join(userDir(os.UserCacheDir), AppName, "audio"))

	viper.SetDefault("batch.max_chars", batch.DefaultMaxChars)
	viper.SetDefault("batch.max_chars_per_speaker", batch.DefaultMaxCharsPerSpeaker)
	viper.SetDefault("batch.inter_batch_delay", batch.DefaultInterBatchDelay)

	retry := speech.DefaultOptions()
	viper.SetDefault("retry.max_attempts", retry.MaxAttempts)
	viper.SetDefault("retry.backoff_unit", retry.BackoffUnit)
	viper.SetDefault("retry.default_wait", retry.DefaultWait)
	viper.SetDefault("retry.safety_buffer", retry.SafetyBuffer)
	viper.SetDefault("retry.daily_quota_threshold", retry.DailyQuotaThreshold)

	viper.SetDefault("voice.default_seed", story.DefaultSeed)

	viper.SetDefault("store.project_path", "narrator.json")
	viper.SetDefault("store.history_path", filepath.Join(userDir(os.UserConfigDir), AppName, "history.db"))

	viper.SetDefault("output.dir", ".")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}

// Init points viper at narrator.yaml and the NARRATOR_ environment. A
// missing config file is not an error.
func Init() error {
	SetDefaults()

	viper.SetConfigName("narrator")
	viper.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, "."+AppName))
	}
	viper.AddConfigPath(".")

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
		logrus.Debug("no config file found, using defaults")
		return nil
	}
	logrus.WithField("file", viper.ConfigFileUsed()).Debug("loaded config")
	return nil
}

// Load decodes the current viper state.
func Load() (*Config, error) {
	var c Config
	if err := viper.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &c, nil
}

func (c *Config) TTSConfig() tts.Config {
	return tts.Config{
		Type:              c.TTS.Type,
		Model:             c.TTS.Model,
		APIKey:            c.TTS.APIKey,
		LanguageCode:      c.TTS.LanguageCode,
		RequestsPerMinute: c.TTS.RequestsPerMinute,
		CacheEnabled:      c.TTS.CacheEnabled,
		CachePath:         c.TTS.CachePath,
		RequestTimeout:    c.TTS.RequestTimeout,
	}
}

func (c *Config) SpeechOptions() speech.Options {
	opts := speech.DefaultOptions()
	if c.Retry.MaxAttempts > 0 {
		opts.MaxAttempts = c.Retry.MaxAttempts
	}
	if c.Retry.BackoffUnit > 0 {
		opts.BackoffUnit = c.Retry.BackoffUnit
	}
	if c.Retry.DefaultWait > 0 {
		opts.DefaultWait = c.Retry.DefaultWait
	}
	if c.Retry.SafetyBuffer >= 0 {
		opts.SafetyBuffer = c.Retry.SafetyBuffer
	}
	if c.Retry.DailyQuotaThreshold > 0 {
		opts.DailyQuotaThreshold = c.Retry.DailyQuotaThreshold
	}
	return opts
}

func (c *Config) BatchOptions() batch.Options {
	opts := batch.DefaultOptions()
	if c.Batch.MaxChars > 0 {
		opts.MaxChars = c.Batch.MaxChars
	}
	if c.Batch.MaxCharsPerSpeaker > 0 {
		opts.MaxCharsPerSpeaker = c.Batch.MaxCharsPerSpeaker
	}
	if c.Batch.InterBatchDelay >= 0 {
		opts.InterBatchDelay = c.Batch.InterBatchDelay
	}
	return opts
}

// SetupLogging applies log.level and log.format to the global logrus logger.
func (c *Config) SetupLogging() error {
	name := c.Log.Level
	if name == "" {
		name = "info"
	}
	level, err := logrus.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stderr)

	switch strings.ToLower(c.Log.Format) {
	case "", "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}
	return nil
}

func userDir(lookup func() (string, error)) string {
	dir, err := lookup()
	if err != nil || dir == "" {
		return "."
	}
	return dir
}
