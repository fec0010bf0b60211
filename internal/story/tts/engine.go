package tts

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type EngineType string

const (
	EngineTypeMock        EngineType = "mock"
	EngineTypeGemini      EngineType = "gemini"
	EngineTypeGoogleCloud EngineType = "googlecloud"
	EngineTypeAuto        EngineType = "auto" // Pick from available credentials
)

func (e EngineType) String() string {
	return string(e)
}

// NewSynthesizer creates the backend named by config.Type, wrapped in the
// on-disk cache when caching is enabled.
func NewSynthesizer(config Config) (Synthesizer, error) {
	if config.APIKey == "" {
		config.APIKey = APIKeyFromEnv()
	}

	engine := EngineType(strings.ToLower(strings.TrimSpace(config.Type)))
	if engine == "" || engine == EngineTypeAuto {
		engine = bestEngine(config)
		logrus.WithField("engine", engine).Debug("auto-selected TTS engine")
	}

	var (
		s   Synthesizer
		err error
	)
	switch engine {
	case EngineTypeMock:
		s = NewMockSynthesizer()
	case EngineTypeGemini:
		s, err = newGeminiSynthesizer(config)
	case EngineTypeGoogleCloud:
		s, err = newGoogleCloudSynthesizer(config)
	default:
		return nil, fmt.Errorf("unsupported TTS engine type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if config.CacheEnabled && config.CachePath != "" {
		return NewCachingSynthesizer(s, config.CachePath), nil
	}
	return s, nil
}

// APIKeyFromEnv returns the first Gemini key found in the environment.
func APIKeyFromEnv() string {
	for _, name := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "API_KEY"} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

func bestEngine(config Config) EngineType {
	if config.APIKey != "" {
		return EngineTypeGemini
	}
	if hasGoogleCredentials() {
		return EngineTypeGoogleCloud
	}
	return EngineTypeMock
}

// AvailableEngines returns the engines usable with the current credentials.
func AvailableEngines(config Config) []EngineType {
	engines := []EngineType{EngineTypeMock}
	if config.APIKey != "" || APIKeyFromEnv() != "" {
		engines = append(engines, EngineTypeGemini)
	}
	if hasGoogleCredentials() {
		engines = append(engines, EngineTypeGoogleCloud)
	}
	return engines
}

// hasGoogleCredentials checks if Google Cloud credentials are available
func hasGoogleCredentials() bool {
	_, ok := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS")
	return ok
}
