package narrator

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"storynarrator/internal/domain/story"
)

// CastEdit changes one setting of one speaker, written NAME=VALUE on the
// command line.
type CastEdit struct {
	Speaker string
	Field   string
	Value   string
}

const (
	FieldVoice   = "voice"
	FieldSpeed   = "speed"
	FieldEmotion = "emotion"
	FieldPrefix  = "prefix"
	FieldSeed    = "seed"
	FieldVolume  = "volume"
)

// ParseCastEdits splits NAME=VALUE pairs for field.
func ParseCastEdits(field string, pairs []string) ([]CastEdit, error) {
	edits := make([]CastEdit, 0, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --%s value %q, want NAME=VALUE", field, p)
		}
		edits = append(edits, CastEdit{Speaker: name, Field: field, Value: strings.TrimSpace(value)})
	}
	return edits, nil
}

// ApplyCastEdits updates cast in place. Voice ids are checked against the
// library; speeds and emotions are free-form apart from speed, which must be
// a known value.
func (n *Narrator) ApplyCastEdits(cast *story.Cast, edits []CastEdit) error {
	for _, e := range edits {
		cfg, ok := cast.Get(e.Speaker)
		if !ok {
			return fmt.Errorf("speaker %q is not in the script", e.Speaker)
		}

		switch e.Field {
		case FieldVoice:
			if _, ok := n.library.Find(e.Value); !ok {
				return fmt.Errorf("unknown voice %q", e.Value)
			}
			cfg.Voice = e.Value
		case FieldSpeed:
			if !knownSpeed(e.Value) {
				return fmt.Errorf("unknown speed %q", e.Value)
			}
			cfg.Speed = e.Value
		case FieldEmotion:
			cfg.Emotion = e.Value
		case FieldPrefix:
			cfg.PromptPrefix = e.Value
		case FieldVolume:
			v, err := strconv.ParseFloat(e.Value, 64)
			if err != nil || v < 0 {
				return fmt.Errorf("invalid volume %q", e.Value)
			}
			cfg.Volume = v
		case FieldSeed:
			if err := setSeed(&cfg, e.Value); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown speaker setting %q", e.Field)
		}

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("speaker %s: %w", e.Speaker, err)
		}
		cast.Set(e.Speaker, cfg)
	}
	return nil
}

// setSeed accepts a single seed, a comma separated rotation, or "next" to
// advance the active seed.
func setSeed(cfg *story.SpeakerConfig, value string) error {
	if value == "next" {
		if len(cfg.Seeds) > 0 {
			cfg.ActiveSeed = (cfg.ActiveSeed + 1) % len(cfg.Seeds)
		}
		return nil
	}

	parts := strings.Split(value, ",")
	if len(parts) > story.MaxSeeds {
		return fmt.Errorf("at most %d seeds", story.MaxSeeds)
	}
	seeds := make([]int32, 0, len(parts))
	for _, p := range parts {
		s, err := strconv.ParseInt(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return fmt.Errorf("invalid seed %q", p)
		}
		seeds = append(seeds, int32(s))
	}
	cfg.Seeds = seeds
	cfg.ActiveSeed = 0
	return nil
}

// RandomizeSeeds gives every named speaker a fresh seed rotation. An empty
// list means the whole cast.
func RandomizeSeeds(cast *story.Cast, names []string, r *rand.Rand) error {
	if len(names) == 0 {
		names = cast.Names()
	}
	for _, name := range names {
		cfg, ok := cast.Get(name)
		if !ok {
			return fmt.Errorf("speaker %q is not in the script", name)
		}
		cfg.RandomizeSeeds(r)
		cast.Set(name, cfg)
	}
	return nil
}

func knownSpeed(value string) bool {
	for _, s := range story.Speeds {
		if s.Value == value {
			return true
		}
	}
	return false
}
