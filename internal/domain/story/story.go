package story

import (
	"fmt"
	"math/rand"
)

const (
	// MaxSeeds is the size of a speaker's seed rotation.
	MaxSeeds = 5

	DefaultSeed   int32   = 949222
	DefaultVolume float64 = 1
	DefaultSpeed          = "normal"
	DefaultEmotion        = "none"
)

// DialogueLine is one speaker-tagged line of a script.
type DialogueLine struct {
	ID      string `json:"id"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// SpeakerConfig holds the synthesis parameters of one speaker.
type SpeakerConfig struct {
	Voice           string  `json:"voice"`
	PromptPrefix    string  `json:"prompt_prefix"`
	Emotion         string  `json:"emotion"`
	Volume          float64 `json:"volume"`
	Speed           string  `json:"speed"`
	Seeds           []int32 `json:"seeds"`
	ActiveSeed      int     `json:"active_seed"`
	ToneDescription string  `json:"tone_description"`
}

// NewSpeakerConfig returns a config with the default speed, emotion, volume
// and a single-seed rotation.
func NewSpeakerConfig(voice string, seed int32) SpeakerConfig {
	return SpeakerConfig{
		Voice:   voice,
		Emotion: DefaultEmotion,
		Volume:  DefaultVolume,
		Speed:   DefaultSpeed,
		Seeds:   []int32{seed},
	}
}

// Seed returns the active seed of the rotation.
func (c SpeakerConfig) Seed() (int32, bool) {
	if len(c.Seeds) == 0 {
		return 0, false
	}
	idx := c.ActiveSeed
	if idx < 0 || idx >= len(c.Seeds) {
		idx = 0
	}
	return c.Seeds[idx], true
}

// SeedPtr is Seed in the shape the synthesizers take.
func (c SpeakerConfig) SeedPtr() *int32 {
	seed, ok := c.Seed()
	if !ok {
		return nil
	}
	return &seed
}

func (c SpeakerConfig) Validate() error {
	if c.Voice == "" {
		return fmt.Errorf("speaker config has no voice")
	}
	if len(c.Seeds) < 1 || len(c.Seeds) > MaxSeeds {
		return fmt.Errorf("speaker config needs 1 to %d seeds, got %d", MaxSeeds, len(c.Seeds))
	}
	if c.ActiveSeed < 0 || c.ActiveSeed >= len(c.Seeds) {
		return fmt.Errorf("active seed %d out of range", c.ActiveSeed)
	}
	if c.Volume < 0 {
		return fmt.Errorf("volume must not be negative")
	}
	if _, ok := speedAdverbs[c.Speed]; c.Speed != "" && !ok {
		return fmt.Errorf("unknown speed %q", c.Speed)
	}
	return nil
}

// Clone returns a copy that shares no memory with c.
func (c SpeakerConfig) Clone() SpeakerConfig {
	c.Seeds = append([]int32(nil), c.Seeds...)
	return c
}

// RandomizeSeeds fills the whole rotation with fresh seeds below one million.
func (c *SpeakerConfig) RandomizeSeeds(r *rand.Rand) {
	seeds := make([]int32, MaxSeeds)
	for i := range seeds {
		seeds[i] = int32(r.Intn(1000000))
	}
	c.Seeds = seeds
	c.ActiveSeed = 0
}

// Cast maps speaker names to configs and remembers insertion order.
type Cast struct {
	order   []string
	configs map[string]SpeakerConfig
}

func NewCast() *Cast {
	return &Cast{configs: map[string]SpeakerConfig{}}
}

// Set adds or replaces a speaker. Replacing keeps the original position.
func (c *Cast) Set(name string, cfg SpeakerConfig) {
	if _, ok := c.configs[name]; !ok {
		c.order = append(c.order, name)
	}
	c.configs[name] = cfg
}

func (c *Cast) Get(name string) (SpeakerConfig, bool) {
	if c == nil {
		return SpeakerConfig{}, false
	}
	cfg, ok := c.configs[name]
	return cfg, ok
}

func (c *Cast) Delete(name string) {
	if _, ok := c.configs[name]; !ok {
		return
	}
	delete(c.configs, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			break
		}
	}
}

// Names returns the speakers in insertion order.
func (c *Cast) Names() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.order...)
}

func (c *Cast) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// Snapshot returns a deep copy. Later changes to c do not show through.
func (c *Cast) Snapshot() *Cast {
	out := NewCast()
	if c == nil {
		return out
	}
	for _, name := range c.order {
		out.Set(name, c.configs[name].Clone())
	}
	return out
}

// Speakers returns the distinct speakers of lines in order of first appearance.
func Speakers(lines []DialogueLine) []string {
	seen := map[string]bool{}
	var speakers []string
	for _, l := range lines {
		if !seen[l.Speaker] {
			seen[l.Speaker] = true
			speakers = append(speakers, l.Speaker)
		}
	}
	return speakers
}

// LinesFor filters lines down to one speaker, keeping order.
func LinesFor(lines []DialogueLine, speaker string) []DialogueLine {
	var out []DialogueLine
	for _, l := range lines {
		if l.Speaker == speaker {
			out = append(out, l)
		}
	}
	return out
}
