package story

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPromptPrefix(t *testing.T) {
	tests := []struct {
		speed, emotion, want string
	}{
		{"normal", "none", ""},
		{"", "", ""},
		{"slow", "none", "Please speak slowly:"},
		{"normal", "calmly", "Please speak calmly:"},
		{"slow", "calmly", "Please speak slowly and calmly:"},
		{"slightly_slow", "happily", "Please speak at a comfortable, relaxed pace and happily:"},
		{"slightly_fast", "", "Please speak somewhat quickly:"},
		{"warp", "seriously", "Please speak seriously:"},
	}
	for _, tt := range tests {
		t.Run(tt.speed+"/"+tt.emotion, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildPromptPrefix(tt.speed, tt.emotion))
		})
	}
}

func TestEffectivePrefix(t *testing.T) {
	cfg := NewSpeakerConfig("Kore", DefaultSeed)
	cfg.Speed = "slow"
	assert.Equal(t, "Please speak slowly:", cfg.EffectivePrefix())

	cfg.PromptPrefix = "Whisper:"
	assert.Equal(t, "Whisper:", cfg.EffectivePrefix())
}

func TestWithPrefix(t *testing.T) {
	assert.Equal(t, "Please speak slowly: Hello.", WithPrefix("Please speak slowly:", "Hello."))
	assert.Equal(t, "Hello.", WithPrefix("", "Hello."))
}

func TestSpeakerConfigSeed(t *testing.T) {
	cfg := NewSpeakerConfig("Kore", 42)
	seed, ok := cfg.Seed()
	require.True(t, ok)
	assert.Equal(t, int32(42), seed)

	cfg.Seeds = []int32{1, 2, 3}
	cfg.ActiveSeed = 2
	assert.Equal(t, int32(3), *cfg.SeedPtr())

	cfg.ActiveSeed = 9
	seed, _ = cfg.Seed()
	assert.Equal(t, int32(1), seed, "out of range falls back to the first seed")

	cfg.Seeds = nil
	assert.Nil(t, cfg.SeedPtr())
}

func TestSpeakerConfigValidate(t *testing.T) {
	cfg := NewSpeakerConfig("Kore", DefaultSeed)
	require.NoError(t, cfg.Validate())

	noVoice := cfg
	noVoice.Voice = ""
	assert.Error(t, noVoice.Validate())

	tooMany := cfg.Clone()
	tooMany.Seeds = []int32{1, 2, 3, 4, 5, 6}
	assert.Error(t, tooMany.Validate())

	badSpeed := cfg
	badSpeed.Speed = "ludicrous"
	assert.Error(t, badSpeed.Validate())

	badActive := cfg
	badActive.ActiveSeed = 1
	assert.Error(t, badActive.Validate())
}

func TestRandomizeSeeds(t *testing.T) {
	cfg := NewSpeakerConfig("Kore", DefaultSeed)
	cfg.ActiveSeed = 0
	cfg.RandomizeSeeds(rand.New(rand.NewSource(1)))

	require.Len(t, cfg.Seeds, MaxSeeds)
	for _, s := range cfg.Seeds {
		assert.GreaterOrEqual(t, s, int32(0))
		assert.Less(t, s, int32(1000000))
	}
	assert.NoError(t, cfg.Validate())
}

func TestCastKeepsInsertionOrder(t *testing.T) {
	c := NewCast()
	c.Set("Narrator", NewSpeakerConfig("Charon", 1))
	c.Set("Alice", NewSpeakerConfig("Kore", 2))
	c.Set("Bob", NewSpeakerConfig("Puck", 3))
	c.Set("Narrator", NewSpeakerConfig("Iapetus", 4))

	assert.Equal(t, []string{"Narrator", "Alice", "Bob"}, c.Names())
	cfg, ok := c.Get("Narrator")
	require.True(t, ok)
	assert.Equal(t, "Iapetus", cfg.Voice)

	c.Delete("Alice")
	assert.Equal(t, []string{"Narrator", "Bob"}, c.Names())
	assert.Equal(t, 2, c.Len())
}

func TestCastSnapshotIsIsolated(t *testing.T) {
	c := NewCast()
	c.Set("A", NewSpeakerConfig("Kore", 1))

	snap := c.Snapshot()

	cfg, _ := c.Get("A")
	cfg.Seeds[0] = 99
	cfg.Voice = "Puck"
	c.Set("A", cfg)
	c.Set("B", NewSpeakerConfig("Charon", 2))

	got, ok := snap.Get("A")
	require.True(t, ok)
	assert.Equal(t, "Kore", got.Voice)
	assert.Equal(t, []string{"A"}, snap.Names())
}

func TestNilCast(t *testing.T) {
	var c *Cast
	_, ok := c.Get("A")
	assert.False(t, ok)
	assert.Nil(t, c.Names())
	assert.Equal(t, 0, c.Snapshot().Len())
}

func TestSpeakersAndLinesFor(t *testing.T) {
	lines := []DialogueLine{
		{ID: "0-A", Speaker: "A", Text: "one"},
		{ID: "1-B", Speaker: "B", Text: "two"},
		{ID: "2-A", Speaker: "A", Text: "three"},
	}
	assert.Equal(t, []string{"A", "B"}, Speakers(lines))
	assert.Equal(t, []DialogueLine{lines[0], lines[2]}, LinesFor(lines, "A"))
	assert.Empty(t, LinesFor(lines, "C"))
}
