package story

import "strings"

// Speed is a named speaking pace.
type Speed struct {
	Value  string
	Label  string
	Adverb string
}

// Emotion is a named delivery style. Value is spliced into the prompt.
type Emotion struct {
	Value string
	Label string
}

var Speeds = []Speed{
	{Value: "slow", Label: "Slow", Adverb: "slowly"},
	{Value: "slightly_slow", Label: "Comfortable", Adverb: "at a comfortable, relaxed pace"},
	{Value: "normal", Label: "Normal", Adverb: ""},
	{Value: "slightly_fast", Label: "Slightly Fast", Adverb: "somewhat quickly"},
}

var Emotions = []Emotion{
	{Value: "none", Label: "Default / None"},
	{Value: "happily", Label: "Happy"},
	{Value: "cheerfully", Label: "Cheerful"},
	{Value: "calmly", Label: "Calm"},
	{Value: "seriously", Label: "Serious"},
	{Value: "with a very serene, wise tone, reflecting on deep truths with peaceful pauses", Label: "Deep Reflection"},
	{Value: "with profound kindness and compassionate energy, speaking slowly and gently", Label: "Compassionate Guidance"},
	{Value: "in a steady, meditative flow, maintaining perfect equanimity in every word", Label: "Meditative Flow"},
	{Value: "with a soft, airy whisper-like quality to induce deep relaxation and focus", Label: "Peaceful Stillness"},
	{Value: "articulating every syllable clearly and mindfully, like a teacher explaining the path", Label: "Mindful Clarity"},
}

var speedAdverbs = func() map[string]string {
	m := make(map[string]string, len(Speeds))
	for _, s := range Speeds {
		m[s.Value] = s.Adverb
	}
	return m
}()

// BuildPromptPrefix turns a speed and an emotion into the spoken style
// instruction placed before each batch, e.g. "Please speak slowly and calmly:".
// Unknown speeds contribute nothing; emotion "none" or "" contributes nothing.
func BuildPromptPrefix(speed, emotion string) string {
	adverb := speedAdverbs[speed]
	emotion = strings.TrimSpace(emotion)
	if emotion == DefaultEmotion {
		emotion = ""
	}

	switch {
	case adverb != "" && emotion != "":
		return "Please speak " + adverb + " and " + emotion + ":"
	case adverb != "":
		return "Please speak " + adverb + ":"
	case emotion != "":
		return "Please speak " + emotion + ":"
	default:
		return ""
	}
}

// EffectivePrefix is the prefix a batch is sent with: an explicit
// PromptPrefix wins over the one built from speed and emotion.
func (c SpeakerConfig) EffectivePrefix() string {
	if p := strings.TrimSpace(c.PromptPrefix); p != "" {
		return p
	}
	return BuildPromptPrefix(c.Speed, c.Emotion)
}

// WithPrefix joins prefix and text the way every batch is sent.
func WithPrefix(prefix, text string) string {
	return strings.TrimSpace(prefix + " " + text)
}
