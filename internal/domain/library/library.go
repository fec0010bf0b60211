package library

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Voice is a selectable narrator voice. Custom voices are named aliases that
// speak through one of the built-in voices.
type Voice struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	IsCustom        bool   `json:"is_custom,omitempty"`
	BaseVoiceID     string `json:"base_voice_id,omitempty"`
	ToneDescription string `json:"tone_description,omitempty"`
}

// BuiltinVoices are the prebuilt speech model voices offered by default.
var BuiltinVoices = []Voice{
	{
		ID:              "Iapetus",
		Name:            "Iapetus (Male, Warm Wisdom)",
		ToneDescription: "A melodic and mature male voice with natural warmth. Excellent for storytelling with a peaceful soul and compassionate guidance.",
	},
	{
		ID:              "Charon",
		Name:            "Charon (Male, Deep)",
		ToneDescription: "Deep, resonant, and authoritative male voice. Provides a sense of weight and reliability, perfect for serious and profound narrations.",
	},
	{
		ID:              "Enceladus",
		Name:            "Enceladus (Male, Smooth)",
		ToneDescription: "Warm, friendly, and smooth male voice. Very approachable and pleasant for long-form listening and gentle teaching.",
	},
	{
		ID:              "Kore",
		Name:            "Kore (Female)",
		ToneDescription: "Natural, clear, and polite female voice with a neutral tone. High fidelity and versatile for general narration.",
	},
	{
		ID:              "Zephyr",
		Name:            "Zephyr (Female, Soft)",
		ToneDescription: "Soft, gentle, and airy female voice. Ideal for calming content, mindfulness, or spiritual narrations.",
	},
	{
		ID:              "Puck",
		Name:            "Puck (Male)",
		ToneDescription: "Bright, energetic male voice with high vitality. Excellent for lively dialogues and enthusiastic storytelling.",
	},
	{
		ID:              "Fenrir",
		Name:            "Fenrir (Male, Raspy)",
		ToneDescription: "Mature male voice with a slight rasp and unique character. Sounds experienced and sophisticated.",
	},
}

// BuiltinIDs returns the built-in voice ids in display order.
func BuiltinIDs() []string {
	ids := make([]string, len(BuiltinVoices))
	for i, v := range BuiltinVoices {
		ids[i] = v.ID
	}
	return ids
}

// Library is the set of voices a cast can pick from.
type Library struct {
	custom []Voice
}

// New builds a library from previously saved custom voices. Entries without
// an id or name are dropped; a missing base voice falls back to the first
// built-in voice.
func New(custom []Voice) *Library {
	l := &Library{}
	for _, v := range custom {
		if v.ID == "" || v.Name == "" {
			continue
		}
		v.IsCustom = true
		if v.BaseVoiceID == "" {
			v.BaseVoiceID = BuiltinVoices[0].ID
		}
		l.custom = append(l.custom, v)
	}
	return l
}

// Voices lists built-in voices followed by custom ones.
func (l *Library) Voices() []Voice {
	out := append([]Voice(nil), BuiltinVoices...)
	return append(out, l.custom...)
}

func (l *Library) Custom() []Voice {
	return append([]Voice(nil), l.custom...)
}

func (l *Library) Find(id string) (Voice, bool) {
	for _, v := range l.Voices() {
		if v.ID == id {
			return v, true
		}
	}
	return Voice{}, false
}

// Resolve returns the voice id the speech model should be asked for.
func (l *Library) Resolve(id string) (string, error) {
	v, ok := l.Find(id)
	if !ok {
		return "", fmt.Errorf("unknown voice %q", id)
	}
	if v.IsCustom && v.BaseVoiceID != "" {
		return v.BaseVoiceID, nil
	}
	return v.ID, nil
}

// AddCustom registers a new named voice that speaks through baseVoiceID.
func (l *Library) AddCustom(name, baseVoiceID, tone string) (Voice, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Voice{}, fmt.Errorf("custom voice needs a name")
	}
	base, ok := l.Find(baseVoiceID)
	if !ok || base.IsCustom {
		return Voice{}, fmt.Errorf("base voice %q is not a built-in voice", baseVoiceID)
	}

	v := Voice{
		ID:              "custom-" + uuid.NewString(),
		Name:            name,
		IsCustom:        true,
		BaseVoiceID:     base.ID,
		ToneDescription: tone,
	}
	l.custom = append(l.custom, v)
	return v, nil
}

// RemoveCustom deletes a custom voice. Built-in voices cannot be removed.
func (l *Library) RemoveCustom(id string) bool {
	for i, v := range l.custom {
		if v.ID == id {
			l.custom = append(l.custom[:i:i], l.custom[i+1:]...)
			return true
		}
	}
	return false
}
