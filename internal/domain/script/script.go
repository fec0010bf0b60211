// Package script turns "Speaker: text" scripts into dialogue lines.
package script

import (
	"fmt"
	"regexp"
	"strings"

	"storynarrator/internal/domain/story"
)

// DefaultSpeaker is assigned to untagged lines before any tag appears.
const DefaultSpeaker = "Speaker 1"

var speakerTag = regexp.MustCompile(`^([^:]+):\s*(.*)$`)

// Parse splits text into lines. A "Name: words" line switches the current
// speaker; untagged lines belong to the current one. Blank lines and lines
// with no words are dropped. IDs are "<line index>-<speaker>".
func Parse(text string) []story.DialogueLine {
	var (
		lines       []story.DialogueLine
		lastSpeaker string
	)

	for index, raw := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}

		var speaker, words string
		if m := speakerTag.FindStringSubmatch(trimmed); m != nil {
			speaker = strings.TrimSpace(m[1])
			words = strings.TrimSpace(m[2])
			lastSpeaker = speaker
		} else {
			if lastSpeaker == "" {
				lastSpeaker = DefaultSpeaker
			}
			speaker = lastSpeaker
			words = trimmed
		}

		if speaker == "" || words == "" {
			continue
		}
		lines = append(lines, story.DialogueLine{
			ID:      fmt.Sprintf("%d-%s", index, speaker),
			Speaker: speaker,
			Text:    words,
		})
	}

	return lines
}

// DefaultCast gives every speaker of lines a config, assigning voices
// round-robin in order of first appearance.
func DefaultCast(lines []story.DialogueLine, voices []string, seed int32) *story.Cast {
	return MergeCast(nil, lines, voices, seed)
}

// MergeCast keeps the configs of speakers that still appear in lines, adds
// defaults for new ones and drops speakers that no longer speak.
func MergeCast(existing *story.Cast, lines []story.DialogueLine, voices []string, seed int32) *story.Cast {
	cast := story.NewCast()
	next := 0
	for _, speaker := range story.Speakers(lines) {
		if cfg, ok := existing.Get(speaker); ok {
			cast.Set(speaker, cfg.Clone())
			continue
		}
		voice := ""
		if len(voices) > 0 {
			voice = voices[next%len(voices)]
		}
		next++
		cast.Set(speaker, story.NewSpeakerConfig(voice, seed))
	}
	return cast
}
