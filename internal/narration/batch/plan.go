// Package batch groups dialogue lines into synthesis batches and runs them
// through the speech call wrapper one at a time.
package batch

import (
	"strings"

	"storynarrator/internal/domain/story"
	"storynarrator/internal/narration/segment"
)

// Batch is one span of same-speaker text sent as a single synthesis request.
type Batch struct {
	Speaker string
	// Text excludes the speaker's prompt prefix.
	Text string
}

// Chars is the batch length used for progress accounting.
func (b Batch) Chars() int {
	return segment.Len(b.Text)
}

// Plan groups lines into batches of at most budget characters.
//
// Consecutive lines of one speaker share a buffer, joined by single spaces.
// A speaker change flushes the buffer. A line that does not fit flushes the
// buffer first; if the line alone is over budget it is segmented, every
// piece but the last becomes its own batch, and the last piece seeds the
// new buffer. The result depends only on lines and budget.
func Plan(lines []story.DialogueLine, budget int) []Batch {
	if budget < 1 {
		budget = 1
	}

	var (
		batches []Batch
		speaker string
		buffer  string
		started bool
	)
	flush := func() {
		if buffer != "" {
			batches = append(batches, Batch{Speaker: speaker, Text: buffer})
		}
		buffer = ""
	}

	for _, line := range lines {
		if !started || line.Speaker != speaker {
			flush()
			speaker = line.Speaker
			started = true
		}

		combined := strings.TrimSpace(buffer + " " + line.Text)
		if segment.Len(combined) <= budget {
			buffer = combined
			continue
		}

		flush()
		pieces := segment.Split(line.Text, budget)
		if len(pieces) == 0 {
			continue
		}
		for _, p := range pieces[:len(pieces)-1] {
			batches = append(batches, Batch{Speaker: speaker, Text: p})
		}
		buffer = pieces[len(pieces)-1]
	}
	flush()

	return batches
}

// PlanPerSpeaker plans one speaker's lines on their own, as per-speaker
// generation does.
func PlanPerSpeaker(lines []story.DialogueLine, speaker string, budget int) []Batch {
	return Plan(story.LinesFor(lines, speaker), budget)
}

// TotalChars is the progress denominator for a job over lines.
func TotalChars(lines []story.DialogueLine) int {
	total := 0
	for _, l := range lines {
		total += segment.Len(l.Text)
	}
	return total
}
