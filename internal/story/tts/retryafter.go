package tts

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	retryAfterHeaderPattern = regexp.MustCompile(`(?i)retry[- ]after[:=]?\s*(\d+(?:\.\d+)?)`)
	retryInPattern          = regexp.MustCompile(`(?i)retry in\s+(\d+(?:\.\d+)?)\s*(ms|s|m|h)?`)
)

// RetryAfterFromMessage extracts a suggested wait from a failure message such
// as "Please retry in 37.5s." or "Retry-After: 40".
func RetryAfterFromMessage(msg string) (time.Duration, bool) {
	if m := retryInPattern.FindStringSubmatch(msg); len(m) >= 2 {
		unit := "s"
		if len(m) > 2 && m[2] != "" {
			unit = strings.ToLower(m[2])
		}
		return parseAmount(m[1], unit)
	}
	if m := retryAfterHeaderPattern.FindStringSubmatch(msg); len(m) >= 2 {
		return parseAmount(m[1], "s")
	}
	return 0, false
}

// ParseRetryDelay parses a protobuf Duration in its JSON form ("37s",
// "1.5s") as carried by google.rpc.RetryInfo.
func ParseRetryDelay(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, false
	}
	return d, true
}

func parseAmount(value, unit string) (time.Duration, bool) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	scale := time.Second
	switch unit {
	case "ms":
		scale = time.Millisecond
	case "m":
		scale = time.Minute
	case "h":
		scale = time.Hour
	}
	return time.Duration(f * float64(scale)), true
}
