// Package isotime parses the compact duration notation and the publish
// timestamps used by YouTube feeds and the Data API.
package isotime

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the single wire format accepted for publish timestamps.
const TimestampLayout = "2006-01-02T15:04:05Z07:00"

var (
	ErrInvalidDuration  = errors.New("invalid duration")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// durationPattern accepts [P][nD][T][nH][nM][nS], e.g. "PT1H30M15S", "P1DT2H", "1h30m".
var durationPattern = regexp.MustCompile(`(?i)^P?(?:(\d+)D)?T?(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

var unitSeconds = [4]int{86400, 3600, 60, 1}

// ParseDuration converts a compact duration into whole seconds.
//
// Every component is optional, but at least one must be present. Malformed
// input returns 0 together with an error wrapping ErrInvalidDuration; callers
// are expected to log it and carry on with 0.
func ParseDuration(text string) (int, error) {
	trimmed := strings.TrimSpace(text)
	match := durationPattern.FindStringSubmatch(trimmed)
	if match == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, text)
	}

	total := 0
	found := false
	for i, group := range match[1:] {
		if group == "" {
			continue
		}
		n, err := strconv.Atoi(group)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %v", ErrInvalidDuration, text, err)
		}
		if n > (math.MaxInt-total)/unitSeconds[i] {
			return 0, fmt.Errorf("%w: %q overflows", ErrInvalidDuration, text)
		}
		total += n * unitSeconds[i]
		found = true
	}
	if !found {
		return 0, fmt.Errorf("%w: %q has no components", ErrInvalidDuration, text)
	}
	return total, nil
}

// ParseTimestamp parses YYYY-MM-DDTHH:MM:SS±HH:MM, keeping the offset as the
// time's location.
func ParseTimestamp(text string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, strings.TrimSpace(text))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, text)
	}
	return t, nil
}

// FormatTimestamp renders t in the wire format read by ParseTimestamp.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}
