// Package timeparse converts human-readable duration strings into
// time.Duration values. The grammar accepts a signed decimal number with an
// optional unit suffix: "ms", "s", "m", "h", "d", "w" or "y". A bare number is
// interpreted as milliseconds, so "100" and "100ms" are equivalent.
package timeparse

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	millisecond = time.Millisecond
	second      = 1000 * millisecond
	minute      = 60 * second
	hour        = 60 * minute
	day         = 24 * hour
	week        = 7 * day
	year        = time.Duration(365.25 * float64(day))
)

var units = map[string]time.Duration{
	"":   millisecond,
	"ms": millisecond,
	"s":  second,
	"m":  minute,
	"h":  hour,
	"d":  day,
	"w":  week,
	"y":  year,
}

// Parse converts a human duration string to a time.Duration.
// Examples: "100" -> 100ms, "1s" -> 1s, "2m" -> 2m, "1.5h" -> 90m.
func Parse(s string) (time.Duration, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("empty duration string")
	}

	numEnd := len(trimmed)
	for i, c := range trimmed {
		if c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') {
			continue
		}
		numEnd = i
		break
	}

	numPart := trimmed[:numEnd]
	unitPart := strings.ToLower(strings.TrimSpace(trimmed[numEnd:]))

	value, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	unit, ok := units[unitPart]
	if !ok {
		return 0, fmt.Errorf("invalid duration %q: unknown unit %q", s, unitPart)
	}

	return time.Duration(math.Round(value * float64(unit))), nil
}

// Milliseconds parses a human duration string and returns whole milliseconds.
func Milliseconds(s string) (int64, error) {
	d, err := Parse(s)
	if err != nil {
		return 0, err
	}
	return d.Milliseconds(), nil
}
