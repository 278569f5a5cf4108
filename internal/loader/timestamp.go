// Package loader reads bars and news into domain events.
package loader

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTimestamp is returned for an unparseable timestamp.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp. Values without an offset are
// taken as UTC; the result is always UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range isoLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%q: %w", raw, ErrInvalidTimestamp)
}

// parseGDELTDate accepts YYYYMMDD, YYYYMMDDhhmmss or ISO-8601.
func parseGDELTDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if isDigits(raw) {
		switch len(raw) {
		case 8:
			return time.Parse("20060102", raw)
		case 14:
			return time.Parse("20060102150405", raw)
		}
	}
	return ParseTimestamp(raw)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
