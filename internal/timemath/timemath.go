// Package timemath converts portal expiry timestamps into remaining hours.
package timemath

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Calculator computes remaining hours against a clock.
type Calculator struct {
	now    func() time.Time
	logger zerolog.Logger
}

// New creates a calculator using the system clock.
func New(logger zerolog.Logger) *Calculator {
	return &Calculator{now: time.Now, logger: logger}
}

// NewWithClock creates a calculator with a custom clock (for testing).
func NewWithClock(logger zerolog.Logger, now func() time.Time) *Calculator {
	return &Calculator{now: now, logger: logger}
}

// RemainingHours returns the whole hours until expiry, never negative.
// Missing or malformed input yields 0 and is logged.
func (c *Calculator) RemainingHours(expiry string) int {
	hours, err := Hours(expiry, c.now())
	if err != nil {
		c.logger.Warn().Err(err).Str("expiry", expiry).Msg("failed to parse expiry timestamp")
		return 0
	}
	return hours
}

// Hours returns floor((expiry - now) in hours), clamped at 0.
// An empty expiry returns 0 without error.
func Hours(expiry string, now time.Time) (int, error) {
	expiry = strings.TrimSpace(expiry)
	if expiry == "" {
		return 0, nil
	}

	t, err := Parse(expiry)
	if err != nil {
		return 0, err
	}

	diff := t.Sub(now.UTC()).Hours()
	if diff <= 0 {
		return 0, nil
	}
	return int(math.Floor(diff)), nil
}

var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

// Parse parses an ISO-8601 timestamp. Values without an offset are taken as UTC.
func Parse(s string) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
