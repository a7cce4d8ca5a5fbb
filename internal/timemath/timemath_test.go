package timemath

import (
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

func testCalculator() *Calculator {
	return NewWithClock(zerolog.New(io.Discard), func() time.Time { return fixedNow })
}

func TestRemainingHours(t *testing.T) {
	tests := []struct {
		name     string
		expiry   string
		expected int
	}{
		{"empty", "", 0},
		{"whitespace", "   ", 0},
		{"malformed", "not-a-date", 0},
		{"past", "2026-02-09T12:00:00Z", 0},
		{"exactly now", "2026-02-10T12:00:00Z", 0},
		{"48 hours", "2026-02-12T12:00:00Z", 48},
		{"sub-second precision", "2026-02-16T12:43:34.272Z", 144},
		{"floors partial hour", "2026-02-10T14:59:59Z", 2},
		{"offset", "2026-02-10T15:00:00+01:00", 2},
		{"no zone is utc", "2026-02-11T12:00:00", 24},
	}

	calc := testCalculator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, calc.RemainingHours(tt.expiry))
		})
	}
}

func TestRemainingHours_Monotonic(t *testing.T) {
	calc := testCalculator()

	prev := -1
	for i := 0; i < 200; i++ {
		ts := fixedNow.Add(time.Duration(i) * 37 * time.Minute).Format(time.RFC3339)
		h := calc.RemainingHours(ts)
		assert.GreaterOrEqual(t, h, prev, "timestamp %s", ts)
		assert.GreaterOrEqual(t, h, 0)
		prev = h
	}
}

func TestHours_MalformedReturnsError(t *testing.T) {
	h, err := Hours("2026-13-45T99:00:00Z", fixedNow)

	require.Error(t, err)
	assert.Equal(t, 0, h)
}

func TestParse_NormalisesToUTC(t *testing.T) {
	ts, err := Parse("2026-02-10T13:00:00+01:00")

	require.NoError(t, err)
	assert.Equal(t, fixedNow, ts)
	assert.Equal(t, time.UTC, ts.Location())
}
