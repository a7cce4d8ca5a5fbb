// Package jitter provides the delay strategy used to pace browser input.
package jitter

import (
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// Service defines the interface for run pacing.
// Delays are not cancellable; a run either completes or fails outright.
type Service interface {
	// Sleep waits for exactly d.
	Sleep(d time.Duration)
	// Between waits for a duration drawn uniformly from [minD, maxD] and returns it.
	Between(minD, maxD time.Duration) time.Duration
}

// Impl implements Service with random uniform delays.
type Impl struct {
	sleep  func(time.Duration)
	intN   func(n int64) int64
	logger zerolog.Logger
}

// New creates a randomized delay service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		sleep:  time.Sleep,
		intN:   rand.Int63n,
		logger: logger,
	}
}

// NewWithFuncs creates a delay service with custom sleep and random sources (for testing).
func NewWithFuncs(logger zerolog.Logger, sleep func(time.Duration), intN func(n int64) int64) *Impl {
	return &Impl{
		sleep:  sleep,
		intN:   intN,
		logger: logger,
	}
}

// Sleep waits for d.
func (s *Impl) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	s.sleep(d)
}

// Between waits for a random duration in [minD, maxD].
func (s *Impl) Between(minD, maxD time.Duration) time.Duration {
	d := Draw(minD, maxD, s.intN)
	s.logger.Trace().Dur("delay", d).Msg("pausing")
	s.Sleep(d)
	return d
}

// Draw picks a duration in [minD, maxD] using intN. Inverted bounds are swapped
// and negative bounds are treated as zero.
func Draw(minD, maxD time.Duration, intN func(n int64) int64) time.Duration {
	if minD < 0 {
		minD = 0
	}
	if maxD < 0 {
		maxD = 0
	}
	if maxD < minD {
		minD, maxD = maxD, minD
	}
	span := int64(maxD - minD)
	if span == 0 {
		return minD
	}
	return minD + time.Duration(intN(span+1))
}

// None is a Service that never waits.
type None struct{}

// Sleep returns immediately.
func (None) Sleep(time.Duration) {}

// Between returns zero without waiting.
func (None) Between(time.Duration, time.Duration) time.Duration { return 0 }
