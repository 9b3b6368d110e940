// Package backoff computes delays for polling and retry loops.
package backoff

import "time"

const (
	defaultInitial = 100 * time.Millisecond
	defaultMax     = 5 * time.Second
)

// Config describes a delay cadence. Zero values use defaults. Setting Max
// equal to Initial yields a constant cadence.
type Config struct {
	Initial time.Duration // default: 100ms
	Max     time.Duration // default: 5s
}

// Exponential returns the delay before the given 1-based attempt: attempt 1
// waits Initial, and each further attempt doubles the delay up to Max.
func Exponential(attempt int, cfg *Config) time.Duration {
	initial, ceiling := defaultInitial, defaultMax
	if cfg != nil {
		if cfg.Initial > 0 {
			initial = cfg.Initial
		}
		if cfg.Max > 0 {
			ceiling = cfg.Max
		}
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= ceiling || delay <= 0 { // <= 0 means duration overflow
			return ceiling
		}
	}
	if delay > ceiling {
		return ceiling
	}
	return delay
}
