// Package telemetry defines the validated per-sample time series the
// analysis pipeline consumes, and the importers that produce it from
// recorded lap files (long-format CSV exports and UDP pcap captures).
//
// A Series is immutable once built: every downstream stage reads it and
// produces a fresh derived slice, never mutating the samples.
package telemetry

import (
	"errors"
	"fmt"
)

// Sample is one telemetry observation. Units are fixed at import time:
// seconds, meters, m/s, radians (signed), and 0-1 pedal fractions.
type Sample struct {
	Timestamp     float64 `json:"timestamp"`
	Distance      float64 `json:"distance"`
	Speed         float64 `json:"speed"`
	SteeringAngle float64 `json:"steering_angle"`
	Throttle      float64 `json:"throttle"`
	Brake         float64 `json:"brake"`
}

// Series is an ordered sample sequence for a single lap.
type Series []Sample

var (
	// ErrEmptySeries indicates a lap with no samples at all.
	ErrEmptySeries = errors.New("telemetry: empty sample series")

	// ErrNonMonotonicTime indicates timestamps that move backwards.
	ErrNonMonotonicTime = errors.New("telemetry: timestamps not monotonically increasing")

	// ErrNonMonotonicDistance indicates a lap-distance channel that decreases.
	ErrNonMonotonicDistance = errors.New("telemetry: distance not monotonically non-decreasing")
)

// Validate checks the structural invariants every pipeline stage assumes:
// a non-empty series, strictly increasing timestamps, and non-decreasing
// lap distance. Importers call this before a Series leaves the package.
func (s Series) Validate() error {
	if len(s) == 0 {
		return ErrEmptySeries
	}
	for i := 1; i < len(s); i++ {
		if s[i].Timestamp <= s[i-1].Timestamp {
			return fmt.Errorf("%w: sample %d (%.6f) after %.6f", ErrNonMonotonicTime, i, s[i].Timestamp, s[i-1].Timestamp)
		}
		if s[i].Distance < s[i-1].Distance {
			return fmt.Errorf("%w: sample %d (%.3f m) after %.3f m", ErrNonMonotonicDistance, i, s[i].Distance, s[i-1].Distance)
		}
	}
	return nil
}

// Duration returns the elapsed time covered by the series in seconds.
func (s Series) Duration() float64 {
	if len(s) < 2 {
		return 0
	}
	return s[len(s)-1].Timestamp - s[0].Timestamp
}

// TotalDistance returns the lap distance covered by the series in meters.
func (s Series) TotalDistance() float64 {
	if len(s) < 2 {
		return 0
	}
	return s[len(s)-1].Distance - s[0].Distance
}

// MeanInterval returns the mean sample spacing in seconds. Windowed metrics
// use it to convert a trailing duration into a sample count. A single-sample
// series reports 0.
func (s Series) MeanInterval() float64 {
	if len(s) < 2 {
		return 0
	}
	return s.Duration() / float64(len(s)-1)
}

// Dt returns the time step preceding sample i. The first sample has no
// predecessor and contributes no motion, so Dt(0) is 0.
func (s Series) Dt(i int) float64 {
	if i <= 0 || i >= len(s) {
		return 0
	}
	return s[i].Timestamp - s[i-1].Timestamp
}
