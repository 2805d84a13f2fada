// Package metrics computes the four raw per-sample driver-input signals the
// cognitive load model blends: steering entropy, throttle jerk, brake panic,
// and lateral instability. Each is a trailing-window reduction aligned to
// the window's final sample.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/cogload.report/internal/telemetry"
)

// Signal names, used for cause attribution in reports.
const (
	SignalSteeringEntropy    = "steering_entropy"
	SignalThrottleJerk       = "throttle_jerk"
	SignalBrakePanic         = "brake_panic"
	SignalLateralInstability = "lateral_instability"
)

// SignalNames lists the four raw signals in weight order.
var SignalNames = []string{
	SignalSteeringEntropy,
	SignalThrottleJerk,
	SignalBrakePanic,
	SignalLateralInstability,
}

// RawSignals holds the four aligned raw series, one value per sample.
type RawSignals struct {
	SteeringEntropy    []float64 `json:"steering_entropy"`
	ThrottleJerk       []float64 `json:"throttle_jerk"`
	BrakePanic         []float64 `json:"brake_panic"`
	LateralInstability []float64 `json:"lateral_instability"`
}

// Len returns the common series length, or -1 if the series are misaligned.
func (r RawSignals) Len() int {
	n := len(r.SteeringEntropy)
	if len(r.ThrottleJerk) != n || len(r.BrakePanic) != n || len(r.LateralInstability) != n {
		return -1
	}
	return n
}

// ByName returns the named series, or nil for an unknown name.
func (r RawSignals) ByName(name string) []float64 {
	switch name {
	case SignalSteeringEntropy:
		return r.SteeringEntropy
	case SignalThrottleJerk:
		return r.ThrottleJerk
	case SignalBrakePanic:
		return r.BrakePanic
	case SignalLateralInstability:
		return r.LateralInstability
	default:
		return nil
	}
}

// Config holds the extraction parameters.
type Config struct {
	// WindowSeconds is the trailing window duration; it converts to a
	// sample count via the lap's mean sample interval. Default 0.5.
	WindowSeconds float64

	// EntropyBins is the histogram bin count for steering entropy.
	EntropyBins int

	// BrakeSpikeThreshold is the per-sample brake delta above which an
	// increase counts as a stab rather than trail-braking.
	BrakeSpikeThreshold float64
}

// DefaultConfig returns the calibration used in production reports.
func DefaultConfig() Config {
	return Config{
		WindowSeconds:       0.5,
		EntropyBins:         8,
		BrakeSpikeThreshold: 0.08,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.WindowSeconds <= 0 {
		c.WindowSeconds = def.WindowSeconds
	}
	if c.EntropyBins < 2 {
		c.EntropyBins = def.EntropyBins
	}
	if c.BrakeSpikeThreshold <= 0 {
		c.BrakeSpikeThreshold = def.BrakeSpikeThreshold
	}
}

// WindowSamples converts the configured duration to a sample count for the
// given lap, never less than 2 so windowed derivatives have something to
// differentiate.
func (c Config) WindowSamples(samples telemetry.Series) int {
	interval := samples.MeanInterval()
	if interval <= 0 {
		return 2
	}
	n := int(math.Round(c.WindowSeconds / interval))
	if n < 2 {
		n = 2
	}
	return n
}

// Extract computes the four raw signals for a lap. Output series are
// index-aligned with samples; degenerate windows produce 0, never NaN/Inf.
func Extract(samples telemetry.Series, cfg Config) RawSignals {
	cfg.applyDefaults()
	window := cfg.WindowSamples(samples)

	n := len(samples)
	steering := make([]float64, n)
	throttle := make([]float64, n)
	brake := make([]float64, n)
	speed := make([]float64, n)
	for i, s := range samples {
		steering[i] = s.SteeringAngle
		throttle[i] = s.Throttle
		brake[i] = s.Brake
		speed[i] = s.Speed
	}

	steerDelta := diff(steering)
	steerRate := steerDelta // same quantity, named for the lateral metric
	throttleRate := diff(throttle)
	throttleAccel := diff(throttleRate)
	brakeDelta := diff(brake)

	return RawSignals{
		SteeringEntropy: Rolling(steerDelta, window, func(win []float64) float64 {
			return binnedEntropy(win, cfg.EntropyBins)
		}),
		ThrottleJerk: Rolling(throttleAccel, window, meanAbs),
		BrakePanic: Rolling(brakeDelta, window, func(win []float64) float64 {
			return spikeScore(win, cfg.BrakeSpikeThreshold)
		}),
		LateralInstability: RollingPair(steerRate, speed, window, lateralScore),
	}
}

// binnedEntropy buckets the window into equal-width bins and returns the
// Shannon entropy of the occupancy distribution, normalized by the maximum
// for that bin count. Constant input yields 0, not NaN.
func binnedEntropy(win []float64, bins int) float64 {
	if len(win) < 2 {
		return 0
	}
	lo, hi := win[0], win[0]
	for _, v := range win[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi-lo == 0 {
		return 0
	}

	counts := make([]float64, bins)
	width := (hi - lo) / float64(bins)
	for _, v := range win {
		bin := int((v - lo) / width)
		if bin >= bins {
			bin = bins - 1
		}
		counts[bin]++
	}
	for i := range counts {
		counts[i] /= float64(len(win))
	}
	return stat.Entropy(counts) / math.Log(float64(bins))
}

// meanAbs is the average magnitude of the window.
func meanAbs(win []float64) float64 {
	if len(win) == 0 {
		return 0
	}
	var sum float64
	for _, v := range win {
		sum += math.Abs(v)
	}
	return sum / float64(len(win))
}

// spikeScore sums brake-delta increases above the threshold, normalized by
// window length. Smooth trail-braking stays under the threshold and scores
// zero; stab-braking does not.
func spikeScore(win []float64, threshold float64) float64 {
	if len(win) == 0 {
		return 0
	}
	var sum float64
	for _, v := range win {
		if v > threshold {
			sum += v
		}
	}
	return sum / float64(len(win))
}

// lateralScore is the variance of steering rate scaled by window mean
// speed: the same steering noise is a larger lateral disturbance when fast.
func lateralScore(steerRate, speed []float64) float64 {
	if len(steerRate) < 2 {
		return 0
	}
	return stat.Variance(steerRate, nil) * stat.Mean(speed, nil)
}
