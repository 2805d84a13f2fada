// Package loadindex turns the four raw driver-input signals into the
// Cognitive Load Index: a per-sample score in [0,1] built by full-lap
// min-max normalization, a fixed weighted blend, and rolling smoothing.
package loadindex

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/cogload.report/internal/metrics"
)

var (
	// ErrEmptySignal indicates an empty raw-signal series or series of
	// mismatched lengths.
	ErrEmptySignal = errors.New("loadindex: empty or misaligned raw signal series")

	// ErrInvalidWeights indicates weights that are negative or do not sum
	// to 1.0.
	ErrInvalidWeights = errors.New("loadindex: weights must be non-negative and sum to 1.0")
)

// Weights blends the four normalized signals. Steering carries the most
// weight: corrective steering is the strongest workload tell in the source
// data. These are a calibration default, not an invariant.
type Weights struct {
	Steering float64 `json:"steering"`
	Throttle float64 `json:"throttle"`
	Brake    float64 `json:"brake"`
	Lateral  float64 `json:"lateral"`
}

// DefaultWeights returns the production calibration (0.4/0.3/0.2/0.1).
func DefaultWeights() Weights {
	return Weights{Steering: 0.4, Throttle: 0.3, Brake: 0.2, Lateral: 0.1}
}

const weightSumTolerance = 1e-9

// Validate checks non-negativity and unit sum.
func (w Weights) Validate() error {
	for _, v := range []float64{w.Steering, w.Throttle, w.Brake, w.Lateral} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: negative weight %f", ErrInvalidWeights, v)
		}
	}
	if sum := w.Steering + w.Throttle + w.Brake + w.Lateral; math.Abs(sum-1) > weightSumTolerance {
		return fmt.Errorf("%w: sum is %f", ErrInvalidWeights, sum)
	}
	return nil
}

// ByName returns the weight for a raw-signal name.
func (w Weights) ByName(name string) float64 {
	switch name {
	case metrics.SignalSteeringEntropy:
		return w.Steering
	case metrics.SignalThrottleJerk:
		return w.Throttle
	case metrics.SignalBrakePanic:
		return w.Brake
	case metrics.SignalLateralInstability:
		return w.Lateral
	default:
		return 0
	}
}

// Result is the model output: the smoothed CLI series plus the normalized
// signals, which the insights stage reuses for cause attribution.
type Result struct {
	CLI        []float64
	Normalized metrics.RawSignals
}

// Compute produces one CLI value per sample: normalize each raw signal to
// [0,1] over the full lap (a constant signal normalizes to 0 everywhere),
// blend with weights, smooth with a centered moving average of
// smoothingWindow samples (shrinking at the edges; an even window rounds up
// to the next odd span so the average stays centered), and clamp to [0,1].
func Compute(raw metrics.RawSignals, weights Weights, smoothingWindow int) (Result, error) {
	n := raw.Len()
	if n <= 0 {
		return Result{}, ErrEmptySignal
	}
	if err := weights.Validate(); err != nil {
		return Result{}, err
	}
	if smoothingWindow < 1 {
		smoothingWindow = 1
	}

	normalized := metrics.RawSignals{
		SteeringEntropy:    normalize(raw.SteeringEntropy),
		ThrottleJerk:       normalize(raw.ThrottleJerk),
		BrakePanic:         normalize(raw.BrakePanic),
		LateralInstability: normalize(raw.LateralInstability),
	}

	blended := make([]float64, n)
	for i := 0; i < n; i++ {
		blended[i] = weights.Steering*normalized.SteeringEntropy[i] +
			weights.Throttle*normalized.ThrottleJerk[i] +
			weights.Brake*normalized.BrakePanic[i] +
			weights.Lateral*normalized.LateralInstability[i]
	}

	cli := smoothCentered(blended, smoothingWindow)
	for i := range cli {
		cli[i] = clamp01(cli[i])
	}

	return Result{CLI: cli, Normalized: normalized}, nil
}

// normalize min-max scales a series onto [0,1] over the full lap. A constant
// series maps to all zeros rather than dividing by zero.
func normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	lo := floats.Min(values)
	hi := floats.Max(values)
	span := hi - lo
	if span == 0 {
		return out
	}
	for i, v := range values {
		out[i] = (v - lo) / span
	}
	return out
}

// smoothCentered is a centered moving average with shrinking edge windows,
// so the series keeps its length and the ends are not biased toward zero.
// The half-window is window/2 on each side, so an even window spans window+1
// samples rather than skewing the center to one side.
func smoothCentered(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	half := window / 2
	for i := range values {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half
		if hi > len(values)-1 {
			hi = len(values) - 1
		}
		var sum float64
		for j := lo; j <= hi; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(hi-lo+1)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
