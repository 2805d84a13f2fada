// Package trackmap reconstructs an approximate 2D track shape from speed and
// steering by dead reckoning. The output is a qualitative shape for heatmap
// rendering, not a geodetic reconstruction: integration drift is folded back
// by a closing-loop correction and the path is rotated to a canonical
// orientation before display.
package trackmap

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/cogload.report/internal/telemetry"
)

// ErrDegenerateTrack indicates a lap that cannot produce a drawable shape
// (zero net distance or a vehicle that never moves). Callers should skip
// visualization rather than render a collapsed point.
var ErrDegenerateTrack = errors.New("trackmap: degenerate lap, no track shape")

// Position is one reconstructed 2D point, index-aligned with the samples.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Config holds the dead-reckoning calibration. The defaults are a
// calibration choice, not physics; see DefaultConfig.
type Config struct {
	// YawRateGain converts steering angle directly to yaw rate
	// (theta += steer * gain * dt). Used when Wheelbase is zero.
	YawRateGain float64

	// Wheelbase (meters), when positive, switches to the bicycle model:
	// yaw rate = speed / wheelbase * tan(steer). SteeringRatio divides the
	// steering angle first when the channel reports the wheel, not the tyre.
	Wheelbase     float64
	SteeringRatio float64
}

// DefaultConfig returns the unit-gain direct mapping. Importers that know
// the vehicle can opt into the bicycle model (e.g. Wheelbase 2.57,
// SteeringRatio 1 for a GR86 with road-wheel angles already converted).
func DefaultConfig() Config {
	return Config{YawRateGain: 1.0}
}

func (c Config) yawRate(s telemetry.Sample) float64 {
	if c.Wheelbase > 0 {
		steer := s.SteeringAngle
		if c.SteeringRatio > 0 {
			steer /= c.SteeringRatio
		}
		return s.Speed / c.Wheelbase * math.Tan(steer)
	}
	return s.SteeringAngle * c.YawRateGain
}

// Reconstruct dead-reckons samples into one Position per sample, applies the
// closing-loop drift correction, and aligns the path to its principal axis
// inside a unit box. Alignment is rotation + uniform scale + translation
// only, so relative point-to-point shape is preserved.
func Reconstruct(samples telemetry.Series, cfg Config) ([]Position, error) {
	if len(samples) == 0 {
		return nil, ErrDegenerateTrack
	}

	maxSpeed := 0.0
	for _, s := range samples {
		if s.Speed > maxSpeed {
			maxSpeed = s.Speed
		}
	}
	if samples.TotalDistance() <= 0 || maxSpeed <= 0 {
		return nil, ErrDegenerateTrack
	}

	positions := integrate(samples, cfg)
	closeLoop(positions, samples)
	alignPrincipalAxis(positions)
	normalizeToUnitBox(positions)
	return positions, nil
}

// integrate runs the dead-reckoning loop. The first step uses dt=0 and
// contributes no motion.
func integrate(samples telemetry.Series, cfg Config) []Position {
	positions := make([]Position, len(samples))
	theta, x, y := 0.0, 0.0, 0.0
	for i := range samples {
		dt := samples.Dt(i)
		theta += cfg.yawRate(samples[i]) * dt
		x += samples[i].Speed * math.Cos(theta) * dt
		y += samples[i].Speed * math.Sin(theta) * dt
		positions[i] = Position{X: x, Y: y}
	}
	return positions
}

// closeLoop redistributes the end-of-lap drift vector back along the path,
// proportional to traversed distance, so a closed lap closes smoothly
// instead of jumping at the final point.
func closeLoop(positions []Position, samples telemetry.Series) {
	n := len(positions)
	total := samples.TotalDistance()
	if n < 2 || total <= 0 {
		return
	}
	driftX := positions[n-1].X - positions[0].X
	driftY := positions[n-1].Y - positions[0].Y
	base := samples[0].Distance
	for i := range positions {
		frac := (samples[i].Distance - base) / total
		positions[i].X -= driftX * frac
		positions[i].Y -= driftY * frac
	}
}

// alignPrincipalAxis rotates the path so its dominant spatial axis lies on
// x. This cancels the arbitrary initial heading so the same circuit renders
// in the same orientation regardless of where integration started.
func alignPrincipalAxis(positions []Position) {
	n := len(positions)
	if n < 3 {
		return
	}

	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, p := range positions {
		xs[i] = p.X
		ys[i] = p.Y
	}
	meanX := stat.Mean(xs, nil)
	meanY := stat.Mean(ys, nil)

	data := mat.NewDense(n, 2, nil)
	for i := range positions {
		data.Set(i, 0, xs[i]-meanX)
		data.Set(i, 1, ys[i]-meanY)
	}
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, data, nil)

	var eig mat.EigenSym
	if !eig.Factorize(&cov, true) {
		return
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// EigenSym returns eigenvalues in ascending order; the principal axis
	// is the last column.
	ux := vecs.At(0, 1)
	uy := vecs.At(1, 1)
	norm := math.Hypot(ux, uy)
	if norm == 0 {
		return
	}
	cosA := ux / norm
	sinA := uy / norm

	for i := range positions {
		dx := positions[i].X - meanX
		dy := positions[i].Y - meanY
		positions[i].X = dx*cosA + dy*sinA
		positions[i].Y = -dx*sinA + dy*cosA
	}
}

// normalizeToUnitBox translates the path to the origin and scales both axes
// by the same factor so the longer extent spans [0,1].
func normalizeToUnitBox(positions []Position) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range positions {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	scale := math.Max(maxX-minX, maxY-minY)
	if scale <= 0 {
		return
	}
	for i := range positions {
		positions[i].X = (positions[i].X - minX) / scale
		positions[i].Y = (positions[i].Y - minY) / scale
	}
}
