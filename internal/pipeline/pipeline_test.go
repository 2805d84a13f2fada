package pipeline

import (
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/cogload.report/internal/lap"
	"github.com/banshee-data/cogload.report/internal/loadindex"
	"github.com/banshee-data/cogload.report/internal/telemetry"
	"github.com/banshee-data/cogload.report/internal/trackmap"
)

// lapAt20 builds n samples at 10 Hz, constant 20 m/s, with gentle constant
// cornering so the reconstructed track is drawable.
func lapAt20(n int) telemetry.Series {
	s := make(telemetry.Series, n)
	for i := range s {
		t := float64(i) * 0.1
		s[i] = telemetry.Sample{
			Timestamp:     t,
			Distance:      20 * t,
			Speed:         20,
			SteeringAngle: 0.05,
			Throttle:      0.8,
		}
	}
	return s
}

func TestRunProducesAlignedResult(t *testing.T) {
	samples := lapAt20(100)
	params := DefaultParams()
	params.SegmentCount = 5

	res, err := Run(samples, params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Positions) != len(samples) {
		t.Errorf("positions length %d, want %d", len(res.Positions), len(samples))
	}
	if len(res.CLI) != len(samples) {
		t.Errorf("CLI length %d, want %d", len(res.CLI), len(samples))
	}
	if res.Raw.Len() != len(samples) {
		t.Errorf("raw signals length %d, want %d", res.Raw.Len(), len(samples))
	}
	if len(res.Segments) != 5 {
		t.Errorf("got %d segments, want 5", len(res.Segments))
	}
	for i, v := range res.CLI {
		if v < 0 || v > 1 || math.IsNaN(v) {
			t.Fatalf("CLI[%d] = %f outside [0,1]", i, v)
		}
	}
}

func TestRunAlternatingSteeringScenario(t *testing.T) {
	// 100 samples, constant 20 m/s, steering alternating +/-0.1 every 10
	// samples in the first half of the lap and held constant in the second.
	samples := lapAt20(100)
	for i := 0; i < 50; i++ {
		if (i/10)%2 == 0 {
			samples[i].SteeringAngle = 0.1
		} else {
			samples[i].SteeringAngle = -0.1
		}
	}
	for i := 50; i < 100; i++ {
		samples[i].SteeringAngle = 0.1
	}

	params := DefaultParams()
	params.SegmentCount = 5

	res, err := Run(samples, params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, seg := range res.Segments {
		if seg.Len() != 20 {
			t.Errorf("segment %d has %d samples, want 20", i, seg.Len())
		}
	}

	// Segments covering the alternation must carry more load than the
	// steady-steering segments.
	meanOf := func(seg lap.Segment) float64 {
		var sum float64
		for i := seg.Start; i < seg.End; i++ {
			sum += res.CLI[i]
		}
		return sum / float64(seg.Len())
	}
	alternating := (meanOf(res.Segments[0]) + meanOf(res.Segments[1])) / 2
	steady := (meanOf(res.Segments[3]) + meanOf(res.Segments[4])) / 2
	if alternating <= steady {
		t.Errorf("alternating segments mean CLI %f not above steady %f", alternating, steady)
	}
}

func TestRunConstantThrottleContributesNothing(t *testing.T) {
	samples := lapAt20(80)
	for i := range samples {
		// Vary steering so the lap is not fully uniform.
		samples[i].SteeringAngle = math.Sin(float64(i)*0.7) * 0.1
	}
	params := DefaultParams()
	params.SegmentCount = 4

	res, err := Run(samples, params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, v := range res.Raw.ThrottleJerk {
		if v != 0 {
			t.Fatalf("throttle jerk[%d] = %f, want 0 for identical throttle", i, v)
		}
	}
	for i, v := range res.Normalized.ThrottleJerk {
		if v != 0 {
			t.Fatalf("normalized throttle[%d] = %f, want 0", i, v)
		}
	}
}

func TestRunTopListsDisjoint(t *testing.T) {
	samples := lapAt20(120)
	for i := range samples {
		samples[i].SteeringAngle = math.Sin(float64(i)*1.3) * 0.2
		samples[i].Throttle = 0.5 + 0.4*math.Sin(float64(i)*0.3)
	}
	params := DefaultParams()
	params.SegmentCount = 12
	params.TopK = 5

	res, err := Run(samples, params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	seen := map[int]bool{}
	for _, rep := range res.Report.TopHigh {
		seen[rep.Segment.Index] = true
	}
	for _, rep := range res.Report.TopLow {
		if seen[rep.Segment.Index] {
			t.Errorf("segment %d appears in both top lists", rep.Segment.Index)
		}
	}
}

func TestRunParameterErrors(t *testing.T) {
	samples := lapAt20(50)

	t.Run("zero_segment_count", func(t *testing.T) {
		params := DefaultParams()
		params.SegmentCount = 0
		if _, err := Run(samples, params); !errors.Is(err, lap.ErrInvalidSegmentCount) {
			t.Fatalf("error = %v, want ErrInvalidSegmentCount", err)
		}
	})

	t.Run("bad_weights", func(t *testing.T) {
		params := DefaultParams()
		params.Weights = loadindex.Weights{Steering: 0.5, Throttle: 0.5, Brake: 0.5, Lateral: 0.5}
		if _, err := Run(samples, params); !errors.Is(err, loadindex.ErrInvalidWeights) {
			t.Fatalf("error = %v, want ErrInvalidWeights", err)
		}
	})

	t.Run("degenerate_track", func(t *testing.T) {
		still := make(telemetry.Series, 20)
		for i := range still {
			still[i].Timestamp = float64(i)
		}
		params := DefaultParams()
		params.SegmentCount = 2
		if _, err := Run(still, params); !errors.Is(err, trackmap.ErrDegenerateTrack) {
			t.Fatalf("error = %v, want ErrDegenerateTrack", err)
		}
	})
}

func TestDefaultParamsNormalize(t *testing.T) {
	p := Params{SegmentCount: 10}
	if err := p.Normalize(); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if p.MetricWindowSeconds != 0.5 || p.SmoothingWindowSamples != 3 || p.TopK != 5 {
		t.Errorf("defaults not applied: %+v", p)
	}
	if p.Weights != loadindex.DefaultWeights() {
		t.Errorf("weights default not applied: %+v", p.Weights)
	}
}
