// Package pipeline runs one complete lap analysis: segmentation, track
// reconstruction, and metric extraction fan out over the immutable sample
// series, then the load model and insights run over their results. A run
// either completes in full or fails with the first stage error; no partial
// output escapes.
package pipeline

import (
	"fmt"
	"sync"

	"github.com/banshee-data/cogload.report/internal/insights"
	"github.com/banshee-data/cogload.report/internal/lap"
	"github.com/banshee-data/cogload.report/internal/loadindex"
	"github.com/banshee-data/cogload.report/internal/metrics"
	"github.com/banshee-data/cogload.report/internal/telemetry"
	"github.com/banshee-data/cogload.report/internal/trackmap"
)

// Params are the run parameters received from the CLI or API shell. Zero
// values fall back to documented defaults during Validate.
type Params struct {
	SegmentCount           int               `json:"segment_count"`
	MetricWindowSeconds    float64           `json:"metric_window_seconds"`
	SmoothingWindowSamples int               `json:"smoothing_window_samples"`
	Weights                loadindex.Weights `json:"weights"`
	TopK                   int               `json:"top_k"`
	Track                  trackmap.Config   `json:"-"`
}

// DefaultParams returns the production defaults: 60 segments, a 0.5s metric
// window, 3-sample smoothing, the standard weight calibration, top-5 lists.
func DefaultParams() Params {
	return Params{
		SegmentCount:           60,
		MetricWindowSeconds:    0.5,
		SmoothingWindowSamples: 3,
		Weights:                loadindex.DefaultWeights(),
		TopK:                   insights.DefaultTopK,
		Track:                  trackmap.DefaultConfig(),
	}
}

// Normalize fills unset fields with defaults and validates the rest.
// Segment count is deliberately not defaulted: zero is the caller's error.
func (p *Params) Normalize() error {
	def := DefaultParams()
	if p.MetricWindowSeconds == 0 {
		p.MetricWindowSeconds = def.MetricWindowSeconds
	}
	if p.SmoothingWindowSamples == 0 {
		p.SmoothingWindowSamples = def.SmoothingWindowSamples
	}
	if p.Weights == (loadindex.Weights{}) {
		p.Weights = def.Weights
	}
	if p.TopK == 0 {
		p.TopK = def.TopK
	}
	if p.Track == (trackmap.Config{}) {
		p.Track = def.Track
	}

	if p.SegmentCount < 1 {
		return fmt.Errorf("%w: got %d", lap.ErrInvalidSegmentCount, p.SegmentCount)
	}
	if p.MetricWindowSeconds <= 0 {
		return fmt.Errorf("pipeline: metric window must be positive, got %f", p.MetricWindowSeconds)
	}
	if p.SmoothingWindowSamples < 1 {
		return fmt.Errorf("pipeline: smoothing window must be positive, got %d", p.SmoothingWindowSamples)
	}
	return p.Weights.Validate()
}

// Result is the immutable output of one run, handed to the renderer and
// report store. Positions and CLI are index-aligned with the input samples.
type Result struct {
	Segments   []lap.Segment       `json:"segments"`
	Positions  []trackmap.Position `json:"positions"`
	Raw        metrics.RawSignals  `json:"raw_signals"`
	Normalized metrics.RawSignals  `json:"normalized_signals"`
	CLI        []float64           `json:"cli"`
	Report     insights.Report     `json:"report"`
	Params     Params              `json:"params"`
	Samples    int                 `json:"samples"`
}

// Run executes the full pipeline over one lap. The three leading stages
// share no state beyond the read-only samples, so they run concurrently;
// the load model waits on metrics and insights waits on both remaining
// results.
func Run(samples telemetry.Series, params Params) (*Result, error) {
	if err := params.Normalize(); err != nil {
		return nil, err
	}
	if err := samples.Validate(); err != nil {
		return nil, err
	}

	var (
		wg        sync.WaitGroup
		segments  []lap.Segment
		positions []trackmap.Position
		raw       metrics.RawSignals
		segErr    error
		trackErr  error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		segments, segErr = lap.Partition(samples, params.SegmentCount)
	}()
	go func() {
		defer wg.Done()
		positions, trackErr = trackmap.Reconstruct(samples, params.Track)
	}()
	go func() {
		defer wg.Done()
		raw = metrics.Extract(samples, metrics.Config{WindowSeconds: params.MetricWindowSeconds})
	}()
	wg.Wait()

	if segErr != nil {
		return nil, segErr
	}
	if trackErr != nil {
		return nil, trackErr
	}

	model, err := loadindex.Compute(raw, params.Weights, params.SmoothingWindowSamples)
	if err != nil {
		return nil, err
	}

	report, err := insights.Analyze(model.CLI, segments, model.Normalized, params.Weights, params.TopK)
	if err != nil {
		return nil, err
	}

	return &Result{
		Segments:   segments,
		Positions:  positions,
		Raw:        raw,
		Normalized: model.Normalized,
		CLI:        model.CLI,
		Report:     report,
		Params:     params,
		Samples:    len(samples),
	}, nil
}
