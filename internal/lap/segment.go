// Package lap partitions a lap's sample sequence into contiguous segments
// of equal track distance for localized reporting.
package lap

import (
	"errors"
	"fmt"

	"github.com/banshee-data/cogload.report/internal/telemetry"
)

var (
	// ErrInvalidSegmentCount indicates a non-positive segment count.
	ErrInvalidSegmentCount = errors.New("lap: segment count must be at least 1")

	// ErrInsufficientData indicates fewer samples than requested segments.
	ErrInsufficientData = errors.New("lap: fewer samples than segments")
)

// Segment is a half-open index range [Start, End) into the sample sequence
// together with the distance band it covers.
type Segment struct {
	Index         int     `json:"index"`
	Start         int     `json:"start"`
	End           int     `json:"end"`
	StartDistance float64 `json:"start_distance"`
	EndDistance   float64 `json:"end_distance"`
}

// Len returns the number of samples in the segment.
func (s Segment) Len() int { return s.End - s.Start }

// Partition splits samples into segmentCount contiguous segments by equal
// distance bins. Segments are ordered, non-overlapping, and cover every
// sample exactly once; the final bin absorbs the lap-end boundary sample.
// Distance must be monotonically non-decreasing (see telemetry.Series).
func Partition(samples telemetry.Series, segmentCount int) ([]Segment, error) {
	if segmentCount < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSegmentCount, segmentCount)
	}
	if len(samples) < segmentCount {
		return nil, fmt.Errorf("%w: %d samples for %d segments", ErrInsufficientData, len(samples), segmentCount)
	}

	base := samples[0].Distance
	total := samples[len(samples)-1].Distance - base
	binWidth := total / float64(segmentCount)

	segments := make([]Segment, segmentCount)
	for i := range segments {
		segments[i] = Segment{
			Index:         i,
			StartDistance: base + float64(i)*binWidth,
			EndDistance:   base + float64(i+1)*binWidth,
		}
	}
	// Report the true lap end rather than an accumulated rounding tail.
	segments[segmentCount-1].EndDistance = samples[len(samples)-1].Distance

	// Distance is monotonic, so bin assignment is a single forward scan.
	cursor := 0
	for i := range segments {
		segments[i].Start = cursor
		for cursor < len(samples) && binFor(samples[cursor].Distance-base, binWidth, segmentCount) == i {
			cursor++
		}
		segments[i].End = cursor
	}
	// A zero-width lap puts every sample in bin 0; the scan above already
	// leaves trailing segments empty in that case, which the insights
	// stage skips.
	segments[segmentCount-1].End = len(samples)

	return segments, nil
}

// binFor clamps to the final bin so the sample at exactly total distance
// belongs to the last segment instead of a phantom one past the end.
func binFor(offset, binWidth float64, segmentCount int) int {
	if binWidth <= 0 {
		return 0
	}
	bin := int(offset / binWidth)
	if bin > segmentCount-1 {
		return segmentCount - 1
	}
	if bin < 0 {
		return 0
	}
	return bin
}
