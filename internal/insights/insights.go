// Package insights maps the CLI series onto lap segments, ranks segments by
// mean load, and attributes each segment's dominant raw-signal cause.
package insights

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/cogload.report/internal/lap"
	"github.com/banshee-data/cogload.report/internal/loadindex"
	"github.com/banshee-data/cogload.report/internal/metrics"
)

var (
	// ErrEmptySegment marks a segment with no samples. Empty segments are
	// excluded from ranking, never fatal to the run.
	ErrEmptySegment = errors.New("insights: segment contains no samples")

	// ErrMisaligned indicates a CLI series that does not cover the
	// segments' sample range.
	ErrMisaligned = errors.New("insights: CLI series shorter than segment range")
)

// SegmentReport summarizes one lap segment.
type SegmentReport struct {
	Segment       lap.Segment `json:"segment"`
	MeanCLI       float64     `json:"mean_cli"`
	Rank          int         `json:"rank"` // 1 = highest mean CLI
	DominantCause string      `json:"dominant_cause"`
}

// Report is the full insights output for one analysis run.
type Report struct {
	// Segments holds every non-empty segment, ordered by track position.
	Segments []SegmentReport `json:"segments"`
	// TopHigh and TopLow are the k highest- and lowest-stress segments,
	// ties broken by segment start index (stable).
	TopHigh []SegmentReport `json:"top_high"`
	TopLow  []SegmentReport `json:"top_low"`

	MeanCLI float64 `json:"mean_cli"`
	MaxCLI  float64 `json:"max_cli"`
	// CommonHighLoadCause is the most frequent dominant cause among the
	// top quintile of segments by mean CLI. The quintile is never smaller
	// than one segment, so this is "" only when no segment has samples.
	CommonHighLoadCause string `json:"common_high_load_cause,omitempty"`
}

// DefaultTopK is the ranking depth used when the caller does not choose one.
const DefaultTopK = 5

// Analyze builds the segment report: mean CLI per segment, descending and
// ascending top-k rankings, and per-segment dominant cause (the raw signal
// with the largest weighted normalized contribution). Empty segments are
// skipped.
func Analyze(cli []float64, segments []lap.Segment, normalized metrics.RawSignals, weights loadindex.Weights, topK int) (Report, error) {
	if topK < 1 {
		topK = DefaultTopK
	}
	if err := weights.Validate(); err != nil {
		return Report{}, err
	}
	if n := normalized.Len(); n < 0 || n != len(cli) {
		return Report{}, fmt.Errorf("%w: cli %d, signals %d", ErrMisaligned, len(cli), normalized.Len())
	}

	var reports []SegmentReport
	for _, seg := range segments {
		rep, err := summarize(cli, seg, normalized, weights)
		if errors.Is(err, ErrEmptySegment) {
			continue
		}
		if err != nil {
			return Report{}, err
		}
		reports = append(reports, rep)
	}

	// Rank by descending mean CLI; equal means keep track order.
	byLoad := make([]int, len(reports))
	for i := range byLoad {
		byLoad[i] = i
	}
	sort.SliceStable(byLoad, func(a, b int) bool {
		return reports[byLoad[a]].MeanCLI > reports[byLoad[b]].MeanCLI
	})
	for rank, idx := range byLoad {
		reports[idx].Rank = rank + 1
	}

	report := Report{Segments: reports}
	for _, idx := range byLoad {
		if len(report.TopHigh) < topK {
			report.TopHigh = append(report.TopHigh, reports[idx])
		}
	}
	// The ascending ranking needs its own stable sort: reversing byLoad
	// would put equal means in reverse track order.
	byCalm := make([]int, len(reports))
	for i := range byCalm {
		byCalm[i] = i
	}
	sort.SliceStable(byCalm, func(a, b int) bool {
		return reports[byCalm[a]].MeanCLI < reports[byCalm[b]].MeanCLI
	})
	for _, idx := range byCalm {
		if len(report.TopLow) < topK {
			report.TopLow = append(report.TopLow, reports[idx])
		}
	}

	if len(cli) > 0 {
		report.MeanCLI = stat.Mean(cli, nil)
		max := cli[0]
		for _, v := range cli[1:] {
			if v > max {
				max = v
			}
		}
		report.MaxCLI = max
	}
	report.CommonHighLoadCause = commonCause(reports, byLoad)

	return report, nil
}

// summarize computes one segment's mean CLI and dominant cause.
func summarize(cli []float64, seg lap.Segment, normalized metrics.RawSignals, weights loadindex.Weights) (SegmentReport, error) {
	if seg.Len() < 1 {
		return SegmentReport{}, fmt.Errorf("%w: segment %d", ErrEmptySegment, seg.Index)
	}
	if seg.Start < 0 || seg.End > len(cli) {
		return SegmentReport{}, fmt.Errorf("%w: segment %d spans [%d,%d) over %d samples", ErrMisaligned, seg.Index, seg.Start, seg.End, len(cli))
	}

	rep := SegmentReport{
		Segment: seg,
		MeanCLI: stat.Mean(cli[seg.Start:seg.End], nil),
	}

	best := -1.0
	for _, name := range metrics.SignalNames {
		contribution := weights.ByName(name) * stat.Mean(normalized.ByName(name)[seg.Start:seg.End], nil)
		if contribution > best {
			best = contribution
			rep.DominantCause = name
		}
	}
	return rep, nil
}

// commonCause returns the modal dominant cause among the top 20% of ranked
// segments (at least one).
func commonCause(reports []SegmentReport, byLoad []int) string {
	if len(reports) == 0 {
		return ""
	}
	n := len(byLoad) / 5
	if n < 1 {
		n = 1
	}
	counts := map[string]int{}
	for _, idx := range byLoad[:n] {
		counts[reports[idx].DominantCause]++
	}
	best, bestCount := "", 0
	// Iterate in declared signal order for a deterministic tie-break.
	for _, name := range metrics.SignalNames {
		if counts[name] > bestCount {
			best, bestCount = name, counts[name]
		}
	}
	return best
}
