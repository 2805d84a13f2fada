package api

import (
	"bytes"
	"fmt"
	"math"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/cogload.report/internal/httputil"
	"github.com/banshee-data/cogload.report/internal/render"
)

// viridis is the color ramp shared by the debug charts, low load to high.
var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// handleTrackChart renders the reconstructed track as an HTML scatter plot
// with each point colored by its load index. Query params: session
// (required), segments, top_k.
func (s *Server) handleTrackChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	result, _, err := s.analyzeSession(r)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("Failed to analyze session: %v", err))
		return
	}

	data := make([]opts.ScatterData, 0, len(result.Positions))
	maxAbs := 0.0
	for i, p := range result.Positions {
		if math.Abs(p.X) > maxAbs {
			maxAbs = math.Abs(p.X)
		}
		if math.Abs(p.Y) > maxAbs {
			maxAbs = math.Abs(p.Y)
		}
		data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Y, result.CLI[i]}})
	}

	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Track Load Map", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Track Load Map", Subtitle: fmt.Sprintf("samples=%d segments=%d mean=%.3f", result.Samples, len(result.Segments), result.Report.MeanCLI)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        1,
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	scatter.AddSeries("load", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleLoadChart renders the load index over lap distance as an HTML line
// chart, with the top-ranked segment boundaries in the subtitle.
func (s *Server) handleLoadChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	result, samples, err := s.analyzeSession(r)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("Failed to analyze session: %v", err))
		return
	}

	x := make([]string, len(result.CLI))
	y := make([]opts.LineData, len(result.CLI))
	for i, v := range result.CLI {
		x[i] = fmt.Sprintf("%.0f", samples[i].Distance)
		y[i] = opts.LineData{Value: v}
	}

	subtitle := "no high-load segments"
	if len(result.Report.TopHigh) > 0 {
		top := result.Report.TopHigh[0]
		subtitle = fmt.Sprintf(
			"peak segment %d (%.0f-%.0fm) mean=%.3f cause=%s",
			top.Segment.Index, top.Segment.StartDistance, top.Segment.EndDistance,
			top.MeanCLI, top.DominantCause,
		)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Load Over Distance", Theme: "dark", Width: "1200px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Cognitive Load Over Distance", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Distance (m)"}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1, Name: "Load"}),
	)
	line.SetXAxis(x).AddSeries("load", y, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleHeatmap renders the track load map as a static PNG.
func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	result, _, err := s.analyzeSession(r)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("Failed to analyze session: %v", err))
		return
	}

	var buf bytes.Buffer
	if err := render.Heatmap(&buf, result.Positions, result.CLI); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to render heatmap: %v", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}
