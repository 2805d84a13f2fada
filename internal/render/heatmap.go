// Package render produces static PNG plots of the reconstructed track
// colored by load index.
package render

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/cogload.report/internal/trackmap"
)

// Heatmap writes a PNG of the track outline with each point colored by its
// load index value. Positions and cli must be index-aligned.
func Heatmap(w io.Writer, positions []trackmap.Position, cli []float64) error {
	if len(positions) == 0 {
		return fmt.Errorf("render: no positions to plot")
	}
	if len(positions) != len(cli) {
		return fmt.Errorf("render: %d positions but %d load values", len(positions), len(cli))
	}

	p := plot.New()
	p.Title.Text = "Track Load Map"
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"

	pts := make(plotter.XYs, len(positions))
	for i, pos := range positions {
		pts[i] = plotter.XY{X: pos.X, Y: pos.Y}
	}

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	scatter.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		return draw.GlyphStyle{
			Color:  loadColor(cli[i]),
			Radius: vg.Points(2),
			Shape:  draw.CircleGlyph{},
		}
	}
	p.Add(scatter)

	wt, err := p.WriterTo(8*vg.Inch, 8*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}

// SaveHeatmap renders the heatmap straight to a file.
func SaveHeatmap(path string, positions []trackmap.Position, cli []float64) error {
	if len(positions) == 0 || len(positions) != len(cli) {
		return fmt.Errorf("render: %d positions but %d load values", len(positions), len(cli))
	}

	p := plot.New()
	p.Title.Text = "Track Load Map"
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"

	pts := make(plotter.XYs, len(positions))
	for i, pos := range positions {
		pts[i] = plotter.XY{X: pos.X, Y: pos.Y}
	}
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	scatter.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		return draw.GlyphStyle{
			Color:  loadColor(cli[i]),
			Radius: vg.Points(2),
			Shape:  draw.CircleGlyph{},
		}
	}
	p.Add(scatter)

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("render: save heatmap: %w", err)
	}
	return nil
}

// loadColor maps a load value in [0,1] onto a blue through yellow to red
// ramp. Out-of-range values clamp to the ramp ends.
func loadColor(v float64) color.Color {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}

	// Two linear pieces: blue to yellow on [0,0.5), yellow to red on [0.5,1].
	var r, g, b float64
	if v < 0.5 {
		t := v / 0.5
		r = t
		g = t
		b = 1 - t
	} else {
		t := (v - 0.5) / 0.5
		r = 1
		g = 1 - t
		b = 0
	}
	return color.RGBA{
		R: uint8(r * 255),
		G: uint8(g * 255),
		B: uint8(b * 255),
		A: 255,
	}
}
