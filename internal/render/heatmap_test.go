package render

import (
	"bytes"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/cogload.report/internal/trackmap"
)

func circleTrack(n int) ([]trackmap.Position, []float64) {
	positions := make([]trackmap.Position, n)
	cli := make([]float64, n)
	for i := range positions {
		theta := 2 * math.Pi * float64(i) / float64(n)
		positions[i] = trackmap.Position{X: math.Cos(theta), Y: math.Sin(theta)}
		cli[i] = float64(i) / float64(n)
	}
	return positions, cli
}

func TestHeatmapWritesPNG(t *testing.T) {
	positions, cli := circleTrack(100)

	var buf bytes.Buffer
	if err := Heatmap(&buf, positions, cli); err != nil {
		t.Fatalf("Heatmap: %v", err)
	}

	// PNG magic bytes.
	sig := []byte{0x89, 'P', 'N', 'G'}
	if buf.Len() < len(sig) || !bytes.Equal(buf.Bytes()[:len(sig)], sig) {
		t.Errorf("output does not start with PNG signature")
	}
}

func TestHeatmapRejectsBadInput(t *testing.T) {
	var buf bytes.Buffer
	if err := Heatmap(&buf, nil, nil); err == nil {
		t.Error("expected error for empty positions")
	}
	positions, cli := circleTrack(10)
	if err := Heatmap(&buf, positions, cli[:5]); err == nil {
		t.Error("expected error for misaligned series")
	}
}

func TestSaveHeatmap(t *testing.T) {
	positions, cli := circleTrack(50)
	path := filepath.Join(t.TempDir(), "track.png")

	if err := SaveHeatmap(path, positions, cli); err != nil {
		t.Fatalf("SaveHeatmap: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() == 0 {
		t.Error("empty output file")
	}
}

func TestLoadColorRampEnds(t *testing.T) {
	low := loadColor(0).(color.RGBA)
	if low.B != 255 || low.R != 0 {
		t.Errorf("low end = %+v, want blue", low)
	}
	mid := loadColor(0.5).(color.RGBA)
	if mid.R != 255 || mid.G != 255 || mid.B != 0 {
		t.Errorf("midpoint = %+v, want yellow", mid)
	}
	high := loadColor(1).(color.RGBA)
	if high.R != 255 || high.G != 0 || high.B != 0 {
		t.Errorf("high end = %+v, want red", high)
	}
	if loadColor(-1) != loadColor(0) || loadColor(2) != loadColor(1) {
		t.Error("out-of-range values do not clamp")
	}
}
