package metrics

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sum(win []float64) float64 {
	var s float64
	for _, v := range win {
		s += v
	}
	return s
}

func TestRollingShrinkingWindow(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	got := Rolling(values, 3, sum)
	// First two windows shrink: [1], [1 2], then full [1 2 3], [2 3 4], [3 4 5].
	want := []float64{1, 3, 6, 9, 12}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Rolling mismatch (-want +got):\n%s", diff)
	}
}

func TestRollingPreservesLength(t *testing.T) {
	for _, window := range []int{1, 2, 5, 100} {
		values := make([]float64, 17)
		got := Rolling(values, window, sum)
		if len(got) != len(values) {
			t.Errorf("window %d: got length %d, want %d", window, len(got), len(values))
		}
	}
}

func TestRollingSanitizesNonFinite(t *testing.T) {
	values := []float64{1, 2, 3}
	got := Rolling(values, 2, func(win []float64) float64 {
		if len(win) == 1 {
			return math.NaN()
		}
		return math.Inf(1)
	})
	want := []float64{0, 0, 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("non-finite values escaped (-want +got):\n%s", diff)
	}
}

func TestRollingZeroWindowClamped(t *testing.T) {
	values := []float64{4, 5}
	got := Rolling(values, 0, sum)
	want := []float64{4, 5}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("zero window (-want +got):\n%s", diff)
	}
}

func TestRollingPair(t *testing.T) {
	a := []float64{1, 1, 1}
	b := []float64{2, 4, 6}
	got := RollingPair(a, b, 2, func(aw, bw []float64) float64 {
		return sum(aw) * sum(bw)
	})
	want := []float64{2, 12, 20}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("RollingPair mismatch (-want +got):\n%s", diff)
	}
}

func TestDiff(t *testing.T) {
	got := diff([]float64{3, 5, 4, 4})
	want := []float64{0, 2, -1, 0}
	if d := cmp.Diff(want, got); d != "" {
		t.Errorf("diff mismatch (-want +got):\n%s", d)
	}
}
