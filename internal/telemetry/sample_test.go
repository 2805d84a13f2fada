package telemetry

import (
	"errors"
	"math"
	"testing"
)

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		series  Series
		wantErr error
	}{
		{
			name:    "empty",
			series:  Series{},
			wantErr: ErrEmptySeries,
		},
		{
			name:   "single_sample",
			series: Series{{Timestamp: 0}},
		},
		{
			name: "valid",
			series: Series{
				{Timestamp: 0, Distance: 0},
				{Timestamp: 0.1, Distance: 2},
				{Timestamp: 0.2, Distance: 4},
			},
		},
		{
			name: "repeated_distance_ok",
			series: Series{
				{Timestamp: 0, Distance: 5},
				{Timestamp: 0.1, Distance: 5},
			},
		},
		{
			name: "time_goes_backwards",
			series: Series{
				{Timestamp: 0.2, Distance: 0},
				{Timestamp: 0.1, Distance: 2},
			},
			wantErr: ErrNonMonotonicTime,
		},
		{
			name: "duplicate_timestamp",
			series: Series{
				{Timestamp: 0.1, Distance: 0},
				{Timestamp: 0.1, Distance: 2},
			},
			wantErr: ErrNonMonotonicTime,
		},
		{
			name: "distance_decreases",
			series: Series{
				{Timestamp: 0, Distance: 10},
				{Timestamp: 0.1, Distance: 9},
			},
			wantErr: ErrNonMonotonicDistance,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.series.Validate()
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestMeanInterval(t *testing.T) {
	s := Series{
		{Timestamp: 0},
		{Timestamp: 0.1},
		{Timestamp: 0.3},
		{Timestamp: 0.6},
	}
	if got, want := s.MeanInterval(), 0.2; math.Abs(got-want) > 1e-12 {
		t.Errorf("MeanInterval() = %f, want %f", got, want)
	}

	if got := (Series{{Timestamp: 1}}).MeanInterval(); got != 0 {
		t.Errorf("single-sample MeanInterval() = %f, want 0", got)
	}
}

func TestDt(t *testing.T) {
	s := Series{
		{Timestamp: 1.0},
		{Timestamp: 1.5},
		{Timestamp: 1.7},
	}
	testCases := []struct {
		idx  int
		want float64
	}{
		{0, 0}, // first step contributes no motion
		{1, 0.5},
		{2, 0.2},
		{-1, 0},
		{3, 0},
	}
	for _, tc := range testCases {
		if got := s.Dt(tc.idx); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("Dt(%d) = %f, want %f", tc.idx, got, tc.want)
		}
	}
}

func TestTotals(t *testing.T) {
	s := Series{
		{Timestamp: 2, Distance: 100},
		{Timestamp: 5, Distance: 190},
	}
	if got := s.Duration(); got != 3 {
		t.Errorf("Duration() = %f, want 3", got)
	}
	if got := s.TotalDistance(); got != 90 {
		t.Errorf("TotalDistance() = %f, want 90", got)
	}
}
