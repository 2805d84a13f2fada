package metrics

import (
	"math"
	"testing"

	"github.com/banshee-data/cogload.report/internal/telemetry"
)

// flatLap builds n samples at 10 Hz with constant inputs.
func flatLap(n int, speed, steer, throttle, brake float64) telemetry.Series {
	s := make(telemetry.Series, n)
	for i := range s {
		t := float64(i) * 0.1
		s[i] = telemetry.Sample{
			Timestamp:     t,
			Distance:      speed * t,
			Speed:         speed,
			SteeringAngle: steer,
			Throttle:      throttle,
			Brake:         brake,
		}
	}
	return s
}

func assertAligned(t *testing.T, raw RawSignals, n int) {
	t.Helper()
	if raw.Len() != n {
		t.Fatalf("raw signals length %d, want %d", raw.Len(), n)
	}
}

func assertAllFinite(t *testing.T, raw RawSignals) {
	t.Helper()
	for _, name := range SignalNames {
		for i, v := range raw.ByName(name) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("%s[%d] is not finite: %f", name, i, v)
			}
		}
	}
}

func TestExtractConstantInputsAreAllZero(t *testing.T) {
	samples := flatLap(50, 20, 0.1, 0.8, 0)
	raw := Extract(samples, DefaultConfig())
	assertAligned(t, raw, len(samples))
	assertAllFinite(t, raw)

	for _, name := range SignalNames {
		for i, v := range raw.ByName(name) {
			if v != 0 {
				t.Errorf("%s[%d] = %f, want 0 for constant inputs", name, i, v)
			}
		}
	}
}

func TestExtractSteeringEntropyRespondsToAlternation(t *testing.T) {
	// Alternating steering every 10 samples versus dead-straight steering.
	alternating := flatLap(100, 20, 0, 0.5, 0)
	for i := range alternating {
		if (i/10)%2 == 0 {
			alternating[i].SteeringAngle = 0.1
		} else {
			alternating[i].SteeringAngle = -0.1
		}
	}
	straight := flatLap(100, 20, 0, 0.5, 0)

	altRaw := Extract(alternating, DefaultConfig())
	straightRaw := Extract(straight, DefaultConfig())

	var altSum, straightSum float64
	for i := range altRaw.SteeringEntropy {
		altSum += altRaw.SteeringEntropy[i]
		straightSum += straightRaw.SteeringEntropy[i]
	}
	if altSum <= straightSum {
		t.Errorf("alternating steering entropy (%f) not above straight-line entropy (%f)", altSum, straightSum)
	}
	if straightSum != 0 {
		t.Errorf("straight-line steering entropy = %f, want 0", straightSum)
	}
}

func TestExtractEntropyNormalized(t *testing.T) {
	samples := flatLap(200, 20, 0, 0.5, 0)
	for i := range samples {
		// Pseudo-random-looking steering so windows occupy many bins.
		samples[i].SteeringAngle = math.Sin(float64(i)*1.7) * 0.3
	}
	raw := Extract(samples, DefaultConfig())
	for i, v := range raw.SteeringEntropy {
		if v < 0 || v > 1+1e-9 {
			t.Fatalf("steering entropy[%d] = %f outside [0,1]", i, v)
		}
	}
}

func TestExtractThrottleJerk(t *testing.T) {
	// Identical throttle everywhere: jerk must be exactly zero.
	constant := flatLap(60, 20, 0, 0.5, 0)
	raw := Extract(constant, DefaultConfig())
	for i, v := range raw.ThrottleJerk {
		if v != 0 {
			t.Fatalf("constant throttle jerk[%d] = %f, want 0", i, v)
		}
	}

	// A throttle ramp has constant rate, so second differences vanish away
	// from the ramp edges; a stab produces jerk.
	stab := flatLap(60, 20, 0, 0.2, 0)
	stab[30].Throttle = 1.0
	stabRaw := Extract(stab, DefaultConfig())
	var total float64
	for _, v := range stabRaw.ThrottleJerk {
		total += v
	}
	if total <= 0 {
		t.Error("throttle stab produced no jerk")
	}
}

func TestExtractBrakePanic(t *testing.T) {
	smooth := flatLap(100, 30, 0, 0, 0)
	for i := 40; i < 80; i++ {
		// Gradual trail-brake: +0.01 per sample, below the spike threshold.
		smooth[i].Brake = float64(i-40) * 0.01
	}
	stab := flatLap(100, 30, 0, 0, 0)
	for i := 40; i < 45; i++ {
		stab[i].Brake = float64(i-40) * 0.2 // +0.2 per sample
	}

	smoothRaw := Extract(smooth, DefaultConfig())
	stabRaw := Extract(stab, DefaultConfig())

	var smoothSum, stabSum float64
	for i := range smoothRaw.BrakePanic {
		smoothSum += smoothRaw.BrakePanic[i]
		stabSum += stabRaw.BrakePanic[i]
	}
	if smoothSum != 0 {
		t.Errorf("trail-braking scored %f, want 0", smoothSum)
	}
	if stabSum <= 0 {
		t.Error("stab-braking scored 0, want positive")
	}
}

func TestExtractLateralInstabilityScalesWithSpeed(t *testing.T) {
	noisy := func(speed float64) telemetry.Series {
		s := flatLap(100, speed, 0, 0.5, 0)
		for i := range s {
			s[i].SteeringAngle = math.Sin(float64(i)*2.1) * 0.2
		}
		return s
	}

	slow := Extract(noisy(10), DefaultConfig())
	fast := Extract(noisy(40), DefaultConfig())

	var slowSum, fastSum float64
	for i := range slow.LateralInstability {
		slowSum += slow.LateralInstability[i]
		fastSum += fast.LateralInstability[i]
	}
	if fastSum <= slowSum {
		t.Errorf("same steering noise at 40 m/s (%f) should outscore 10 m/s (%f)", fastSum, slowSum)
	}
}

func TestWindowSamples(t *testing.T) {
	testCases := []struct {
		name    string
		seconds float64
		n       int
		hz      float64
		want    int
	}{
		{"half_second_at_10hz", 0.5, 100, 10, 5},
		{"half_second_at_100hz", 0.5, 100, 100, 50},
		{"floor_of_two", 0.01, 100, 10, 2},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			samples := make(telemetry.Series, tc.n)
			for i := range samples {
				samples[i].Timestamp = float64(i) / tc.hz
			}
			cfg := Config{WindowSeconds: tc.seconds}
			if got := cfg.WindowSamples(samples); got != tc.want {
				t.Errorf("WindowSamples = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestExtractShortSeries(t *testing.T) {
	raw := Extract(flatLap(1, 20, 0, 0.5, 0), DefaultConfig())
	assertAligned(t, raw, 1)
	assertAllFinite(t, raw)
}
