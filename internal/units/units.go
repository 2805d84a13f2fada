// Package units provides shared constants and conversions for the telemetry
// signals the importers normalize before analysis.
package units

import "math"

// Unit constants for speed channels as they appear in raw telemetry.
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidSpeedUnits contains all valid speed unit values
var ValidSpeedUnits = []string{MPS, MPH, KMPH, KPH}

// IsValidSpeedUnit checks if the given unit is in the list of valid units
func IsValidSpeedUnit(unit string) bool {
	for _, validUnit := range ValidSpeedUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// ToMPS converts a speed in the named unit to meters per second.
// The pipeline stores and computes speeds in m/s exclusively.
func ToMPS(speed float64, unit string) float64 {
	switch unit {
	case MPH:
		return speed / 2.23694
	case KMPH, KPH:
		return speed / 3.6
	case MPS:
		return speed
	default:
		return speed
	}
}

// FromMPS converts a speed in meters per second to the named unit for display.
func FromMPS(speedMPS float64, unit string) float64 {
	switch unit {
	case MPH:
		return speedMPS * 2.23694
	case KMPH, KPH:
		return speedMPS * 3.6
	case MPS:
		return speedMPS
	default:
		return speedMPS
	}
}

// SteeringWheelDegreesToRoadRadians converts a steering wheel angle in
// degrees to the road wheel angle in radians given the steering rack ratio.
// Production steering channels report the wheel, not the tyre.
func SteeringWheelDegreesToRoadRadians(wheelDegrees, steeringRatio float64) float64 {
	if steeringRatio <= 0 {
		steeringRatio = 1
	}
	return wheelDegrees / steeringRatio * math.Pi / 180
}

// NormalizePedal maps a pedal channel onto [0,1]. Channels arrive either as
// percentages (0-100) or already normalized; fullScale names the raw maximum.
func NormalizePedal(value, fullScale float64) float64 {
	if fullScale <= 0 {
		fullScale = 1
	}
	v := value / fullScale
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
