package telemetry

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/cogload.report/internal/units"
)

// ErrNoMatchingRows indicates a filter (vehicle/lap) that matched nothing.
var ErrNoMatchingRows = errors.New("telemetry: no rows matched the requested vehicle and lap")

// CSVOptions controls long-format CSV import.
type CSVOptions struct {
	// VehicleID filters rows to one vehicle. Empty accepts all rows.
	VehicleID string
	// Lap filters rows to one lap number. Zero accepts all rows.
	Lap int

	// SteeringFullScaleDeg is the wheel angle corresponding to full lock
	// as reported by the steering channel. Defaults to 450.
	SteeringFullScaleDeg float64
	// SteeringRatio is the rack ratio used to convert wheel angle to road
	// wheel angle. Defaults to 13.5.
	SteeringRatio float64
}

func (o *CSVOptions) applyDefaults() {
	if o.SteeringFullScaleDeg <= 0 {
		o.SteeringFullScaleDeg = 450
	}
	if o.SteeringRatio <= 0 {
		o.SteeringRatio = 13.5
	}
}

// channelAliases maps raw telemetry channel names onto the canonical six.
// Export tools disagree on naming; this is the union observed in the field.
var channelAliases = map[string]string{
	"speed":                  "speed",
	"ath":                    "throttle",
	"throttle":               "throttle",
	"pbrake_f":               "brake",
	"brake_pressure":         "brake",
	"brake":                  "brake",
	"steering_angle":         "steering",
	"steer":                  "steering",
	"laptrigger_lapdist_dls": "distance",
	"lap_distance":           "distance",
	"distance":               "distance",
}

type csvRow struct {
	ts      float64
	channel string
	value   float64
}

// LoadCSV imports a lap from a long-format telemetry CSV: one row per
// (timestamp, channel, value), filtered by vehicle and lap, pivoted into one
// Sample per timestamp. Missing channels are forward-filled between updates
// and back-filled at the start of the lap; units are normalized so the
// returned Series is in seconds / meters / m/s / radians / pedal fractions.
func LoadCSV(r io.Reader, opts CSVOptions) (Series, error) {
	opts.applyDefaults()

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"timestamp", "telemetry_name", "telemetry_value"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("CSV missing required column %q", required)
		}
	}
	vehicleCol, hasVehicle := col["vehicle_id"]
	lapCol, hasLap := col["lap"]

	var rows []csvRow
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Skip malformed rows the way the previous importer did rather
			// than failing a multi-hour export on one bad line.
			continue
		}
		if opts.VehicleID != "" && hasVehicle {
			if field(record, vehicleCol) != opts.VehicleID {
				continue
			}
		}
		if opts.Lap != 0 && hasLap {
			lap, err := strconv.Atoi(field(record, lapCol))
			if err != nil || lap != opts.Lap {
				continue
			}
		}

		canonical, ok := channelAliases[strings.ToLower(field(record, col["telemetry_name"]))]
		if !ok {
			continue
		}
		value, err := strconv.ParseFloat(field(record, col["telemetry_value"]), 64)
		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
			continue
		}
		ts, err := parseTimestamp(field(record, col["timestamp"]))
		if err != nil {
			continue
		}
		rows = append(rows, csvRow{ts: ts, channel: canonical, value: value})
	}

	if len(rows) == 0 {
		return nil, ErrNoMatchingRows
	}
	return pivotRows(rows, opts)
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// parseTimestamp accepts either epoch/relative seconds or RFC3339 wall time.
func parseTimestamp(s string) (float64, error) {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return float64(t.UnixNano()) / 1e9, nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05.999999999", s); err == nil {
		return float64(t.UnixNano()) / 1e9, nil
	}
	return 0, fmt.Errorf("unparseable timestamp %q", s)
}

// pivotRows folds long-format rows into one sample per timestamp, then
// normalizes units across the whole lap.
func pivotRows(rows []csvRow, opts CSVOptions) (Series, error) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ts < rows[j].ts })

	type pending struct {
		values map[string]float64
		ts     float64
	}

	var stamps []pending
	current := map[string]float64{}
	seen := map[string]bool{}
	flushAt := math.Inf(-1)
	for _, row := range rows {
		if row.ts != flushAt {
			if flushAt != math.Inf(-1) {
				stamps = append(stamps, pending{values: copyValues(current), ts: flushAt})
			}
			flushAt = row.ts
		}
		current[row.channel] = row.value
		seen[row.channel] = true
	}
	stamps = append(stamps, pending{values: copyValues(current), ts: flushAt})

	// Back-fill channels that had not reported yet at the start of the lap
	// with their first observed value, mirroring the async-signal fill the
	// previous importer applied after pivoting.
	first := map[string]float64{}
	for _, p := range stamps {
		for ch, v := range p.values {
			if _, ok := first[ch]; !ok {
				first[ch] = v
			}
		}
	}
	for i := range stamps {
		for ch := range seen {
			if _, ok := stamps[i].values[ch]; !ok {
				stamps[i].values[ch] = first[ch]
			}
		}
	}

	series := make(Series, 0, len(stamps))
	t0 := stamps[0].ts
	for _, p := range stamps {
		series = append(series, Sample{
			Timestamp:     p.ts - t0,
			Distance:      p.values["distance"],
			Speed:         p.values["speed"],
			SteeringAngle: p.values["steering"],
			Throttle:      p.values["throttle"],
			Brake:         p.values["brake"],
		})
	}

	normalizeSeries(series, opts, seen["distance"])

	if err := series.Validate(); err != nil {
		return nil, err
	}
	return series, nil
}

func copyValues(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// normalizeSeries converts raw channel scales in place. The heuristics match
// what CAN exports actually emit: speed over 100 is km/h, pedals over 1 are
// percent, steering over 2*pi is wheel degrees.
func normalizeSeries(series Series, opts CSVOptions, hasDistance bool) {
	var maxSpeed, maxThrottle, maxBrake, maxSteer float64
	for _, s := range series {
		maxSpeed = math.Max(maxSpeed, s.Speed)
		maxThrottle = math.Max(maxThrottle, s.Throttle)
		maxBrake = math.Max(maxBrake, s.Brake)
		maxSteer = math.Max(maxSteer, math.Abs(s.SteeringAngle))
	}

	speedUnit := units.MPS
	if maxSpeed > 100 {
		speedUnit = units.KPH
	}
	throttleScale := 1.0
	if maxThrottle > 1 {
		throttleScale = 100
	}
	// Brake channels are often raw pressure; normalize by the lap maximum.
	brakeScale := 1.0
	if maxBrake > 1 {
		brakeScale = maxBrake
	}
	steerIsDegrees := maxSteer > 2*math.Pi

	for i := range series {
		series[i].Speed = units.ToMPS(series[i].Speed, speedUnit)
		series[i].Throttle = units.NormalizePedal(series[i].Throttle, throttleScale)
		series[i].Brake = units.NormalizePedal(series[i].Brake, brakeScale)
		if steerIsDegrees {
			series[i].SteeringAngle = units.SteeringWheelDegreesToRoadRadians(series[i].SteeringAngle, opts.SteeringRatio)
		}
	}

	// Without a lap-distance channel, integrate speed to recover it.
	if !hasDistance {
		dist := 0.0
		for i := range series {
			dist += series[i].Speed * series.Dt(i)
			series[i].Distance = dist
		}
	}
}
