package telemetry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/cogload.report/internal/units"
)

// Sim-racing "dash" telemetry payload layout (little-endian). Offsets follow
// the Forza dash wire format; only the channels the pipeline needs are read.
const (
	dashMinLength      = 311
	dashOffRaceOn      = 0   // int32, 0 while in menus
	dashOffTimestampMS = 4   // uint32 milliseconds
	dashOffSpeed       = 244 // float32 m/s
	dashOffDistance    = 280 // float32 meters traveled
	dashOffThrottle    = 303 // uint8 0-255
	dashOffBrake       = 304 // uint8 0-255
	dashOffSteer       = 308 // int8 -127..127 of full lock
)

// ErrNoTelemetryPackets indicates a capture with no decodable dash payloads.
var ErrNoTelemetryPackets = errors.New("telemetry: no telemetry packets found in capture")

// PCAPOptions controls UDP capture import.
type PCAPOptions struct {
	// Port filters UDP packets to one destination port. Zero accepts any.
	Port int
	// SteeringFullScaleDeg and SteeringRatio translate the normalized steer
	// byte into a road wheel angle; defaults match the CSV importer.
	SteeringFullScaleDeg float64
	SteeringRatio        float64
}

func (o *PCAPOptions) applyDefaults() {
	if o.SteeringFullScaleDeg <= 0 {
		o.SteeringFullScaleDeg = 450
	}
	if o.SteeringRatio <= 0 {
		o.SteeringRatio = 13.5
	}
}

// LoadPCAP imports a lap from a pcap capture of UDP dash telemetry. The
// capture is read offline in file order; packets from menus (race off),
// non-UDP traffic, and duplicate or reordered timestamps are skipped.
func LoadPCAP(r io.Reader, opts PCAPOptions) (Series, error) {
	opts.applyDefaults()

	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap stream: %w", err)
	}

	var series Series
	lastTS := math.Inf(-1)
	for {
		data, _, err := pr.ReadPacketData()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read pcap packet: %w", err)
		}

		packet := gopacket.NewPacket(data, pr.LinkType(), gopacket.Default)
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok {
			continue
		}
		if opts.Port != 0 && int(udp.DstPort) != opts.Port {
			continue
		}

		sample, ok := decodeDashPacket(udp.Payload, opts)
		if !ok {
			continue
		}
		if sample.Timestamp <= lastTS {
			continue
		}
		lastTS = sample.Timestamp
		series = append(series, sample)
	}

	if len(series) == 0 {
		return nil, ErrNoTelemetryPackets
	}

	rebase(series)
	if err := series.Validate(); err != nil {
		return nil, err
	}
	return series, nil
}

// decodeDashPacket extracts one sample from a dash payload. Returns false
// for short payloads and menu frames.
func decodeDashPacket(payload []byte, opts PCAPOptions) (Sample, bool) {
	if len(payload) < dashMinLength {
		return Sample{}, false
	}
	if int32(binary.LittleEndian.Uint32(payload[dashOffRaceOn:])) == 0 {
		return Sample{}, false
	}

	steerNorm := float64(int8(payload[dashOffSteer])) / 127
	wheelDeg := steerNorm * opts.SteeringFullScaleDeg

	return Sample{
		Timestamp:     float64(binary.LittleEndian.Uint32(payload[dashOffTimestampMS:])) / 1000,
		Speed:         float64(math.Float32frombits(binary.LittleEndian.Uint32(payload[dashOffSpeed:]))),
		Distance:      float64(math.Float32frombits(binary.LittleEndian.Uint32(payload[dashOffDistance:]))),
		Throttle:      float64(payload[dashOffThrottle]) / 255,
		Brake:         float64(payload[dashOffBrake]) / 255,
		SteeringAngle: units.SteeringWheelDegreesToRoadRadians(wheelDeg, opts.SteeringRatio),
	}, true
}

// rebase shifts timestamps and distance so the series starts at zero. Dash
// captures report session-relative values, not lap-relative ones.
func rebase(series Series) {
	if len(series) == 0 {
		return
	}
	t0, d0 := series[0].Timestamp, series[0].Distance
	for i := range series {
		series[i].Timestamp -= t0
		series[i].Distance -= d0
	}
}
