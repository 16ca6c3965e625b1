package telemetry

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/ChadR23/sentry-six/internal/models"
)

// teslaSEIUUID identifies a user_data_unregistered SEI payload as a
// Tesla telemetry record. The 16 bytes precede the fixed-layout record.
var teslaSEIUUID = []byte{
	0x74, 0x65, 0x73, 0x6C, 0x61, 0x2D, 0x64, 0x61,
	0x73, 0x68, 0x63, 0x61, 0x6D, 0x2D, 0x30, 0x31,
}

// Record layout after the UUID, little-endian:
//
//	offset  size  field
//	0       1     flags (bit0 brake, bit1 blinker left, bit2 blinker right)
//	1       1     gear (0 P, 1 D, 2 R, 3 N)
//	2       1     autopilot (0 manual, 1 FSD, 2 autosteer, 3 TACC)
//	3       1     accelerator percent (0..100)
//	4       4     float32 speed, m/s
//	8       4     float32 steering angle, degrees, positive clockwise
//	12      8     float64 latitude, degrees
//	20      8     float64 longitude, degrees
//	28      4     float32 heading, degrees
const teslaSEIRecordLen = 32

// ParseTeslaSEI decodes one user_data_unregistered SEI payload into a
// telemetry sample. It returns nil when the payload is not a Tesla
// record or is truncated. TimestampMs is left unset.
func ParseTeslaSEI(payload []byte) *models.TelemetrySample {
	if len(payload) < len(teslaSEIUUID)+teslaSEIRecordLen {
		return nil
	}
	if !bytes.Equal(payload[:len(teslaSEIUUID)], teslaSEIUUID) {
		return nil
	}
	rec := payload[len(teslaSEIUUID):]

	flags := rec[0]
	s := &models.TelemetrySample{
		Brake:            flags&0x01 != 0,
		BlinkerLeft:      flags&0x02 != 0,
		BlinkerRight:     flags&0x04 != 0,
		Gear:             decodeGear(rec[1]),
		Autopilot:        decodeAutopilot(rec[2]),
		AcceleratorPct:   float64(rec[3]),
		SpeedMps:         float64(leFloat32(rec[4:8])),
		SteeringAngleDeg: float64(leFloat32(rec[8:12])),
		LatitudeDeg:      leFloat64(rec[12:20]),
		LongitudeDeg:     leFloat64(rec[20:28]),
		HeadingDeg:       float64(leFloat32(rec[28:32])),
	}
	if s.AcceleratorPct > 100 {
		s.AcceleratorPct = 100
	}
	return s
}

func decodeGear(b byte) models.Gear {
	switch b {
	case 1:
		return models.GearDrive
	case 2:
		return models.GearReverse
	case 3:
		return models.GearNeutral
	default:
		return models.GearPark
	}
}

func decodeAutopilot(b byte) models.AutopilotState {
	switch b {
	case 1:
		return models.AutopilotSelfDriving
	case 2:
		return models.AutopilotAutosteer
	case 3:
		return models.AutopilotTACC
	default:
		return models.AutopilotManual
	}
}

func leFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func leFloat64(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}
