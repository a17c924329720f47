package telelink

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

const (
	// PacketSize is the size of an encoded record without framing markers.
	PacketSize = 36
	// FrameSize is PacketSize plus the start and end markers.
	FrameSize = PacketSize + 4
)

var (
	StartMarker = [2]byte{0xAA, 0x55}
	EndMarker   = [2]byte{0x55, 0xAA}
)

var ErrPacketSize = errors.New("invalid packet size")

// wireRecord is the packed little-endian layout shared with the ground station.
// Field order must not change.
type wireRecord struct {
	RPM           uint16
	EngineTemp    int8
	ThrottlePos   uint8
	Lambda        uint16
	SteeringAngle int16
	BrakePressure uint16
	AccelX        int16
	AccelY        int16
	_             int16
	WheelSpeed    [4]uint16
	Suspension    [4]uint16
	Timestamp     uint32
}

// Encode packs rec into a PacketSize byte slice. Scaled channels are rounded to
// the nearest unit and every value saturates at the bounds of its wire type.
func Encode(rec TelemetryRecord) []byte {
	w := wireRecord{
		RPM:           rec.RPM,
		EngineTemp:    rec.EngineTemp,
		ThrottlePos:   rec.ThrottlePos,
		Lambda:        scaleUint16(rec.Lambda, lambdaScale),
		SteeringAngle: scaleInt16(rec.SteeringAngle, steeringScale),
		BrakePressure: rec.BrakePressure,
		AccelX:        scaleInt16(rec.AccelX, accelScale),
		AccelY:        scaleInt16(rec.AccelY, accelScale),
		WheelSpeed: [4]uint16{
			rec.WheelSpeedFL, rec.WheelSpeedFR, rec.WheelSpeedRL, rec.WheelSpeedRR,
		},
		Suspension: [4]uint16{
			rec.SuspensionFL, rec.SuspensionFR, rec.SuspensionRL, rec.SuspensionRR,
		},
		Timestamp: rec.Timestamp,
	}
	buf := bytes.NewBuffer(make([]byte, 0, PacketSize))
	// writes to a bytes.Buffer of a fixed-size struct cannot fail
	_ = binary.Write(buf, binary.LittleEndian, &w)
	return buf.Bytes()
}

// Decode unpacks a PacketSize byte payload. There is no checksum on the wire so
// any buffer of the right length decodes to some record.
func Decode(payload []byte) (TelemetryRecord, error) {
	if len(payload) != PacketSize {
		return TelemetryRecord{}, errors.Wrapf(ErrPacketSize, "got %d bytes, expected %d", len(payload), PacketSize)
	}
	w := wireRecord{}
	if err := binary.Read(bytes.NewReader(payload), binary.LittleEndian, &w); err != nil {
		return TelemetryRecord{}, errors.Wrap(err, "unable to unpack telemetry record")
	}
	return TelemetryRecord{
		RPM:           w.RPM,
		SteeringAngle: float64(w.SteeringAngle) / steeringScale,
		BrakePressure: w.BrakePressure,
		AccelX:        float64(w.AccelX) / accelScale,
		AccelY:        float64(w.AccelY) / accelScale,
		SuspensionFL:  w.Suspension[0],
		SuspensionFR:  w.Suspension[1],
		SuspensionRL:  w.Suspension[2],
		SuspensionRR:  w.Suspension[3],
		ThrottlePos:   w.ThrottlePos,
		Lambda:        float64(w.Lambda) / lambdaScale,
		WheelSpeedFL:  w.WheelSpeed[0],
		WheelSpeedFR:  w.WheelSpeed[1],
		WheelSpeedRL:  w.WheelSpeed[2],
		WheelSpeedRR:  w.WheelSpeed[3],
		EngineTemp:    w.EngineTemp,
		Timestamp:     w.Timestamp,
	}, nil
}

// Frame wraps an encoded payload in the start and end markers.
func Frame(payload []byte) []byte {
	frame := make([]byte, 0, len(payload)+4)
	frame = append(frame, StartMarker[:]...)
	frame = append(frame, payload...)
	return append(frame, EndMarker[:]...)
}

func scaleInt16(v float64, scale float64) int16 {
	return int16(saturate(v*scale, math.MinInt16, math.MaxInt16))
}

func scaleUint16(v float64, scale float64) uint16 {
	return uint16(saturate(v*scale, 0, math.MaxUint16))
}

// saturate rounds v half away from zero and clamps it to [lo, hi]. NaN maps to 0.
func saturate(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	v = math.Round(v)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
