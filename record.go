package telelink

// Scale factors used to carry fractional channels as integers on the wire.
const (
	lambdaScale   = 1000
	steeringScale = 10
	accelScale    = 1000
)

// TelemetryRecord is one snapshot of every channel. Fields are grouped by the
// priority tier that decides how often the transmitter refreshes them.
type TelemetryRecord struct {
	// high tier
	RPM           uint16  `mapstructure:"RPM"`
	SteeringAngle float64 `mapstructure:"SteeringAngle"`
	BrakePressure uint16  `mapstructure:"BrakePressure"`
	AccelX        float64 `mapstructure:"AccelX"`
	AccelY        float64 `mapstructure:"AccelY"`
	SuspensionFL  uint16  `mapstructure:"Suspension_FL"`
	SuspensionFR  uint16  `mapstructure:"Suspension_FR"`
	SuspensionRL  uint16  `mapstructure:"Suspension_RL"`
	SuspensionRR  uint16  `mapstructure:"Suspension_RR"`

	// medium tier
	ThrottlePos  uint8   `mapstructure:"TPS"`
	Lambda       float64 `mapstructure:"Lambda"`
	WheelSpeedFL uint16  `mapstructure:"WheelSpeed_FL"`
	WheelSpeedFR uint16  `mapstructure:"WheelSpeed_FR"`
	WheelSpeedRL uint16  `mapstructure:"WheelSpeed_RL"`
	WheelSpeedRR uint16  `mapstructure:"WheelSpeed_RR"`

	// low tier
	EngineTemp int8 `mapstructure:"EngineTemp"`

	// milliseconds, set by the transmitter
	Timestamp uint32 `mapstructure:"-"`
}

// copyMedium copies the medium tier channels from src.
func (r *TelemetryRecord) copyMedium(src *TelemetryRecord) {
	r.ThrottlePos = src.ThrottlePos
	r.Lambda = src.Lambda
	r.WheelSpeedFL = src.WheelSpeedFL
	r.WheelSpeedFR = src.WheelSpeedFR
	r.WheelSpeedRL = src.WheelSpeedRL
	r.WheelSpeedRR = src.WheelSpeedRR
}

func (r *TelemetryRecord) copyLow(src *TelemetryRecord) {
	r.EngineTemp = src.EngineTemp
}

// Named returns the record as unit-scaled values keyed by the channel names
// used by ground station consumers.
func (r *TelemetryRecord) Named() map[string]float64 {
	return map[string]float64{
		"RPM":              float64(r.RPM),
		"EngineTemp":       float64(r.EngineTemp),
		"ThrottlePos":      float64(r.ThrottlePos),
		"Lambda":           r.Lambda,
		"SteeringAngle":    r.SteeringAngle,
		"BrakePressure":    float64(r.BrakePressure),
		"AccelX":           r.AccelX,
		"AccelY":           r.AccelY,
		"WheelSpeed_FL":    float64(r.WheelSpeedFL),
		"WheelSpeed_FR":    float64(r.WheelSpeedFR),
		"WheelSpeed_RL":    float64(r.WheelSpeedRL),
		"WheelSpeed_RR":    float64(r.WheelSpeedRR),
		"SuspensionPos_FL": float64(r.SuspensionFL),
		"SuspensionPos_FR": float64(r.SuspensionFR),
		"SuspensionPos_RL": float64(r.SuspensionRL),
		"SuspensionPos_RR": float64(r.SuspensionRR),
		"Timestamp":        float64(r.Timestamp),
	}
}
