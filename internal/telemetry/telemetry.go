package telemetry

import (
	"math"
	"strconv"
	"strings"
)

// Value is an optional raw numeric field of a telemetry sample. A Value is
// either absent, a number, or NaN when the raw text was present but not numeric.
type Value struct {
	v       float64
	present bool
}

// Int returns a present Value holding n
func Int(n int64) Value {
	return Value{v: float64(n), present: true}
}

// Float returns a present Value holding f
func Float(f float64) Value {
	return Value{v: f, present: true}
}

// ParseValue converts raw collector text into a Value. Blank text is absent,
// text that does not parse as a number becomes NaN.
func ParseValue(s string) Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return Value{}
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{v: math.NaN(), present: true}
	}
	return Value{v: f, present: true}
}

// IsPresent reports whether the field was supplied at all
func (v Value) IsPresent() bool {
	return v.present
}

// Float64 returns the raw number, 0 when the field is absent
func (v Value) Float64() float64 {
	if !v.present {
		return 0
	}
	return v.v
}

// Sample is a single raw ESC telemetry sample as produced by the collector
// firmware. Physical quantities are fixed-point integers: millivolts,
// milliamps and tenths of a unit.
type Sample struct {
	DeviceID    int   // ESC bus address
	TimestampMs int64 // Collector uptime in milliseconds

	RPM              Value // Electrical RPM
	VoltageMV        Value // Battery voltage in mV
	CurrentMA        Value // Motor current in mA
	ConsumptionMAh   Value // Consumed capacity in mAh
	PWMx10           Value // PWM duty in % x10
	ThrottleX10      Value // Throttle in % x10
	TempCx10         Value // ESC temperature in °C x10
	BECVoltageMV     Value // BEC rail voltage in mV
	BECCurrentMA     Value // BEC rail current in mA
	BECTempCx10      Value // BEC temperature in °C x10
	Status           Value // ESC status bits
	RxBytes          Value // Bytes received from the ESC by the collector
	RxFramesReceived Value // Valid frames received from the ESC
	RxFramesDropped  Value // Frames dropped for CRC, type or length errors
}

// Reading is a Sample converted to engineering units
type Reading struct {
	RPM         float64 // RPM
	Voltage     float64 // V
	Current     float64 // A
	Consumption float64 // mAh
	PWM         float64 // %
	Throttle    float64 // %
	Temp        float64 // °C
	BECVoltage  float64 // V
	BECCurrent  float64 // A
	BECTemp     float64 // °C

	RxFramesReceived float64
	RxFramesDropped  float64
}

// Metric returns the value of a charted metric
func (r Reading) Metric(m Metric) float64 {
	switch m {
	case MetricRPM:
		return r.RPM
	case MetricVoltage:
		return r.Voltage
	case MetricCurrent:
		return r.Current
	case MetricTemp:
		return r.Temp
	case MetricBECTemp:
		return r.BECTemp
	case MetricThrottle:
		return r.Throttle
	case MetricPWM:
		return r.PWM
	default:
		return math.NaN()
	}
}

// MarshalJSON encodes the reading, spelling non-finite values as strings
// since JSON has no literal for them.
func (r Reading) MarshalJSON() ([]byte, error) {
	return marshalObject([]field{
		{"rpm", r.RPM},
		{"voltage", r.Voltage},
		{"current", r.Current},
		{"consumption", r.Consumption},
		{"pwm", r.PWM},
		{"throttle", r.Throttle},
		{"temp", r.Temp},
		{"becVoltage", r.BECVoltage},
		{"becCurrent", r.BECCurrent},
		{"becTemp", r.BECTemp},
		{"rxFramesReceived", r.RxFramesReceived},
		{"rxFramesDropped", r.RxFramesDropped},
	})
}
