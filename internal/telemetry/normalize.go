package telemetry

import "math"

// Fixed-point scale factors of the collector's raw fields
const (
	ScaleMilli  = 1000.0 // mV -> V, mA -> A
	ScaleTenths = 10.0   // x10 fields
	ScaleUnit   = 1.0    // counters
)

// Normalize converts a raw sample into engineering units. An absent field
// reads as zero. A present but non-numeric physical field stays NaN and is
// carried into history as is; counters (rpm, consumption and frame counts)
// fall back to zero instead.
func Normalize(s Sample) Reading {
	return Reading{
		RPM:         counter(s.RPM),
		Voltage:     scaled(s.VoltageMV, ScaleMilli),
		Current:     scaled(s.CurrentMA, ScaleMilli),
		Consumption: counter(s.ConsumptionMAh),
		PWM:         scaled(s.PWMx10, ScaleTenths),
		Throttle:    scaled(s.ThrottleX10, ScaleTenths),
		Temp:        scaled(s.TempCx10, ScaleTenths),
		BECVoltage:  scaled(s.BECVoltageMV, ScaleMilli),
		BECCurrent:  scaled(s.BECCurrentMA, ScaleMilli),
		BECTemp:     scaled(s.BECTempCx10, ScaleTenths),

		RxFramesReceived: counter(s.RxFramesReceived),
		RxFramesDropped:  counter(s.RxFramesDropped),
	}
}

func scaled(v Value, scale float64) float64 {
	return v.Float64() / scale
}

func counter(v Value) float64 {
	f := v.Float64() / ScaleUnit
	if math.IsNaN(f) {
		return 0
	}
	return f
}
