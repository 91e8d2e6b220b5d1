package telemetry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Scales(t *testing.T) {
	s := Sample{
		DeviceID:         3,
		TimestampMs:      1500,
		RPM:              Int(12000),
		VoltageMV:        Int(22200),
		CurrentMA:        Int(15300),
		ConsumptionMAh:   Int(420),
		PWMx10:           Int(655),
		ThrottleX10:      Int(701),
		TempCx10:         Int(453),
		BECVoltageMV:     Int(8400),
		BECCurrentMA:     Int(1250),
		BECTempCx10:      Int(390),
		RxFramesReceived: Int(1000),
		RxFramesDropped:  Int(2),
	}

	r := Normalize(s)

	assert.Equal(t, 12000.0, r.RPM)
	assert.InDelta(t, 22.2, r.Voltage, 1e-9)
	assert.InDelta(t, 15.3, r.Current, 1e-9)
	assert.Equal(t, 420.0, r.Consumption)
	assert.InDelta(t, 65.5, r.PWM, 1e-9)
	assert.InDelta(t, 70.1, r.Throttle, 1e-9)
	assert.InDelta(t, 45.3, r.Temp, 1e-9)
	assert.InDelta(t, 8.4, r.BECVoltage, 1e-9)
	assert.InDelta(t, 1.25, r.BECCurrent, 1e-9)
	assert.InDelta(t, 39.0, r.BECTemp, 1e-9)
	assert.Equal(t, 1000.0, r.RxFramesReceived)
	assert.Equal(t, 2.0, r.RxFramesDropped)
}

func TestNormalize_MissingFieldsAreZero(t *testing.T) {
	r := Normalize(Sample{DeviceID: 1, TimestampMs: 10})

	for _, m := range Metrics {
		assert.Equal(t, 0.0, r.Metric(m), m.String())
	}
	assert.Equal(t, 0.0, r.Consumption)
	assert.Equal(t, 0.0, r.RxFramesReceived)
	assert.Equal(t, 0.0, r.RxFramesDropped)
}

func TestNormalize_NonNumericFields(t *testing.T) {
	s := Sample{
		RPM:              ParseValue("fast"),
		VoltageMV:        ParseValue("12x"),
		TempCx10:         ParseValue("hot"),
		ConsumptionMAh:   ParseValue("?"),
		RxFramesReceived: ParseValue("n/a"),
	}

	r := Normalize(s)

	assert.True(t, math.IsNaN(r.Voltage), "physical fields carry NaN")
	assert.True(t, math.IsNaN(r.Temp), "physical fields carry NaN")
	assert.Equal(t, 0.0, r.RPM, "counters fall back to zero")
	assert.Equal(t, 0.0, r.Consumption, "counters fall back to zero")
	assert.Equal(t, 0.0, r.RxFramesReceived, "counters fall back to zero")
}

func TestParseValue(t *testing.T) {
	testCases := []struct {
		name    string
		in      string
		present bool
		want    float64
		nan     bool
	}{
		{"blank", "", false, 0, false},
		{"spaces", "   ", false, 0, false},
		{"integer", "1234", true, 1234, false},
		{"padded", " 42 ", true, 42, false},
		{"negative", "-400", true, -400, false},
		{"float", "1.5", true, 1.5, false},
		{"garbage", "abc", true, 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := ParseValue(tc.in)
			require.Equal(t, tc.present, v.IsPresent())
			if tc.nan {
				require.True(t, math.IsNaN(v.Float64()))
				return
			}
			require.Equal(t, tc.want, v.Float64())
		})
	}
}

func TestReading_MarshalJSON(t *testing.T) {
	r := Reading{RPM: 100, Voltage: math.NaN(), Temp: math.Inf(1)}

	p, err := r.MarshalJSON()
	require.NoError(t, err)

	assert.Contains(t, string(p), `"rpm":100`)
	assert.Contains(t, string(p), `"voltage":"NaN"`)
	assert.Contains(t, string(p), `"temp":"Infinity"`)
}

func TestParseMetric(t *testing.T) {
	for _, m := range Metrics {
		parsed, err := ParseMetric(m.String())
		require.NoError(t, err)
		require.Equal(t, m, parsed)
	}

	_, err := ParseMetric("altitude")
	require.Error(t, err)
}
