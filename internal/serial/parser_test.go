package serial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/esc-telemetry/internal/recording"
	"github.com/roman-kulish/esc-telemetry/internal/telemetry"
)

func TestLineParser_DefaultHeader(t *testing.T) {
	p := NewLineParser()

	parsed, err := p.Parse("1500,3,12000,16800,2500,120,500,450,355,5000,300,400,0,1024,96,2")
	require.NoError(t, err)

	assert.Equal(t, recording.LineData, parsed.Kind)
	assert.False(t, parsed.Idle)
	assert.Equal(t, 3, parsed.Sample.DeviceID)
	assert.Equal(t, int64(1500), parsed.Sample.TimestampMs)
	assert.Equal(t, 12000.0, parsed.Sample.RPM.Float64())
	assert.Equal(t, 16800.0, parsed.Sample.VoltageMV.Float64())
	assert.Equal(t, 2.0, parsed.Sample.RxFramesDropped.Float64())
}

func TestLineParser_HeaderReplacesLayout(t *testing.T) {
	p := NewLineParser()

	parsed, err := p.Parse(" device , ts_ms , rpm ")
	require.NoError(t, err)
	assert.Equal(t, recording.LineHeader, parsed.Kind)
	assert.Equal(t, []string{"device", "ts_ms", "rpm"}, parsed.Header)

	parsed, err = p.Parse("7,250,900,extra")
	require.NoError(t, err)
	assert.Equal(t, 7, parsed.Sample.DeviceID)
	assert.Equal(t, int64(250), parsed.Sample.TimestampMs)
	assert.Equal(t, 900.0, parsed.Sample.RPM.Float64())
	assert.False(t, parsed.Sample.VoltageMV.IsPresent())
	assert.Len(t, parsed.Row.Fields(), 3)

	p.Reset()
	assert.Equal(t, telemetry.DefaultHeader(), p.Header())
}

func TestLineParser_ShortRowIsPadded(t *testing.T) {
	p := NewLineParser()

	parsed, err := p.Parse("100,2,5000")
	require.NoError(t, err)
	assert.Len(t, parsed.Row.Fields(), len(telemetry.DefaultHeader()))
	assert.False(t, parsed.Sample.CurrentMA.IsPresent())
	assert.Equal(t, 0.0, parsed.Sample.CurrentMA.Float64())
}

func TestLineParser_Idle(t *testing.T) {
	p := NewLineParser()

	parsed, err := p.Parse("1000,-1,0,0,0,0,0,0,0,0,0,0,0,0,0,0")
	require.NoError(t, err)
	assert.True(t, parsed.Idle)
}

func TestLineParser_Rejects(t *testing.T) {
	tests := []struct {
		name string
		line string
		err  error
	}{
		{"no device", "1000,,1", telemetry.ErrInvalidDevice},
		{"garbage device", "1000,esc,1", telemetry.ErrInvalidDevice},
		{"no timestamp", ",1,1", telemetry.ErrInvalidTimestamp},
		{"debug print", "RX1 pin state", telemetry.ErrInvalidDevice},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := NewLineParser().Parse(tc.line)
			assert.ErrorIs(t, err, tc.err)
			assert.Equal(t, recording.LineData, parsed.Kind)
		})
	}
}
