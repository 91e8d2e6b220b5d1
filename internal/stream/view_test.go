package stream

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/esc-telemetry/internal/telemetry"
)

func TestVisible(t *testing.T) {
	assert.True(t, Visible(1, All))
	assert.True(t, Visible(7, All))
	assert.True(t, Visible(7, Device(7)))
	assert.False(t, Visible(1, Device(7)))
}

func TestParseSelection(t *testing.T) {
	testCases := []struct {
		in      string
		want    Selection
		wantErr bool
	}{
		{"all", All, false},
		{"ALL", All, false},
		{" 3 ", Device(3), false},
		{"0", Device(0), false},
		{"esc", All, true},
		{"", All, true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseSelection(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestSelection_ZeroValueIsAll(t *testing.T) {
	var sel Selection
	assert.True(t, sel.IsAll())
	assert.Equal(t, "all", sel.String())

	id, ok := Device(0).DeviceID()
	assert.True(t, ok)
	assert.Equal(t, 0, id)
}

func TestSnapshot_SelectionDoesNotMutate(t *testing.T) {
	e := newEngine(t, 10)
	e.Ingest(sample(1, 1000, 100))
	e.Ingest(sample(2, 2000, 200))

	all := e.Snapshot(All)
	onlyB := e.Snapshot(Device(2))

	require.Len(t, all.Devices, 2)
	require.Len(t, onlyB.Devices, 2)

	for i := range all.Devices {
		for j := range all.Devices[i].Series {
			assert.Equal(t, all.Devices[i].Series[j].Values, onlyB.Devices[i].Series[j].Values)
			assert.True(t, all.Devices[i].Series[j].Visible)
		}
	}

	assert.False(t, onlyB.Devices[0].Visible)
	assert.True(t, onlyB.Devices[1].Visible)
	for _, sv := range onlyB.Devices[0].Series {
		assert.False(t, sv.Visible)
	}

	// History stays available for the hidden device
	assert.Equal(t, []Point{Of(100), Of(100)}, rpmValues(t, e, 1))
}

func TestSnapshot_IsACopy(t *testing.T) {
	e := newEngine(t, 2)
	e.Ingest(sample(1, 1000, 100))

	snap := e.Snapshot(All)
	e.Ingest(sample(1, 2000, 200))
	e.Ingest(sample(1, 3000, 300))

	assert.Equal(t, []string{"0:01"}, snap.Labels)
	assert.Equal(t, []Point{Of(100)}, snap.Devices[0].Series[0].Values)
}

func TestSnapshot_Relabel(t *testing.T) {
	e := newEngine(t, 10)
	e.Ingest(sample(1, 0, 1))
	e.Ingest(sample(5, 0, 2))

	snap := e.Snapshot(All)
	before := snap.Metric(telemetry.MetricRPM)

	snap.Relabel(Device(5))

	after := snap.Metric(telemetry.MetricRPM)
	require.Len(t, after, 2)
	assert.False(t, after[0].Visible)
	assert.True(t, after[1].Visible)
	assert.Equal(t, before[0].Values, after[0].Values)
	assert.Equal(t, Device(5), snap.Selection)
}

func TestSnapshot_DevicesSortedNumerically(t *testing.T) {
	e := newEngine(t, 10)
	for _, id := range []int{10, 2, 33, 1} {
		e.Ingest(sample(id, 0, 1))
	}

	snap := e.Snapshot(All)
	var ids []int
	for _, dv := range snap.Devices {
		ids = append(ids, dv.DeviceID)
	}
	assert.Equal(t, []int{1, 2, 10, 33}, ids)
}

func TestSnapshot_JSON(t *testing.T) {
	e := newEngine(t, 10)
	e.Ingest(sample(1, 61234, 100))
	e.Ingest(telemetry.Sample{DeviceID: 2, TimestampMs: 62000, VoltageMV: telemetry.ParseValue("x")})

	p, err := json.Marshal(e.Snapshot(Device(2)))
	require.NoError(t, err)

	var decoded struct {
		Selection string   `json:"selection"`
		Labels    []string `json:"labels"`
		Devices   []struct {
			Device  int  `json:"device"`
			Visible bool `json:"visible"`
			Series  []struct {
				Metric string `json:"metric"`
				Values []any  `json:"values"`
			} `json:"series"`
		} `json:"devices"`
	}
	require.NoError(t, json.Unmarshal(p, &decoded))

	assert.Equal(t, "2", decoded.Selection)
	assert.Equal(t, []string{"1:01", "1:02"}, decoded.Labels)
	require.Len(t, decoded.Devices, 2)
	assert.False(t, decoded.Devices[0].Visible)
	assert.Equal(t, "rpm", decoded.Devices[0].Series[0].Metric)
	assert.Equal(t, []any{nil, "NaN"}, decoded.Devices[1].Series[1].Values)
}

func TestPoint_MarshalJSON(t *testing.T) {
	p, err := json.Marshal([]Point{Null(), Of(1.5), Of(math.Inf(-1))})
	require.NoError(t, err)
	assert.Equal(t, `[null,1.5,"-Infinity"]`, string(p))
}
