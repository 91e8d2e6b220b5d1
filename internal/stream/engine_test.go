package stream

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/esc-telemetry/internal/telemetry"
)

func sample(device int, ts int64, rpm int64) telemetry.Sample {
	return telemetry.Sample{
		DeviceID:    device,
		TimestampMs: ts,
		RPM:         telemetry.Int(rpm),
		VoltageMV:   telemetry.Int(rpm * 2),
		TempCx10:    telemetry.Int(rpm / 10),
	}
}

func newEngine(t *testing.T, window int) *Engine {
	t.Helper()
	e, err := New(window)
	require.NoError(t, err)
	return e
}

func rpmValues(t *testing.T, e *Engine, device int) []Point {
	t.Helper()
	s, ok := e.Series(device)
	require.True(t, ok, "device %d not registered", device)
	return s.Values(telemetry.MetricRPM)
}

func requireAligned(t *testing.T, e *Engine) {
	t.Helper()
	for _, id := range e.Devices() {
		s, _ := e.Series(id)
		for _, m := range telemetry.Metrics {
			require.Len(t, s.Values(m), e.Len(), "device %d metric %s", id, m)
		}
	}
}

func TestNew_InvalidWindow(t *testing.T) {
	for _, w := range []int{0, -1} {
		_, err := New(w)
		require.Error(t, err)
	}
}

func TestIngest_LateRegistration(t *testing.T) {
	// W=3, device A at ticks 1 and 2, device B first seen at tick 3
	e := newEngine(t, 3)

	e.Ingest(sample(1, 1000, 100))
	e.Ingest(sample(1, 2000, 200))
	tick := e.Ingest(sample(2, 3000, 300))

	assert.True(t, tick.FirstSeen)
	require.Equal(t, 3, e.Len())
	requireAligned(t, e)

	assert.Equal(t, []Point{Of(100), Of(200), Of(200)}, rpmValues(t, e, 1))
	assert.Equal(t, []Point{Null(), Null(), Of(300)}, rpmValues(t, e, 2))
}

func TestIngest_Eviction(t *testing.T) {
	// W=2, device A at ticks 1, 2 and 3
	e := newEngine(t, 2)

	e.Ingest(sample(1, 1000, 100))
	e.Ingest(sample(1, 2000, 200))
	tick := e.Ingest(sample(1, 3000, 300))

	assert.Equal(t, 1, tick.Evicted)
	require.Equal(t, 2, e.Len())
	assert.Equal(t, []string{"0:02", "0:03"}, e.Timeline().Labels())
	assert.Equal(t, []int64{2000, 3000}, e.Timeline().Timestamps())
	assert.Equal(t, []Point{Of(200), Of(300)}, rpmValues(t, e, 1))
}

func TestIngest_EvictionIsNotPartial(t *testing.T) {
	e := newEngine(t, 3)

	e.Ingest(sample(1, 0, 10))
	e.Ingest(sample(2, 0, 20))
	e.Ingest(sample(3, 0, 30))
	e.Ingest(sample(1, 0, 11))

	require.Equal(t, 3, e.Len())
	requireAligned(t, e)

	// The first tick (device 1 alone) is gone from every buffer
	assert.Equal(t, []Point{Of(10), Of(10), Of(11)}, rpmValues(t, e, 1))
	assert.Equal(t, []Point{Of(20), Of(20), Of(20)}, rpmValues(t, e, 2))
	assert.Equal(t, []Point{Null(), Of(30), Of(30)}, rpmValues(t, e, 3))
}

func TestIngest_ForwardFill(t *testing.T) {
	e := newEngine(t, 100)

	e.Ingest(sample(1, 0, 100))
	e.Ingest(sample(2, 0, 500))
	for i := range 5 {
		e.Ingest(sample(2, int64(i), int64(600+i)))
	}
	e.Ingest(sample(1, 0, 150))

	got := rpmValues(t, e, 1)
	require.Len(t, got, 8)

	assert.Equal(t, Of(100), got[0])
	for k := 1; k < 7; k++ {
		assert.Equal(t, Of(100), got[k], "slot %d", k)
	}
	assert.Equal(t, Of(150), got[7])

	s, _ := e.Series(1)
	assert.Equal(t, Of(0.2), s.At(telemetry.MetricVoltage, 3), "every metric is forward-filled")
}

func TestIngest_NoMergeOnEqualTimestamps(t *testing.T) {
	e := newEngine(t, 10)

	e.Ingest(sample(1, 5000, 1))
	e.Ingest(sample(1, 5000, 2))
	e.Ingest(sample(2, 5000, 3))

	assert.Equal(t, 3, e.Len())
	assert.Equal(t, []string{"0:05", "0:05", "0:05"}, e.Timeline().Labels())
	assert.Equal(t, []Point{Of(1), Of(2), Of(2)}, rpmValues(t, e, 1))
}

func TestIngest_MissingFieldsAreZeroNotNull(t *testing.T) {
	e := newEngine(t, 10)

	e.Ingest(telemetry.Sample{DeviceID: 4, TimestampMs: 10})

	s, _ := e.Series(4)
	for _, m := range telemetry.Metrics {
		assert.Equal(t, Of(0), s.At(m, 0), m.String())
	}
}

func TestIngest_NaNIsCarried(t *testing.T) {
	e := newEngine(t, 10)

	e.Ingest(telemetry.Sample{DeviceID: 1, VoltageMV: telemetry.ParseValue("bad")})
	e.Ingest(sample(2, 0, 10))

	s, _ := e.Series(1)
	require.Equal(t, 2, s.Len())
	for i := range 2 {
		p := s.At(telemetry.MetricVoltage, i)
		assert.True(t, p.Valid)
		assert.True(t, math.IsNaN(p.Value))
	}
}

func TestIngest_SeriesStayAligned(t *testing.T) {
	const window = 50
	e := newEngine(t, window)
	rnd := rand.New(rand.NewSource(7))

	for i := range 1000 {
		device := rnd.Intn(12)
		e.Ingest(sample(device, int64(i*50), int64(rnd.Intn(30000))))

		require.LessOrEqual(t, e.Len(), window)
		require.Len(t, e.Timeline().Timestamps(), e.Len())
		requireAligned(t, e)
	}
	assert.Equal(t, window, e.Len())
}

func TestClear(t *testing.T) {
	e := newEngine(t, 10)

	e.Ingest(sample(1, 0, 100))
	e.Ingest(sample(2, 0, 200))
	e.Clear()

	assert.Equal(t, 0, e.Len())
	assert.Equal(t, []int{1, 2}, e.Devices())
	requireAligned(t, e)

	// Device 1 is silent after the clear and is forward-filled from before it
	e.Ingest(sample(2, 0, 300))
	assert.Equal(t, []Point{Of(100)}, rpmValues(t, e, 1))
	assert.Equal(t, []Point{Of(300)}, rpmValues(t, e, 2))
}

func TestReset(t *testing.T) {
	e := newEngine(t, 10)

	e.Ingest(sample(1, 0, 100))
	e.Reset()

	assert.Equal(t, 0, e.Len())
	assert.Empty(t, e.Devices())
	_, ok := e.LastReading(1)
	assert.False(t, ok)

	tick := e.Ingest(sample(2, 0, 300))
	assert.True(t, tick.FirstSeen)
	_, ok = e.Series(1)
	assert.False(t, ok)
}

func TestEngines_AreIndependent(t *testing.T) {
	a := newEngine(t, 10)
	b := newEngine(t, 10)

	a.Ingest(sample(1, 0, 1))

	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Devices())
}
