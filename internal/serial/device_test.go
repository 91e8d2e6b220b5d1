package serial

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/esc-telemetry/internal/recording"
)

// scriptedSource hands out one reader per Open call, then fails.
type scriptedSource struct {
	mu      sync.Mutex
	outputs []string
	opened  int
}

func (s *scriptedSource) Name() string { return "test" }

func (s *scriptedSource) Open(context.Context) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opened >= len(s.outputs) {
		return nil, errors.New("unplugged")
	}
	out := s.outputs[s.opened]
	s.opened++
	return io.NopCloser(strings.NewReader(out)), nil
}

func collect(t *testing.T, d *Device) ([]Event, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events := make(chan Event)
	stopped, err := d.Start(ctx, events)
	require.NoError(t, err)

	var got []Event
	for {
		select {
		case ev := <-events:
			got = append(got, ev)
		case err := <-stopped:
			return got, err
		case <-ctx.Done():
			t.Fatal("device did not stop")
		}
	}
}

func TestDevice_SingleConnection(t *testing.T) {
	src := &scriptedSource{outputs: []string{
		"ts_ms,device,rpm\n\n100,1,500\r\n200,2,600\n",
	}}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	d := NewDevice(src, WithClock(func() time.Time { return now }))

	got, err := collect(t, d)
	require.NoError(t, err)
	require.Len(t, got, 5)

	assert.Equal(t, EventConnected, got[0].Kind)

	assert.Equal(t, EventLine, got[1].Kind)
	assert.Equal(t, recording.LineHeader, got[1].Line.Kind)
	assert.Equal(t, "ts_ms,device,rpm", got[1].Line.Text)

	assert.Equal(t, EventLine, got[2].Kind)
	assert.Equal(t, "100,1,500", got[2].Line.Text)
	assert.Equal(t, 1, got[2].Parsed.Sample.DeviceID)
	assert.Equal(t, now, got[2].Line.ReceivedAt)

	assert.Equal(t, 2, got[3].Parsed.Sample.DeviceID)

	assert.Equal(t, EventDisconnected, got[4].Kind)
	assert.NoError(t, got[4].Err)
	assert.False(t, d.IsRunning())
}

func TestDevice_Reconnects(t *testing.T) {
	src := &scriptedSource{outputs: []string{"100,1,500\n", "200,1,600\n"}}
	d := NewDevice(src, WithReconnectInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan Event)
	stopped, err := d.Start(ctx, events)
	require.NoError(t, err)

	var kinds []EventKind
	for len(kinds) < 6 {
		kinds = append(kinds, (<-events).Kind)
	}
	assert.Equal(t, []EventKind{
		EventConnected, EventLine, EventDisconnected,
		EventConnected, EventLine, EventDisconnected,
	}, kinds)

	// further attempts fail and are retried until the device is stopped
	d.Stop()
	_, open := <-stopped
	assert.False(t, open)
	assert.False(t, d.IsRunning())
}

func TestDevice_TooManyParseErrors(t *testing.T) {
	src := &scriptedSource{outputs: []string{"a\nb\nc\n100,1,1\n"}}
	d := NewDevice(src, WithParseErrorsThreshold(2))

	got, err := collect(t, d)
	assert.ErrorIs(t, err, ErrTooManyParseErrors)

	require.Len(t, got, 4)
	assert.Error(t, got[1].Err)
	assert.Error(t, got[2].Err)
	assert.Equal(t, EventDisconnected, got[3].Kind)
	assert.ErrorIs(t, got[3].Err, ErrTooManyParseErrors)
}

func TestDevice_ZeroParseErrorsThreshold(t *testing.T) {
	src := &scriptedSource{outputs: []string{"a\n100,1,1\nb\n200,1,2\n"}}
	d := NewDevice(src, WithParseErrorsThreshold(0), WithReconnectInterval(0))
	assert.Equal(t, uint8(ParseErrorsThreshold), d.parseErrorsThreshold)

	got, err := collect(t, d)
	require.NoError(t, err)

	require.Len(t, got, 6)
	assert.Error(t, got[1].Err)
	assert.NoError(t, got[2].Err)
	assert.Error(t, got[3].Err)
	assert.Equal(t, EventDisconnected, got[5].Kind)
	assert.NoError(t, got[5].Err)
	assert.Equal(t, 1, src.opened)
}

func TestDevice_OpenFailure(t *testing.T) {
	d := NewDevice(&scriptedSource{})

	got, err := collect(t, d)
	assert.Error(t, err)
	assert.Empty(t, got)
}

func TestDevice_AlreadyRunning(t *testing.T) {
	src := &scriptedSource{outputs: []string{"100,1,500\n"}}
	d := NewDevice(src)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan Event)
	_, err := d.Start(ctx, events)
	require.NoError(t, err)

	_, err = d.Start(ctx, events)
	assert.Error(t, err)

	d.Stop()
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "connected", EventConnected.String())
	assert.Equal(t, "disconnected", EventDisconnected.String())
	assert.Equal(t, "line", EventLine.String())
}
