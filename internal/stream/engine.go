package stream

import (
	"fmt"

	"github.com/roman-kulish/esc-telemetry/internal/telemetry"
)

// DefaultWindow retains two minutes of ticks at 10 Hz
const DefaultWindow = 1200

// Tick describes the outcome of ingesting a single sample
type Tick struct {
	DeviceID    int               // Device that sent the sample
	TimestampMs int64             // Collector timestamp of the sample
	Label       string            // Timeline label appended for the sample
	Reading     telemetry.Reading // Normalized sample
	FirstSeen   bool              // Whether the device was registered by this sample
	Evicted     int               // Number of oldest ticks dropped by the window
}

// Engine keeps a bounded, length-synchronized history of every device's
// metrics on a shared timeline.
//
// Each ingested sample appends exactly one slot to the timeline and one slot
// to every series of every registered device: the new reading for the sender,
// the last known reading (or null, before its first sample) for the rest.
// Once the timeline exceeds the window the oldest slot is dropped from the
// timeline and from every series in the same call.
//
// Engine is not safe for concurrent use; a single goroutine must own it.
type Engine struct {
	window int

	registry *Registry
	timeline Timeline
	series   map[int]*DeviceSeries
	last     map[int]telemetry.Reading
}

// New creates an Engine retaining at most window ticks
func New(window int) (*Engine, error) {
	if window <= 0 {
		return nil, fmt.Errorf("invalid window: %d, must be positive", window)
	}
	return &Engine{
		window:   window,
		registry: NewRegistry(),
		series:   make(map[int]*DeviceSeries),
		last:     make(map[int]telemetry.Reading),
	}, nil
}

// Ingest normalizes a sample and appends it to the history
func (e *Engine) Ingest(s telemetry.Sample) Tick {
	reading := telemetry.Normalize(s)

	// A new device joins aligned to the timeline as it was before this tick
	first := e.registry.Register(s.DeviceID)
	if first {
		e.series[s.DeviceID] = newDeviceSeries(e.timeline.Len())
	}

	label := e.timeline.append(s.TimestampMs)

	for id, series := range e.series {
		if id == s.DeviceID {
			series.append(&reading)
			continue
		}
		if last, ok := e.last[id]; ok {
			series.append(&last)
			continue
		}
		series.append(nil)
	}

	e.last[s.DeviceID] = reading

	var evicted int
	if n := e.timeline.Len() - e.window; n > 0 {
		e.timeline.evict(n)
		for _, series := range e.series {
			series.evict(n)
		}
		evicted = n
	}

	return Tick{
		DeviceID:    s.DeviceID,
		TimestampMs: s.TimestampMs,
		Label:       label,
		Reading:     reading,
		FirstSeen:   first,
		Evicted:     evicted,
	}
}

// Clear empties the timeline and every series. Registered devices and their
// last known readings are kept, so silent devices keep being forward-filled.
func (e *Engine) Clear() {
	e.timeline.clear()
	for _, series := range e.series {
		series.clear()
	}
}

// Reset returns the engine to its initial state
func (e *Engine) Reset() {
	e.timeline.clear()
	e.registry.Reset()
	clear(e.series)
	clear(e.last)
}

// Window returns the maximum number of retained ticks
func (e *Engine) Window() int {
	return e.window
}

// Len returns the number of retained ticks
func (e *Engine) Len() int {
	return e.timeline.Len()
}

// Timeline returns the shared timeline. It must not be retained past the
// next call to Ingest, Clear or Reset.
func (e *Engine) Timeline() *Timeline {
	return &e.timeline
}

// Devices returns the registered devices in ascending order
func (e *Engine) Devices() []int {
	return e.registry.Sorted()
}

// IsKnown reports whether a device has been registered
func (e *Engine) IsKnown(deviceID int) bool {
	return e.registry.IsKnown(deviceID)
}

// Series returns the history of a device
func (e *Engine) Series(deviceID int) (*DeviceSeries, bool) {
	s, ok := e.series[deviceID]
	return s, ok
}

// LastReading returns the most recent reading of a device
func (e *Engine) LastReading(deviceID int) (telemetry.Reading, bool) {
	r, ok := e.last[deviceID]
	return r, ok
}
