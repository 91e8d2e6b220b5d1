package stream

import (
	"slices"

	"github.com/roman-kulish/esc-telemetry/internal/telemetry"
)

// Point is a single slot of a metric series. A point is null (Valid false)
// for ticks before the device was first seen.
type Point struct {
	Value float64
	Valid bool
}

// Null returns an empty point
func Null() Point {
	return Point{}
}

// Of returns a point holding v
func Of(v float64) Point {
	return Point{Value: v, Valid: true}
}

// MarshalJSON encodes a null point as null and a value as a number
func (p Point) MarshalJSON() ([]byte, error) {
	if !p.Valid {
		return []byte("null"), nil
	}
	return telemetry.AppendJSONFloat(nil, p.Value), nil
}

// DeviceSeries holds one bounded series per charted metric for a single
// device. All series of a device always have the same length.
type DeviceSeries struct {
	metrics [telemetry.NumMetrics][]Point
}

// newDeviceSeries creates series pre-filled with n null points
func newDeviceSeries(n int) *DeviceSeries {
	var s DeviceSeries
	for m := range s.metrics {
		s.metrics[m] = make([]Point, n)
	}
	return &s
}

// Len returns the number of points in each series
func (s *DeviceSeries) Len() int {
	return len(s.metrics[telemetry.MetricRPM])
}

// Values returns a copy of the series of metric m, oldest first
func (s *DeviceSeries) Values(m telemetry.Metric) []Point {
	return slices.Clone(s.metrics[m])
}

// At returns point i of the series of metric m
func (s *DeviceSeries) At(m telemetry.Metric, i int) Point {
	return s.metrics[m][i]
}

// append adds one slot to every series: the metric of r, or null when r is nil
func (s *DeviceSeries) append(r *telemetry.Reading) {
	for _, m := range telemetry.Metrics {
		p := Null()
		if r != nil {
			p = Of(r.Metric(m))
		}
		s.metrics[m] = append(s.metrics[m], p)
	}
}

func (s *DeviceSeries) evict(n int) {
	for m := range s.metrics {
		s.metrics[m] = slices.Delete(s.metrics[m], 0, n)
	}
}

func (s *DeviceSeries) clear() {
	for m := range s.metrics {
		s.metrics[m] = s.metrics[m][:0]
	}
}
