package chart

import (
	"math"

	"github.com/roman-kulish/esc-telemetry/internal/stream"
)

// Bounds is the value range of the plotted series
type Bounds struct {
	Min float64
	Max float64
}

// Span returns the width of the range
func (b Bounds) Span() float64 {
	return b.Max - b.Min
}

// seriesBounds returns the range of the finite points of the visible series.
// ok is false when there is nothing to plot.
func seriesBounds(series []stream.SeriesView) (b Bounds, ok bool) {
	b = Bounds{Min: math.Inf(1), Max: math.Inf(-1)}

	for _, sv := range series {
		if !sv.Visible {
			continue
		}
		for _, p := range sv.Values {
			if !p.Valid || math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
				continue
			}
			b.Min = math.Min(b.Min, p.Value)
			b.Max = math.Max(b.Max, p.Value)
			ok = true
		}
	}

	if !ok {
		return Bounds{Min: 0, Max: 1}, false
	}
	return b, true
}

// niceBounds widens b to whole multiples of a readable step, so that about
// ticks grid lines fit. Flat series get a unit wide range around the value.
func niceBounds(b Bounds, ticks int) (Bounds, float64) {
	if b.Span() == 0 {
		pad := math.Max(math.Abs(b.Min)*0.1, 1)
		b = Bounds{Min: b.Min - pad, Max: b.Max + pad}
	}

	step := niceStep(b.Span() / float64(max(ticks, 1)))
	return Bounds{
		Min: math.Floor(b.Min/step) * step,
		Max: math.Ceil(b.Max/step) * step,
	}, step
}

// niceStep rounds a raw step up to 1, 2 or 5 times a power of ten
func niceStep(raw float64) float64 {
	if raw <= 0 || math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 1
	}

	exp := math.Floor(math.Log10(raw))
	base := math.Pow(10, exp)

	for _, m := range []float64{1, 2, 5} {
		if raw <= m*base {
			return m * base
		}
	}
	return 10 * base
}
