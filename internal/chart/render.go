package chart

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	"github.com/roman-kulish/esc-telemetry/internal/stream"
	"github.com/roman-kulish/esc-telemetry/internal/telemetry"
)

const (
	defaultWidth      = 1200
	defaultHeight     = 400
	defaultFontSize   = 12.0
	defaultLineWidth  = 2.0
	defaultValueTicks = 6

	// Default border sizes in pixels
	defaultTopBorder    = 32
	defaultLeftBorder   = 64
	defaultBottomBorder = 56
	defaultRightBorder  = 24
)

// ErrEmptyPlot is returned when the plot area left by the borders is empty
var ErrEmptyPlot = errors.New("plot area is empty")

// BorderConfig defines the sizes of the space around the plot area
type BorderConfig struct {
	Top    int // Space for the title
	Left   int // Space for the value scale
	Bottom int // Space for the time scale and the legend
	Right  int // Right padding
}

// RenderConfig holds the chart image options. Zero values select defaults.
type RenderConfig struct {
	Width      int     // Image width in pixels
	Height     int     // Image height in pixels
	FontSize   float64 // Font size in points
	LineWidth  float64 // Series line width in pixels
	ValueTicks int     // Approximate number of value grid lines

	BorderConfig BorderConfig
}

// Renderer draws line charts of one metric of a snapshot: one line per
// visible device, null points break the line and NaN points are skipped.
type Renderer struct {
	config RenderConfig
}

// NewRenderer creates a renderer with the given configuration
func NewRenderer(config RenderConfig) (*Renderer, error) {
	// Set defaults for zero values
	if config.Width == 0 {
		config.Width = defaultWidth
	}
	if config.Height == 0 {
		config.Height = defaultHeight
	}
	if config.FontSize == 0 {
		config.FontSize = defaultFontSize
	}
	if config.LineWidth == 0 {
		config.LineWidth = defaultLineWidth
	}
	if config.ValueTicks == 0 {
		config.ValueTicks = defaultValueTicks
	}
	if config.BorderConfig.Top == 0 {
		config.BorderConfig.Top = defaultTopBorder
	}
	if config.BorderConfig.Left == 0 {
		config.BorderConfig.Left = defaultLeftBorder
	}
	if config.BorderConfig.Bottom == 0 {
		config.BorderConfig.Bottom = defaultBottomBorder
	}
	if config.BorderConfig.Right == 0 {
		config.BorderConfig.Right = defaultRightBorder
	}

	b := config.BorderConfig
	if config.Width-b.Left-b.Right <= 0 || config.Height-b.Top-b.Bottom <= 0 {
		return nil, fmt.Errorf("%w: %dx%d image with borders %+v", ErrEmptyPlot, config.Width, config.Height, b)
	}
	if config.LineWidth < 0 || config.FontSize < 0 {
		return nil, fmt.Errorf("line width and font size must not be negative")
	}

	return &Renderer{config: config}, nil
}

// Render creates an image of metric m of the snapshot
func (r *Renderer) Render(snap *stream.Snapshot, m telemetry.Metric) (*image.RGBA, error) {
	if snap == nil {
		return nil, errors.New("nil snapshot")
	}

	img := image.NewRGBA(image.Rect(0, 0, r.config.Width, r.config.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	b := r.config.BorderConfig
	series := snap.Metric(m)

	bounds, _ := seriesBounds(series)
	bounds, step := niceBounds(bounds, r.config.ValueTicks)

	p := &plot{
		area:   image.Rect(b.Left, b.Top, r.config.Width-b.Right, r.config.Height-b.Bottom),
		bounds: bounds,
		step:   step,
		n:      snap.Len(),
	}

	ann := newAnnotator(r.config.FontSize, b)
	defer ann.Close()

	// First draw annotations and the grid
	if err := ann.annotate(img, p, snap, m); err != nil {
		return nil, fmt.Errorf("drawing annotations: %w", err)
	}

	// Then draw the series over the grid
	z := vector.NewRasterizer(img.Bounds().Dx(), img.Bounds().Dy())
	for _, sv := range series {
		if !sv.Visible {
			continue
		}
		z.Reset(img.Bounds().Dx(), img.Bounds().Dy())
		if r.tracePath(z, p, sv.Values) {
			z.Draw(img, img.Bounds(), image.NewUniform(DeviceColor(sv.DeviceID)), image.Point{})
		}
	}

	return img, nil
}

// tracePath adds one stroke segment per pair of consecutive plottable points
// and a dot for every isolated one. It returns false if nothing was added.
func (r *Renderer) tracePath(z *vector.Rasterizer, p *plot, values []stream.Point) bool {
	half := float32(r.config.LineWidth / 2)
	traced := false

	prev := -1
	for i, pt := range values {
		if !plottable(pt) {
			prev = -1
			continue
		}

		x, y := p.x(i), p.y(pt.Value)
		if prev >= 0 {
			strokeSegment(z, p.x(prev), p.y(values[prev].Value), x, y, half)
		} else if i+1 >= len(values) || !plottable(values[i+1]) {
			dot(z, x, y, half)
		}

		prev = i
		traced = true
	}
	return traced
}

func plottable(pt stream.Point) bool {
	return pt.Valid && !math.IsNaN(pt.Value) && !math.IsInf(pt.Value, 0)
}

// strokeSegment adds a quad of the given half width around the segment
// (x0, y0)-(x1, y1). Every quad has the same winding, so overlaps at the
// joints do not cancel out.
func strokeSegment(z *vector.Rasterizer, x0, y0, x1, y1, half float32) {
	dx, dy := x1-x0, y1-y0
	length := float32(math.Hypot(float64(dx), float64(dy)))
	if length == 0 {
		dot(z, x0, y0, half)
		return
	}

	nx, ny := -dy/length*half, dx/length*half

	z.MoveTo(x0+nx, y0+ny)
	z.LineTo(x1+nx, y1+ny)
	z.LineTo(x1-nx, y1-ny)
	z.LineTo(x0-nx, y0-ny)
	z.ClosePath()
}

func dot(z *vector.Rasterizer, x, y, half float32) {
	half = max(half, 1)
	z.MoveTo(x-half, y-half)
	z.LineTo(x+half, y-half)
	z.LineTo(x+half, y+half)
	z.LineTo(x-half, y+half)
	z.ClosePath()
}
