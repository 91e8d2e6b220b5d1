package chart

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/roman-kulish/esc-telemetry/internal/stream"
	"github.com/roman-kulish/esc-telemetry/internal/telemetry"
)

const (
	dpi            = 72.0
	tickMarkLength = 5
	pixelsPerLabel = 120.0
	legendSwatch   = 12
)

var parsedFont *truetype.Font

func init() {
	f, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		panic(fmt.Sprintf("parsing Go font: %s", err))
	}
	parsedFont = f
}

type annotator struct {
	context  *freetype.Context
	fontFace font.Face
	fontSize float64
	borders  BorderConfig
}

func newAnnotator(fontSize float64, borders BorderConfig) *annotator {
	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(fontSize)
	ctx.SetHinting(font.HintingFull)
	ctx.SetSrc(image.NewUniform(textColor))

	return &annotator{
		context:  ctx,
		fontSize: fontSize,
		borders:  borders,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    fontSize,
			DPI:     dpi,
			Hinting: font.HintingFull,
		}),
	}
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

// plot describes the plot area and its value mapping
type plot struct {
	area   image.Rectangle
	bounds Bounds
	step   float64
	n      int // number of ticks on the time axis
}

func (p *plot) x(i int) float32 {
	if p.n <= 1 {
		return float32(p.area.Min.X) + float32(p.area.Dx())/2
	}
	return float32(p.area.Min.X) + float32(i)*float32(p.area.Dx())/float32(p.n-1)
}

func (p *plot) y(v float64) float32 {
	ratio := (p.bounds.Max - v) / p.bounds.Span()
	return float32(p.area.Min.Y) + float32(ratio)*float32(p.area.Dy())
}

func (a *annotator) annotate(img *image.RGBA, p *plot, snap *stream.Snapshot, m telemetry.Metric) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func(*image.RGBA, *plot, *stream.Snapshot, telemetry.Metric) error
	}{
		{"drawing value scale", a.drawValueScale},
		{"drawing time scale", a.drawTimeScale},
		{"drawing title", a.drawTitle},
		{"drawing legend", a.drawLegend},
	}
	for _, op := range ops {
		if err := op.fn(img, p, snap, m); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}

	return nil
}

func (a *annotator) drawValueScale(img *image.RGBA, p *plot, _ *stream.Snapshot, _ telemetry.Metric) error {
	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	steps := int(math.Round(p.bounds.Span() / p.step))
	for k := 0; k <= steps; k++ {
		v := p.bounds.Min + float64(k)*p.step
		if math.Abs(v) < p.step*1e-9 {
			v = 0
		}
		y := int(p.y(v))

		// grid line across the plot and a tick mark on the axis
		for x := p.area.Min.X - tickMarkLength; x < p.area.Max.X; x++ {
			img.Set(x, y, gridColor)
		}

		label := formatValue(v)
		width := font.MeasureString(a.fontFace, label).Round()
		pt := freetype.Pt(p.area.Min.X-tickMarkLength-3-width, y+fontHeight/2-metrics.Descent.Round())
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing value label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawTimeScale(img *image.RGBA, p *plot, snap *stream.Snapshot, _ telemetry.Metric) error {
	if p.n == 0 {
		return nil
	}

	labels := max(int(float64(p.area.Dx())/pixelsPerLabel), 1)
	every := max(int(math.Ceil(float64(p.n)/float64(labels))), 1)

	metrics := a.fontFace.Metrics()
	textY := p.area.Max.Y + tickMarkLength + metrics.Ascent.Round() + 2

	for i := 0; i < p.n; i += every {
		x := int(p.x(i))
		for y := p.area.Max.Y; y < p.area.Max.Y+tickMarkLength; y++ {
			img.Set(x, y, textColor)
		}

		label := snap.Labels[i]
		width := font.MeasureString(a.fontFace, label).Round()
		pt := freetype.Pt(x-width/2, textY)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing time label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawTitle(_ *image.RGBA, _ *plot, snap *stream.Snapshot, m telemetry.Metric) error {
	title := m.Label()
	if unit := m.Unit(); unit != "" {
		title = fmt.Sprintf("%s (%s)", title, unit)
	}
	title = fmt.Sprintf("%s; %s; %s ticks", title, snap.Selection, humanize.Comma(int64(snap.Len())))

	metrics := a.fontFace.Metrics()
	pt := freetype.Pt(a.borders.Left, (a.borders.Top+metrics.Ascent.Round())/2)
	_, err := a.context.DrawString(title, pt)
	return err
}

func (a *annotator) drawLegend(img *image.RGBA, p *plot, snap *stream.Snapshot, m telemetry.Metric) error {
	metrics := a.fontFace.Metrics()
	x := p.area.Min.X
	y := img.Bounds().Max.Y - a.borders.Bottom/3

	for _, sv := range snap.Metric(m) {
		if !sv.Visible {
			continue
		}

		swatch := image.Rect(x, y-legendSwatch+metrics.Descent.Round(), x+legendSwatch, y+metrics.Descent.Round())
		fillRect(img, swatch, DeviceColor(sv.DeviceID))

		label := fmt.Sprintf("ESC %d", sv.DeviceID)
		if _, err := a.context.DrawString(label, freetype.Pt(x+legendSwatch+4, y)); err != nil {
			return fmt.Errorf("drawing legend: %w", err)
		}
		x += legendSwatch + 4 + font.MeasureString(a.fontFace, label).Round() + 16
	}
	return nil
}

// formatValue formats an axis value with an SI prefix, e.g. "12k" rpm or
// "500m" V
func formatValue(v float64) string {
	if v == 0 {
		return "0"
	}
	value, prefix := humanize.ComputeSI(v)
	return humanize.FtoaWithDigits(value, 2) + prefix
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Set(x, y, c)
		}
	}
}
