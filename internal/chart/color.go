package chart

import (
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// palette is the per-device series palette of the dashboard
var palette = mustParsePalette(
	"#00d4ff",
	"#00ff88",
	"#ff3366",
	"#7b2ff7",
	"#ffa500",
	"#2ecc71",
	"#e74c3c",
	"#3498db",
)

var (
	backgroundColor = mustParseHex("#1a1a2e")
	gridColor       = mustParseHex("#2c2c44")
	textColor       = mustParseHex("#e0e0e0")
)

func mustParseHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}

func mustParsePalette(hex ...string) []colorful.Color {
	out := make([]colorful.Color, 0, len(hex))
	for _, h := range hex {
		out = append(out, mustParseHex(h))
	}
	return out
}

// DeviceColor returns the series colour of a device. Devices share colours
// when there are more devices than palette entries.
func DeviceColor(deviceID int) color.Color {
	i := deviceID % len(palette)
	if i < 0 {
		i += len(palette)
	}
	return palette[i]
}
