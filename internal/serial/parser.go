package serial

import (
	"slices"
	"strings"

	"github.com/roman-kulish/esc-telemetry/internal/recording"
	"github.com/roman-kulish/esc-telemetry/internal/telemetry"
)

// Parsed is the outcome of parsing one collector line
type Parsed struct {
	Kind   recording.LineKind
	Header []string         // Column layout in effect after this line
	Row    telemetry.Row    // Data lines only
	Sample telemetry.Sample // Data lines only

	// Idle is set for the keep-alive rows the collector prints while no ESC
	// is talking (device address -1). They carry no telemetry.
	Idle bool
}

// LineParser turns collector lines into samples. A header line replaces the
// column layout used for the data lines that follow it.
type LineParser struct {
	header []string
}

func NewLineParser() *LineParser {
	return &LineParser{header: telemetry.DefaultHeader()}
}

// Header returns the current column layout
func (p *LineParser) Header() []string {
	return slices.Clone(p.header)
}

// Reset restores the default column layout
func (p *LineParser) Reset() {
	p.header = telemetry.DefaultHeader()
}

// Parse parses one line without its terminator. Data rows without a usable
// device address or timestamp are rejected with telemetry.ErrInvalidDevice
// or telemetry.ErrInvalidTimestamp.
func (p *LineParser) Parse(line string) (Parsed, error) {
	line = strings.TrimSpace(line)

	if telemetry.IsHeader(line) {
		p.header = splitFields(line)
		return Parsed{Kind: recording.LineHeader, Header: p.Header()}, nil
	}

	row := telemetry.NewRow(p.header, splitFields(line))
	sample, err := telemetry.SampleFromRow(row)
	if err != nil {
		return Parsed{Kind: recording.LineData, Header: p.header, Row: row}, err
	}

	return Parsed{
		Kind:   recording.LineData,
		Header: p.header,
		Row:    row,
		Sample: sample,
		Idle:   sample.DeviceID < 0,
	}, nil
}

func splitFields(line string) []string {
	fields := strings.Split(line, ",")
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}
	return fields
}
