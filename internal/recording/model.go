package recording

import "time"

const (
	// LineHeader is a collector header line naming the CSV columns
	LineHeader LineKind = "header"

	// LineData is a collector data line
	LineData LineKind = "data"
)

// LineKind tells header lines from data lines
type LineKind string

// Session is a single recording of a telemetry link, from the moment the
// dashboard started until it stopped.
type Session struct {
	ID        int64     `json:"ID"`                      // Unique identifier for the session
	StartTime time.Time `json:"startTime"`               // When the recording began
	Source    string    `json:"source"`                  // Link the lines were read from (e.g. "serial:/dev/ttyACM0")
	Config    *string   `json:"config,string,omitempty"` // Optional link configuration in JSON format
}

// Line is one raw line delivered by the telemetry link
type Line struct {
	ReceivedAt time.Time `json:"receivedAt"` // When the line was read from the link
	Kind       LineKind  `json:"kind"`       // Header or data line
	Text       string    `json:"text"`       // Line content without the line terminator
}
