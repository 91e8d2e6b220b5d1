package dashboard

import (
	"encoding/json"
	"slices"
	"sync"

	"github.com/roman-kulish/esc-telemetry/internal/stream"
	"github.com/roman-kulish/esc-telemetry/internal/telemetry"
)

// DefaultMaxRows is the number of rows kept in the table
const DefaultMaxRows = 100

// Message types pushed to the websocket client
const (
	MessageSnapshot = "snapshot"
	MessageRow      = "row"
	MessageStatus   = "status"
	MessageReset    = "reset"
	MessageError    = "error"
)

// Message is the envelope of everything sent over the websocket
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Command is a control request sent by the websocket client
type Command struct {
	Type   string `json:"type"`             // pause, resume, clear or select
	Device string `json:"device,omitempty"` // select only: "all" or a device id
}

// Row is one line of the telemetry table: the latest reading of a device with
// the raw link counters
type Row struct {
	Label       string            `json:"time"`
	TimestampMs int64             `json:"ts"`
	DeviceID    int               `json:"device"`
	Reading     telemetry.Reading `json:"reading"`
	Status      float64           `json:"status"`
	RxBytes     float64           `json:"rxBytes"`
}

// NewRow builds the table row of an ingestion step
func NewRow(tick stream.Tick, s telemetry.Sample) Row {
	return Row{
		Label:       tick.Label,
		TimestampMs: tick.TimestampMs,
		DeviceID:    tick.DeviceID,
		Reading:     tick.Reading,
		Status:      s.Status.Float64(),
		RxBytes:     s.RxBytes.Float64(),
	}
}

// MarshalJSON writes the link counters with telemetry.AppendJSONFloat, NaN
// and infinities as strings.
func (r Row) MarshalJSON() ([]byte, error) {
	type row Row
	return json.Marshal(struct {
		row
		Status  json.RawMessage `json:"status"`
		RxBytes json.RawMessage `json:"rxBytes"`
	}{
		row:     row(r),
		Status:  telemetry.AppendJSONFloat(nil, r.Status),
		RxBytes: telemetry.AppendJSONFloat(nil, r.RxBytes),
	})
}

// Status describes the state of the link, the engine and the recorder
type Status struct {
	Link          string           `json:"link"`
	Connected     bool             `json:"connected"`
	Paused        bool             `json:"paused"`
	Selection     stream.Selection `json:"selection"`
	Devices       []int            `json:"devices"`
	Ticks         int              `json:"ticks"`
	Window        int              `json:"window"`
	SessionID     int64            `json:"sessionId,omitempty"`
	LinesRecorded int64            `json:"linesRecorded"`
	LastError     string           `json:"lastError,omitempty"`
}

// RowLog keeps the newest rows of the telemetry table, newest first
type RowLog struct {
	mu      sync.Mutex
	maxRows int
	rows    []Row
}

func NewRowLog(maxRows int) *RowLog {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &RowLog{
		maxRows: maxRows,
		rows:    make([]Row, 0, maxRows),
	}
}

// Add puts r at the top of the table and drops the oldest row when full
func (l *RowLog) Add(r Row) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.rows) == l.maxRows {
		l.rows = l.rows[:len(l.rows)-1]
	}
	l.rows = slices.Insert(l.rows, 0, r)
}

// Rows returns a copy of the table, newest first
func (l *RowLog) Rows() []Row {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.rows)
}

func (l *RowLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}

func (l *RowLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = l.rows[:0]
}
