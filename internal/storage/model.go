package storage

import (
	"time"

	"github.com/roman-kulish/esc-telemetry/internal/recording"
)

type lineData struct {
	ID         int64
	SessionID  int64
	ReceivedAt time.Time
	Kind       string
	Text       string
}

func (d *lineData) toLine() *recording.Line {
	return &recording.Line{
		ReceivedAt: d.ReceivedAt,
		Kind:       recording.LineKind(d.Kind),
		Text:       d.Text,
	}
}
