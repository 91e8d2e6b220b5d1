package stream

import "github.com/roman-kulish/esc-telemetry/internal/telemetry"

// Snapshot is a self-contained copy of the engine history with visibility
// flags for a selection. Consumers treat it as a full refresh.
type Snapshot struct {
	Window     int          `json:"window"`
	Selection  Selection    `json:"selection"`
	Labels     []string     `json:"labels"`
	Timestamps []int64      `json:"timestamps"`
	Devices    []DeviceView `json:"devices"`
}

// DeviceView is the history of one device within a Snapshot
type DeviceView struct {
	DeviceID int                `json:"device"`
	Visible  bool               `json:"visible"`
	Latest   *telemetry.Reading `json:"latest,omitempty"`
	Series   []SeriesView       `json:"series"`
}

// SeriesView is one metric series of one device
type SeriesView struct {
	DeviceID int              `json:"device"`
	Metric   telemetry.Metric `json:"metric"`
	Visible  bool             `json:"visible"`
	Values   []Point          `json:"values"`
}

// Snapshot copies the current history and labels every series with its
// visibility under sel. Stored history is not modified.
func (e *Engine) Snapshot(sel Selection) *Snapshot {
	snap := &Snapshot{
		Window:     e.window,
		Selection:  sel,
		Labels:     e.timeline.Labels(),
		Timestamps: e.timeline.Timestamps(),
	}

	for _, id := range e.registry.Sorted() {
		visible := Visible(id, sel)
		dv := DeviceView{
			DeviceID: id,
			Visible:  visible,
			Series:   make([]SeriesView, 0, telemetry.NumMetrics),
		}
		if r, ok := e.last[id]; ok {
			dv.Latest = &r
		}

		series := e.series[id]
		for _, m := range telemetry.Metrics {
			dv.Series = append(dv.Series, SeriesView{
				DeviceID: id,
				Metric:   m,
				Visible:  visible,
				Values:   series.Values(m),
			})
		}
		snap.Devices = append(snap.Devices, dv)
	}

	return snap
}

// Relabel recomputes the visibility flags for a new selection without
// touching any values.
func (s *Snapshot) Relabel(sel Selection) {
	s.Selection = sel
	for i := range s.Devices {
		dv := &s.Devices[i]
		dv.Visible = Visible(dv.DeviceID, sel)
		for j := range dv.Series {
			dv.Series[j].Visible = Visible(dv.Series[j].DeviceID, sel)
		}
	}
}

// Metric returns the series of metric m for every device, in device order
func (s *Snapshot) Metric(m telemetry.Metric) []SeriesView {
	out := make([]SeriesView, 0, len(s.Devices))
	for _, dv := range s.Devices {
		for _, sv := range dv.Series {
			if sv.Metric == m {
				out = append(out, sv)
			}
		}
	}
	return out
}

// Len returns the number of ticks in the snapshot
func (s *Snapshot) Len() int {
	return len(s.Labels)
}
