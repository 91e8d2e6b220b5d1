package telemetry

import "fmt"

// Charted metrics, in display order
const (
	MetricRPM Metric = iota
	MetricVoltage
	MetricCurrent
	MetricTemp
	MetricBECTemp
	MetricThrottle
	MetricPWM

	// NumMetrics is the number of charted metrics
	NumMetrics = 7
)

// Metrics lists every charted metric in display order
var Metrics = [NumMetrics]Metric{
	MetricRPM,
	MetricVoltage,
	MetricCurrent,
	MetricTemp,
	MetricBECTemp,
	MetricThrottle,
	MetricPWM,
}

var metricInfo = [NumMetrics]struct {
	key   string
	label string
	unit  string
}{
	MetricRPM:      {"rpm", "RPM", ""},
	MetricVoltage:  {"voltage", "Voltage", "V"},
	MetricCurrent:  {"current", "Current", "A"},
	MetricTemp:     {"temp", "Temp", "°C"},
	MetricBECTemp:  {"becTemp", "BEC Temp", "°C"},
	MetricThrottle: {"throttle", "Throttle", "%"},
	MetricPWM:      {"pwm", "PWM", "%"},
}

// Metric identifies one charted telemetry quantity
type Metric int

// ParseMetric returns the metric with the given key, e.g. "rpm" or "becTemp"
func ParseMetric(s string) (Metric, error) {
	for _, m := range Metrics {
		if metricInfo[m].key == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown metric: %q", s)
}

func (m Metric) valid() bool {
	return m >= 0 && int(m) < NumMetrics
}

// String returns the metric key
func (m Metric) String() string {
	if !m.valid() {
		return fmt.Sprintf("Metric(%d)", int(m))
	}
	return metricInfo[m].key
}

// Label returns a human-readable metric name
func (m Metric) Label() string {
	if !m.valid() {
		return m.String()
	}
	return metricInfo[m].label
}

// Unit returns the engineering unit, empty for dimensionless metrics
func (m Metric) Unit() string {
	if !m.valid() {
		return ""
	}
	return metricInfo[m].unit
}

func (m Metric) MarshalText() ([]byte, error) {
	if !m.valid() {
		return nil, fmt.Errorf("invalid metric: %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *Metric) UnmarshalText(text []byte) error {
	parsed, err := ParseMetric(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
