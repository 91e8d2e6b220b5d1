package telemetry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Column names printed by the collector firmware in its CSV header
const (
	ColTimestamp        = "ts_ms"
	ColDevice           = "device"
	ColRPM              = "rpm"
	ColVoltage          = "voltage_mV"
	ColCurrent          = "current_mA"
	ColConsumption      = "consumption_mAh"
	ColPWM              = "pwm_x10"
	ColThrottle         = "throttle_x10"
	ColTemp             = "tempC_x10"
	ColBECVoltage       = "bec_voltage_mV"
	ColBECCurrent       = "bec_current_mA"
	ColBECTemp          = "bec_tempC_x10"
	ColStatus           = "status"
	ColRxBytes          = "rx_bytes"
	ColRxFramesReceived = "rx_frames_received"
	ColRxFramesDropped  = "rx_frames_dropped"
)

var (
	// ErrInvalidDevice is returned when a row has no usable device address
	ErrInvalidDevice = errors.New("invalid device")

	// ErrInvalidTimestamp is returned when a row has no usable timestamp
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// DefaultHeader is the column layout assumed until the collector prints a header line
func DefaultHeader() []string {
	return []string{
		ColTimestamp,
		ColDevice,
		ColRPM,
		ColVoltage,
		ColCurrent,
		ColConsumption,
		ColPWM,
		ColThrottle,
		ColTemp,
		ColBECVoltage,
		ColBECCurrent,
		ColBECTemp,
		ColStatus,
		ColRxBytes,
		ColRxFramesReceived,
		ColRxFramesDropped,
	}
}

// IsHeader reports whether a collector line is a header line
func IsHeader(line string) bool {
	return strings.Contains(line, ColTimestamp)
}

// Row is one data line of collector output keyed by its header
type Row struct {
	header []string
	fields []string
}

// NewRow aligns fields to header: missing trailing fields are blank and
// surplus fields are dropped.
func NewRow(header, fields []string) Row {
	aligned := make([]string, len(header))
	copy(aligned, fields)
	return Row{header: header, fields: aligned}
}

// Get returns the raw text of a column
func (r Row) Get(column string) (string, bool) {
	for i, h := range r.header {
		if h == column {
			return r.fields[i], true
		}
	}
	return "", false
}

// Value returns a column as a Value, absent when the column does not exist
func (r Row) Value(column string) Value {
	s, _ := r.Get(column)
	return ParseValue(s)
}

// Header returns the column names of the row
func (r Row) Header() []string {
	return r.header
}

// Fields returns the raw field text aligned to Header
func (r Row) Fields() []string {
	return r.fields
}

// SampleFromRow builds a Sample from a row. Only the device address and the
// timestamp are mandatory: every other column may be absent or malformed.
func SampleFromRow(r Row) (Sample, error) {
	var s Sample

	device, _ := r.Get(ColDevice)
	id, err := strconv.Atoi(strings.TrimSpace(device))
	if err != nil {
		return s, fmt.Errorf("%w: %q", ErrInvalidDevice, device)
	}

	ts, _ := r.Get(ColTimestamp)
	ms, err := strconv.ParseInt(strings.TrimSpace(ts), 10, 64)
	if err != nil {
		return s, fmt.Errorf("%w: %q", ErrInvalidTimestamp, ts)
	}

	s.DeviceID = id
	s.TimestampMs = ms
	s.RPM = r.Value(ColRPM)
	s.VoltageMV = r.Value(ColVoltage)
	s.CurrentMA = r.Value(ColCurrent)
	s.ConsumptionMAh = r.Value(ColConsumption)
	s.PWMx10 = r.Value(ColPWM)
	s.ThrottleX10 = r.Value(ColThrottle)
	s.TempCx10 = r.Value(ColTemp)
	s.BECVoltageMV = r.Value(ColBECVoltage)
	s.BECCurrentMA = r.Value(ColBECCurrent)
	s.BECTempCx10 = r.Value(ColBECTemp)
	s.Status = r.Value(ColStatus)
	s.RxBytes = r.Value(ColRxBytes)
	s.RxFramesReceived = r.Value(ColRxFramesReceived)
	s.RxFramesDropped = r.Value(ColRxFramesDropped)

	return s, nil
}
