package stream

import (
	"fmt"
	"strconv"
	"strings"
)

const selectAll = "all"

// All selects every device. It is the zero value of Selection.
var All = Selection{}

// Selection is the view criterion applied to series: every device, or a
// single device. It decides visibility only and never discards data.
type Selection struct {
	device int
	single bool
}

// Device selects a single device
func Device(deviceID int) Selection {
	return Selection{device: deviceID, single: true}
}

// ParseSelection parses "all" or a decimal device address
func ParseSelection(s string) (Selection, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, selectAll) {
		return All, nil
	}

	id, err := strconv.Atoi(s)
	if err != nil {
		return All, fmt.Errorf("invalid selection %q: expected %q or a device number", s, selectAll)
	}
	return Device(id), nil
}

// IsAll reports whether every device is selected
func (s Selection) IsAll() bool {
	return !s.single
}

// DeviceID returns the selected device, false when every device is selected
func (s Selection) DeviceID() (int, bool) {
	return s.device, s.single
}

func (s Selection) String() string {
	if !s.single {
		return selectAll
	}
	return strconv.Itoa(s.device)
}

func (s Selection) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Selection) UnmarshalText(text []byte) error {
	parsed, err := ParseSelection(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Visible reports whether a series belonging to deviceID is shown under sel
func Visible(deviceID int, sel Selection) bool {
	return !sel.single || sel.device == deviceID
}
