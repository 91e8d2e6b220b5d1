package serial

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultBaudRate is the USB serial speed of the collector firmware
	DefaultBaudRate = 115200

	// DefaultReconnectInterval is the pause between attempts to reopen a serial port
	DefaultReconnectInterval = 2 * time.Second

	TypeSerial  LinkType = "serial"
	TypeCommand LinkType = "command"
)

var validBaudRates = map[int]struct{}{
	9600:    {},
	19200:   {},
	38400:   {},
	57600:   {},
	115200:  {},
	230400:  {},
	460800:  {},
	921600:  {},
	1000000: {},
	2000000: {},
}

// LinkType selects where telemetry lines are read from
type LinkType string

func (t LinkType) String() string {
	return string(t)
}

type TimeDuration time.Duration

func NewTimeDuration(d time.Duration) TimeDuration {
	return TimeDuration(d)
}

func (d *TimeDuration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("serial.TimeDuration: failed to parse: %s", err)
	}

	*d = TimeDuration(duration)
	return nil
}

func (d TimeDuration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *TimeDuration) UnmarshalJSON(bytes []byte) error {
	var v string
	if err := json.Unmarshal(bytes, &v); err != nil {
		return err
	}

	duration, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("serial.TimeDuration: failed to parse: %s", err)
	}

	*d = TimeDuration(duration)
	return nil
}

func (d TimeDuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Validate rejects negative durations
func (d TimeDuration) Validate() error {
	if d < 0 {
		return fmt.Errorf("serial.TimeDuration: must not be negative: %s", time.Duration(d))
	}
	return nil
}

// Duration returns d as a time.Duration
func (d TimeDuration) Duration() time.Duration {
	return time.Duration(d)
}

func (d TimeDuration) String() string {
	return time.Duration(d).String()
}

// PortConfig configures a serial port link
type PortConfig struct {
	Port     string `yaml:"port" json:"port"`         // Device path, empty to auto-detect
	BaudRate int    `yaml:"baudRate" json:"baudRate"` // Line speed (default: 115200)
}

// CommandConfig configures a link reading the stdout of an external command,
// e.g. a simulator or a capture replayed with cat
type CommandConfig struct {
	Path string   `yaml:"path" json:"path"`
	Args []string `yaml:"args" json:"args"`
}

// Config is the telemetry link configuration
type Config struct {
	Type              LinkType      `yaml:"type" json:"type"`
	Serial            PortConfig    `yaml:"serial" json:"serial"`
	Command           CommandConfig `yaml:"command" json:"command"`
	ReconnectInterval *TimeDuration `yaml:"reconnectInterval" json:"reconnectInterval"` // 0 disables reconnection
}

// ApplyDefaults fills in unset values
func (c *Config) ApplyDefaults() {
	if c.Type == "" {
		c.Type = TypeSerial
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = DefaultBaudRate
	}
	if c.ReconnectInterval == nil {
		// A command that exits is a finished capture, a serial port that
		// disappears is an unplugged collector.
		d := TimeDuration(0)
		if c.Type == TypeSerial {
			d = TimeDuration(DefaultReconnectInterval)
		}
		c.ReconnectInterval = &d
	}
}

// Reconnect returns the reconnect interval, 0 when reconnection is disabled
func (c *Config) Reconnect() time.Duration {
	if c.ReconnectInterval == nil {
		return 0
	}
	return c.ReconnectInterval.Duration()
}

func (c *Config) Validate() error {
	switch c.Type {
	case TypeSerial:
		if _, ok := validBaudRates[c.Serial.BaudRate]; !ok {
			return NewConfigError(fmt.Sprintf("serial.Config: unsupported baud rate: %d", c.Serial.BaudRate))
		}

	case TypeCommand:
		if c.Command.Path == "" {
			return NewConfigError("serial.Config: command path is required")
		}

	default:
		return NewConfigError(fmt.Sprintf("serial.Config: invalid link type: %q", c.Type))
	}

	if c.ReconnectInterval != nil {
		if err := c.ReconnectInterval.Validate(); err != nil {
			return NewConfigError(fmt.Sprintf("serial.Config: invalid reconnect interval: %s", err))
		}
	}

	return nil
}
