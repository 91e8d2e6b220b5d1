package serial

import "errors"

var (
	// ErrNoPorts is returned when port discovery finds no serial port to open
	ErrNoPorts = errors.New("no serial ports found")

	// ErrBrokenPipe is returned when reading from the link fails
	ErrBrokenPipe = errors.New("broken pipe")

	// ErrTooManyParseErrors is returned when the number of consecutive parse errors exceeds the threshold
	ErrTooManyParseErrors = errors.New("too many consecutive parse errors")
)

// ConfigError is a custom error type for link configuration errors
type ConfigError struct {
	msg string
}

func NewConfigError(msg string) *ConfigError {
	return &ConfigError{msg}
}

func (e *ConfigError) Error() string {
	return e.msg
}
