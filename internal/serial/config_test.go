package serial

import (
	"errors"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.Type != TypeSerial {
		t.Errorf("Expected type %q, got %q", TypeSerial, cfg.Type)
	}
	if cfg.Serial.BaudRate != DefaultBaudRate {
		t.Errorf("Expected baud rate %d, got %d", DefaultBaudRate, cfg.Serial.BaudRate)
	}
	if got := cfg.Reconnect(); got != DefaultReconnectInterval {
		t.Errorf("Expected reconnect interval %s, got %s", DefaultReconnectInterval, got)
	}

	cmd := Config{Type: TypeCommand, Command: CommandConfig{Path: "cat"}}
	cmd.ApplyDefaults()
	if got := cmd.Reconnect(); got != 0 {
		t.Errorf("Expected command links not to reconnect, got %s", got)
	}
	if err := cmd.Validate(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestConfig_YAML(t *testing.T) {
	src := `
type: command
command:
  path: ./simulator
  args: ["--devices", "4"]
reconnectInterval: 500ms
`
	var cfg Config
	if err := yaml.Unmarshal([]byte(src), &cfg); err != nil {
		t.Fatalf("Failed to unmarshal config: %v", err)
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := cfg.Reconnect(); got != 500*time.Millisecond {
		t.Errorf("Expected reconnect interval 500ms, got %s", got)
	}
	if len(cfg.Command.Args) != 2 {
		t.Errorf("Expected 2 args, got %d", len(cfg.Command.Args))
	}

	if err := yaml.Unmarshal([]byte("reconnectInterval: soon"), &cfg); err == nil {
		t.Error("Expected error for invalid duration")
	}
}

func TestConfig_Validate(t *testing.T) {
	negative := NewTimeDuration(-time.Second)

	testCases := []struct {
		name string
		cfg  Config
	}{
		{"invalid type", Config{Type: "bluetooth"}},
		{"invalid baud rate", Config{Type: TypeSerial, Serial: PortConfig{BaudRate: 12345}}},
		{"missing command", Config{Type: TypeCommand}},
		{"negative reconnect", Config{Type: TypeSerial, Serial: PortConfig{BaudRate: 115200}, ReconnectInterval: &negative}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("Expected ConfigError, got %v", err)
			}
		})
	}
}
