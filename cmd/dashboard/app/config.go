package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/esc-telemetry/internal/dashboard"
	"github.com/roman-kulish/esc-telemetry/internal/serial"
	"github.com/roman-kulish/esc-telemetry/internal/stream"
)

const (
	defaultListen          = "0.0.0.0:5000"
	defaultPublishInterval = 100 * time.Millisecond
	defaultStorageDir      = "sessions"
	defaultMaxBatchSize    = 100
	defaultFlushInterval   = time.Second
)

// Config represents the main application configuration
type Config struct {
	Settings  Settings        `yaml:"settings"`
	Link      serial.Config   `yaml:"link"`
	Engine    EngineConfig    `yaml:"engine"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Storage   StorageConfig   `yaml:"storage"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// Level parses the log level name
func (s Settings) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return level, fmt.Errorf("settings: invalid log level: %q", s.LogLevel)
	}
	return level, nil
}

// EngineConfig represents the stream engine settings
type EngineConfig struct {
	Window int `yaml:"window"` // Number of ticks kept in history
}

// DashboardConfig represents the dashboard server settings
type DashboardConfig struct {
	Listen          string               `yaml:"listen"`
	MaxRows         int                  `yaml:"maxRows"`
	PublishInterval *serial.TimeDuration `yaml:"publishInterval"` // Snapshot coalescing rate, 0 publishes after every sample
}

// StorageConfig represents the session recorder settings
type StorageConfig struct {
	Enabled       bool                 `yaml:"enabled"`
	DataDirectory string               `yaml:"dataDirectory"`
	MaxBatchSize  int                  `yaml:"maxBatchSize"`
	FlushInterval *serial.TimeDuration `yaml:"flushInterval"`
}

// NewConfig returns the configuration used when no file is given
func NewConfig() *Config {
	c := &Config{Storage: StorageConfig{Enabled: true}}
	c.ApplyDefaults()
	return c
}

// LoadConfig reads the YAML configuration file at path, applies defaults and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	c := Config{Storage: StorageConfig{Enabled: true}}
	if err = yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	c.ApplyDefaults()
	if err = c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ApplyDefaults fills in unset values
func (c *Config) ApplyDefaults() {
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = "info"
	}

	c.Link.ApplyDefaults()

	if c.Engine.Window == 0 {
		c.Engine.Window = stream.DefaultWindow
	}

	if c.Dashboard.Listen == "" {
		c.Dashboard.Listen = defaultListen
	}
	if c.Dashboard.MaxRows == 0 {
		c.Dashboard.MaxRows = dashboard.DefaultMaxRows
	}
	if c.Dashboard.PublishInterval == nil {
		d := serial.NewTimeDuration(defaultPublishInterval)
		c.Dashboard.PublishInterval = &d
	}

	if c.Storage.DataDirectory == "" {
		c.Storage.DataDirectory = defaultStorageDir
	}
	if c.Storage.MaxBatchSize == 0 {
		c.Storage.MaxBatchSize = defaultMaxBatchSize
	}
	if c.Storage.FlushInterval == nil {
		d := serial.NewTimeDuration(defaultFlushInterval)
		c.Storage.FlushInterval = &d
	}
}

func (c *Config) Validate() error {
	if _, err := c.Settings.Level(); err != nil {
		return err
	}

	return errors.Join(
		c.Link.Validate(),
		c.Engine.Validate(),
		c.Dashboard.Validate(),
		c.Storage.Validate(),
	)
}

func (c *EngineConfig) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("engine: window must be positive: %d", c.Window)
	}
	return nil
}

func (c *DashboardConfig) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("dashboard: invalid listen address %q: %w", c.Listen, err)
	}
	if c.MaxRows <= 0 {
		return fmt.Errorf("dashboard: maxRows must be positive: %d", c.MaxRows)
	}
	if c.PublishInterval != nil {
		if err := c.PublishInterval.Validate(); err != nil {
			return fmt.Errorf("dashboard: invalid publish interval: %w", err)
		}
	}
	return nil
}

func (c *StorageConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("storage: maxBatchSize must be positive: %d", c.MaxBatchSize)
	}
	if c.FlushInterval == nil || c.FlushInterval.Duration() <= 0 {
		return errors.New("storage: flushInterval must be positive")
	}
	return nil
}

func (c *DashboardConfig) publishInterval() time.Duration {
	if c.PublishInterval == nil {
		return 0
	}
	return c.PublishInterval.Duration()
}

func (c *StorageConfig) flushInterval() time.Duration {
	if c.FlushInterval == nil {
		return defaultFlushInterval
	}
	return c.FlushInterval.Duration()
}
