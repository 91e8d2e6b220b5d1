package app

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/roman-kulish/esc-telemetry/internal/stream"
	"github.com/roman-kulish/esc-telemetry/internal/telemetry"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"
)

type ImageFormat string

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

// timeLayouts are accepted by --start and --end, in the local time zone
// unless the value carries an offset
var timeLayouts = []string{time.RFC3339, time.DateTime, "2006-01-02T15:04:05"}

type Config struct {
	DBPath       string
	SessionID    int64
	ListSessions bool
	OutputDir    string
	Format       ImageFormat
	Window       int
	Metrics      []telemetry.Metric
	Width        int
	Height       int
	MinTimestamp *time.Time
	MaxTimestamp *time.Time
	Verbose      bool
}

func NewConfig() *Config {
	return &Config{
		Format:  ImagePNG,
		Window:  stream.DefaultWindow,
		Metrics: slices.Clone(telemetry.Metrics[:]),
	}
}

func NewConfigFromCLI(args []string) (*Config, error) {
	c := NewConfig()

	flags := pflag.NewFlagSet("chart", pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of chart:\n")
		flags.PrintDefaults()
	}

	var imageFormat, start, end string
	var metrics []string
	flags.StringVar(&c.DBPath, "db", "", "Path to the database file")
	flags.Int64VarP(&c.SessionID, "session", "s", 1, "Session ID")
	flags.BoolVarP(&c.ListSessions, "list", "l", false, "List recorded sessions and exit")
	flags.StringVarP(&c.OutputDir, "output", "o", ".", "Directory to write the charts to")
	flags.StringVarP(&imageFormat, "format", "f", string(ImagePNG), "Output image format. [png, jpeg]")
	flags.IntVar(&c.Window, "window", stream.DefaultWindow, "Number of most recent ticks to chart")
	flags.StringSliceVar(&metrics, "metrics", nil, "Metrics to chart, all by default. [rpm, voltage, current, temp, becTemp, throttle, pwm]")
	flags.IntVar(&c.Width, "width", 0, "Image width in pixels")
	flags.IntVar(&c.Height, "height", 0, "Image height in pixels")
	flags.StringVar(&start, "start", "", "Replay lines received at or after this time")
	flags.StringVar(&end, "end", "", "Replay lines received at or before this time")
	flags.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	var err error
	if len(metrics) > 0 {
		c.Metrics, err = parseMetrics(metrics)
	}
	if err == nil && start != "" {
		c.MinTimestamp, err = parseTime(start)
	}
	if err == nil && end != "" {
		c.MaxTimestamp, err = parseTime(end)
	}
	if err == nil {
		c.Format = ImageFormat(strings.ToLower(imageFormat))
		err = c.Validate()
	}

	if err != nil {
		flags.Usage()
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	switch {
	case c.DBPath == "":
		return errors.New("db path is required")
	case c.ListSessions:
		return nil
	case c.SessionID <= 0:
		return errors.New("session id is required")
	case c.OutputDir == "":
		return errors.New("output directory is required")
	case c.Window <= 0:
		return fmt.Errorf("invalid window: %d", c.Window)
	case c.Width < 0 || c.Height < 0:
		return fmt.Errorf("invalid image size: %dx%d", c.Width, c.Height)
	case c.MinTimestamp != nil && c.MaxTimestamp != nil && c.MaxTimestamp.Before(*c.MinTimestamp):
		return errors.New("end time is before start time")
	}

	if _, ok := validImageFormats[c.Format]; !ok {
		return fmt.Errorf("invalid image format: %s", c.Format)
	}
	return nil
}

func parseMetrics(keys []string) ([]telemetry.Metric, error) {
	metrics := make([]telemetry.Metric, 0, len(keys))
	for _, key := range keys {
		m, err := telemetry.ParseMetric(strings.TrimSpace(key))
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	return metrics, nil
}

func parseTime(s string) (*time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid time %q, expected RFC 3339 or %q", s, time.DateTime)
}
