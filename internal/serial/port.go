package serial

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	bugserial "go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// EnvPort names the environment variable consulted when no port is configured
const EnvPort = "SERIAL_PORT"

// usbHints match descriptions and device names of USB serial adapters
// and microcontroller boards.
var usbHints = []string{"teensy", "arduino", "cdc acm", "usb"}

// devicePrefixes match device names of USB serial ports.
var devicePrefixes = []string{"com", "/dev/ttyacm", "/dev/ttyusb"}

// PortSource reads lines from a serial port
type PortSource struct {
	port     string
	baudRate int
	logger   *slog.Logger

	// seams for port discovery
	probe func(name string) bool
	list  func() ([]*enumerator.PortDetails, error)
}

// NewPortSource creates a serial port source. An empty port is resolved on
// every Open, so a collector that re-enumerates under another name is found
// again.
func NewPortSource(cfg PortConfig, logger *slog.Logger) *PortSource {
	return &PortSource{
		port:     cfg.Port,
		baudRate: cfg.BaudRate,
		logger:   logger,
		probe:    probePort,
		list:     enumerator.GetDetailedPortsList,
	}
}

func (s *PortSource) Name() string {
	if s.port == "" {
		return "serial:auto"
	}
	return "serial:" + s.port
}

func (s *PortSource) Open(_ context.Context) (io.ReadCloser, error) {
	name, err := s.FindPort()
	if err != nil {
		return nil, err
	}

	port, err := bugserial.Open(name, &bugserial.Mode{BaudRate: s.baudRate})
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", name, err)
	}

	s.logger.Info("serial port opened", slog.String("port", name), slog.Int("baudRate", s.baudRate))
	return port, nil
}

// FindPort resolves the port to open: the configured port, then the port
// named by SERIAL_PORT, then the first port that looks like a USB serial
// device, then the first port found.
func (s *PortSource) FindPort() (string, error) {
	if s.port != "" && s.probe(s.port) {
		return s.port, nil
	}

	if env := os.Getenv(EnvPort); env != "" && s.probe(env) {
		return env, nil
	}

	ports, err := s.list()
	if err != nil {
		return "", fmt.Errorf("listing serial ports: %w", err)
	}
	if len(ports) == 0 {
		return "", ErrNoPorts
	}

	if s.logger.Enabled(context.Background(), slog.LevelDebug) {
		avail := make([]string, 0, len(ports))
		for _, p := range ports {
			avail = append(avail, fmt.Sprintf("%s (%s)", p.Name, p.Product))
		}
		s.logger.Debug("available serial ports: " + strings.Join(avail, ", "))
	}

	return selectPort(ports), nil
}

// selectPort picks the first port that looks like a USB serial device, or
// the first port when none does. ports must not be empty.
func selectPort(ports []*enumerator.PortDetails) string {
	for _, p := range ports {
		desc := strings.ToLower(p.Product)
		dev := strings.ToLower(p.Name)

		if p.IsUSB {
			return p.Name
		}
		for _, hint := range usbHints {
			if strings.Contains(desc, hint) || (hint == "usb" && strings.Contains(dev, hint)) {
				return p.Name
			}
		}
		for _, prefix := range devicePrefixes {
			if strings.HasPrefix(dev, prefix) {
				return p.Name
			}
		}
	}
	return ports[0].Name
}

func probePort(name string) bool {
	p, err := bugserial.Open(name, &bugserial.Mode{BaudRate: DefaultBaudRate})
	if err != nil {
		return false
	}
	_ = p.Close()
	return true
}
