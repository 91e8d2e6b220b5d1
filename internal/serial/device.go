package serial

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/esc-telemetry/internal/recording"
)

const (
	// ParseErrorsThreshold defines the number of consecutive parse errors
	// allowed before the link is reopened
	ParseErrorsThreshold = 20
)

// Source opens a connection to the collector and yields its output
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	Name() string
}

// NewSource creates the Source selected by the configuration
func NewSource(cfg *Config, logger *slog.Logger) (Source, error) {
	switch cfg.Type {
	case TypeSerial:
		return NewPortSource(cfg.Serial, logger), nil
	case TypeCommand:
		return NewCommandSource(cfg.Command, logger), nil
	default:
		return nil, NewConfigError(fmt.Sprintf("serial: invalid link type: %q", cfg.Type))
	}
}

// EventKind tells link events apart
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventLine
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventLine:
		return "line"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is emitted by a Device. Line events carry the raw line and, unless
// Err is set, its parsed form. Disconnected events carry the reason in Err,
// nil for a clean end of stream.
type Event struct {
	Kind   EventKind
	Source string
	Line   recording.Line
	Parsed Parsed
	Err    error
}

// WithLogger sets the logger for the device
func WithLogger(logger *slog.Logger) func(d *Device) {
	return func(d *Device) {
		d.logger = logger.With(slog.String("link", d.source.Name()))
	}
}

// WithParseErrorsThreshold sets the threshold for consecutive parse errors,
// 0 keeps ParseErrorsThreshold
func WithParseErrorsThreshold(threshold uint8) func(d *Device) {
	return func(d *Device) {
		if threshold == 0 {
			threshold = ParseErrorsThreshold
		}
		d.parseErrorsThreshold = threshold
	}
}

// WithReconnectInterval sets the pause between connection attempts, 0
// stops the device after the first disconnection
func WithReconnectInterval(interval time.Duration) func(d *Device) {
	return func(d *Device) {
		d.reconnectInterval = interval
	}
}

// WithClock replaces the clock used to stamp received lines
func WithClock(now func() time.Time) func(d *Device) {
	return func(d *Device) {
		d.now = now
	}
}

// Device is a telemetry link that can be started (lines collection) and
// stopped. It keeps reconnecting to its source until stopped.
type Device struct {
	source Source
	parser *LineParser

	isRunning atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	parseErrorsThreshold uint8
	reconnectInterval    time.Duration
	now                  func() time.Time
	logger               *slog.Logger
}

// NewDevice creates a new Device instance with a discard logger
func NewDevice(src Source, options ...func(d *Device)) *Device {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	d := Device{
		source:               src,
		parser:               NewLineParser(),
		logger:               logger,
		parseErrorsThreshold: ParseErrorsThreshold,
		now:                  time.Now,
	}

	for _, option := range options {
		option(&d)
	}

	return &d
}

// Start connects to the source and sends link events to the events channel
// until ctx is cancelled, Stop is called, or the connection ends and
// reconnection is disabled. The returned channel is closed when the device
// stops; it carries an error if the device stopped for any other reason than
// cancellation.
func (d *Device) Start(ctx context.Context, events chan<- Event) (<-chan error, error) {
	if !d.isRunning.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("device is already running")
	}

	ctx, d.cancel = context.WithCancel(ctx)
	stopped := make(chan error, 1)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer close(stopped)
		defer d.isRunning.Store(false)

		d.logger.Info("starting lines collection...")

		if err := d.run(ctx, events); err != nil {
			d.logger.Error(err.Error())
			stopped <- err
		}

		d.logger.Info("lines collection stopped")
	}()

	return stopped, nil
}

// Stop stops the device and waits for it to finish
func (d *Device) Stop() {
	if !d.isRunning.Load() {
		return // already stopped
	}

	d.cancel()
	d.wg.Wait()
}

// Name returns the name of the link source
func (d *Device) Name() string {
	return d.source.Name()
}

// IsRunning returns true if the device is running
func (d *Device) IsRunning() bool {
	return d.isRunning.Load()
}

func (d *Device) run(ctx context.Context, events chan<- Event) error {
	for attempt := 1; ; attempt++ {
		r, err := d.source.Open(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if d.reconnectInterval == 0 {
				return fmt.Errorf("opening %s: %w", d.source.Name(), err)
			}
			d.logger.Warn("failed to open link", slog.String("error", err.Error()), slog.Int("attempt", attempt))
		} else {
			attempt = 0
			if !d.emit(ctx, events, Event{Kind: EventConnected, Source: d.source.Name()}) {
				_ = r.Close()
				return nil
			}

			readErr := d.read(ctx, r, events)
			if cErr := r.Close(); cErr != nil && readErr == nil && ctx.Err() == nil {
				readErr = cErr
			}
			if ctx.Err() != nil {
				return nil
			}

			if !d.emit(ctx, events, Event{Kind: EventDisconnected, Source: d.source.Name(), Err: readErr}) {
				return nil
			}
			if readErr != nil {
				d.logger.Warn("link disconnected", slog.String("error", readErr.Error()))
			} else {
				d.logger.Info("link closed")
			}
			if d.reconnectInterval == 0 {
				return readErr
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(d.reconnectInterval):
		}
	}
}

// read scans the link output and sends one event per non-empty line.
func (d *Device) read(ctx context.Context, r io.Reader, events chan<- Event) error {
	// a new connection starts with the collector's default layout until it
	// prints its header again
	d.parser.Reset()

	// close the link when the context is cancelled to unblock the scanner
	if rc, ok := r.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { _ = rc.Close() })
		defer stop()
	}

	var parseErrors uint8
	var lines uint64

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		lines++
		if lines%1000 == 0 {
			d.logger.Debug(fmt.Sprintf("%s lines received", humanize.Comma(int64(lines))))
		}

		parsed, err := d.parser.Parse(text)
		ev := Event{
			Kind:   EventLine,
			Source: d.source.Name(),
			Line: recording.Line{
				ReceivedAt: d.now(),
				Kind:       parsed.Kind,
				Text:       text,
			},
			Parsed: parsed,
			Err:    err,
		}
		if !d.emit(ctx, events, ev) {
			return nil
		}

		if err != nil {
			parseErrors++
			d.logger.Warn(fmt.Sprintf("error parsing line: %s", err.Error()), slog.String("line", text))

			if parseErrors >= d.parseErrorsThreshold {
				return ErrTooManyParseErrors
			}
			continue
		}

		parseErrors = 0 // reset counter
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%w: error reading link: %w", ErrBrokenPipe, err)
	}

	return nil
}

func (d *Device) emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
