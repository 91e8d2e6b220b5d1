package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/esc-telemetry/internal/dashboard"
	"github.com/roman-kulish/esc-telemetry/internal/recording"
	"github.com/roman-kulish/esc-telemetry/internal/serial"
	"github.com/roman-kulish/esc-telemetry/internal/storage"
	"github.com/roman-kulish/esc-telemetry/internal/stream"
)

const (
	maxBatchSize     = 100
	eventsBufferSize = 256
)

// WithLogger sets the logger for the orchestrator
func WithLogger(logger *slog.Logger) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithStore enables the session recorder. linkConfig is saved with the
// session.
func WithStore(store storage.Store, linkConfig any) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.store = store
		o.linkConfig = linkConfig
	}
}

// WithMaxBatchSize sets the maximum number of lines stored within a single
// database transaction.
func WithMaxBatchSize(size int) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.maxBatchSize = size
	}
}

// WithFlushInterval sets how often buffered lines are written to the store
func WithFlushInterval(interval time.Duration) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.flushInterval = interval
	}
}

// WithPublishInterval coalesces snapshot updates, 0 publishes a snapshot
// after every ingested sample
func WithPublishInterval(interval time.Duration) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.publishInterval = interval
	}
}

// Orchestrator owns the stream engine. It feeds link events into the engine,
// records every received line into the session store and serves the
// dashboard requests, all from a single goroutine.
type Orchestrator struct {
	engine *stream.Engine
	device *serial.Device

	store      storage.Store
	linkConfig any
	buffer     *recording.Buffer

	publisher dashboard.Publisher
	logger    *slog.Logger

	maxBatchSize    int
	flushInterval   time.Duration
	publishInterval time.Duration

	requests chan func()
	stopped  chan struct{}

	// owned by the Run goroutine
	paused        bool
	connected     bool
	dirty         bool
	sel           stream.Selection
	sessionID     int64
	linesRecorded int64
	lastError     string
}

var _ dashboard.Controller = (*Orchestrator)(nil)

// NewOrchestrator creates a new Orchestrator with a discard logger
func NewOrchestrator(engine *stream.Engine, device *serial.Device, options ...func(*Orchestrator)) (*Orchestrator, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	o := Orchestrator{
		engine:        engine,
		device:        device,
		publisher:     nopPublisher{},
		logger:        logger,
		maxBatchSize:  maxBatchSize,
		flushInterval: defaultFlushInterval,
		requests:      make(chan func()),
		stopped:       make(chan struct{}),
		sel:           stream.All,
	}

	for _, option := range options {
		option(&o)
	}

	if o.store != nil {
		if o.maxBatchSize <= 0 {
			return nil, fmt.Errorf("invalid max batch size: %d", o.maxBatchSize)
		}
		if o.flushInterval <= 0 {
			return nil, fmt.Errorf("invalid flush interval: %s", o.flushInterval)
		}

		buffer, err := recording.NewBuffer(o.maxBatchSize, o.maxBatchSize)
		if err != nil {
			return nil, fmt.Errorf("creating line buffer: %w", err)
		}
		o.buffer = buffer
	}

	return &o, nil
}

// Run starts the link and processes its events and the dashboard requests
// until ctx is cancelled. A link that stops on its own is reported in the
// status; the collected history stays available until Run returns.
func (o *Orchestrator) Run(ctx context.Context, publisher dashboard.Publisher) error {
	defer close(o.stopped)

	if publisher != nil {
		o.publisher = publisher
	}

	if o.store != nil {
		sessionID, err := o.store.CreateSession(ctx, o.device.Name(), o.linkConfig)
		if err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
		o.sessionID = sessionID
		o.logger.Info("recording session", slog.Int64("sessionId", sessionID))
	}

	events := make(chan serial.Event, eventsBufferSize)
	deviceStopped, err := o.device.Start(ctx, events)
	if err != nil {
		return fmt.Errorf("starting link: %w", err)
	}
	defer o.stop(context.WithoutCancel(ctx), events)

	var flushTick, publishTick <-chan time.Time
	if o.store != nil {
		ticker := time.NewTicker(o.flushInterval)
		defer ticker.Stop()
		flushTick = ticker.C
	}
	if o.publishInterval > 0 {
		ticker := time.NewTicker(o.publishInterval)
		defer ticker.Stop()
		publishTick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-events:
			o.handleEvent(ctx, ev)

		case err, ok := <-deviceStopped:
			if ok && err != nil {
				o.lastError = err.Error()
				o.logger.Error("link stopped", slog.String("error", err.Error()))
			} else {
				o.logger.Info("link stopped")
			}
			deviceStopped = nil

			o.drain(ctx, events)
			o.connected = false
			o.publishStatus()

		case fn := <-o.requests:
			fn()

		case <-flushTick:
			o.flush(ctx, true)

		case <-publishTick:
			if o.dirty {
				o.publishSnapshot()
			}
		}
	}
}

// drain handles the events left behind by a stopped link
func (o *Orchestrator) drain(ctx context.Context, events <-chan serial.Event) {
	for {
		select {
		case ev := <-events:
			o.handleEvent(ctx, ev)
		default:
			return
		}
	}
}

// stop stops the link and writes every line it delivered, including those
// still queued in events, to the session store
func (o *Orchestrator) stop(ctx context.Context, events <-chan serial.Event) {
	o.device.Stop()

	for {
		select {
		case ev := <-events:
			if ev.Kind == serial.EventLine {
				o.record(ctx, ev.Line)
			}
		default:
			o.flush(ctx, true)
			return
		}
	}
}

func (o *Orchestrator) handleEvent(ctx context.Context, ev serial.Event) {
	switch ev.Kind {
	case serial.EventConnected:
		o.connected = true
		o.lastError = ""
		o.logger.Info("link connected", slog.String("source", ev.Source))
		o.publishStatus()

	case serial.EventDisconnected:
		o.connected = false
		if ev.Err != nil {
			o.lastError = ev.Err.Error()
		}
		o.publishStatus()

	case serial.EventLine:
		o.record(ctx, ev.Line)

		if ev.Err != nil {
			o.lastError = ev.Err.Error()
			return
		}
		if ev.Parsed.Kind != recording.LineData || ev.Parsed.Idle || o.paused {
			return
		}
		o.ingest(ev.Parsed)
	}
}

func (o *Orchestrator) ingest(p serial.Parsed) {
	tick := o.engine.Ingest(p.Sample)

	if tick.FirstSeen {
		o.logger.Info("new device", slog.Int("device", tick.DeviceID))
	}
	if tick.Evicted > 0 {
		o.logger.Debug("history window is full", slog.Int("evicted", tick.Evicted))
	}

	if stream.Visible(tick.DeviceID, o.sel) {
		o.publisher.PublishRow(dashboard.NewRow(tick, p.Sample))
	}

	if o.publishInterval > 0 {
		o.dirty = true
	} else {
		o.publishSnapshot()
	}
	if tick.FirstSeen {
		o.publishStatus()
	}
}

// record queues a line for the session store, paused or not
func (o *Orchestrator) record(ctx context.Context, line recording.Line) {
	if o.buffer == nil {
		return
	}

	if err := o.buffer.Insert(&line); err != nil {
		o.logger.Error(err.Error())
		return
	}
	if o.buffer.IsFull() {
		o.flush(ctx, false)
	}
}

// flush writes buffered lines to the store in chunks of maxBatchSize, all of
// them or a single flush count.
func (o *Orchestrator) flush(ctx context.Context, all bool) {
	if o.buffer == nil {
		return
	}

	var lines []*recording.Line
	if all {
		lines = o.buffer.DrainAll()
	} else {
		lines = o.buffer.Flush()
	}
	if len(lines) == 0 {
		return
	}

	for chunk := range slices.Chunk(lines, o.maxBatchSize) {
		if err := o.store.StoreLines(ctx, o.sessionID, chunk); err != nil {
			o.lastError = err.Error()
			o.logger.Error(fmt.Sprintf("storing lines: %s", err.Error()), slog.Int("lines", len(chunk)))
			return
		}

		prev := o.linesRecorded
		o.linesRecorded += int64(len(chunk))
		if prev/10000 != o.linesRecorded/10000 {
			o.logger.Info(fmt.Sprintf("%s lines recorded", humanize.Comma(o.linesRecorded)))
		}
	}
}

func (o *Orchestrator) publishSnapshot() {
	o.dirty = false
	o.publisher.PublishSnapshot(o.engine.Snapshot(o.sel))
}

func (o *Orchestrator) publishStatus() {
	o.publisher.PublishStatus(o.status())
}

func (o *Orchestrator) status() dashboard.Status {
	return dashboard.Status{
		Link:          o.device.Name(),
		Connected:     o.connected,
		Paused:        o.paused,
		Selection:     o.sel,
		Devices:       o.engine.Devices(),
		Ticks:         o.engine.Len(),
		Window:        o.engine.Window(),
		SessionID:     o.sessionID,
		LinesRecorded: o.linesRecorded,
		LastError:     o.lastError,
	}
}

// do runs fn on the Run goroutine and waits for it to complete
func (o *Orchestrator) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	req := func() {
		defer close(done)
		fn()
	}

	select {
	case o.requests <- req:
	case <-o.stopped:
		return dashboard.ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	// once accepted the request always runs to completion
	<-done
	return nil
}

func (o *Orchestrator) Pause(ctx context.Context) error {
	return o.do(ctx, func() {
		if !o.paused {
			o.paused = true
			o.logger.Info("ingestion paused")
		}
		o.publishStatus()
	})
}

func (o *Orchestrator) Resume(ctx context.Context) error {
	return o.do(ctx, func() {
		if o.paused {
			o.paused = false
			o.logger.Info("ingestion resumed")
		}
		o.publishStatus()
	})
}

// Clear drops the history. Known devices and their last readings are kept.
func (o *Orchestrator) Clear(ctx context.Context) error {
	return o.do(ctx, func() {
		o.engine.Clear()
		o.logger.Info("history cleared")

		o.publisher.PublishReset(o.sel)
		o.publishSnapshot()
		o.publishStatus()
	})
}

// Select changes the visible devices. The history is not touched, only the
// visibility flags of the published snapshot change.
func (o *Orchestrator) Select(ctx context.Context, sel stream.Selection) error {
	return o.do(ctx, func() {
		if sel == o.sel {
			return
		}
		o.sel = sel
		o.logger.Info("selection changed", slog.String("selection", sel.String()))

		o.publisher.PublishReset(sel)
		o.publishSnapshot()
		o.publishStatus()
	})
}

func (o *Orchestrator) Snapshot(ctx context.Context) (snap *stream.Snapshot, err error) {
	err = o.do(ctx, func() {
		snap = o.engine.Snapshot(o.sel)
	})
	return snap, err
}

func (o *Orchestrator) Status(ctx context.Context) (status dashboard.Status, err error) {
	err = o.do(ctx, func() {
		status = o.status()
	})
	return status, err
}

type nopPublisher struct{}

func (nopPublisher) PublishSnapshot(*stream.Snapshot) {}
func (nopPublisher) PublishRow(dashboard.Row) {}
func (nopPublisher) PublishStatus(dashboard.Status) {}
func (nopPublisher) PublishReset(stream.Selection) {}
