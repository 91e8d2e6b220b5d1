package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roman-kulish/esc-telemetry/internal/chart"
	"github.com/roman-kulish/esc-telemetry/internal/stream"
	"github.com/roman-kulish/esc-telemetry/internal/telemetry"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	sendBufferSize = 256
	maxCommandSize = 1024
)

// ErrStopped is returned by a Controller that no longer processes requests
var ErrStopped = errors.New("controller stopped")

// Controller is the owner of the engine. The server forwards user actions to
// it and asks it for the current state.
type Controller interface {
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Clear(ctx context.Context) error
	Select(ctx context.Context, sel stream.Selection) error
	Snapshot(ctx context.Context) (*stream.Snapshot, error)
	Status(ctx context.Context) (Status, error)
}

// Publisher receives updates from the Controller
type Publisher interface {
	PublishSnapshot(snap *stream.Snapshot)
	PublishRow(row Row)
	PublishStatus(status Status)
	PublishReset(sel stream.Selection)
}

var _ Publisher = (*Server)(nil)

// WithLogger sets the logger for the server
func WithLogger(logger *slog.Logger) func(s *Server) {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMaxRows sets the number of rows kept in the telemetry table
func WithMaxRows(n int) func(s *Server) {
	return func(s *Server) {
		s.rows = NewRowLog(n)
	}
}

// WithRenderer sets the chart renderer used by the charts endpoint
func WithRenderer(r *chart.Renderer) func(s *Server) {
	return func(s *Server) {
		s.renderer = r
	}
}

// Server serves the dashboard API and pushes updates to a single websocket
// client. A new websocket connection replaces the previous one.
type Server struct {
	controller Controller
	rows       *RowLog
	renderer   *chart.Renderer
	upgrader   websocket.Upgrader
	logger     *slog.Logger

	mu     sync.Mutex
	client *client
}

// NewServer creates a new Server instance with a discard logger
func NewServer(c Controller, options ...func(s *Server)) (*Server, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	s := Server{
		controller: c,
		rows:       NewRowLog(DefaultMaxRows),
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// the dashboard is served to the local network
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	for _, option := range options {
		option(&s)
	}

	if s.renderer == nil {
		r, err := chart.NewRenderer(chart.RenderConfig{})
		if err != nil {
			return nil, fmt.Errorf("creating chart renderer: %w", err)
		}
		s.renderer = r
	}

	return &s, nil
}

// Handler returns a configured HTTP handler with all routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ws", s.handleWebsocket)

	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/devices", s.handleDevices)
	mux.HandleFunc("GET /api/rows", s.handleRows)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/charts/{metric}", s.handleChart)

	mux.HandleFunc("POST /api/pause", s.handleAction(s.controller.Pause))
	mux.HandleFunc("POST /api/resume", s.handleAction(s.controller.Resume))
	mux.HandleFunc("POST /api/clear", s.handleAction(s.controller.Clear))
	mux.HandleFunc("PUT /api/selection", s.handleSelection)

	return mux
}

// Rows returns the telemetry table, newest first
func (s *Server) Rows() []Row {
	return s.rows.Rows()
}

func (s *Server) PublishSnapshot(snap *stream.Snapshot) {
	s.send(Message{Type: MessageSnapshot, Data: snap})
}

func (s *Server) PublishRow(row Row) {
	s.rows.Add(row)
	s.send(Message{Type: MessageRow, Data: row})
}

func (s *Server) PublishStatus(status Status) {
	s.send(Message{Type: MessageStatus, Data: status})
}

// PublishReset tells the client to drop what it shows. The telemetry table is
// cleared as well, it only lists rows of the current view.
func (s *Server) PublishReset(sel stream.Selection) {
	s.rows.Clear()
	s.send(Message{Type: MessageReset, Data: map[string]stream.Selection{"selection": sel}})
}

// Close disconnects the websocket client
func (s *Server) Close() error {
	s.mu.Lock()
	c := s.client
	s.client = nil
	s.mu.Unlock()

	if c != nil {
		c.close()
	}
	return nil
}

func (s *Server) send(msg Message) {
	s.mu.Lock()
	c := s.client
	s.mu.Unlock()

	if c == nil {
		return
	}
	if !c.enqueue(msg) {
		s.logger.Debug("websocket client is too slow, message dropped", slog.String("type", msg.Type))
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.controller.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	status, err := s.controller.Status(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	devices := status.Devices
	if devices == nil {
		devices = []int{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"devices":   devices,
		"selection": status.Selection,
	})
}

func (s *Server) handleRows(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.rows.Rows())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.controller.Status(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	m, err := telemetry.ParseMetric(r.PathValue("metric"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	snap, err := s.controller.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	img, err := s.renderer.Render(snap, m)
	if err != nil {
		s.writeError(w, fmt.Errorf("rendering %s chart: %w", m, err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err = png.Encode(w, img); err != nil {
		s.logger.Warn("failed to write chart", slog.String("error", err.Error()))
	}
}

func (s *Server) handleAction(action func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := action(r.Context()); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeStatus(w, r)
	}
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Device string `json:"device"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommandSize)).Decode(&body); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %s", err), http.StatusBadRequest)
		return
	}

	sel, err := stream.ParseSelection(body.Device)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err = s.controller.Select(r.Context(), sel); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeStatus(w, r)
}

func (s *Server) writeStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.controller.Status(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.writeError(w, fmt.Errorf("encoding response: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err = w.Write(append(body, '\n')); err != nil {
		s.logger.Warn("failed to write response", slog.String("error", err.Error()))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrStopped):
		code = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	}

	s.logger.Warn("request failed", slog.String("error", err.Error()))
	http.Error(w, err.Error(), code)
}
