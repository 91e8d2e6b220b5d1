package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roman-kulish/esc-telemetry/internal/stream"
)

// client is the websocket connection of the dashboard page
type client struct {
	conn *websocket.Conn
	send chan Message

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn: conn,
		send: make(chan Message, sendBufferSize),
		done: make(chan struct{}),
	}
}

// enqueue queues msg without blocking, false if the queue is full or the
// client is gone
func (c *client) enqueue(msg Message) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	conn.SetReadLimit(maxCommandSize)

	c := newClient(conn)

	s.mu.Lock()
	prev := s.client
	s.client = c
	s.mu.Unlock()

	if prev != nil {
		s.logger.Info("websocket client replaced", slog.String("remote", r.RemoteAddr))
		prev.close()
	} else {
		s.logger.Info("websocket client connected", slog.String("remote", r.RemoteAddr))
	}

	// a new client starts from a full refresh
	ctx := context.WithoutCancel(r.Context())
	if status, err := s.controller.Status(ctx); err == nil {
		c.enqueue(Message{Type: MessageStatus, Data: status})
	}
	if snap, err := s.controller.Snapshot(ctx); err == nil {
		c.enqueue(Message{Type: MessageSnapshot, Data: snap})
	}

	go s.writePump(c)
	s.readPump(ctx, c)

	s.mu.Lock()
	if s.client == c {
		s.client = nil
	}
	s.mu.Unlock()

	c.close()
	s.logger.Info("websocket client disconnected", slog.String("remote", r.RemoteAddr))
}

// writePump sends queued messages and keep-alive pings until the client is
// closed.
func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return

		case msg := <-c.send:
			payload, err := json.Marshal(msg)
			if err != nil {
				s.logger.Warn("dropping unencodable message",
					slog.String("type", msg.Type),
					slog.String("error", err.Error()))
				continue
			}

			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err = c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.Debug("websocket write failed", slog.String("error", err.Error()))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump applies commands sent by the client until the connection fails.
func (s *Server) readPump(ctx context.Context, c *client) {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, p, err := c.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) && !errors.Is(err, websocket.ErrCloseSent) {
				s.logger.Debug("websocket read failed", slog.String("error", err.Error()))
			}
			return
		}

		var cmd Command
		if err = json.Unmarshal(p, &cmd); err != nil {
			c.enqueue(Message{Type: MessageError, Data: fmt.Sprintf("invalid command: %s", err)})
			continue
		}

		if err = s.apply(ctx, cmd); err != nil {
			s.logger.Warn("websocket command failed", slog.String("command", cmd.Type), slog.String("error", err.Error()))
			c.enqueue(Message{Type: MessageError, Data: err.Error()})
		}
	}
}

func (s *Server) apply(ctx context.Context, cmd Command) error {
	switch cmd.Type {
	case "pause":
		return s.controller.Pause(ctx)
	case "resume":
		return s.controller.Resume(ctx)
	case "clear":
		return s.controller.Clear(ctx)
	case "select":
		sel, err := stream.ParseSelection(cmd.Device)
		if err != nil {
			return err
		}
		return s.controller.Select(ctx, sel)
	default:
		return fmt.Errorf("unknown command: %q", cmd.Type)
	}
}
