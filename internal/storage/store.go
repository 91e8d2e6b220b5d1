package storage

import (
	"context"

	_ "github.com/mattn/go-sqlite3"
	"github.com/roman-kulish/esc-telemetry/internal/recording"
)

// Store records raw telemetry lines per session and reads them back for
// replay. All operations that write to the database are atomic.
type Store interface {
	// CreateSession starts a new recording and returns its identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - source: Link the lines come from (e.g. "serial:/dev/ttyACM0")
	//   - config: Optional link configuration. Can be string, []byte, or JSON-serializable object
	CreateSession(ctx context.Context, source string, config any) (sessionID int64, err error)

	// Session retrieves a recording session by its ID.
	Session(ctx context.Context, id int64) (*recording.Session, error)

	// Sessions returns all sessions ordered by start time.
	Sessions(ctx context.Context) ([]*recording.Session, error)

	// StoreLines saves a batch of lines of a session in a single transaction.
	StoreLines(ctx context.Context, sessionID int64, lines []*recording.Line) error

	// Close releases all database connections. It is safe to call Close
	// multiple times.
	Close() error
}

// LineReader iterates over the recorded lines of a session in arrival order.
type LineReader interface {
	// Session returns metadata of the session being read.
	Session() *recording.Session

	// Next advances to the next line and returns false when the iteration is
	// complete or an error occurred.
	Next(context.Context) bool

	// Current returns the current line.
	Current() *recording.Line

	// Error returns the error that stopped the iteration, if any.
	Error() error

	// Close releases the reader resources.
	Close() error
}

var (
	_ Store      = (*SqliteStore)(nil)
	_ LineReader = (*SqliteLineReader)(nil)
)
