package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/roman-kulish/esc-telemetry/internal/recording"
)

// ErrNoData indicates either that no session exists for the given
// parameters, or that all available lines have been read.
var ErrNoData = fmt.Errorf("no data available")

const defaultReaderBatchSize = 1000

// ReaderOption configures a SqliteLineReader with filtering criteria.
type ReaderOption func(*SqliteLineReader)

// WithBatchSize sets the number of lines fetched per query.
func WithBatchSize(n int) ReaderOption {
	return func(r *SqliteLineReader) {
		r.batchSize = n
	}
}

// WithStartTime excludes lines received before t.
func WithStartTime(t time.Time) ReaderOption {
	return func(r *SqliteLineReader) {
		t = t.UTC()
		r.startTime = &t
	}
}

// WithEndTime excludes lines received after t.
func WithEndTime(t time.Time) ReaderOption {
	return func(r *SqliteLineReader) {
		t = t.UTC()
		r.endTime = &t
	}
}

// WithTimeRange sets both start and end time filters.
// This is a convenience function equivalent to applying both WithStartTime
// and WithEndTime.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *SqliteLineReader) {
		WithStartTime(startTime)(r)
		WithEndTime(endTime)(r)
	}
}

// SqliteLineReader implements LineReader for SQLite database backend. Lines
// are paged by their row id, so a reader never holds a long running query.
type SqliteLineReader struct {
	db *sql.DB

	sessionID int64
	session   *recording.Session
	batchSize int

	startTime *time.Time // Optional start of time range filter
	endTime   *time.Time // Optional end of time range filter

	query  string
	args   []any
	lastID int64

	page    []lineData
	pos     int
	current *recording.Line
	done    bool
	err     error
}

func newSqliteLineReader(ctx context.Context, db *sql.DB, sessionID int64, opts ...ReaderOption) (*SqliteLineReader, error) {
	lr := &SqliteLineReader{
		db:        db,
		sessionID: sessionID,
		batchSize: defaultReaderBatchSize,
	}
	for _, opt := range opts {
		opt(lr)
	}
	if err := lr.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return lr, nil
}

func (lr *SqliteLineReader) init(ctx context.Context) error {
	if lr.db == nil {
		return errors.New("database connection required")
	}
	if lr.sessionID <= 0 {
		return errors.New("session ID required")
	}
	if lr.batchSize <= 0 {
		return fmt.Errorf("invalid batch size %d", lr.batchSize)
	}
	if lr.startTime != nil && lr.endTime != nil && lr.startTime.After(*lr.endTime) {
		return fmt.Errorf("start time %s is after end time %s", lr.startTime, lr.endTime)
	}

	session, err := loadSession(ctx, lr.db, lr.sessionID)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	lr.session = session

	var sb strings.Builder
	sb.WriteString(selectLinesSQL)
	if lr.startTime != nil {
		sb.WriteString("\n    AND received_at >= ?")
		lr.args = append(lr.args, *lr.startTime)
	}
	if lr.endTime != nil {
		sb.WriteString("\n    AND received_at <= ?")
		lr.args = append(lr.args, *lr.endTime)
	}
	sb.WriteString("\nORDER BY id\nLIMIT ?")
	lr.query = sb.String()

	return nil
}

func (lr *SqliteLineReader) fetch(ctx context.Context) (err error) {
	args := make([]any, 0, len(lr.args)+3)
	args = append(args, lr.sessionID, lr.lastID)
	args = append(args, lr.args...)
	args = append(args, lr.batchSize)

	rows, err := lr.db.QueryContext(ctx, lr.query, args...)
	if err != nil {
		return fmt.Errorf("querying lines: %w", err)
	}
	defer closeWithError(rows, &err)

	lr.page = lr.page[:0]
	lr.pos = 0
	for rows.Next() {
		var d lineData
		if err = rows.Scan(&d.ID, &d.ReceivedAt, &d.Kind, &d.Text); err != nil {
			return fmt.Errorf("scanning line: %w", err)
		}
		d.SessionID = lr.sessionID
		lr.page = append(lr.page, d)
	}
	if err = rows.Err(); err != nil {
		return err
	}

	if len(lr.page) > 0 {
		lr.lastID = lr.page[len(lr.page)-1].ID
	}
	if len(lr.page) < lr.batchSize {
		lr.done = true
	}
	return nil
}

func (lr *SqliteLineReader) Session() *recording.Session {
	return lr.session
}

func (lr *SqliteLineReader) Next(ctx context.Context) bool {
	if lr.err != nil || lr.db == nil {
		return false
	}

	select {
	case <-ctx.Done():
		lr.err = ctx.Err()
		return false
	default:
	}

	if lr.pos >= len(lr.page) {
		if lr.done {
			lr.err = ErrNoData
			lr.current = nil
			return false
		}
		if lr.err = lr.fetch(ctx); lr.err != nil {
			return false
		}
		if len(lr.page) == 0 {
			lr.err = ErrNoData
			lr.current = nil
			return false
		}
	}

	lr.current = lr.page[lr.pos].toLine()
	lr.pos++
	return true
}

func (lr *SqliteLineReader) Current() *recording.Line {
	return lr.current
}

func (lr *SqliteLineReader) Error() error {
	if lr.err != nil && !errors.Is(lr.err, ErrNoData) {
		return lr.err
	}
	return nil
}

func (lr *SqliteLineReader) Close() error {
	lr.page = nil
	lr.current = nil
	lr.db = nil
	return nil
}
