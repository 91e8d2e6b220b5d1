package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/esc-telemetry/internal/recording"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()
	s := NewSqliteStore(filepath.Join(t.TempDir(), "telemetry.sqlite"))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testLines(base time.Time, n int) []*recording.Line {
	out := []*recording.Line{{
		ReceivedAt: base,
		Kind:       recording.LineHeader,
		Text:       "ts_ms,device,rpm",
	}}
	for i := 1; i < n; i++ {
		out = append(out, &recording.Line{
			ReceivedAt: base.Add(time.Duration(i) * time.Second),
			Kind:       recording.LineData,
			Text:       fmt.Sprintf("%d,1,%d", i*100, i*1000),
		})
	}
	return out
}

func TestSqliteStore_Sessions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id1, err := s.CreateSession(ctx, "serial:/dev/ttyACM0", map[string]any{"baudRate": 115200})
	require.NoError(t, err)
	id2, err := s.CreateSession(ctx, "command:./simulator", nil)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	sess, err := s.Session(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "serial:/dev/ttyACM0", sess.Source)
	require.NotNil(t, sess.Config)
	assert.JSONEq(t, `{"baudRate":115200}`, *sess.Config)
	assert.False(t, sess.StartTime.IsZero())

	sessions, err := s.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, id1, sessions[0].ID)
	assert.Nil(t, sessions[1].Config)

	_, err = s.Session(ctx, 42)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestSqliteStore_StoreAndReadLines(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.CreateSession(ctx, "command:cat", "raw config")
	require.NoError(t, err)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	in := testLines(base, 450)
	require.NoError(t, s.StoreLines(ctx, id, in))
	require.NoError(t, s.StoreLines(ctx, id, nil))

	r, err := s.ReadLines(ctx, id, WithBatchSize(64))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, id, r.Session().ID)

	var got []*recording.Line
	for r.Next(ctx) {
		got = append(got, r.Current())
	}
	require.NoError(t, r.Error())
	require.Len(t, got, len(in))

	assert.Equal(t, recording.LineHeader, got[0].Kind)
	for i := range in {
		assert.Equal(t, in[i].Text, got[i].Text)
		assert.True(t, in[i].ReceivedAt.Equal(got[i].ReceivedAt), "line %d", i)
	}
	assert.False(t, r.Next(ctx))
}

func TestSqliteStore_ReadLinesTimeRange(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.CreateSession(ctx, "command:cat", nil)
	require.NoError(t, err)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.StoreLines(ctx, id, testLines(base, 10)))

	r, err := s.ReadLines(ctx, id, WithTimeRange(base.Add(3*time.Second), base.Add(5*time.Second)))
	require.NoError(t, err)
	defer r.Close()

	var texts []string
	for r.Next(ctx) {
		texts = append(texts, r.Current().Text)
	}
	require.NoError(t, r.Error())
	assert.Equal(t, []string{"300,1,3000", "400,1,4000", "500,1,5000"}, texts)
}

func TestSqliteStore_ReadLinesErrors(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.CreateSession(ctx, "command:cat", nil)
	require.NoError(t, err)

	base := time.Now()
	_, err = s.ReadLines(ctx, id, WithTimeRange(base, base.Add(-time.Second)))
	assert.Error(t, err)

	_, err = s.ReadLines(ctx, id+1)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = s.ReadLines(ctx, id, WithBatchSize(0))
	assert.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	r, err := s.ReadLines(ctx, id)
	require.NoError(t, err)
	assert.False(t, r.Next(cancelled))
	assert.ErrorIs(t, r.Error(), context.Canceled)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "(?, ?)", placeholders(1, 2))
	assert.Equal(t, "(?, ?, ?, ?), (?, ?, ?, ?)", placeholders(2, 4))
}
