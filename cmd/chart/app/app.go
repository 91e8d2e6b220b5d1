package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/esc-telemetry/internal/chart"
	"github.com/roman-kulish/esc-telemetry/internal/recording"
	"github.com/roman-kulish/esc-telemetry/internal/serial"
	"github.com/roman-kulish/esc-telemetry/internal/storage"
	"github.com/roman-kulish/esc-telemetry/internal/stream"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	if config.ListSessions {
		return listSessions(ctx, store)
	}

	snap, err := replay(ctx, store, config, logger)
	if err != nil {
		return err
	}

	return renderCharts(snap, config, logger)
}

func listSessions(ctx context.Context, store *storage.SqliteStore) error {
	sessions, err := store.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("reading sessions: %w", err)
	}

	for _, s := range sessions {
		fmt.Printf("%d\t%s\t%s\n", s.ID, s.StartTime.Local().Format(time.DateTime), s.Source)
	}
	return nil
}

// replay feeds the recorded lines of the session through a line parser and a
// fresh engine, the way the dashboard ingested them live
func replay(ctx context.Context, store *storage.SqliteStore, config *Config, logger *slog.Logger) (*stream.Snapshot, error) {
	var opts []storage.ReaderOption
	var filters []any
	switch {
	case config.MinTimestamp != nil && config.MaxTimestamp != nil:
		opts = append(opts, storage.WithTimeRange(*config.MinTimestamp, *config.MaxTimestamp))

		filters = append(filters,
			slog.String("minTimestamp", config.MinTimestamp.Local().Format(time.DateTime)),
			slog.String("maxTimestamp", config.MaxTimestamp.Local().Format(time.DateTime)))

	case config.MinTimestamp != nil:
		opts = append(opts, storage.WithStartTime(*config.MinTimestamp))
		filters = append(filters, slog.String("minTimestamp", config.MinTimestamp.Local().Format(time.DateTime)))

	case config.MaxTimestamp != nil:
		opts = append(opts, storage.WithEndTime(*config.MaxTimestamp))
		filters = append(filters, slog.String("maxTimestamp", config.MaxTimestamp.Local().Format(time.DateTime)))
	}

	logger.Info("iterator configuration", filters...)

	iter, err := store.ReadLines(ctx, config.SessionID, opts...)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	engine, err := stream.New(config.Window)
	if err != nil {
		return nil, err
	}

	logger.Info("replaying session",
		slog.Int64("sessionId", config.SessionID),
		slog.String("source", iter.Session().Source),
		slog.String("startTime", iter.Session().StartTime.Local().Format(time.DateTime)))

	var stats replayStats
	parser := serial.NewLineParser()
	for iter.Next(ctx) {
		line := iter.Current()
		stats.lines++

		parsed, err := parser.Parse(line.Text)
		if err != nil {
			stats.errors++
			if config.Verbose {
				logger.Warn(fmt.Sprintf("error parsing line: %s", err.Error()), slog.String("line", line.Text))
			}
			continue
		}
		if parsed.Kind != recording.LineData || parsed.Idle {
			continue
		}

		tick := engine.Ingest(parsed.Sample)
		stats.samples++
		stats.evicted += tick.Evicted
	}
	if err = iter.Error(); err != nil {
		return nil, err
	}

	logger.Info("finished replaying session",
		slog.Group("stats",
			slog.String("lines", humanize.Comma(stats.lines)),
			slog.String("samples", humanize.Comma(stats.samples)),
			slog.String("parseErrors", humanize.Comma(stats.errors)),
			slog.String("evicted", humanize.Comma(int64(stats.evicted))),
			slog.Any("devices", engine.Devices()),
		))

	if engine.Len() == 0 {
		return nil, errors.New("no telemetry samples in the selected range")
	}
	return engine.Snapshot(stream.All), nil
}

type replayStats struct {
	lines   int64
	samples int64
	errors  int64
	evicted int
}

func renderCharts(snap *stream.Snapshot, config *Config, logger *slog.Logger) error {
	renderer, err := chart.NewRenderer(chart.RenderConfig{
		Width:  config.Width,
		Height: config.Height,
	})
	if err != nil {
		return fmt.Errorf("creating chart renderer: %w", err)
	}

	if err = os.MkdirAll(config.OutputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	for _, m := range config.Metrics {
		img, err := renderer.Render(snap, m)
		if err != nil {
			return fmt.Errorf("rendering %s chart: %w", m, err)
		}

		path := filepath.Join(config.OutputDir, fmt.Sprintf("session_%d_%s.%s", config.SessionID, m, config.Format))
		if err = writeImage(path, img, config.Format); err != nil {
			return fmt.Errorf("writing %s chart: %w", m, err)
		}

		logger.Info("chart rendered",
			slog.String("metric", m.String()),
			slog.String("destination", path),
			slog.Int("ticks", snap.Len()))
	}
	return nil
}

func writeImage(path string, img image.Image, format ImageFormat) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := out.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	switch format {
	case ImageJPEG:
		return jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})
	default:
		return png.Encode(out, img)
	}
}
