package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roman-kulish/esc-telemetry/internal/dashboard"
	"github.com/roman-kulish/esc-telemetry/internal/serial"
	"github.com/roman-kulish/esc-telemetry/internal/storage"
	"github.com/roman-kulish/esc-telemetry/internal/stream"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	engine, err := stream.New(config.Engine.Window)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	source, err := serial.NewSource(&config.Link, logger)
	if err != nil {
		return fmt.Errorf("creating link: %w", err)
	}

	device := serial.NewDevice(source,
		serial.WithLogger(logger),
		serial.WithReconnectInterval(config.Link.Reconnect()))

	options := []func(*Orchestrator){
		WithLogger(logger),
		WithPublishInterval(config.Dashboard.publishInterval()),
	}

	if config.Storage.Enabled {
		store, err := createStorage(&config.Storage)
		if err != nil {
			return fmt.Errorf("failed to create storage: %w", err)
		}
		defer store.Close()

		options = append(options,
			WithStore(store, config.Link),
			WithMaxBatchSize(config.Storage.MaxBatchSize),
			WithFlushInterval(config.Storage.flushInterval()))
	}

	orchestrator, err := NewOrchestrator(engine, device, options...)
	if err != nil {
		return fmt.Errorf("creating orchestrator: %w", err)
	}

	server, err := dashboard.NewServer(orchestrator,
		dashboard.WithLogger(logger),
		dashboard.WithMaxRows(config.Dashboard.MaxRows))
	if err != nil {
		return fmt.Errorf("creating dashboard: %w", err)
	}
	defer server.Close()

	ln, err := net.Listen("tcp", config.Dashboard.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", config.Dashboard.Listen, err)
	}

	httpServer := &http.Server{
		Handler:           server.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	for _, u := range dashboardURLs(ln.Addr()) {
		logger.Info("dashboard is listening", slog.String("url", u))
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving dashboard: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		// websocket connections are hijacked and not tracked by Shutdown
		_ = server.Close()
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return orchestrator.Run(ctx, server)
	})

	return g.Wait()
}

func createStorage(config *StorageConfig) (*storage.SqliteStore, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current working directory: %w", err)
	}

	dbPath := config.DataDirectory
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(wd, dbPath)
	}

	if err = os.MkdirAll(dbPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory '%s': %w", dbPath, err)
	}

	dbPath = filepath.Join(dbPath, fmt.Sprintf("telemetry_%s.sqlite", time.Now().Format("20060102_150405")))
	return storage.NewSqliteStore(dbPath), nil
}

// dashboardURLs returns the URLs the dashboard can be reached at: localhost
// and the local network address when listening on every interface.
func dashboardURLs(addr net.Addr) []string {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return []string{fmt.Sprintf("http://%s/", addr)}
	}

	if !tcp.IP.IsUnspecified() {
		return []string{fmt.Sprintf("http://%s/", tcp)}
	}

	urls := []string{fmt.Sprintf("http://localhost:%d/", tcp.Port)}
	if ip := localIP(); ip != nil {
		urls = append(urls, fmt.Sprintf("http://%s/", net.JoinHostPort(ip.String(), fmt.Sprint(tcp.Port))))
	}
	return urls
}

// localIP returns the first non-loopback IPv4 address of the host
func localIP() net.IP {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}

	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip := ipNet.IP.To4(); ip != nil {
			return ip
		}
	}
	return nil
}
