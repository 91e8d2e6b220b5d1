package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/roman-kulish/esc-telemetry/cmd/dashboard/app"
	"github.com/roman-kulish/esc-telemetry/internal/serial"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	flags := pflag.NewFlagSet("dashboard", pflag.ExitOnError)

	var configPath, port, listen, sessions string
	var baud int
	flags.StringVarP(&configPath, "config", "c", "", "Path to the configuration file")
	flags.StringVar(&port, "port", "", "Serial port device (e.g. /dev/ttyACM0), auto-detected when empty")
	flags.IntVar(&baud, "baud", serial.DefaultBaudRate, "Serial baud rate")
	flags.StringVar(&listen, "listen", "", "Dashboard listen address (default 0.0.0.0:5000)")
	flags.StringVar(&sessions, "sessions", "", "Sessions directory (default sessions)")
	_ = flags.Parse(os.Args[1:])

	config := app.NewConfig()
	if configPath != "" {
		var err error
		if config, err = app.LoadConfig(configPath); err != nil {
			logger.Error(fmt.Sprintf("failed to load configuration file: %s", err.Error()), slog.String("path", configPath))
			os.Exit(1)
		}
	}

	// command line flags win over the configuration file
	if flags.Changed("port") {
		config.Link.Type = serial.TypeSerial
		config.Link.Serial.Port = port
	}
	if flags.Changed("baud") {
		config.Link.Serial.BaudRate = baud
	}
	if flags.Changed("listen") {
		config.Dashboard.Listen = listen
	}
	if flags.Changed("sessions") {
		config.Storage.DataDirectory = sessions
	}

	if err := config.Validate(); err != nil {
		logger.Error(fmt.Sprintf("invalid configuration: %s", err.Error()))
		os.Exit(1)
	}

	level, _ := config.Settings.Level()
	logLevel.Set(level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx, config, logger); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
