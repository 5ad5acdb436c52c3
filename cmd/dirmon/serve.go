package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dirmon"
	"dirmon/internal/app"
	"dirmon/internal/cli"
	"dirmon/internal/config"
	"dirmon/internal/logging"
	"dirmon/internal/metrics"
	"dirmon/internal/otel"
	"dirmon/internal/version"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	metricsShutdownTimeout = 2 * time.Second
	tracerName             = "dirmon/reactor"
)

// serveSignals is replaced in tests.
var serveSignals = func() (<-chan os.Signal, func()) {
	signalCh := make(chan os.Signal, 2)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	return signalCh, func() { signal.Stop(signalCh) }
}

func loadSettings(options cli.ServeOptions) (config.Settings, error) {
	defaults, err := fs.ReadFile(dirmon.EmbeddedConfigFS, dirmon.DefaultConfigPath)
	if err != nil {
		return config.Settings{}, fmt.Errorf("read embedded defaults: %w", err)
	}
	overrides := config.EnvOverrides()
	for key, value := range options.Overrides() {
		overrides[key] = value
	}
	return config.Load(options.ConfigPath, defaults, overrides)
}

func runServe(ctx context.Context, options cli.ServeOptions, stdout io.Writer) error {
	settings, err := loadSettings(options)
	if err != nil {
		return cli.Fail(err)
	}

	logger, logCloser, err := logging.NewFileLogger(settings.LogFile, settings.LogLevel, stdout)
	if err != nil {
		return cli.Fail(err)
	}
	defer logCloser.Close()

	info := version.GetVersionInfo()
	otelOptions := otel.SDKOptionsFromEnv()
	otelOptions.ServiceVersion = info.Version
	shutdownTracing, err := otel.SetupSDK(ctx, otelOptions)
	if err != nil {
		logger.Warn("trace export disabled", map[string]string{
			"error": err.Error(),
		})
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("trace flush failed", map[string]string{
				"error": err.Error(),
			})
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	built, err := app.Build(app.BuildOptions{
		Logger:     logger,
		Settings:   settings,
		Registerer: registry,
		Tracer:     otel.Tracer(tracerName),
	})
	if err != nil {
		logger.Error("startup failed", map[string]string{
			"error": err.Error(),
		})
		return cli.Fail(err)
	}
	defer func() {
		if err := built.Close(); err != nil {
			logger.Warn("cleanup failed", map[string]string{
				"error": err.Error(),
			})
		}
	}()

	stopMetrics, err := startMetricsServer(settings.MetricsAddr, registry, logger)
	if err != nil {
		return cli.Fail(err)
	}
	defer stopMetrics()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	signalCh, stopSignals := serveSignals()
	defer stopSignals()
	stopWatching := watchShutdownSignals(logger, cancel, signalCh, func() { os.Exit(cli.ExitCodeFailure) })
	defer stopWatching()

	logger.Info("dirmon serving", map[string]string{
		"channel": built.Endpoint.Path(),
		"watches": fmt.Sprint(built.ActiveWatches),
		"version": info.Version,
	})

	err = built.Reactor.Run(runCtx)
	switch {
	case err == nil:
		logger.Info("dirmon stopped", map[string]string{"reason": "quit"})
		return nil
	case errors.Is(err, context.Canceled):
		logger.Info("dirmon stopped", map[string]string{"reason": "signal"})
		return nil
	default:
		logger.Error("reactor stopped", map[string]string{
			"error": err.Error(),
		})
		return cli.Fail(err)
	}
}

func startMetricsServer(addr string, registry *prometheus.Registry, logger *logging.Logger) (func(), error) {
	if addr == "" {
		return func() {}, nil
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	server := &http.Server{
		Handler:           metrics.NewRouter(registry, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", map[string]string{
				"error": err.Error(),
			})
		}
	}()
	logger.Info("metrics listening", map[string]string{
		"addr": listener.Addr().String(),
	})
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = server.Shutdown(ctx)
	}, nil
}
