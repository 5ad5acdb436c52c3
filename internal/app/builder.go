package app

import (
	"errors"
	"fmt"
	"strings"

	"dirmon/internal/config"
	"dirmon/internal/endpoint"
	"dirmon/internal/logging"
	"dirmon/internal/metrics"
	"dirmon/internal/reactor"
	"dirmon/internal/watcher"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

type BuildOptions struct {
	Logger   *logging.Logger
	Settings config.Settings
	// Watch replaces the fsnotify watcher, mainly for tests.
	Watch      watcher.Watch
	Registerer prometheus.Registerer
	Tracer     trace.Tracer
}

type BuildResult struct {
	Queue         *reactor.Queue
	Endpoint      *endpoint.Endpoint
	Watcher       *watcher.Watcher
	Bridge        *watcher.Bridge
	Handlers      *Handlers
	Reactor       *reactor.Reactor
	ActiveWatches int
}

type BuildError struct {
	Stage string
	Err   error
}

func (e BuildError) Error() string {
	if e.Err == nil {
		return e.Stage
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e BuildError) Unwrap() error {
	return e.Err
}

const (
	StageListen   = "listen"
	StageWatch    = "watch"
	StageRegister = "register"
)

// Build opens the channel, subscribes the configured directories and wires
// the reactor. The queue starts with one Accept so the first client can
// connect as soon as Run starts.
func Build(options BuildOptions) (*BuildResult, error) {
	logger := options.Logger
	if logger == nil {
		logger = logging.NewLoggerWithOutput(logging.NewLogBuffer(logging.DefaultBufferSize), logging.LevelInfo, nil)
	}
	settings := options.Settings
	if strings.TrimSpace(settings.Channel) == "" {
		return nil, BuildError{Stage: StageListen, Err: errors.New("channel is required")}
	}

	result := &BuildResult{Queue: reactor.NewQueue()}

	conn, err := endpoint.Listen(settings.Channel, endpoint.Options{
		PollWindow: settings.PollWindow,
		Logger:     logger,
	})
	if err != nil {
		return nil, BuildError{Stage: StageListen, Err: err}
	}
	result.Endpoint = conn

	watch := options.Watch
	if watch == nil {
		fsWatcher, err := watcher.NewWithOptions(watcher.Options{
			Logger: logger,
			ErrorHandler: func(err error) {
				logger.Error("filesystem watcher gave up", map[string]string{
					"error": err.Error(),
				})
			},
		})
		if err != nil {
			_ = result.Close()
			return nil, BuildError{Stage: StageWatch, Err: err}
		}
		result.Watcher = fsWatcher
		watch = fsWatcher
		metrics.RegisterWatcher(options.Registerer, func() metrics.WatcherStats {
			snapshot := fsWatcher.Metrics()
			return metrics.WatcherStats{
				ActiveWatches:   snapshot.ActiveWatches,
				EventsDelivered: snapshot.EventsDelivered,
				Errors:          snapshot.Errors,
				RestartAttempts: snapshot.RestartAttempts,
			}
		})
	}

	result.Bridge = watcher.NewBridge(watch, result.Queue, logger)
	result.ActiveWatches = result.Bridge.WatchAll(LoadWatchDirs(logger, settings.Dirs))

	result.Handlers = NewHandlers(conn, result.Queue, HandlerOptions{
		Logger:   logger,
		Greeting: settings.Greeting,
		Echo:     settings.Echo,
	})
	registry := reactor.NewRegistry()
	if err := registry.Register(result.Handlers); err != nil {
		_ = result.Close()
		return nil, BuildError{Stage: StageRegister, Err: err}
	}

	result.Reactor = reactor.New(result.Queue, conn, registry, reactor.Options{
		Logger:            logger,
		IdleSleep:         settings.IdleSleep,
		RearmAcceptOnDrop: settings.RearmAccept,
		Metrics:           metrics.NewReactor(options.Registerer),
		Tracer:            options.Tracer,
	})
	result.Queue.Push(reactor.Accept())
	return result, nil
}

// Close releases subscriptions, the watcher and the channel.
func (result *BuildResult) Close() error {
	if result == nil {
		return nil
	}
	var errs []error
	if err := result.Bridge.Close(); err != nil {
		errs = append(errs, err)
	}
	if result.Watcher != nil {
		if err := result.Watcher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if result.Endpoint != nil {
		if err := result.Endpoint.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
