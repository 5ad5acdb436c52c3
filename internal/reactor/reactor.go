package reactor

import (
	"context"
	"errors"
	"strconv"
	"time"

	"dirmon/internal/endpoint"
	"dirmon/internal/logging"
	"dirmon/internal/metrics"
	dirmonotel "dirmon/internal/otel"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	DefaultIdleSleep       = 10 * time.Millisecond
	acceptWarningInterval  = 5 * time.Second
	acceptWarningBurst     = 1
	dispatchSpanName       = "reactor.dispatch"
	wouldBlockSpanEvent    = "would_block"
	connectionDropSpanName = "connection_dropped"
)

// Conn is the connection endpoint as seen by the dispatcher. Would-block
// outcomes are reported as endpoint.ErrWouldBlock.
type Conn interface {
	TryAccept() error
	TryRead() (string, error)
	TryWrite(buffer string) (int, error)
	Connected() bool
	Drop()
}

// Options controls dispatcher behavior.
type Options struct {
	Logger *logging.Logger
	// IdleSleep bounds how long the loop sleeps when no progress is possible.
	IdleSleep time.Duration
	// RearmAcceptOnDrop queues a fresh Accept after a hard read or write
	// error drops the active connection.
	RearmAcceptOnDrop bool
	// AllowPartial lets the reactor start with categories left unregistered.
	// Events for those categories are discarded.
	AllowPartial bool
	Metrics      *metrics.Reactor
	Tracer       trace.Tracer
}

type outcome int

const (
	outcomeProgress outcome = iota
	outcomeIdle
	outcomeQuit
)

// Reactor pops events one at a time and routes each to its handler. All
// connection state is touched from the goroutine running Run or Step.
type Reactor struct {
	queue          *Queue
	conn           Conn
	registry       *Registry
	logger         *logging.Logger
	metrics        *metrics.Reactor
	tracer         trace.Tracer
	idleSleep      time.Duration
	rearmAccept    bool
	allowPartial   bool
	acceptWarnings *rate.Limiter
	started        bool
	stopped        bool
	idleStreak     int
}

func New(queue *Queue, conn Conn, registry *Registry, options Options) *Reactor {
	if queue == nil {
		queue = NewQueue()
	}
	if registry == nil {
		registry = NewRegistry()
	}

	logger := options.Logger
	if logger == nil {
		logger = logging.NewLoggerWithOutput(logging.NewLogBuffer(logging.DefaultBufferSize), logging.LevelInfo, nil)
	}

	idleSleep := options.IdleSleep
	if idleSleep <= 0 {
		idleSleep = DefaultIdleSleep
	}

	tracer := options.Tracer
	if tracer == nil {
		tracer = dirmonotel.Tracer("dirmon/internal/reactor")
	}

	return &Reactor{
		queue:          queue,
		conn:           conn,
		registry:       registry,
		logger:         logger.With(map[string]string{logging.CategoryField: "reactor"}),
		metrics:        options.Metrics,
		tracer:         tracer,
		idleSleep:      idleSleep,
		rearmAccept:    options.RearmAcceptOnDrop,
		allowPartial:   options.AllowPartial,
		acceptWarnings: rate.NewLimiter(rate.Every(acceptWarningInterval), acceptWarningBurst),
	}
}

// Queue returns the queue the reactor consumes.
func (reactor *Reactor) Queue() *Queue {
	if reactor == nil {
		return nil
	}
	return reactor.queue
}

// Stopped reports whether a Quit event has been dispatched.
func (reactor *Reactor) Stopped() bool {
	return reactor != nil && reactor.stopped
}

// Run dispatches events until a Quit event is processed or ctx is canceled.
// It returns nil after Quit and ctx.Err() on cancellation; I/O failures never
// escape the loop.
func (reactor *Reactor) Run(ctx context.Context) error {
	if reactor == nil {
		return errors.New("reactor is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := reactor.start(); err != nil {
		return err
	}

	for !reactor.stopped {
		if err := ctx.Err(); err != nil {
			return err
		}
		event, ok := reactor.queue.Pop()
		if !ok {
			if err := reactor.sleep(ctx); err != nil {
				return err
			}
			continue
		}
		if reactor.step(ctx, event) == outcomeIdle && reactor.idleStreak >= reactor.queue.Len() {
			reactor.idleStreak = 0
			if err := reactor.sleep(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Step dispatches at most one event without sleeping. It reports the event
// that was dispatched and false when the queue was empty or the reactor has
// already stopped.
func (reactor *Reactor) Step(ctx context.Context) (Event, bool) {
	if reactor == nil || reactor.stopped {
		return Event{}, false
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := reactor.start(); err != nil {
		reactor.logger.Error("reactor start failed", map[string]string{
			"error": err.Error(),
		})
		return Event{}, false
	}
	event, ok := reactor.queue.Pop()
	if !ok {
		return Event{}, false
	}
	reactor.step(ctx, event)
	return event, true
}

func (reactor *Reactor) start() error {
	if reactor.started {
		return nil
	}
	if reactor.conn == nil {
		return errors.New("connection endpoint is nil")
	}
	if !reactor.allowPartial {
		if err := reactor.registry.Validate(); err != nil {
			return err
		}
	}
	reactor.registry.freeze()
	reactor.started = true
	return nil
}

func (reactor *Reactor) step(ctx context.Context, event Event) outcome {
	result := reactor.dispatch(ctx, event)
	if result == outcomeIdle {
		reactor.idleStreak++
	} else {
		reactor.idleStreak = 0
	}
	reactor.metrics.SetQueueDepth(reactor.queue.Len())
	return result
}

func (reactor *Reactor) sleep(ctx context.Context) error {
	timer := time.NewTimer(reactor.idleSleep)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (reactor *Reactor) dispatch(ctx context.Context, event Event) outcome {
	ctx, span := reactor.tracer.Start(ctx, dispatchSpanName,
		trace.WithAttributes(attribute.String("event.kind", event.Kind.String())))
	defer span.End()

	reactor.metrics.IncDispatched(event.Kind.String())
	if reactor.logger.Enabled(logging.LevelDebug) {
		reactor.logger.Debug("dispatch", map[string]string{
			"event": event.String(),
		})
	}

	switch event.Kind {
	case KindAccept:
		return reactor.dispatchAccept(ctx)
	case KindRead:
		return reactor.dispatchRead(ctx, event)
	case KindWrite:
		return reactor.dispatchWrite(ctx, event)
	case KindDirmon:
		return reactor.dispatchDirmon(event)
	case KindQuit:
		reactor.logger.Info("quit requested", nil)
		reactor.stopped = true
		return outcomeQuit
	default:
		reactor.logger.Warn("unknown event discarded", map[string]string{
			"event": event.String(),
		})
		return outcomeProgress
	}
}

func (reactor *Reactor) dispatchAccept(ctx context.Context) outcome {
	handler := reactor.registry.accept
	if handler == nil {
		reactor.discard(KindAccept)
		return outcomeProgress
	}

	err := reactor.conn.TryAccept()
	switch {
	case err == nil:
		reactor.metrics.SetConnected(true)
		reactor.logger.Info("client connected", nil)
		reactor.follow(handler())
		return outcomeProgress
	case errors.Is(err, endpoint.ErrWouldBlock):
		reactor.wouldBlock(ctx, KindAccept)
		reactor.queue.Push(Accept())
		return outcomeIdle
	default:
		reactor.metrics.IncIOError(KindAccept.String())
		if reactor.acceptWarnings.Allow() {
			reactor.logger.Warn("accept failed", map[string]string{
				"error": err.Error(),
			})
		}
		reactor.queue.Push(Accept())
		return outcomeIdle
	}
}

func (reactor *Reactor) dispatchRead(ctx context.Context, event Event) outcome {
	handler := reactor.registry.read
	if handler == nil {
		reactor.discard(KindRead)
		return outcomeProgress
	}

	event.Buffer = ""
	text, err := reactor.conn.TryRead()
	switch {
	case err == nil && text == "":
		reactor.queue.Push(Read(event.Buffer))
		return outcomeIdle
	case err == nil:
		reactor.follow(handler(text))
		return outcomeProgress
	case errors.Is(err, endpoint.ErrWouldBlock):
		reactor.wouldBlock(ctx, KindRead)
		reactor.queue.Push(Read(event.Buffer))
		return outcomeIdle
	default:
		reactor.dropConnection(ctx, KindRead, err)
		return outcomeProgress
	}
}

func (reactor *Reactor) dispatchWrite(ctx context.Context, event Event) outcome {
	handler := reactor.registry.write
	if handler == nil {
		reactor.discard(KindWrite)
		return outcomeProgress
	}
	if event.Buffer == "" {
		reactor.follow(handler(event.Buffer, 0))
		return outcomeProgress
	}

	written, err := reactor.conn.TryWrite(event.Buffer)
	switch {
	case err == nil && written == 0:
		reactor.queue.Push(event)
		return outcomeIdle
	case err == nil:
		reactor.follow(handler(event.Buffer, written))
		return outcomeProgress
	case errors.Is(err, endpoint.ErrWouldBlock):
		reactor.wouldBlock(ctx, KindWrite)
		reactor.queue.Push(event)
		return outcomeIdle
	default:
		reactor.dropConnection(ctx, KindWrite, err)
		return outcomeProgress
	}
}

func (reactor *Reactor) dispatchDirmon(event Event) outcome {
	handler := reactor.registry.dirmon
	if handler == nil {
		reactor.discard(KindDirmon)
		return outcomeProgress
	}
	reactor.follow(handler(event.Buffer))
	return outcomeProgress
}

func (reactor *Reactor) follow(next Event, ok bool) {
	if !ok {
		return
	}
	reactor.queue.Push(next)
}

func (reactor *Reactor) wouldBlock(ctx context.Context, kind Kind) {
	reactor.metrics.IncWouldBlock(kind.String())
	dirmonotel.RecordSpanEvent(ctx, wouldBlockSpanEvent, attribute.String("event.kind", kind.String()))
}

// dropConnection forgets the active stream after a hard I/O error. Reads and
// writes still queued for that stream are discarded so none of them reach a
// later client. A fresh Accept is queued only when a stream was actually
// held, so stale events never start a second accept chain.
func (reactor *Reactor) dropConnection(ctx context.Context, kind Kind, err error) {
	reactor.metrics.IncIOError(kind.String())
	wasConnected := reactor.conn.Connected()
	reactor.conn.Drop()
	if !wasConnected {
		reactor.logger.Debug("event discarded without connection", map[string]string{
			"kind":  kind.String(),
			"error": err.Error(),
		})
		return
	}

	reactor.metrics.SetConnected(false)
	dirmonotel.RecordSpanEvent(ctx, connectionDropSpanName, attribute.String("error", err.Error()))
	stale := reactor.queue.Discard(boundToStream)
	reactor.logger.Warn("connection dropped", map[string]string{
		"kind":      kind.String(),
		"error":     err.Error(),
		"discarded": strconv.Itoa(stale),
	})
	if reactor.rearmAccept {
		reactor.queue.Push(Accept())
	}
}

func boundToStream(event Event) bool {
	return event.Kind == KindRead || event.Kind == KindWrite
}

func (reactor *Reactor) discard(kind Kind) {
	reactor.logger.Warn("no handler registered; event discarded", map[string]string{
		"kind": kind.String(),
	})
}
