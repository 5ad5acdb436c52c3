package app

import (
	"strconv"

	"dirmon/internal/command"
	"dirmon/internal/logging"
	"dirmon/internal/reactor"
)

// Connection reports whether a client stream is currently held.
type Connection interface {
	Connected() bool
}

// Pusher queues extra events beyond the single follow-up a handler returns.
type Pusher interface {
	Push(event reactor.Event)
}

type HandlerOptions struct {
	Logger *logging.Logger
	// Greeting, when set, is written as one line to every new client.
	Greeting string
	// Echo writes non-command client input back to the client.
	Echo bool
}

// Handlers is the default event policy: keep a read armed while a client
// is connected, forward notifications as lines and stop on QUIT.
//
// At most one Write is in flight. Lines produced while it is pending wait in
// the outbox and go out, in order, once the current buffer is fully written,
// so lines never interleave on the wire. Handlers are called only from the
// dispatching goroutine and need no locking.
type Handlers struct {
	conn     Connection
	queue    Pusher
	logger   *logging.Logger
	greeting string
	echo     bool
	writing  bool
	outbox   []string
}

func NewHandlers(conn Connection, queue Pusher, options HandlerOptions) *Handlers {
	logger := options.Logger
	if logger == nil {
		logger = logging.NewLoggerWithOutput(logging.NewLogBuffer(logging.DefaultBufferSize), logging.LevelInfo, nil)
	}
	return &Handlers{
		conn:     conn,
		queue:    queue,
		logger:   logger.With(map[string]string{logging.CategoryField: "app"}),
		greeting: options.Greeting,
		echo:     options.Echo,
	}
}

// OnAccept starts a fresh session. Anything left over from a previous client
// is forgotten.
func (handlers *Handlers) OnAccept() (reactor.Event, bool) {
	if len(handlers.outbox) > 0 {
		handlers.logger.Debug("outbox cleared for new client", map[string]string{
			"lines": strconv.Itoa(len(handlers.outbox)),
		})
	}
	handlers.writing = false
	handlers.outbox = nil
	handlers.queue.Push(reactor.Read(""))
	if handlers.greeting == "" {
		return reactor.Event{}, false
	}
	return handlers.send(handlers.greeting + "\n")
}

func (handlers *Handlers) OnRead(text string) (reactor.Event, bool) {
	if event, ok := command.Interpret(text); ok {
		handlers.logger.Info("quit command received", nil)
		return event, true
	}
	handlers.logger.Debug("client input ignored", map[string]string{
		"bytes": strconv.Itoa(len(text)),
	})
	if handlers.echo {
		if event, ok := handlers.send(text); ok {
			handlers.queue.Push(event)
		}
	}
	return reactor.Read(""), true
}

func (handlers *Handlers) OnWrite(buffer string, written int) (reactor.Event, bool) {
	if written < len(buffer) {
		return reactor.Write(buffer[written:]), true
	}
	if len(handlers.outbox) == 0 {
		handlers.writing = false
		return reactor.Event{}, false
	}
	next := handlers.outbox[0]
	handlers.outbox[0] = ""
	handlers.outbox = handlers.outbox[1:]
	return reactor.Write(next), true
}

func (handlers *Handlers) OnDirmon(message string) (reactor.Event, bool) {
	if handlers.conn == nil || !handlers.conn.Connected() {
		handlers.logger.Debug("no client connected; notification not sent", map[string]string{
			"message": message,
		})
		return reactor.Event{}, false
	}
	return handlers.send(message + "\n")
}

// send returns the Write for buffer, or holds buffer in the outbox while
// another write is still in flight.
func (handlers *Handlers) send(buffer string) (reactor.Event, bool) {
	if handlers.writing {
		handlers.outbox = append(handlers.outbox, buffer)
		return reactor.Event{}, false
	}
	handlers.writing = true
	return reactor.Write(buffer), true
}
