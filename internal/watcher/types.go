package watcher

import (
	"sync"
	"time"

	"dirmon/internal/logging"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"
)

// Event represents a single filesystem change.
type Event struct {
	Path      string
	Op        fsnotify.Op
	Timestamp time.Time
}

// Handle releases watcher resources for a registration.
type Handle interface {
	Close() error
}

// Watch registers a callback for filesystem events on a path.
type Watch interface {
	Watch(path string, callback func(Event)) (Handle, error)
}

// Options controls watcher behavior.
type Options struct {
	Logger       *logging.Logger
	MaxWatches   int
	ErrorHandler func(error)
}

// Metrics is a snapshot of watcher counters.
type Metrics struct {
	ActiveWatches   int
	EventsDelivered uint64
	Errors          uint64
	RestartAttempts int
}

// Watcher is the concrete fsnotify-backed implementation.
type Watcher struct {
	watcher         *fsnotify.Watcher
	mutex           sync.Mutex
	callbacks       map[string][]callbackEntry
	events          chan fsnotify.Event
	errors          chan error
	done            chan struct{}
	closed          bool
	logger          *logging.Logger
	nextID          uint64
	activeWatches   int
	maxWatches      int
	errorHandler    func(error)
	eventsDelivered uint64
	errorCount      uint64
	goneSet         map[string]struct{}

	restartMutex    sync.Mutex
	restartTimer    *time.Timer
	restartAttempts int
	restartPolicy   backoff.BackOff
}
