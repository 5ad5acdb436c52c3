package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"dirmon/internal/logging"
	"dirmon/internal/reactor"

	"github.com/fsnotify/fsnotify"
)

// Pusher accepts events from the watcher goroutine.
type Pusher interface {
	Push(event reactor.Event)
}

// Actions holds the configured action string per notification kind. Empty
// strings mean no action.
type Actions struct {
	Create string
	Remove string
}

// Bridge subscribes directories and pushes one Dirmon event per create or
// remove notification.
type Bridge struct {
	watch   Watch
	queue   Pusher
	logger  *logging.Logger
	mutex   sync.Mutex
	handles []Handle
}

func NewBridge(watch Watch, queue Pusher, logger *logging.Logger) *Bridge {
	if logger == nil {
		logger = logging.NewLoggerWithOutput(logging.NewLogBuffer(logging.DefaultBufferSize), logging.LevelInfo, nil)
	}
	return &Bridge{
		watch:  watch,
		queue:  queue,
		logger: logger.With(map[string]string{logging.CategoryField: "watcher"}),
	}
}

// WatchDir subscribes non-recursively to dir.
func (bridge *Bridge) WatchDir(dir string, actions Actions) error {
	if bridge == nil || bridge.watch == nil {
		return errors.New("bridge has no watcher")
	}
	if bridge.queue == nil {
		return errors.New("bridge has no queue")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	dir = filepath.Clean(dir)
	handle, err := bridge.watch.Watch(dir, func(event Event) {
		bridge.forward(dir, actions, event)
	})
	if err != nil {
		return err
	}

	bridge.mutex.Lock()
	bridge.handles = append(bridge.handles, handle)
	bridge.mutex.Unlock()
	bridge.logger.Info("watching directory", map[string]string{
		"path": dir,
	})
	return nil
}

// WatchAll subscribes every directory in dirs, in path order. Failures are
// logged and skipped. It returns the number of active watches.
func (bridge *Bridge) WatchAll(dirs map[string]Actions) int {
	paths := make([]string, 0, len(dirs))
	for path := range dirs {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	active := 0
	for _, path := range paths {
		if err := bridge.WatchDir(path, dirs[path]); err != nil {
			bridge.logger.Warn("skipping directory", map[string]string{
				"path":  path,
				"error": err.Error(),
			})
			continue
		}
		active++
	}
	if active == 0 {
		bridge.logger.Warn("no directories are being watched", map[string]string{
			"configured": strconv.Itoa(len(dirs)),
		})
	}
	return active
}

// Close releases every subscription made through the bridge.
func (bridge *Bridge) Close() error {
	if bridge == nil {
		return nil
	}
	bridge.mutex.Lock()
	handles := bridge.handles
	bridge.handles = nil
	bridge.mutex.Unlock()

	var errs []error
	for _, handle := range handles {
		if err := handle.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (bridge *Bridge) forward(dir string, actions Actions, event Event) {
	message, action, ok := describe(event, actions)
	if !ok {
		return
	}
	fields := map[string]string{
		"dir": dir,
	}
	if action != "" {
		fields["action"] = action
	}
	bridge.logger.Info(message, fields)
	bridge.queue.Push(reactor.Dirmon(message))
}

// describe formats the notification for event and picks the matching
// configured action. Write and chmod events are not reported.
func describe(event Event, actions Actions) (string, string, bool) {
	switch {
	case event.Op.Has(fsnotify.Create):
		kind := "FILE"
		if info, err := os.Stat(event.Path); err == nil && info.IsDir() {
			kind = "DIR"
		}
		return fmt.Sprintf("Created %s: %s", kind, event.Path), actions.Create, true
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		return "Removed: " + event.Path, actions.Remove, true
	default:
		return "", "", false
	}
}
