package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dirmon/internal/logging"
	"dirmon/internal/reactor"

	"github.com/fsnotify/fsnotify"
)

type fakeWatch struct {
	callbacks map[string]func(Event)
	fail      error
	closed    int
}

func (watch *fakeWatch) Watch(path string, callback func(Event)) (Handle, error) {
	if watch.fail != nil {
		return nil, watch.fail
	}
	if watch.callbacks == nil {
		watch.callbacks = make(map[string]func(Event))
	}
	watch.callbacks[path] = callback
	return fakeHandle{watch: watch}, nil
}

type fakeHandle struct {
	watch *fakeWatch
}

func (handle fakeHandle) Close() error {
	handle.watch.closed++
	return nil
}

func drain(queue *reactor.Queue) []reactor.Event {
	var events []reactor.Event
	for {
		event, ok := queue.Pop()
		if !ok {
			return events
		}
		events = append(events, event)
	}
}

func TestBridgeFormatsNotifications(t *testing.T) {
	dir := t.TempDir()
	child := filepath.Join(dir, "sub")
	if err := os.Mkdir(child, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	file := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	watch := &fakeWatch{}
	queue := reactor.NewQueue()
	bridge := NewBridge(watch, queue, nil)
	if err := bridge.WatchDir(dir, Actions{}); err != nil {
		t.Fatalf("watch dir: %v", err)
	}
	callback := watch.callbacks[dir]
	if callback == nil {
		t.Fatalf("expected callback for %q", dir)
	}

	vanished := filepath.Join(dir, "vanished")
	callback(Event{Path: child, Op: fsnotify.Create})
	callback(Event{Path: file, Op: fsnotify.Create})
	callback(Event{Path: vanished, Op: fsnotify.Create})
	callback(Event{Path: file, Op: fsnotify.Write})
	callback(Event{Path: file, Op: fsnotify.Chmod})
	callback(Event{Path: file, Op: fsnotify.Remove})
	callback(Event{Path: child, Op: fsnotify.Rename})

	expected := []string{
		"Created DIR: " + child,
		"Created FILE: " + file,
		"Created FILE: " + vanished,
		"Removed: " + file,
		"Removed: " + child,
	}
	events := drain(queue)
	if len(events) != len(expected) {
		t.Fatalf("expected %d events, got %d: %v", len(expected), len(events), events)
	}
	for index, event := range events {
		if event.Kind != reactor.KindDirmon {
			t.Fatalf("event %d: expected dirmon kind, got %s", index, event.Kind)
		}
		if event.Buffer != expected[index] {
			t.Fatalf("event %d: expected %q, got %q", index, expected[index], event.Buffer)
		}
	}
}

func TestBridgeLogsConfiguredAction(t *testing.T) {
	dir := t.TempDir()
	buffer := logging.NewLogBuffer(16)
	logger := logging.NewLoggerWithOutput(buffer, logging.LevelInfo, nil)

	watch := &fakeWatch{}
	queue := reactor.NewQueue()
	bridge := NewBridge(watch, queue, logger)
	if err := bridge.WatchDir(dir, Actions{Create: "notify-create"}); err != nil {
		t.Fatalf("watch dir: %v", err)
	}

	path := filepath.Join(dir, "new.txt")
	watch.callbacks[dir](Event{Path: path, Op: fsnotify.Create})

	found := false
	for _, entry := range buffer.List() {
		if entry.Message == "Created FILE: "+path {
			found = true
			if entry.Context["action"] != "notify-create" {
				t.Fatalf("expected action field, got %v", entry.Context)
			}
			if entry.Context[logging.CategoryField] != "watcher" {
				t.Fatalf("expected watcher category, got %v", entry.Context)
			}
		}
	}
	if !found {
		t.Fatal("expected notification to be logged")
	}
}

func TestWatchAllSkipsInvalidDirectories(t *testing.T) {
	valid := t.TempDir()
	plain := filepath.Join(t.TempDir(), "plain.txt")
	if err := os.WriteFile(plain, []byte("x"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	missing := filepath.Join(t.TempDir(), "missing")

	buffer := logging.NewLogBuffer(16)
	logger := logging.NewLoggerWithOutput(buffer, logging.LevelInfo, nil)
	watch := &fakeWatch{}
	bridge := NewBridge(watch, reactor.NewQueue(), logger)

	active := bridge.WatchAll(map[string]Actions{
		valid:   {},
		plain:   {},
		missing: {},
	})
	if active != 1 {
		t.Fatalf("expected 1 active watch, got %d", active)
	}
	if _, ok := watch.callbacks[valid]; !ok {
		t.Fatalf("expected %q to be watched", valid)
	}

	skipped := 0
	for _, entry := range buffer.List() {
		if entry.Level == logging.LevelWarning && entry.Message == "skipping directory" {
			skipped++
		}
	}
	if skipped != 2 {
		t.Fatalf("expected 2 skip warnings, got %d", skipped)
	}

	if err := bridge.Close(); err != nil {
		t.Fatalf("close bridge: %v", err)
	}
	if watch.closed != 1 {
		t.Fatalf("expected 1 handle closed, got %d", watch.closed)
	}
}

func TestWatchAllWithNothingValid(t *testing.T) {
	watch := &fakeWatch{fail: errors.New("inotify limit")}
	bridge := NewBridge(watch, reactor.NewQueue(), nil)
	if active := bridge.WatchAll(map[string]Actions{t.TempDir(): {}}); active != 0 {
		t.Fatalf("expected no active watches, got %d", active)
	}
}

func TestBridgeWithFilesystemWatcher(t *testing.T) {
	watcher, err := New()
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer watcher.Close()

	dir := t.TempDir()
	queue := reactor.NewQueue()
	bridge := NewBridge(watcher, queue, nil)
	defer bridge.Close()
	if err := bridge.WatchDir(dir, Actions{}); err != nil {
		t.Fatalf("watch dir: %v", err)
	}

	file := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	waitForMessage(t, queue, "Created FILE: "+file)

	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	waitForMessage(t, queue, "Created DIR: "+sub)

	if err := os.Remove(file); err != nil {
		t.Fatalf("remove: %v", err)
	}
	waitForMessage(t, queue, "Removed: "+file)
}

func waitForMessage(t *testing.T, queue *reactor.Queue, message string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var seen []string
	for time.Now().Before(deadline) {
		event, ok := queue.Pop()
		if !ok {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if event.Buffer == message {
			return
		}
		seen = append(seen, event.Buffer)
	}
	t.Fatalf("timed out waiting for %q; saw %s", message, strings.Join(seen, ", "))
}

func TestBridgeReportsNestedRemovalOnce(t *testing.T) {
	cases := []struct {
		name   string
		remove func(root, sub string) error
	}{
		{name: "remove", remove: func(root, sub string) error { return os.Remove(sub) }},
		{name: "rename", remove: func(root, sub string) error { return os.Rename(sub, filepath.Join(root, "moved")) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			watcher, err := New()
			if err != nil {
				t.Fatalf("new watcher: %v", err)
			}
			defer watcher.Close()

			root := t.TempDir()
			sub := filepath.Join(root, "b")
			if err := os.Mkdir(sub, 0o755); err != nil {
				t.Fatalf("mkdir: %v", err)
			}
			queue := reactor.NewQueue()
			bridge := NewBridge(watcher, queue, nil)
			defer bridge.Close()
			if active := bridge.WatchAll(map[string]Actions{root: {}, sub: {}}); active != 2 {
				t.Fatalf("expected 2 active watches, got %d", active)
			}

			if err := tc.remove(root, sub); err != nil {
				t.Fatalf("%s: %v", tc.name, err)
			}
			waitForMessage(t, queue, "Removed: "+sub)

			time.Sleep(200 * time.Millisecond)
			for _, event := range drain(queue) {
				if event.Buffer == "Removed: "+sub {
					t.Fatalf("expected a single removal line, got another %q", event.Buffer)
				}
			}
		})
	}
}
