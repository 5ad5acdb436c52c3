package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestWatcherDeliversChildCreate(t *testing.T) {
	watcher, err := New()
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer watcher.Close()

	dir := t.TempDir()
	events := make(chan Event, 8)
	handle, err := watcher.Watch(dir, func(event Event) {
		select {
		case events <- event:
		default:
		}
	})
	if err != nil {
		t.Fatalf("watch dir: %v", err)
	}
	defer handle.Close()

	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("update"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	event, ok := waitForPath(events, path)
	if !ok {
		t.Fatal("timed out waiting for create event")
	}
	if !event.Op.Has(fsnotify.Create) {
		t.Fatalf("expected create op, got %s", event.Op)
	}
	if event.Timestamp.IsZero() {
		t.Fatal("expected event timestamp")
	}
}

func TestWatcherDeliversChildRemove(t *testing.T) {
	watcher, err := New()
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer watcher.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "gone.txt")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	events := make(chan Event, 8)
	handle, err := watcher.Watch(dir, func(event Event) {
		if event.Op.Has(fsnotify.Remove) {
			select {
			case events <- event:
			default:
			}
		}
	})
	if err != nil {
		t.Fatalf("watch dir: %v", err)
	}
	defer handle.Close()

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove file: %v", err)
	}

	event, ok := waitForPath(events, path)
	if !ok {
		t.Fatal("timed out waiting for remove event")
	}
	if event.Path != path {
		t.Fatalf("expected path %q, got %q", path, event.Path)
	}
}

func TestWatcherIgnoresGrandchildren(t *testing.T) {
	watcher, err := New()
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer watcher.Close()

	dir := t.TempDir()
	nested := filepath.Join(dir, "nested")
	if err := os.Mkdir(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	events := make(chan Event, 8)
	handle, err := watcher.Watch(dir, func(event Event) {
		select {
		case events <- event:
		default:
		}
	})
	if err != nil {
		t.Fatalf("watch dir: %v", err)
	}
	defer handle.Close()

	deep := filepath.Join(nested, "deep.txt")
	if err := os.WriteFile(deep, []byte("x"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	select {
	case event := <-events:
		if event.Path == deep {
			t.Fatalf("unexpected event for nested path %q", event.Path)
		}
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatchHandleCloseReleasesWatch(t *testing.T) {
	watcher, err := New()
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer watcher.Close()

	dir := t.TempDir()
	handle, err := watcher.Watch(dir, func(Event) {})
	if err != nil {
		t.Fatalf("watch dir: %v", err)
	}
	if got := watcher.Metrics().ActiveWatches; got != 1 {
		t.Fatalf("expected 1 active watch, got %d", got)
	}
	if err := handle.Close(); err != nil {
		t.Fatalf("close handle: %v", err)
	}
	if err := handle.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if got := watcher.Metrics().ActiveWatches; got != 0 {
		t.Fatalf("expected 0 active watches, got %d", got)
	}
}

func TestWatchRejectsInvalidInput(t *testing.T) {
	watcher, err := New()
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer watcher.Close()

	if _, err := watcher.Watch("", func(Event) {}); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := watcher.Watch(t.TempDir(), nil); err == nil {
		t.Fatal("expected error for nil callback")
	}
	missing := filepath.Join(t.TempDir(), "missing")
	if _, err := watcher.Watch(missing, func(Event) {}); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestWatchEnforcesMaxWatches(t *testing.T) {
	watcher, err := NewWithOptions(Options{MaxWatches: 1})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer watcher.Close()

	first := t.TempDir()
	if _, err := watcher.Watch(first, func(Event) {}); err != nil {
		t.Fatalf("first watch: %v", err)
	}
	if _, err := watcher.Watch(first, func(Event) {}); err != nil {
		t.Fatalf("second callback on same path: %v", err)
	}
	if _, err := watcher.Watch(t.TempDir(), func(Event) {}); !errors.Is(err, ErrMaxWatchesExceeded) {
		t.Fatalf("expected ErrMaxWatchesExceeded, got %v", err)
	}
}

func TestWatchAfterCloseFails(t *testing.T) {
	watcher, err := New()
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if err := watcher.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := watcher.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := watcher.Watch(t.TempDir(), func(Event) {}); err == nil {
		t.Fatal("expected error after close")
	}
}

func waitForPath(events <-chan Event, path string) (Event, bool) {
	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-events:
			if event.Path == path {
				return event, true
			}
		case <-deadline:
			return Event{}, false
		}
	}
}

func TestWatcherRemovalOfWatchedChildGoesToParentOnly(t *testing.T) {
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

	var fromRoot, fromSub int
	rootHandle, err := watcher.Watch(root, func(Event) { fromRoot++ })
	if err != nil {
		t.Fatalf("watch root: %v", err)
	}
	defer rootHandle.Close()
	subHandle, err := watcher.Watch(sub, func(Event) { fromSub++ })
	if err != nil {
		t.Fatalf("watch sub: %v", err)
	}
	defer subHandle.Close()

	watcher.handleEvent(fsnotify.Event{Name: sub, Op: fsnotify.Chmod})
	if fromRoot != 1 || fromSub != 1 {
		t.Fatalf("expected chmod on both watches, got root=%d sub=%d", fromRoot, fromSub)
	}

	watcher.handleEvent(fsnotify.Event{Name: sub, Op: fsnotify.Rename})
	watcher.handleEvent(fsnotify.Event{Name: filepath.Join(root, "c"), Op: fsnotify.Create})
	watcher.handleEvent(fsnotify.Event{Name: sub, Op: fsnotify.Rename})
	if fromRoot != 3 || fromSub != 1 {
		t.Fatalf("expected one rename on root only, got root=%d sub=%d", fromRoot, fromSub)
	}

	watcher.handleEvent(fsnotify.Event{Name: sub, Op: fsnotify.Create})
	watcher.handleEvent(fsnotify.Event{Name: sub, Op: fsnotify.Remove})
	if fromRoot != 5 || fromSub != 2 {
		t.Fatalf("expected recreate then remove reported again, got root=%d sub=%d", fromRoot, fromSub)
	}
}
