package watcher

import (
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const maxGonePaths = 1024

// handleEvent delivers one fsnotify event to every matching callback. It runs
// on the watcher goroutine, so callbacks observe events in arrival order.
func (watcher *Watcher) handleEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)

	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return
	}
	// A watched path that is moved reports the rename both on itself and on
	// its parent. A path is reported gone once until it is created again.
	if gone(event.Op) {
		if _, seen := watcher.goneSet[path]; seen {
			watcher.mutex.Unlock()
			return
		}
		if len(watcher.goneSet) >= maxGonePaths {
			clear(watcher.goneSet)
		}
		watcher.goneSet[path] = struct{}{}
	} else if event.Op.Has(fsnotify.Create) {
		delete(watcher.goneSet, path)
	}
	callbacks := watcher.callbacksForPathLocked(path, event.Op)
	watcher.mutex.Unlock()

	if len(callbacks) == 0 {
		return
	}
	entry := Event{
		Path:      path,
		Op:        event.Op,
		Timestamp: time.Now().UTC(),
	}
	for _, callback := range callbacks {
		callback(entry)
		atomic.AddUint64(&watcher.eventsDelivered, 1)
	}
}
