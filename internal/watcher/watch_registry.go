package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

type callbackEntry struct {
	id       uint64
	callback func(Event)
	isDir    bool
}

type watchHandle struct {
	watcher *Watcher
	path    string
	id      uint64
	once    sync.Once
}

func (handle *watchHandle) Close() error {
	if handle == nil || handle.watcher == nil {
		return nil
	}
	var err error
	handle.once.Do(func() {
		err = handle.watcher.removeCallback(handle.path, handle.id)
	})
	return err
}

// Watch registers a callback for filesystem events on a path. Watching a
// directory delivers events for the directory itself and its direct children.
func (watcher *Watcher) Watch(path string, callback func(Event)) (Handle, error) {
	if watcher == nil {
		return nil, errors.New("watcher is nil")
	}
	if path == "" {
		return nil, errors.New("path is required")
	}
	if callback == nil {
		return nil, errors.New("callback is required")
	}
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return nil, errors.New("watcher is closed")
	}

	needsAdd := watcher.callbacks[path] == nil
	if needsAdd && watcher.activeWatches >= watcher.maxWatches {
		watcher.mutex.Unlock()
		return nil, ErrMaxWatchesExceeded
	}
	watcher.nextID++
	entry := callbackEntry{callback: callback, id: watcher.nextID, isDir: info.IsDir()}
	watcher.callbacks[path] = append(watcher.callbacks[path], entry)
	if needsAdd {
		watcher.activeWatches++
	}
	activeCount := watcher.activeWatches
	source := watcher.watcher
	watcher.mutex.Unlock()

	if needsAdd {
		if err := source.Add(path); err != nil {
			watcher.dropCallback(path, entry.id)
			watcher.logWarn("watch add failed", map[string]string{
				"path":  path,
				"error": err.Error(),
			})
			return nil, err
		}
		watcher.logDebug("watch added", path, activeCount)
	}

	return &watchHandle{watcher: watcher, path: path, id: entry.id}, nil
}

func (watcher *Watcher) removeCallback(path string, id uint64) error {
	if watcher == nil {
		return nil
	}

	watcher.mutex.Lock()
	shouldRemove := watcher.dropCallbackLocked(path, id)
	activeCount := watcher.activeWatches
	source := watcher.watcher
	closed := watcher.closed
	watcher.mutex.Unlock()

	if shouldRemove && !closed && source != nil {
		if err := source.Remove(path); err != nil {
			watcher.logWarn("watch remove failed", map[string]string{
				"path":  path,
				"error": err.Error(),
			})
			return err
		}
		watcher.logDebug("watch removed", path, activeCount)
	}
	return nil
}

func (watcher *Watcher) dropCallback(path string, id uint64) {
	if watcher == nil {
		return
	}
	watcher.mutex.Lock()
	watcher.dropCallbackLocked(path, id)
	watcher.mutex.Unlock()
}

// dropCallbackLocked reports whether the last callback for path was removed.
func (watcher *Watcher) dropCallbackLocked(path string, id uint64) bool {
	callbacks := watcher.callbacks[path]
	if len(callbacks) == 0 {
		return false
	}
	for index, candidate := range callbacks {
		if candidate.id == id {
			callbacks = append(callbacks[:index], callbacks[index+1:]...)
			break
		}
	}
	if len(callbacks) > 0 {
		watcher.callbacks[path] = callbacks
		return false
	}
	delete(watcher.callbacks, path)
	if watcher.activeWatches > 0 {
		watcher.activeWatches--
	}
	return true
}

// callbacksForPathLocked collects callbacks registered on path itself and
// directory callbacks registered on its parent. When path goes away and its
// parent is watched, only the parent hears about it.
func (watcher *Watcher) callbacksForPathLocked(path string, op fsnotify.Op) []func(Event) {
	var parentCallbacks []func(Event)
	if parent := filepath.Dir(path); parent != path {
		for _, entry := range watcher.callbacks[parent] {
			if entry.isDir {
				parentCallbacks = append(parentCallbacks, entry.callback)
			}
		}
	}
	if len(parentCallbacks) > 0 && gone(op) {
		return parentCallbacks
	}

	callbacks := make([]func(Event), 0, len(watcher.callbacks[path])+len(parentCallbacks))
	for _, entry := range watcher.callbacks[path] {
		callbacks = append(callbacks, entry.callback)
	}
	return append(callbacks, parentCallbacks...)
}

func gone(op fsnotify.Op) bool {
	return op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename)
}
