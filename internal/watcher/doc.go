// Package watcher turns fsnotify events into dirmon notifications.
//
// Watcher owns the fsnotify handle, routes events to per-path callbacks on a
// single goroutine and restarts the handle with backoff after errors. Bridge
// sits on top of it and pushes formatted create and remove notifications
// onto the reactor queue.
package watcher
