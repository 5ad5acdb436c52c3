package watcher

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"
)

// newRestartPolicy doubles the delay from restartBaseDelay and stops after
// maxRestartAttempts consecutive failures.
func newRestartPolicy() backoff.BackOff {
	policy := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(restartBaseDelay),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxInterval(restartBaseDelay<<maxRestartAttempts),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithMaxRetries(policy, maxRestartAttempts)
}

func (watcher *Watcher) handleError(err error) {
	if err == nil {
		return
	}
	atomic.AddUint64(&watcher.errorCount, 1)
	watcher.logWarn("watcher error", map[string]string{
		"error": err.Error(),
	})
	watcher.scheduleRestart(err)
}

func (watcher *Watcher) isClosed() bool {
	watcher.mutex.Lock()
	defer watcher.mutex.Unlock()
	return watcher.closed
}

// scheduleRestart arms a single pending restart. Once the policy is spent the
// error goes to the ErrorHandler and the watcher stays down.
func (watcher *Watcher) scheduleRestart(cause error) {
	if watcher == nil || watcher.isClosed() {
		return
	}
	watcher.restartMutex.Lock()
	if watcher.restartTimer != nil {
		watcher.restartMutex.Unlock()
		return
	}
	delay := watcher.restartPolicy.NextBackOff()
	if delay == backoff.Stop {
		handler := watcher.errorHandler
		watcher.restartMutex.Unlock()
		watcher.logWarn("watcher restart abandoned", map[string]string{
			"attempts": strconv.Itoa(maxRestartAttempts),
		})
		if handler != nil {
			handler(cause)
		}
		return
	}
	watcher.restartAttempts++
	watcher.restartTimer = time.AfterFunc(delay, watcher.performRestart)
	watcher.restartMutex.Unlock()
}

func (watcher *Watcher) performRestart() {
	if watcher == nil {
		return
	}
	err := watcher.restart()

	watcher.restartMutex.Lock()
	watcher.restartTimer = nil
	if err == nil {
		watcher.restartAttempts = 0
		watcher.restartPolicy.Reset()
	}
	watcher.restartMutex.Unlock()

	if err != nil {
		watcher.logWarn("watcher restart failed", map[string]string{
			"error": err.Error(),
		})
		watcher.scheduleRestart(err)
	}
}

// restart opens a new fsnotify handle, subscribes every registered path on
// it and only then retires the old handle.
func (watcher *Watcher) restart() error {
	paths, ok := watcher.registeredPaths()
	if !ok {
		return nil
	}

	replacement, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, path := range paths {
		if err := replacement.Add(path); err != nil {
			watcher.logWarn("watch lost during restart", map[string]string{
				"path":  path,
				"error": err.Error(),
			})
		}
	}

	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		_ = replacement.Close()
		return nil
	}
	retired := watcher.watcher
	watcher.watcher = replacement
	watcher.mutex.Unlock()

	watcher.startForwarder(replacement)
	if retired != nil {
		_ = retired.Close()
	}
	watcher.logger.Info("watcher restarted", map[string]string{
		"paths": strconv.Itoa(len(paths)),
	})
	return nil
}

// registeredPaths reports false once the watcher is closed.
func (watcher *Watcher) registeredPaths() ([]string, bool) {
	watcher.mutex.Lock()
	defer watcher.mutex.Unlock()
	if watcher.closed {
		return nil, false
	}
	paths := make([]string, 0, len(watcher.callbacks))
	for path := range watcher.callbacks {
		paths = append(paths, path)
	}
	return paths, true
}
