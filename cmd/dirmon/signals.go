package main

import (
	"context"
	"os"
	"sync/atomic"

	"dirmon/internal/logging"
)

// watchShutdownSignals cancels the run on the first signal. A second signal
// calls forceExit so a stuck shutdown can still be interrupted.
func watchShutdownSignals(logger *logging.Logger, cancel context.CancelFunc, signalCh <-chan os.Signal, forceExit func()) func() {
	if signalCh == nil {
		return func() {}
	}

	done := make(chan struct{})
	var shutdownStarted atomic.Bool

	go func() {
		for {
			select {
			case <-done:
				return
			case sig, ok := <-signalCh:
				if !ok {
					return
				}
				fields := map[string]string{}
				if sig != nil {
					fields["signal"] = sig.String()
				}
				if shutdownStarted.CompareAndSwap(false, true) {
					logger.Info("shutdown signal received", fields)
					if cancel != nil {
						cancel()
					}
					continue
				}
				logger.Warn("second signal received, exiting now", fields)
				if forceExit != nil {
					forceExit()
				}
				return
			}
		}
	}()

	return func() {
		close(done)
	}
}
