// Package endpoint owns the local listening socket and the single client
// stream accepted from it.
//
// Every operation is an attempt bounded by a short poll window. When the
// window passes without progress the attempt reports ErrWouldBlock and the
// caller is expected to retry later. The endpoint is not safe for concurrent
// use; it belongs to the goroutine that dispatches events.
package endpoint

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"dirmon/internal/logging"
)

const (
	DefaultPollWindow = time.Millisecond
	readChunkSize     = 4096
)

var (
	ErrWouldBlock = errors.New("operation would block")
	ErrNoStream   = errors.New("no client connected")
	ErrBusy       = errors.New("client already connected")
	ErrClosed     = errors.New("endpoint is closed")
)

// Options controls endpoint behavior.
type Options struct {
	PollWindow time.Duration
	Logger     *logging.Logger
}

// Endpoint wraps a Unix stream listener and at most one accepted stream.
type Endpoint struct {
	listener   *net.UnixListener
	path       string
	stream     *net.UnixConn
	pollWindow time.Duration
	scratch    []byte
	logger     *logging.Logger
	closed     bool
}

// Listen resolves channel to a socket path and starts listening on it. A
// stale socket left by a previous run is removed first.
func Listen(channel string, options Options) (*Endpoint, error) {
	path, err := ResolvePath(channel)
	if err != nil {
		return nil, err
	}
	if err := removeStaleSocket(path); err != nil {
		return nil, err
	}

	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}

	pollWindow := options.PollWindow
	if pollWindow <= 0 {
		pollWindow = DefaultPollWindow
	}
	logger := options.Logger
	if logger == nil {
		logger = logging.NewLoggerWithOutput(logging.NewLogBuffer(logging.DefaultBufferSize), logging.LevelInfo, nil)
	}

	endpoint := &Endpoint{
		listener:   listener,
		path:       path,
		pollWindow: pollWindow,
		scratch:    make([]byte, readChunkSize),
		logger:     logger.With(map[string]string{logging.CategoryField: "endpoint"}),
	}
	endpoint.logger.Info("channel opened", map[string]string{
		"path": path,
	})
	return endpoint, nil
}

// Path returns the filesystem path of the listening socket.
func (endpoint *Endpoint) Path() string {
	if endpoint == nil {
		return ""
	}
	return endpoint.path
}

// Connected reports whether a client stream is held.
func (endpoint *Endpoint) Connected() bool {
	return endpoint != nil && endpoint.stream != nil
}

// TryAccept takes a pending connection if one arrives within the poll window.
func (endpoint *Endpoint) TryAccept() error {
	if endpoint == nil || endpoint.closed {
		return ErrClosed
	}
	if endpoint.stream != nil {
		return ErrBusy
	}
	if err := endpoint.listener.SetDeadline(time.Now().Add(endpoint.pollWindow)); err != nil {
		return fmt.Errorf("set accept deadline: %w", err)
	}
	stream, err := endpoint.listener.AcceptUnix()
	if err != nil {
		if isTimeout(err) {
			return ErrWouldBlock
		}
		return err
	}
	endpoint.stream = stream
	endpoint.logger.Debug("stream accepted", map[string]string{
		"path": endpoint.path,
	})
	return nil
}

// TryRead returns whatever bytes arrive within the poll window. Each call
// replaces the previous read; nothing is accumulated between calls.
func (endpoint *Endpoint) TryRead() (string, error) {
	if endpoint == nil || endpoint.stream == nil {
		return "", ErrNoStream
	}
	if err := endpoint.stream.SetReadDeadline(time.Now().Add(endpoint.pollWindow)); err != nil {
		return "", fmt.Errorf("set read deadline: %w", err)
	}
	n, err := endpoint.stream.Read(endpoint.scratch)
	if n > 0 {
		return string(endpoint.scratch[:n]), nil
	}
	if err == nil {
		return "", nil
	}
	if isTimeout(err) {
		return "", ErrWouldBlock
	}
	return "", err
}

// TryWrite writes as much of buffer as the poll window allows and reports how
// many bytes were written. A partial write is not an error.
func (endpoint *Endpoint) TryWrite(buffer string) (int, error) {
	if endpoint == nil || endpoint.stream == nil {
		return 0, ErrNoStream
	}
	if buffer == "" {
		return 0, nil
	}
	if err := endpoint.stream.SetWriteDeadline(time.Now().Add(endpoint.pollWindow)); err != nil {
		return 0, fmt.Errorf("set write deadline: %w", err)
	}
	n, err := endpoint.stream.Write([]byte(buffer))
	if n > 0 {
		return n, nil
	}
	if err == nil {
		return 0, nil
	}
	if isTimeout(err) {
		return 0, ErrWouldBlock
	}
	return 0, err
}

// Drop closes and forgets the current stream. It is a no-op without one.
func (endpoint *Endpoint) Drop() {
	if endpoint == nil || endpoint.stream == nil {
		return
	}
	if err := endpoint.stream.Close(); err != nil {
		endpoint.logger.Debug("stream close failed", map[string]string{
			"error": err.Error(),
		})
	}
	endpoint.stream = nil
}

// Close drops the stream, stops listening and unlinks the socket file.
func (endpoint *Endpoint) Close() error {
	if endpoint == nil || endpoint.closed {
		return nil
	}
	endpoint.closed = true
	endpoint.Drop()
	err := endpoint.listener.Close()
	if removeErr := os.Remove(endpoint.path); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
		err = errors.Join(err, removeErr)
	}
	return err
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
