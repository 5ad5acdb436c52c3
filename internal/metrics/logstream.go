package metrics

import (
	"net/http"
	"time"

	"dirmon/internal/logging"

	"github.com/gorilla/websocket"
)

const (
	wsBufferSize   = 1024
	wsWriteTimeout = 10 * time.Second
	snapshotSize   = 50
)

// logStream upgrades to a websocket, sends recent entries and then follows
// the logger until the peer goes away. ?level= sets the minimum level.
type logStream struct {
	logger *logging.Logger
}

func (stream logStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var minLevel logging.Level
	if raw := r.URL.Query().Get("level"); raw != "" {
		level, ok := logging.ParseLevel(raw)
		if !ok {
			http.Error(w, "unknown level", http.StatusBadRequest)
			return
		}
		minLevel = level
	}

	entries, cancel := stream.logger.Subscribe(minLevel)
	defer cancel()

	upgrader := websocket.Upgrader{
		ReadBufferSize:  wsBufferSize,
		WriteBufferSize: wsBufferSize,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		stream.logger.Debug("log stream upgrade failed", map[string]string{
			"error": err.Error(),
		})
		return
	}
	defer conn.Close()

	peerGone := make(chan struct{})
	go func() {
		defer close(peerGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for _, entry := range stream.logger.Buffer().Last(snapshotSize) {
		if !atLeast(entry.Level, minLevel) {
			continue
		}
		if err := writeEntry(conn, entry); err != nil {
			return
		}
	}

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "log stream closed"),
					time.Now().Add(time.Second))
				return
			}
			if err := writeEntry(conn, entry); err != nil {
				return
			}
		case <-peerGone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeEntry(conn *websocket.Conn, entry logging.LogEntry) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(entry)
}

func atLeast(level, minLevel logging.Level) bool {
	if minLevel == "" {
		return true
	}
	return logging.LevelAtLeast(level, minLevel)
}
