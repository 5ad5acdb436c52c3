package logging

import (
	"sync"

	"dirmon/internal/buffer"
)

// LogBuffer keeps the most recent entries in memory so they can be served
// alongside metrics.
type LogBuffer struct {
	mu      sync.Mutex
	entries *buffer.Ring[LogEntry]
}

func NewLogBuffer(size int) *LogBuffer {
	return &LogBuffer{
		entries: buffer.NewRing[LogEntry](size),
	}
}

func (b *LogBuffer) Add(entry LogEntry) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries.Add(entry)
}

func (b *LogBuffer) List() []LogEntry {
	return b.Last(0)
}

// Last returns up to n recent entries, oldest first.
func (b *LogBuffer) Last(n int) []LogEntry {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entries.Last(n)
}
