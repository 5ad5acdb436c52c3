package logging

import (
	"sync"
	"sync/atomic"
)

const defaultSubscriberBuffer = 64

type subscriber struct {
	minLevel Level
	entries  chan LogEntry
}

// LogHub fans entries out to live subscribers. A subscriber that falls
// behind loses entries rather than slowing the logger down.
type LogHub struct {
	mu      sync.Mutex
	nextID  uint64
	subs    map[uint64]*subscriber
	closed  bool
	dropped atomic.Uint64
}

func NewLogHub() *LogHub {
	return &LogHub{subs: make(map[uint64]*subscriber)}
}

// Subscribe delivers entries at minLevel or above until cancel is called or
// the hub is closed. An empty minLevel means every entry.
func (h *LogHub) Subscribe(minLevel Level, buffer int) (<-chan LogEntry, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	entries := make(chan LogEntry, buffer)
	if h == nil {
		close(entries)
		return entries, func() {}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(entries)
		return entries, func() {}
	}
	h.nextID++
	id := h.nextID
	h.subs[id] = &subscriber{minLevel: minLevel, entries: entries}

	var once sync.Once
	return entries, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub.entries)
			}
		})
	}
}

func (h *LogHub) Broadcast(entry LogEntry) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		if sub.minLevel != "" && levelRank(entry.Level) < levelRank(sub.minLevel) {
			continue
		}
		select {
		case sub.entries <- entry:
		default:
			h.dropped.Add(1)
		}
	}
}

// Dropped counts entries lost to full subscribers.
func (h *LogHub) Dropped() uint64 {
	if h == nil {
		return 0
	}
	return h.dropped.Load()
}

// Close ends every subscription.
func (h *LogHub) Close() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.entries)
	}
}
