package reactor

import "sync"

// Queue is the FIFO mailbox shared by event producers and the dispatcher.
//
// Push is safe from any goroutine. Growth is unbounded: producers are never
// throttled, so a consumer that falls behind accumulates events in memory.
type Queue struct {
	mutex  sync.Mutex
	events []Event
}

func NewQueue() *Queue {
	return &Queue{}
}

// Push appends an event to the tail.
func (queue *Queue) Push(event Event) {
	if queue == nil {
		return
	}
	queue.mutex.Lock()
	queue.events = append(queue.events, event)
	queue.mutex.Unlock()
}

// Pop removes and returns the head, or reports false when the queue is empty.
func (queue *Queue) Pop() (Event, bool) {
	if queue == nil {
		return Event{}, false
	}
	queue.mutex.Lock()
	defer queue.mutex.Unlock()

	if len(queue.events) == 0 {
		return Event{}, false
	}
	event := queue.events[0]
	queue.events[0] = Event{}
	queue.events = queue.events[1:]
	if len(queue.events) == 0 {
		queue.events = nil
	}
	return event, true
}

func (queue *Queue) Len() int {
	if queue == nil {
		return 0
	}
	queue.mutex.Lock()
	defer queue.mutex.Unlock()
	return len(queue.events)
}

// Discard removes every queued event for which match reports true and
// returns how many were removed. Order of the remaining events is kept.
func (queue *Queue) Discard(match func(Event) bool) int {
	if queue == nil || match == nil {
		return 0
	}
	queue.mutex.Lock()
	defer queue.mutex.Unlock()

	kept := queue.events[:0]
	for _, event := range queue.events {
		if !match(event) {
			kept = append(kept, event)
		}
	}
	removed := len(queue.events) - len(kept)
	clear(queue.events[len(kept):])
	queue.events = kept
	if len(queue.events) == 0 {
		queue.events = nil
	}
	return removed
}
