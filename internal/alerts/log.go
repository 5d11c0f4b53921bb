package alerts

import (
	"sync"

	"hostpilot/internal/models"
)

// DefaultCapacity is how many events the monitor keeps.
const DefaultCapacity = 50

// Log retains the most recent events in insertion order. Overflow evicts the
// oldest entry silently.
type Log struct {
	mu     sync.Mutex
	cap    int
	events []models.AlertEvent
}

func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{cap: capacity, events: make([]models.AlertEvent, 0, capacity)}
}

func (l *Log) Append(events ...models.AlertEvent) {
	if len(events) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, events...)
	if over := len(l.events) - l.cap; over > 0 {
		kept := make([]models.AlertEvent, l.cap, l.cap)
		copy(kept, l.events[over:])
		l.events = kept
	}
}

// All returns a copy of the retained window, oldest first.
func (l *Log) All() []models.AlertEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.AlertEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Newest returns a copy of the retained window, newest first.
func (l *Log) Newest() []models.AlertEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.AlertEvent, 0, len(l.events))
	for i := len(l.events) - 1; i >= 0; i-- {
		out = append(out, l.events[i])
	}
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

func (l *Log) Clear() {
	l.mu.Lock()
	l.events = l.events[:0]
	l.mu.Unlock()
}
