package threat

import (
	"sync"
	"time"

	"github.com/haulaway/authcore/internal/authcore/domain"
)

// DefaultEventCapacity bounds the in-process audit trail. Retention is
// count-based so memory stays flat under sustained attack traffic.
const DefaultEventCapacity = 4096

// EventLog is a fixed-capacity ring of security events, shared by request
// handlers and the threat analyzer's volume heuristics.
type EventLog struct {
	mu     sync.Mutex
	events []domain.SecurityEvent
	next   int
	filled bool
}

func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = DefaultEventCapacity
	}
	return &EventLog{events: make([]domain.SecurityEvent, capacity)}
}

// Append records an event, overwriting the oldest entry once full.
func (l *EventLog) Append(e domain.SecurityEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events[l.next] = e
	l.next++
	if l.next == len(l.events) {
		l.next = 0
		l.filled = true
	}
}

// CountByIP returns how many events the IP produced since the given instant.
func (l *EventLog) CountByIP(ip string, since time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	var n int
	for _, e := range l.allLocked() {
		if e.IP == ip && e.Timestamp.After(since) {
			n++
		}
	}
	return n
}

// Recent returns up to n events, newest first.
func (l *EventLog) Recent(n int) []domain.SecurityEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	all := l.allLocked()
	if n > len(all) {
		n = len(all)
	}

	out := make([]domain.SecurityEvent, 0, n)
	for i := len(all) - 1; i >= len(all)-n; i-- {
		out = append(out, all[i])
	}
	return out
}

// allLocked returns events in insertion order. Caller holds the lock.
func (l *EventLog) allLocked() []domain.SecurityEvent {
	if !l.filled {
		return l.events[:l.next]
	}
	out := make([]domain.SecurityEvent, 0, len(l.events))
	out = append(out, l.events[l.next:]...)
	out = append(out, l.events[:l.next]...)
	return out
}
