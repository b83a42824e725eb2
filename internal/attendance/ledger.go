package attendance

import (
	"sync"
	"time"
)

// Entry is the cumulative worked time of one user.
type Entry struct {
	User     UserID
	Total    time.Duration
	Sessions int

	seq int
}

// Ledger accumulates worked time per user across sessions. Entries are
// never removed.
type Ledger struct {
	mu      sync.RWMutex
	entries map[UserID]*Entry
	next    int
}

func NewLedger() *Ledger {
	return &Ledger{entries: make(map[UserID]*Entry)}
}

func (l *Ledger) add(id UserID, d time.Duration) (total time.Duration, created bool) {
	if d < 0 {
		d = 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok {
		e = &Entry{User: id, seq: l.next}
		l.next++
		l.entries[id] = e
	}
	e.Total += d
	e.Sessions++
	return e.Total, !ok
}

// Total returns the accumulated duration of id.
func (l *Ledger) Total(id UserID) (time.Duration, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[id]
	if !ok {
		return 0, false
	}
	return e.Total, true
}

// Entries returns copies of all entries in insertion order.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	for _, e := range l.entries {
		out[e.seq] = *e
	}
	return out
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
