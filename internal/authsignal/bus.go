// Package authsignal carries "the server rejected this credential" signals
// from HTTP callers to whoever owns the session.
package authsignal

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Signal describes one rejected request.
type Signal struct {
	Status int
	Method string
	Path   string
	At     time.Time
}

// Unauthorized reports whether the signal is a 401.
func (s Signal) Unauthorized() bool {
	return s.Status == http.StatusUnauthorized
}

// Subscriber receives signals.
type Subscriber func(Signal)

// Bus delivers each published signal synchronously to every subscriber
// registered at the time of publishing.
type Bus struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]subscription
	seq  uint64
}

type subscription struct {
	seq uint64
	fn  Subscriber
}

// NewBus returns a bus with no subscribers.
func NewBus() *Bus {
	return &Bus{subs: make(map[uuid.UUID]subscription)}
}

// Subscribe registers fn and returns a function that removes it. The
// returned function may be called more than once.
func (b *Bus) Subscribe(fn Subscriber) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	id := uuid.New()

	b.mu.Lock()
	b.seq++
	b.subs[id] = subscription{seq: b.seq, fn: fn}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish delivers s to a snapshot of current subscribers in subscription
// order. Subscribers may subscribe or unsubscribe while being called.
func (b *Bus) Publish(s Signal) {
	if s.At.IsZero() {
		s.At = time.Now()
	}

	b.mu.RLock()
	snapshot := make([]subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		snapshot = append(snapshot, sub)
	}
	b.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].seq < snapshot[j].seq })

	for _, sub := range snapshot {
		sub.fn(s)
	}
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
