// Package store holds the single in-memory snapshot of the active list
// and fans out change notifications to subscribers.
//
// The store is deliberately dumb: it performs no validation and no
// merging, so a mutator can batch several field changes into one Clone
// and publish them as a single visible update. Invariants are the
// callers' responsibility.
package store

import (
	"sync"

	"github.com/arnobt78/linkboard/pkg/linklist"
)

// Listener is invoked synchronously, on the calling goroutine, every
// time the snapshot is replaced. The snapshot passed in must be treated
// as read-only.
type Listener func(*linklist.List)

// Store is the canonical client-side view of the active list.
// It is safe for concurrent use; Set publishes atomically from the
// caller's point of view (no subscriber observes a half-applied update).
type Store struct {
	mu        sync.Mutex
	snapshot  *linklist.List
	listeners map[int]Listener
	nextID    int
}

// New creates an empty store.
func New() *Store {
	return &Store{listeners: make(map[int]Listener)}
}

// Get returns the current snapshot, or nil if no list is loaded.
// Callers must not mutate the returned value; mutators Clone first.
func (s *Store) Get() *linklist.List {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Set replaces the snapshot and notifies every subscriber before
// returning. Listeners run outside the lock so they may call Get (but a
// listener calling Set would recurse and is the caller's bug to avoid).
func (s *Store) Set(snapshot *linklist.List) {
	s.mu.Lock()
	s.snapshot = snapshot
	notify := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		notify = append(notify, l)
	}
	s.mu.Unlock()

	for _, l := range notify {
		l(snapshot)
	}
}

// Subscribe registers a listener and returns its unsubscribe function.
// Unsubscribing is idempotent.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}
