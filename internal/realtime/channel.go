// Package realtime keeps the local snapshot fresh: it subscribes to a
// list's push channel, reconnects with exponential backoff when the
// channel drops, and decides whether and when an inbound invalidation
// may trigger a canonical refetch. Refreshes are suppressed while a
// local write, drag gesture, or reorder grace window owns the canonical
// order; suppressed events coalesce into a single deferred refresh.
package realtime

import (
	"context"
	"sync"

	"github.com/arnobt78/linkboard/pkg/linklist"
)

// PushChannel is the transport behind the realtime feed. Adapters exist
// for Redis Pub/Sub and WebSocket; tests use an in-memory fake.
type PushChannel interface {
	// Subscribe opens a subscription to one list's event stream.
	// The caller must Close the subscription when done; cancelling ctx
	// closes it as well.
	Subscribe(ctx context.Context, listID string) (*Subscription, error)
}

// Subscription is an active push-channel subscription.
// Events and Errors are closed when the subscription ends. Errors are
// non-fatal (skipped messages); the subscription ending is signalled by
// the Events channel closing.
type Subscription struct {
	events <-chan linklist.PushEvent
	errors <-chan error
	cancel func()
	once   sync.Once
}

// NewSubscription wraps adapter-owned channels into a Subscription.
func NewSubscription(events <-chan linklist.PushEvent, errors <-chan error, cancel func()) *Subscription {
	return &Subscription{events: events, errors: errors, cancel: cancel}
}

// Events returns the channel of push events.
func (s *Subscription) Events() <-chan linklist.PushEvent {
	return s.events
}

// Errors returns the channel of non-fatal subscription errors.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements
// io.Closer. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}
