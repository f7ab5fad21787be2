// Package lease implements the cooperative gate that serializes "who owns
// the canonical order right now".
//
// Instead of loose boolean flags ("a local write is in flight", "a drag
// is in progress"), components acquire an explicit lease carrying an
// owner id, a kind, and an expiry. Anything that wants to know "may I
// refresh from the server now" inspects lease state. Every lease has a
// bounded TTL with an auto-release timer, so a flow that dies mid-write
// can never wedge remote-driven refreshes permanently.
package lease

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind labels what a lease protects.
type Kind string

const (
	// KindWrite covers a single optimistic write in flight.
	KindWrite Kind = "write"

	// KindReorder covers a reorder gesture and its grace window.
	KindReorder Kind = "reorder"
)

// Lease is one granted hold on the gate.
type Lease struct {
	Owner   string
	Kind    Kind
	Expires time.Time

	gate  *Gate
	timer *time.Timer
	once  sync.Once
}

// Release returns the lease to the gate. Safe to call multiple times
// and after expiry.
func (l *Lease) Release() {
	l.once.Do(func() {
		if l.timer != nil {
			l.timer.Stop()
		}
		l.gate.release(l.Owner)
	})
}

// Extend pushes the lease's expiry out to now+ttl. A released or
// already-expired lease cannot be extended; returns whether the lease is
// still live afterward.
func (l *Lease) Extend(ttl time.Duration) bool {
	return l.gate.extend(l, ttl)
}

// Gate tracks the set of live leases for one list.
type Gate struct {
	mu     sync.Mutex
	leases map[string]*Lease
	onIdle []func()
}

// NewGate creates an idle gate.
func NewGate() *Gate {
	return &Gate{leases: make(map[string]*Lease)}
}

// Acquire grants a lease of the given kind for ttl. The lease
// auto-releases when the TTL elapses. Multiple leases may coexist (two
// quick toggles can overlap); the gate is only idle when none are live.
func (g *Gate) Acquire(kind Kind, ttl time.Duration) *Lease {
	g.mu.Lock()
	defer g.mu.Unlock()

	l := &Lease{
		Owner:   uuid.New().String(),
		Kind:    kind,
		Expires: time.Now().Add(ttl),
		gate:    g,
	}
	g.leases[l.Owner] = l
	l.timer = time.AfterFunc(ttl, l.Release)
	return l
}

// Held reports whether any live lease exists.
func (g *Gate) Held() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expireLocked()
	return len(g.leases) > 0
}

// HeldBy reports whether a live lease of the given kind exists.
func (g *Gate) HeldBy(kind Kind) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expireLocked()
	for _, l := range g.leases {
		if l.Kind == kind {
			return true
		}
	}
	return false
}

// OnIdle registers a one-shot callback to run as soon as the gate has no
// live leases. If the gate is already idle, the callback runs
// immediately on the calling goroutine; otherwise it runs on the
// goroutine that releases the last lease.
func (g *Gate) OnIdle(fn func()) {
	g.mu.Lock()
	g.expireLocked()
	if len(g.leases) == 0 {
		g.mu.Unlock()
		fn()
		return
	}
	g.onIdle = append(g.onIdle, fn)
	g.mu.Unlock()
}

func (g *Gate) release(owner string) {
	g.mu.Lock()
	delete(g.leases, owner)
	g.expireLocked()
	var pending []func()
	if len(g.leases) == 0 && len(g.onIdle) > 0 {
		pending = g.onIdle
		g.onIdle = nil
	}
	g.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

func (g *Gate) extend(l *Lease, ttl time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	live, ok := g.leases[l.Owner]
	if !ok || live != l {
		return false
	}
	l.Expires = time.Now().Add(ttl)
	if l.timer != nil {
		l.timer.Stop()
	}
	l.timer = time.AfterFunc(ttl, l.Release)
	return true
}

// expireLocked lazily drops leases whose expiry passed before their
// timer fired. Called with the lock held.
func (g *Gate) expireLocked() {
	now := time.Now()
	for owner, l := range g.leases {
		if now.After(l.Expires) {
			delete(g.leases, owner)
		}
	}
}
