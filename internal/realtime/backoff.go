package realtime

import "time"

// ConnState models the push-channel connection lifecycle explicitly so
// reconnection behavior is testable without real network timers.
type ConnState int

const (
	// Disconnected: no subscription and no attempt scheduled yet.
	Disconnected ConnState = iota
	// Connecting: a subscribe attempt is in flight.
	Connecting
	// Connected: events are flowing.
	Connected
	// Reconnecting: a previous subscription dropped; waiting out the
	// backoff before the next attempt.
	Reconnecting
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

const (
	// DefaultBackoffBase is the wait before the first reconnect attempt.
	DefaultBackoffBase = time.Second
	// DefaultBackoffCap bounds the doubling.
	DefaultBackoffCap = 30 * time.Second
)

// Backoff returns the wait before reconnect attempt n (0-based):
// base doubled per attempt, capped. The caller resets n to zero after a
// successful reconnect.
func Backoff(attempt int, base, cap time.Duration) time.Duration {
	if base <= 0 {
		base = DefaultBackoffBase
	}
	if cap <= 0 {
		cap = DefaultBackoffCap
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	if d > cap {
		return cap
	}
	return d
}
