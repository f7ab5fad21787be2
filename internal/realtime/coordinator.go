package realtime

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/arnobt78/linkboard/internal/lease"
	"github.com/arnobt78/linkboard/pkg/linklist"
)

const (
	// DefaultMetadataThrottle is the minimum spacing between refreshes
	// triggered by metadata-class events (title, visibility,
	// permissions). These are rare and user-visible, so they refresh
	// promptly but never more than once per window.
	DefaultMetadataThrottle = 2 * time.Second

	// DefaultGenericDebounce is the quiet period required after the
	// last generic event before a refresh fires. Bursts of item
	// changes collapse into one refetch.
	DefaultGenericDebounce = 5 * time.Second
)

// Suppressor reports whether a local gesture (or its grace window) is
// still in flight. Satisfied by the reorder reconciler.
type Suppressor interface {
	Suppressed(now time.Time) bool
}

// RefreshFunc fetches the canonical list state and reconciles it into
// the store. The engine supplies its shared refetch here.
type RefreshFunc func(ctx context.Context) error

// Options tunes the coordinator. Zero values take defaults.
type Options struct {
	MetadataThrottle time.Duration
	GenericDebounce  time.Duration
	ReconnectBase    time.Duration
	ReconnectCap     time.Duration
}

func (o Options) withDefaults() Options {
	if o.MetadataThrottle <= 0 {
		o.MetadataThrottle = DefaultMetadataThrottle
	}
	if o.GenericDebounce <= 0 {
		o.GenericDebounce = DefaultGenericDebounce
	}
	if o.ReconnectBase <= 0 {
		o.ReconnectBase = DefaultBackoffBase
	}
	if o.ReconnectCap <= 0 {
		o.ReconnectCap = DefaultBackoffCap
	}
	return o
}

// Coordinator consumes push events for one list and turns them into
// the minimum number of canonical refreshes. It never patches the
// store from event payloads; events are hints that the server moved.
type Coordinator struct {
	channel PushChannel
	gate    *lease.Gate
	reorder Suppressor
	refresh RefreshFunc
	opts    Options

	fatalCh chan error

	mu              sync.Mutex
	state           ConnState
	highWater       int64
	seen            bool
	deferredQueued  bool
	lastMetaRefresh time.Time
	metaTimer       *time.Timer
	genericTimer    *time.Timer
	runCtx          context.Context
}

// NewCoordinator wires a coordinator. reorder may be nil when the
// session has no reorder surface.
func NewCoordinator(channel PushChannel, gate *lease.Gate, reorder Suppressor, refresh RefreshFunc, opts Options) *Coordinator {
	return &Coordinator{
		channel: channel,
		gate:    gate,
		reorder: reorder,
		refresh: refresh,
		opts:    opts.withDefaults(),
		fatalCh: make(chan error, 1),
		state:   Disconnected,
	}
}

// State returns the current connection state.
func (c *Coordinator) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run subscribes to the list's push channel and processes events until
// ctx is cancelled or a refresh reports a permission error. Transport
// failures are absorbed by the reconnection loop and never surface to
// the caller.
func (c *Coordinator) Run(ctx context.Context, listID string) error {
	c.mu.Lock()
	c.runCtx = ctx
	c.mu.Unlock()
	defer c.stopTimers()

	attempt := 0
	for {
		if ctx.Err() != nil {
			c.setState(Disconnected)
			return nil
		}

		if attempt > 0 {
			c.setState(Reconnecting)
			wait := Backoff(attempt-1, c.opts.ReconnectBase, c.opts.ReconnectCap)
			log.Printf("[Realtime] Reconnecting to list %s in %v (attempt %d)", listID, wait, attempt)
			select {
			case <-ctx.Done():
				c.setState(Disconnected)
				return nil
			case <-time.After(wait):
			}
		} else {
			c.setState(Connecting)
		}

		sub, err := c.channel.Subscribe(ctx, listID)
		if err != nil {
			if ctx.Err() != nil {
				c.setState(Disconnected)
				return nil
			}
			log.Printf("[Realtime] Subscribe failed for list %s: %v", listID, err)
			attempt++
			continue
		}

		c.setState(Connected)
		attempt = 0

		// Catch up on anything missed while disconnected. A local
		// gesture or its grace window still owns the snapshot, so a
		// suppressed catch-up rides the deferred path like any other
		// refresh.
		c.mu.Lock()
		if c.suppressedLocked(time.Now()) {
			c.queueDeferredLocked()
			c.mu.Unlock()
		} else {
			c.mu.Unlock()
			if err := c.doRefresh(ctx); err != nil {
				sub.Close()
				c.setState(Disconnected)
				return err
			}
		}

		if err := c.consume(ctx, sub); err != nil {
			sub.Close()
			c.setState(Disconnected)
			return err
		}
		sub.Close()
		attempt = 1
	}
}

// consume drains one subscription. Returns nil when the subscription
// dies (caller reconnects) and a non-nil error only on fatal refresh
// failure or context cancellation handled upstream.
func (c *Coordinator) consume(ctx context.Context, sub *Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-c.fatalCh:
			return err
		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			log.Printf("[Realtime] Channel error: %v", err)
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := c.handleEvent(ctx, ev); err != nil {
				return err
			}
		}
	}
}

// handleEvent applies the dedupe, heartbeat, suppression, and
// throttle/debounce rules to a single event.
func (c *Coordinator) handleEvent(ctx context.Context, ev linklist.PushEvent) error {
	if ev.IsHeartbeat() {
		return nil
	}

	now := time.Now()

	c.mu.Lock()
	if c.seen && ev.Seq <= c.highWater {
		c.mu.Unlock()
		return nil
	}
	c.highWater = ev.Seq
	c.seen = true

	if c.suppressedLocked(now) {
		c.queueDeferredLocked()
		c.mu.Unlock()
		return nil
	}

	if ev.IsMetadata() {
		c.scheduleMetadataLocked(now)
		c.mu.Unlock()
		return nil
	}

	c.scheduleGenericLocked()
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) suppressedLocked(now time.Time) bool {
	if c.gate != nil && c.gate.Held() {
		return true
	}
	if c.reorder != nil && c.reorder.Suppressed(now) {
		return true
	}
	return false
}

// queueDeferredLocked registers at most one refresh to fire once
// suppression lifts. Further suppressed events coalesce into it.
func (c *Coordinator) queueDeferredLocked() {
	if c.deferredQueued {
		return
	}
	c.deferredQueued = true
	if c.gate != nil && c.gate.Held() {
		c.gate.OnIdle(c.deferredFire)
		return
	}
	// A reorder grace window can outlive its lease by a beat; poll it
	// out instead of waiting on the idle gate.
	time.AfterFunc(c.opts.GenericDebounce, c.deferredFire)
}

func (c *Coordinator) deferredFire() {
	c.mu.Lock()
	c.deferredQueued = false
	c.mu.Unlock()
	c.fireRefresh()
}

// scheduleMetadataLocked refreshes immediately when the throttle
// window has passed, otherwise arms one trailing refresh at the
// window's end.
func (c *Coordinator) scheduleMetadataLocked(now time.Time) {
	elapsed := now.Sub(c.lastMetaRefresh)
	if elapsed >= c.opts.MetadataThrottle {
		c.lastMetaRefresh = now
		go c.fireRefresh()
		return
	}
	if c.metaTimer != nil {
		return
	}
	remaining := c.opts.MetadataThrottle - elapsed
	c.metaTimer = time.AfterFunc(remaining, func() {
		c.mu.Lock()
		c.metaTimer = nil
		c.lastMetaRefresh = time.Now()
		c.mu.Unlock()
		c.fireRefresh()
	})
}

// scheduleGenericLocked arms or extends the debounce timer. The
// refresh fires only after a full quiet period.
func (c *Coordinator) scheduleGenericLocked() {
	if c.genericTimer != nil {
		c.genericTimer.Reset(c.opts.GenericDebounce)
		return
	}
	c.genericTimer = time.AfterFunc(c.opts.GenericDebounce, func() {
		c.mu.Lock()
		c.genericTimer = nil
		c.mu.Unlock()
		c.fireRefresh()
	})
}

// fireRefresh runs a refresh outside the event path. Suppression is
// re-checked because a gesture may have started since scheduling.
func (c *Coordinator) fireRefresh() {
	c.mu.Lock()
	ctx := c.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	if c.suppressedLocked(time.Now()) {
		c.queueDeferredLocked()
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if err := c.doRefresh(ctx); err != nil {
		select {
		case c.fatalCh <- err:
		default:
		}
	}
}

// doRefresh invokes the canonical refetch. Only permission errors are
// fatal; anything else is logged and retried on the next trigger.
func (c *Coordinator) doRefresh(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	if err := c.refresh(ctx); err != nil {
		if linklist.IsPermission(err) {
			log.Printf("[Realtime] Access revoked, stopping: %v", err)
			return err
		}
		log.Printf("[Realtime] Refresh failed: %v", err)
	}
	return nil
}

func (c *Coordinator) stopTimers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.metaTimer != nil {
		c.metaTimer.Stop()
		c.metaTimer = nil
	}
	if c.genericTimer != nil {
		c.genericTimer.Stop()
		c.genericTimer = nil
	}
}
