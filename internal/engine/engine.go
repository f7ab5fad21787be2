// Package engine composes the linkboard client session: one store, one
// gate, one remote client, and the mutation, reorder, realtime, and
// import machinery wired around them.
package engine

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/arnobt78/linkboard/internal/config"
	"github.com/arnobt78/linkboard/internal/importer"
	"github.com/arnobt78/linkboard/internal/kvcache"
	"github.com/arnobt78/linkboard/internal/lease"
	"github.com/arnobt78/linkboard/internal/mutator"
	"github.com/arnobt78/linkboard/internal/ordercache"
	"github.com/arnobt78/linkboard/internal/realtime"
	"github.com/arnobt78/linkboard/internal/remote"
	"github.com/arnobt78/linkboard/internal/reorder"
	"github.com/arnobt78/linkboard/internal/store"
	"github.com/arnobt78/linkboard/pkg/linklist"
)

// Engine is one user's session against one shared list.
type Engine struct {
	cfg *config.Config

	rdb     *redis.Client
	st      *store.Store
	gate    *lease.Gate
	orders  *ordercache.OrderCache
	remote  remote.Store
	meta    *remote.CachedMetadata
	mut     *mutator.Mutator
	rec     *reorder.Reconciler
	coord   *realtime.Coordinator
	channel realtime.PushChannel

	mu     sync.Mutex
	slug   string
	listID string
}

// New wires an engine from configuration. userID identifies the local
// user for capability checks on the fetched list.
func New(cfg *config.Config, userID string) (*Engine, error) {
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)

	slow, err := kvcache.NewRedisFromClient(rdb, cfg.Redis.Namespace)
	if err != nil {
		rdb.Close()
		return nil, err
	}
	tiered := kvcache.NewTiered(kvcache.NewMemory(), slow)
	orders := ordercache.New(tiered, ordercache.DefaultTTL)

	rs := remote.NewHTTPStore(remote.HTTPStoreOptions{
		BaseURL: cfg.Remote.BaseURL,
		Token:   cfg.Remote.Token,
	})
	meta := remote.NewCachedMetadata(
		remote.NewHTTPMetadata(cfg.Remote.BaseURL, nil, cfg.Engine.EnrichTimeout.Std()),
		tiered, remote.DefaultMetadataTTL)

	e := &Engine{
		cfg:    cfg,
		rdb:    rdb,
		st:     store.New(),
		gate:   lease.NewGate(),
		orders: orders,
		remote: rs,
		meta:   meta,
	}

	e.mut = mutator.New(e.st, rs, e.gate, orders, e.Refetch, userID, cfg.Engine.LeaseTTL.Std())
	e.rec = reorder.New(e.st, rs, e.gate, orders, e.Refetch, cfg.Engine.GraceWindow.Std())

	switch cfg.Push.Transport {
	case "websocket":
		header := http.Header{}
		if cfg.Remote.Token != "" {
			header.Set("Authorization", "Bearer "+cfg.Remote.Token)
		}
		e.channel = realtime.NewWSChannel(cfg.Push.URL, header)
	default:
		channel, err := realtime.NewRedisChannelFromClient(rdb, cfg.Redis.Namespace)
		if err != nil {
			rdb.Close()
			return nil, err
		}
		e.channel = channel
	}

	e.coord = realtime.NewCoordinator(e.channel, e.gate, e.rec, e.Refetch, realtime.Options{
		MetadataThrottle: cfg.Engine.MetadataThrottle.Std(),
		GenericDebounce:  cfg.Engine.GenericDebounce.Std(),
		ReconnectBase:    cfg.Engine.ReconnectBase.Std(),
		ReconnectCap:     cfg.Engine.ReconnectCap.Std(),
	})

	return e, nil
}

// Open fetches the list behind slug and seeds the store. If a valid
// cached order exists for the fetched id set, it overlays the server
// order: a reload racing a reorder commit keeps the user's order.
func (e *Engine) Open(ctx context.Context, slug string) (*linklist.List, error) {
	list, err := e.remote.FetchList(ctx, slug)
	if err != nil {
		return nil, err
	}

	if entry, ok := e.orders.Load(ctx, list.ID, list.ActiveIDs()); ok {
		list.Items = linklist.OrderByIDs(list.Items, entry.IDs())
		log.Printf("[Engine] Applied cached order for list %s", list.ID)
	}

	e.st.Set(list)

	e.mu.Lock()
	e.slug = slug
	e.listID = list.ID
	e.mu.Unlock()
	return list, nil
}

// Run drives the realtime coordinator until ctx is cancelled or access
// to the list is revoked. Open must have succeeded first.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	listID := e.listID
	e.mu.Unlock()
	if listID == "" {
		return fmt.Errorf("no list opened")
	}
	return e.coord.Run(ctx, listID)
}

// Refetch replaces the snapshot with the server's canonical state.
// This is the shared recovery path: failed commits, reconnects, and
// push invalidations all land here.
func (e *Engine) Refetch(ctx context.Context) error {
	e.mu.Lock()
	slug := e.slug
	e.mu.Unlock()
	if slug == "" {
		return fmt.Errorf("no list opened")
	}

	list, err := e.remote.FetchList(ctx, slug)
	if err != nil {
		return err
	}
	e.st.Set(list)
	if err := e.orders.Save(ctx, list.ID, list.Items); err != nil {
		log.Printf("[Engine] Failed to persist canonical order: %v", err)
	}
	return nil
}

// Importer builds a bulk importer committing through this session's
// mutator. progress may be nil.
func (e *Engine) Importer(progress importer.Progress) *importer.Importer {
	return importer.New(e.mut.CommitRecord, e.meta, importer.Options{
		Concurrency:    e.cfg.Engine.ImportConcurrency,
		EnrichTimeout:  e.cfg.Engine.EnrichTimeout.Std(),
		CommitTimeout:  e.cfg.Engine.CommitTimeout.Std(),
		StallThreshold: e.cfg.Engine.StallThreshold.Std(),
		FinalWait:      e.cfg.Engine.FinalWait.Std(),
		YieldDelay:     e.cfg.Engine.YieldDelay.Std(),
		Progress:       progress,
	})
}

// Store exposes the snapshot store for subscribers.
func (e *Engine) Store() *store.Store { return e.st }

// Mutator exposes the optimistic mutation surface.
func (e *Engine) Mutator() *mutator.Mutator { return e.mut }

// Reorder exposes the drag gesture surface.
func (e *Engine) Reorder() *reorder.Reconciler { return e.rec }

// ConnState reports the push channel's connection state.
func (e *Engine) ConnState() realtime.ConnState { return e.coord.State() }

// Close releases the engine's connections.
func (e *Engine) Close() error {
	return e.rdb.Close()
}
