package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/arnobt78/linkboard/pkg/linklist"
)

// ListEventsChannel returns the Pub/Sub channel name for a list's
// events. Pattern: linkboard:{namespace}:list:{list_id}:events
func ListEventsChannel(namespace, listID string) string {
	return fmt.Sprintf("linkboard:%s:list:%s:events", namespace, listID)
}

// RedisChannel adapts Redis Pub/Sub to the PushChannel interface.
// Delivery is at-most-once; the coordinator's Seq high-water mark makes
// duplicates harmless and gaps recoverable via refetch.
type RedisChannel struct {
	rdb       *redis.Client
	namespace string
}

// NewRedisChannel creates a Redis-backed push channel.
// Returns an error if namespace is empty.
func NewRedisChannel(opts *redis.Options, namespace string) (*RedisChannel, error) {
	if namespace == "" {
		return nil, fmt.Errorf("channel namespace cannot be empty")
	}
	return &RedisChannel{rdb: redis.NewClient(opts), namespace: namespace}, nil
}

// NewRedisChannelFromClient wraps an existing client, sharing its
// connection pool with the cache tier.
func NewRedisChannelFromClient(rdb *redis.Client, namespace string) (*RedisChannel, error) {
	if namespace == "" {
		return nil, fmt.Errorf("channel namespace cannot be empty")
	}
	return &RedisChannel{rdb: rdb, namespace: namespace}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (c *RedisChannel) Close() error {
	return c.rdb.Close()
}

// Subscribe implements PushChannel.
func (c *RedisChannel) Subscribe(ctx context.Context, listID string) (*Subscription, error) {
	channel := ListEventsChannel(c.namespace, listID)
	pubsub := c.rdb.Subscribe(ctx, channel)

	// Fail fast when the server is unreachable instead of handing the
	// caller a dead subscription.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	eventsChan := make(chan linklist.PushEvent, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var ev linklist.PushEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal push event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- ev:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return NewSubscription(eventsChan, errorsChan, cancelFunc), nil
}

// Publish sends an event on a list's channel. Used by tests and by any
// in-process producer (the engine itself never publishes; the backend
// does).
func (c *RedisChannel) Publish(ctx context.Context, ev linklist.PushEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal push event: %w", err)
	}
	channel := ListEventsChannel(c.namespace, ev.ListID)
	if err := c.rdb.Publish(ctx, channel, raw).Err(); err != nil {
		return fmt.Errorf("failed to publish push event: %w", err)
	}
	return nil
}
