package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnobt78/linkboard/pkg/linklist"
)

func setupRedisChannel(t *testing.T) *RedisChannel {
	t.Helper()
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	channel, err := NewRedisChannel(&redis.Options{Addr: mr.Addr()}, "test")
	require.NoError(t, err)
	t.Cleanup(func() { channel.Close() })
	return channel
}

func TestRedisChannel(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects empty namespace", func(t *testing.T) {
		_, err := NewRedisChannel(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
	})

	t.Run("delivers published events", func(t *testing.T) {
		channel := setupRedisChannel(t)
		sub, err := channel.Subscribe(ctx, "list-1")
		require.NoError(t, err)
		defer sub.Close()

		ev := linklist.PushEvent{
			Seq:       7,
			Type:      "list_updated",
			Action:    "item_added",
			ListID:    "list-1",
			Timestamp: time.Now().UTC(),
		}
		require.NoError(t, channel.Publish(ctx, ev))

		select {
		case got := <-sub.Events():
			assert.Equal(t, int64(7), got.Seq)
			assert.Equal(t, "item_added", got.Action)
			assert.Equal(t, "list-1", got.ListID)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	})

	t.Run("isolates lists by channel", func(t *testing.T) {
		channel := setupRedisChannel(t)
		sub, err := channel.Subscribe(ctx, "list-1")
		require.NoError(t, err)
		defer sub.Close()

		require.NoError(t, channel.Publish(ctx, linklist.PushEvent{Seq: 1, ListID: "list-2"}))
		require.NoError(t, channel.Publish(ctx, linklist.PushEvent{Seq: 2, ListID: "list-1"}))

		select {
		case got := <-sub.Events():
			assert.Equal(t, int64(2), got.Seq, "only own list's events arrive")
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	})

	t.Run("malformed payload surfaces on Errors", func(t *testing.T) {
		channel := setupRedisChannel(t)
		sub, err := channel.Subscribe(ctx, "list-1")
		require.NoError(t, err)
		defer sub.Close()

		require.NoError(t, channel.rdb.Publish(ctx, ListEventsChannel("test", "list-1"), "not json").Err())

		select {
		case err := <-sub.Errors():
			assert.Error(t, err)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for error")
		}
	})

	t.Run("close ends the stream", func(t *testing.T) {
		channel := setupRedisChannel(t)
		sub, err := channel.Subscribe(ctx, "list-1")
		require.NoError(t, err)

		require.NoError(t, sub.Close())
		select {
		case _, ok := <-sub.Events():
			assert.False(t, ok, "events channel closed")
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for close")
		}
	})
}

func TestListEventsChannel(t *testing.T) {
	assert.Equal(t, "linkboard:prod:list:abc:events", ListEventsChannel("prod", "abc"))
}

func TestWSChannel(t *testing.T) {
	upgrader := websocket.Upgrader{}

	t.Run("delivers streamed events", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/lists/list-1/events", r.URL.Path)
			conn, err := upgrader.Upgrade(w, r, nil)
			require.NoError(t, err)
			defer conn.Close()
			require.NoError(t, conn.WriteJSON(linklist.PushEvent{Seq: 3, Action: "item_added", ListID: "list-1"}))
			require.NoError(t, conn.WriteJSON(linklist.PushEvent{Seq: 4, Action: "item_edited", ListID: "list-1"}))
			// Hold the connection open until the client walks away.
			conn.ReadMessage()
		}))
		defer srv.Close()

		channel := NewWSChannel("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
		sub, err := channel.Subscribe(context.Background(), "list-1")
		require.NoError(t, err)
		defer sub.Close()

		var got []int64
		for len(got) < 2 {
			select {
			case ev := <-sub.Events():
				got = append(got, ev.Seq)
			case <-time.After(time.Second):
				t.Fatal("timed out waiting for events")
			}
		}
		assert.Equal(t, []int64{3, 4}, got)
	})

	t.Run("dial failure returns an error", func(t *testing.T) {
		channel := NewWSChannel("ws://127.0.0.1:1", nil)
		_, err := channel.Subscribe(context.Background(), "list-1")
		assert.Error(t, err)
	})

	t.Run("server close ends the stream", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			require.NoError(t, err)
			conn.Close()
		}))
		defer srv.Close()

		channel := NewWSChannel("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
		sub, err := channel.Subscribe(context.Background(), "list-1")
		require.NoError(t, err)
		defer sub.Close()

		select {
		case _, ok := <-sub.Events():
			assert.False(t, ok, "events channel closed after server hangup")
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for stream end")
		}
	})
}
