package realtime

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/arnobt78/linkboard/pkg/linklist"
)

const (
	wsHandshakeTimeout = 10 * time.Second

	// wsReadDeadline bounds how long the read loop waits for a frame.
	// The backend heartbeats every 30s, so three missed beats means the
	// connection is gone even if TCP has not noticed.
	wsReadDeadline = 90 * time.Second
)

// WSChannel adapts a WebSocket event feed to the PushChannel
// interface. Each Subscribe call dials a fresh connection; the
// coordinator owns reconnection.
type WSChannel struct {
	baseURL string
	header  http.Header
	dialer  *websocket.Dialer
}

// NewWSChannel creates a WebSocket-backed push channel. baseURL is the
// ws:// or wss:// endpoint root; the list id is appended per
// subscription.
func NewWSChannel(baseURL string, header http.Header) *WSChannel {
	return &WSChannel{
		baseURL: baseURL,
		header:  header,
		dialer: &websocket.Dialer{
			HandshakeTimeout: wsHandshakeTimeout,
		},
	}
}

// Subscribe implements PushChannel.
func (c *WSChannel) Subscribe(ctx context.Context, listID string) (*Subscription, error) {
	url := fmt.Sprintf("%s/lists/%s/events", c.baseURL, listID)
	conn, _, err := c.dialer.DialContext(ctx, url, c.header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	eventsChan := make(chan linklist.PushEvent, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	// Reader goroutines on a websocket block in ReadJSON; closing the
	// connection is the only way to unblock them.
	go func() {
		<-subCtx.Done()
		conn.Close()
	}()

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer cancelFunc()

		for {
			conn.SetReadDeadline(time.Now().Add(wsReadDeadline))

			var ev linklist.PushEvent
			if err := conn.ReadJSON(&ev); err != nil {
				if subCtx.Err() != nil {
					return
				}
				select {
				case errorsChan <- fmt.Errorf("websocket read failed: %w", err):
				default:
				}
				return
			}

			select {
			case eventsChan <- ev:
			case <-subCtx.Done():
				return
			}
		}
	}()

	return NewSubscription(eventsChan, errorsChan, cancelFunc), nil
}
