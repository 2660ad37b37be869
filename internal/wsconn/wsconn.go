// Package wsconn owns a single WebSocket connection to the gateway: one
// write sink guarded by a mutex, and a background goroutine that forwards
// every inbound frame onto a channel for a demultiplexer to consume.
package wsconn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const subprotocol = "janus-protocol"

// Conn wraps one gorilla/websocket connection with the concurrency
// discipline the design requires: atomic writes, and a read loop that
// terminates cleanly on Close or on the connection dying.
type Conn struct {
	conn      *websocket.Conn
	mu        sync.Mutex
	closeOnce sync.Once
	frames    chan []byte
	done      chan struct{}
}

// Connect dials url, negotiating the janus-protocol subprotocol, and starts
// the background read loop. dialer may be nil, in which case
// websocket.DefaultDialer is used.
func Connect(ctx context.Context, dialer *websocket.Dialer, url string) (*Conn, error) {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	d := *dialer
	d.Subprotocols = []string{subprotocol}

	wsConn, resp, err := d.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("wsconn: dial failed: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("wsconn: dial failed: %w", err)
	}

	c := &Conn{
		conn:   wsConn,
		frames: make(chan []byte, 64),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Frames returns the channel on which inbound frame payloads are
// delivered. It is closed when the connection's read loop exits.
func (c *Conn) Frames() <-chan []byte {
	return c.frames
}

func (c *Conn) readLoop() {
	defer close(c.frames)
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		select {
		case c.frames <- data:
		case <-c.done:
			return
		}
	}
}

// Send writes one frame. The gateway accepts the JSON text payload on a
// binary frame under the janus-protocol subprotocol, so outbound frames are
// always sent as websocket.BinaryMessage.
func (c *Conn) Send(ctx context.Context, data []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(deadline)
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("wsconn: write failed: %w", err)
	}
	return nil
}

// Close cancels the read loop and closes the underlying socket.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}
