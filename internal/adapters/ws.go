package adapters

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/akarpov/agora/internal/core"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// WSConn is an indirection over *websocket.Conn to ease testing.
type WSConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(mt int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// WSConnection is a transport endpoint implementing core.SignalConnection.
// TrySend never blocks and never panics: a full buffer reports
// backpressure, a torn-down connection reports ErrClosed. The send
// channel is only ever closed under mu with closed set first, so a
// concurrent TrySend can never hit a closed channel.
type WSConnection struct {
	conn         WSConn
	mu           sync.Mutex
	closed       bool
	send         chan core.Frame
	writeTimeout time.Duration
}

func NewWSConnection(conn WSConn, buffer int, writeTimeout time.Duration) *WSConnection {
	if buffer <= 0 {
		buffer = 256
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &WSConnection{
		conn:         conn,
		send:         make(chan core.Frame, buffer),
		writeTimeout: writeTimeout,
	}
}

func (c *WSConnection) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
		return nil
	default:
		return ErrBackpressure
	}
}

// Close is idempotent and safe against in-flight TrySend calls. Closing
// the transport unblocks the read pump, which drives the rest of the
// session teardown.
func (c *WSConnection) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
	_ = c.conn.Close()
}

// StartWriteLoop pumps frames to the network. Context cancellation closes
// the connection, never the channel directly; the loop exits when the
// channel close is drained.
func (c *WSConnection) StartWriteLoop(ctx context.Context) {
	go func() {
		<-ctx.Done()
		c.Close()
	}()
	go func() {
		defer c.Close()
		for data := range c.send {
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}()
}
