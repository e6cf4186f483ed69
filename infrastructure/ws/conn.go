// Package ws adapts gorilla/websocket sessions to contract.Conn.
package ws

import (
	"chat-relay/errors"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn wraps a gorilla WebSocket connection.
//
// Application frames go through a bounded queue drained by a single writer
// goroutine, so a slow peer never blocks the sender. Pings use WriteControl,
// which gorilla allows concurrently with the writer.
type Conn struct {
	ws           *websocket.Conn
	log          *slog.Logger
	remoteAddr   string
	writeTimeout time.Duration
	outgoing     chan []byte
	closed       chan struct{}
	closeOnce    sync.Once
}

func NewConn(wsConn *websocket.Conn, log *slog.Logger, remoteAddr string,
	bufferSize int, writeTimeout time.Duration) *Conn {
	c := &Conn{
		ws:           wsConn,
		log:          log,
		remoteAddr:   remoteAddr,
		writeTimeout: writeTimeout,
		outgoing:     make(chan []byte, bufferSize),
		closed:       make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

// Send implements contract.Conn.
func (c *Conn) Send(ctx context.Context, payload []byte) error {
	select {
	case <-c.closed:
		return errors.ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	select {
	case c.outgoing <- payload:
		return nil
	default:
		return errors.ErrSendBufferFull
	}
}

// Ping implements contract.Conn.
func (c *Conn) Ping() error {
	select {
	case <-c.closed:
		return errors.ErrConnectionClosed
	default:
	}
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

// Close implements contract.Conn. The socket is dropped without a closing
// handshake.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.ws.Close()
	})
	return err
}

// RemoteAddr implements contract.Conn.
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

// OnPong registers the callback run for every pong frame.
// It must be set before the first Read.
func (c *Conn) OnPong(fn func()) {
	c.ws.SetPongHandler(func(string) error {
		fn()
		return nil
	})
}

// Read blocks until the next text or binary frame arrives.
// Control frames are handled by gorilla's handlers while reading.
func (c *Conn) Read() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.closed:
			return
		case payload := <-c.outgoing:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Debug("Failed to write to WebSocket client", "remote_addr", c.remoteAddr, "error", err)
				_ = c.Close()
				return
			}
		}
	}
}
