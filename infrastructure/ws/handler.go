package ws

import (
	"chat-relay/runtime"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

type Options struct {
	SendBufferSize    int
	InboundBufferSize int
	WriteTimeout      time.Duration
	ReadLimit         int64
	AllowedOrigins    []string
}

// Handler upgrades HTTP requests and runs one session per connection:
// the read loop only decodes frames and pongs, while a dedicated worker
// relays the queued frames in order. Every frame read is queued; when the
// queue is full the read loop waits for room.
type Handler struct {
	log          *slog.Logger
	orchestrator *runtime.Orchestrator
	upgrader     websocket.Upgrader
	options      Options
}

func NewHandler(log *slog.Logger, orchestrator *runtime.Orchestrator, options Options) *Handler {
	h := &Handler{log: log, orchestrator: orchestrator, options: options}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already replied with an HTTP error.
		h.log.Debug("Failed to accept WebSocket connection", "remote_addr", r.RemoteAddr, "error", err)
		return
	}
	if h.options.ReadLimit > 0 {
		wsConn.SetReadLimit(h.options.ReadLimit)
	}

	// Relays queued before the socket closed still run to completion.
	ctx := context.WithoutCancel(r.Context())

	conn := NewConn(wsConn, h.log, r.RemoteAddr, h.options.SendBufferSize, h.options.WriteTimeout)
	c := h.orchestrator.Connect(ctx, conn, r.Header)
	conn.OnPong(c.Pong)

	inbound := make(chan []byte, h.options.InboundBufferSize)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for payload := range inbound {
			_ = h.orchestrator.HandleMessage(ctx, c, payload)
		}
	}()

	for {
		payload, err := conn.Read()
		if err != nil {
			h.log.Debug("WebSocket read ended", "conn_id", c.ID, "error", err)
			break
		}
		// A full queue stalls reading, so the peer is slowed down by TCP
		// instead of losing frames. Pongs wait too; a store stuck longer
		// than the death timeout gets the connection evicted.
		select {
		case inbound <- payload:
		case <-conn.Done():
			h.log.Warn("Connection closed with a frame still unqueued", "conn_id", c.ID)
		}
	}

	close(inbound)
	h.orchestrator.Disconnect(ctx, c.ID)
	// Relays already queued are allowed to finish.
	<-done
}

// checkOrigin accepts same-host requests, requests without an Origin header
// and the configured client origins.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.options.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}
