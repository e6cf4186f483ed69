// Package runtime owns the connection lifecycle: admission, identity
// binding, liveness, presence and message relay.
// It holds no transport or storage details beyond the contracts it is given.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// IdentityBinder resolves handshake headers into a verified identity.
type IdentityBinder interface {
	Bind(header http.Header) (domain.Identity, bool)
}

type Orchestrator struct {
	log          *slog.Logger
	registry     *Registry
	binder       IdentityBinder
	broadcaster  *Broadcaster
	relay        *Relay
	pingInterval time.Duration
	deathTimeout time.Duration
	shutdown     atomic.Bool
}

func NewOrchestrator(log *slog.Logger, registry *Registry, binder IdentityBinder,
	messageRepository repositories.IMessageRepository,
	pingInterval, deathTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		log:          log,
		registry:     registry,
		binder:       binder,
		broadcaster:  NewBroadcaster(log, registry),
		relay:        NewRelay(log, registry, messageRepository),
		pingInterval: pingInterval,
		deathTimeout: deathTimeout,
	}
}

func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Connect admits a freshly opened transport session.
// The connection stays registered, bound or not, until Disconnect.
// After Shutdown the session is closed straight away.
func (o *Orchestrator) Connect(ctx context.Context, conn contract.Conn, header http.Header) *Connection {
	heartbeat := NewHeartbeat(o.log, o.pingInterval, o.deathTimeout, conn.Ping)
	c := o.registry.Admit(conn, heartbeat)
	if o.shutdown.Load() {
		if _, ok := o.registry.Evict(c.ID); ok {
			_ = c.Close()
		}
		o.log.Debug("Connection refused after shutdown", "conn_id", c.ID, "remote_addr", conn.RemoteAddr())
		return c
	}
	heartbeat.Start(func() { o.evictDead(c) })
	o.log.Debug("Connection admitted", "conn_id", c.ID, "remote_addr", conn.RemoteAddr())
	o.broadcaster.BroadcastOnline(ctx)

	identity, ok := o.binder.Bind(header)
	if !ok {
		o.log.Debug("Connection left unbound", "conn_id", c.ID)
		return c
	}
	if o.registry.Bind(c.ID, identity) {
		o.log.Info("Identity bound", "conn_id", c.ID, "user_id", identity.ID, "username", identity.Username)
		o.broadcaster.BroadcastOnline(ctx)
	}
	return c
}

// HandleMessage decodes one inbound frame and relays it.
// Unbound senders and malformed requests are dropped without a reply.
func (o *Orchestrator) HandleMessage(ctx context.Context, c *Connection, payload []byte) error {
	var req domain.RelayRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		o.log.Debug("Dropping undecodable frame", "conn_id", c.ID, "error", err)
		return fmt.Errorf("%w: %v", errors.ErrInvalidRelayRequest, err)
	}

	message, err := o.relay.Relay(ctx, c, req)
	switch {
	case err == nil:
		o.log.Debug("Message relayed", "conn_id", c.ID, "message_id", message.ID)
	case stderrors.Is(err, errors.ErrUnboundSender), stderrors.Is(err, errors.ErrInvalidRelayRequest):
		o.log.Debug("Dropping relay request", "conn_id", c.ID, "error", err)
	default:
		o.log.Error("Relay failed", "conn_id", c.ID, "error", err)
	}
	return err
}

// Pong forwards a liveness response to the connection's heartbeat.
func (o *Orchestrator) Pong(c *Connection) {
	c.Pong()
}

// Disconnect evicts the connection and closes its transport.
// Only the call that actually removed the entry triggers a broadcast.
func (o *Orchestrator) Disconnect(ctx context.Context, id ConnID) bool {
	c, ok := o.registry.Evict(id)
	if !ok {
		return false
	}
	_ = c.Close()
	o.log.Debug("Connection evicted", "conn_id", id)
	o.broadcaster.BroadcastOnline(ctx)
	return true
}

// Shutdown closes every connection and empties the registry without
// broadcasting, since nobody is left to receive it. Later Connect calls
// are refused.
func (o *Orchestrator) Shutdown() {
	o.shutdown.Store(true)
	for _, c := range o.registry.All() {
		if _, ok := o.registry.Evict(c.ID); ok {
			_ = c.Close()
		}
	}
	o.log.Info("All connections closed")
}

func (o *Orchestrator) evictDead(c *Connection) {
	o.log.Info("Connection missed its pong, evicting", "conn_id", c.ID, "remote_addr", c.RemoteAddr())
	o.Disconnect(context.Background(), c.ID)
}
