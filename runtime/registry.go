package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"context"
	"sort"
	"sync"
	"sync/atomic"
)

// ConnID identifies a connection for the lifetime of the process.
// Ids grow with admission order.
type ConnID uint64

// Connection is the registry's bookkeeping entry for one transport session.
type Connection struct {
	ID        ConnID
	conn      contract.Conn
	heartbeat *Heartbeat
	identity  atomic.Pointer[domain.Identity]
}

// Identity returns the bound identity, or false while the connection is unbound.
func (c *Connection) Identity() (domain.Identity, bool) {
	identity := c.identity.Load()
	if identity == nil {
		return domain.Identity{}, false
	}
	return *identity, true
}

func (c *Connection) Send(ctx context.Context, payload []byte) error {
	return c.conn.Send(ctx, payload)
}

// Pong feeds a liveness response to the connection's heartbeat.
func (c *Connection) Pong() {
	if c.heartbeat != nil {
		c.heartbeat.Pong()
	}
}

func (c *Connection) Close() error {
	return c.conn.Close()
}

func (c *Connection) RemoteAddr() string {
	return c.conn.RemoteAddr()
}

// Registry is the single source of truth for who is online.
// Every mutation holds the write lock, so an entry is either fully present
// or fully absent for readers.
type Registry struct {
	mu          sync.RWMutex
	lastID      ConnID
	connections map[ConnID]*Connection
}

func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[ConnID]*Connection),
	}
}

// Admit registers a new, unbound connection. The heartbeat may be nil.
func (r *Registry) Admit(conn contract.Conn, heartbeat *Heartbeat) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastID++
	c := &Connection{ID: r.lastID, conn: conn, heartbeat: heartbeat}
	r.connections[c.ID] = c
	return c
}

// Bind attaches an identity to an admitted connection. It returns false if
// the connection is gone, already bound, or the identity is empty.
func (r *Registry) Bind(id ConnID, identity domain.Identity) bool {
	if identity.IsZero() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.connections[id]
	if !ok {
		return false
	}
	return c.identity.CompareAndSwap(nil, &identity)
}

// Evict removes the connection and stops its heartbeat.
// Evicting an absent connection is a no-op and reports false.
func (r *Registry) Evict(id ConnID) (*Connection, bool) {
	r.mu.Lock()
	c, ok := r.connections[id]
	if ok {
		delete(r.connections, id)
	}
	r.mu.Unlock()

	if !ok {
		return nil, false
	}
	if c.heartbeat != nil {
		c.heartbeat.Stop()
	}
	return c, true
}

func (r *Registry) Get(id ConnID) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connections[id]
	return c, ok
}

// Snapshot lists the identities of all bound connections in admission order.
// An identity with several connections appears once per connection.
func (r *Registry) Snapshot() []domain.Identity {
	var identities []domain.Identity
	for _, c := range r.All() {
		if identity, ok := c.Identity(); ok {
			identities = append(identities, identity)
		}
	}
	return identities
}

// ConnectionsFor returns every registered connection bound to userID.
func (r *Registry) ConnectionsFor(userID string) []*Connection {
	var res []*Connection
	for _, c := range r.All() {
		if identity, ok := c.Identity(); ok && identity.ID == userID {
			res = append(res, c)
		}
	}
	return res
}

// All returns every registered connection, bound or not, in admission order.
func (r *Registry) All() []*Connection {
	r.mu.RLock()
	res := make([]*Connection, 0, len(r.connections))
	for _, c := range r.connections {
		res = append(res, c)
	}
	r.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}
