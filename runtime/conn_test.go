package runtime

import (
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"encoding/json"
	"sync"
)

// fakeConn records every frame sent to it.
type fakeConn struct {
	mu      sync.Mutex
	addr    string
	frames  [][]byte
	pings   int
	closed  bool
	sendErr error
	onPing  func()
}

func newFakeConn(addr string) *fakeConn {
	return &fakeConn{addr: addr}
}

func (f *fakeConn) Send(_ context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.ErrConnectionClosed
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.frames = append(f.frames, payload)
	return nil
}

func (f *fakeConn) Ping() error {
	f.mu.Lock()
	f.pings++
	onPing := f.onPing
	f.mu.Unlock()
	if onPing != nil {
		onPing()
	}
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) RemoteAddr() string {
	return f.addr
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) pingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pings
}

// presences returns the presence updates received so far, oldest first.
func (f *fakeConn) presences() []event.PresenceUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []event.PresenceUpdate
	for _, frame := range f.frames {
		var probe map[string]json.RawMessage
		if json.Unmarshal(frame, &probe) != nil {
			continue
		}
		if _, ok := probe["online"]; !ok {
			continue
		}
		var update event.PresenceUpdate
		if json.Unmarshal(frame, &update) == nil {
			res = append(res, update)
		}
	}
	return res
}

// messages returns the delivered chat messages received so far.
func (f *fakeConn) messages() []event.MessageDelivered {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []event.MessageDelivered
	for _, frame := range f.frames {
		var probe map[string]json.RawMessage
		if json.Unmarshal(frame, &probe) != nil {
			continue
		}
		if _, ok := probe["id"]; !ok {
			continue
		}
		var m event.MessageDelivered
		if json.Unmarshal(frame, &m) == nil {
			res = append(res, m)
		}
	}
	return res
}

func (f *fakeConn) lastPresence() (event.PresenceUpdate, bool) {
	presences := f.presences()
	if len(presences) == 0 {
		return event.PresenceUpdate{}, false
	}
	return presences[len(presences)-1], true
}
