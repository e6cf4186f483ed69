//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Conn is the server side of one live transport session.
// The transport owns the socket; the registry only keeps this handle.
type Conn interface {
	// Send queues an application frame. It never blocks on a slow peer.
	Send(ctx context.Context, payload []byte) error
	// Ping writes a protocol-level liveness probe.
	Ping() error
	// Close terminates the session. Safe to call more than once.
	Close() error
	RemoteAddr() string
}

// TokenVerifier checks a credential token and returns the identity it carries.
type TokenVerifier interface {
	Verify(token string) (domain.Identity, error)
}
