package workers

import (
	"chat-relay/domain"
	"context"
	"log/slog"
	"time"

	"github.com/samber/lo"
)

// ConnectionCounter is the read side of the connection registry.
type ConnectionCounter interface {
	Len() int
	Snapshot() []domain.Identity
}

// ConnectionStatsWorker logs how many sessions are open and how many
// distinct identities they belong to.
type ConnectionStatsWorker struct {
	log      *slog.Logger
	counter  ConnectionCounter
	interval time.Duration
}

func NewConnectionStatsWorker(log *slog.Logger, counter ConnectionCounter, interval time.Duration) *ConnectionStatsWorker {
	return &ConnectionStatsWorker{log: log, counter: counter, interval: interval}
}

func (w *ConnectionStatsWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			connections, online := w.Stats()
			w.log.Info("Connection stats", "connections", connections, "online_users", online)
		}
	}
}

// Stats returns the number of registered connections and of distinct bound identities.
func (w *ConnectionStatsWorker) Stats() (int, int) {
	online := lo.UniqBy(w.counter.Snapshot(), func(i domain.Identity) string { return i.ID })
	return w.counter.Len(), len(online)
}
