package runtime

import (
	"chat-relay/domain/event"
	"context"
	"encoding/json"
	"log/slog"
)

// Broadcaster pushes the online list to every registered connection.
type Broadcaster struct {
	log      *slog.Logger
	registry *Registry
}

func NewBroadcaster(log *slog.Logger, registry *Registry) *Broadcaster {
	return &Broadcaster{log: log, registry: registry}
}

// BroadcastOnline sends {online:[...]} to all connections, bound or not.
// Delivery is best effort: a failing connection is skipped.
// It returns the number of connections the update was queued for.
func (b *Broadcaster) BroadcastOnline(ctx context.Context) int {
	update := event.NewPresenceUpdate(b.registry.Snapshot())
	payload, err := json.Marshal(update)
	if err != nil {
		b.log.Error("Failed to encode presence update", "error", err)
		return 0
	}

	sent := 0
	for _, c := range b.registry.All() {
		if err := c.Send(ctx, payload); err != nil {
			b.log.Debug("Presence update not delivered", "conn_id", c.ID, "error", err)
			continue
		}
		sent++
	}
	return sent
}
