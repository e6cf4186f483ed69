package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/repositories"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
)

// Relay persists a message and then forwards it to the recipient's live
// connections.
type Relay struct {
	log        *slog.Logger
	registry   *Registry
	repository repositories.IMessageRepository
	validate   *validator.Validate
	now        func() time.Time
}

func NewRelay(log *slog.Logger, registry *Registry, repository repositories.IMessageRepository) *Relay {
	return &Relay{
		log:        log,
		registry:   registry,
		repository: repository,
		validate:   validator.New(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Relay handles one inbound request from source.
//
// Unbound senders and requests without recipient or text are rejected before
// anything is stored. The message is persisted exactly once, then delivered
// to whichever connections are bound to the recipient at that moment.
// Persistence is never rolled back; per-connection delivery failures are
// only logged.
func (r *Relay) Relay(ctx context.Context, source *Connection, req domain.RelayRequest) (domain.Message, error) {
	sender, ok := source.Identity()
	if !ok {
		return domain.Message{}, errors.ErrUnboundSender
	}
	if err := r.validate.Struct(req); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrInvalidRelayRequest, err)
	}

	message, err := r.repository.CreateMessage(ctx, sender.ID, req.Recipient, req.Text, r.now())
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %w", errors.ErrPersistence, err)
	}

	payload, err := json.Marshal(event.NewMessageDelivered(message))
	if err != nil {
		return message, err
	}
	for _, c := range r.registry.ConnectionsFor(message.Recipient) {
		if err := c.Send(ctx, payload); err != nil {
			r.log.Debug("Message not delivered",
				"message_id", message.ID,
				"conn_id", c.ID,
				"error", err)
		}
	}
	return message, nil
}
