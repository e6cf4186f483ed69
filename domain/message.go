// Package domain contains core concepts of the chat system.
// This file defines Message entities and related rules.
// Messages are immutable once the store has created them.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents a persisted point-to-point chat message.
type Message struct {
	ID        uuid.UUID // assigned by the store
	Sender    string
	Recipient string
	Text      string
	CreatedAt time.Time
}
