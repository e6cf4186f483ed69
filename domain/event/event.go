// Package event holds the frames the server pushes to live connections.
package event

import (
	"chat-relay/domain"

	"github.com/samber/lo"
)

// MessageDelivered is sent to every live connection of the recipient.
type MessageDelivered struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
}

// OnlineUser is one entry of a presence update.
type OnlineUser struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// PresenceUpdate is sent to every connection on membership changes.
type PresenceUpdate struct {
	Online []OnlineUser `json:"online"`
}

func NewMessageDelivered(m domain.Message) MessageDelivered {
	return MessageDelivered{
		ID:        m.ID.String(),
		Sender:    m.Sender,
		Recipient: m.Recipient,
		Text:      m.Text,
	}
}

// NewPresenceUpdate keeps the first occurrence of every identity, so an
// identity with several open connections is listed once.
func NewPresenceUpdate(identities []domain.Identity) PresenceUpdate {
	unique := lo.UniqBy(identities, func(i domain.Identity) string { return i.ID })
	return PresenceUpdate{
		Online: lo.Map(unique, func(i domain.Identity, _ int) OnlineUser {
			return OnlineUser{UserID: i.ID, Username: i.Username}
		}),
	}
}
