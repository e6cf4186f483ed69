package domain

// RelayRequest is the inbound frame a client sends to reach another identity.
type RelayRequest struct {
	Recipient string `json:"recipient" validate:"required"`
	Text      string `json:"text" validate:"required"`
}

// GetConversationCommand asks for the history between two identities.
type GetConversationCommand struct {
	UserID  string
	OtherID string
	Cursor  *string
}
