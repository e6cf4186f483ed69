// Package domain contains core concepts of the chat system.
// This file defines Identity, the verified user reference bound to a connection.
// No runtime, network, or UI logic should be added here.
package domain

// Identity is sourced from a verified credential token and never changes
// for the life of a connection.
type Identity struct {
	ID       string
	Username string
}

// IsZero reports whether the identity carries no user id.
func (i Identity) IsZero() bool {
	return i.ID == ""
}
