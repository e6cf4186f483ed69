package domain

import "time"

// User is an account able to obtain credential tokens.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

func (u User) Identity() Identity {
	return Identity{ID: u.ID, Username: u.Username}
}
