package domain

import "time"

type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}

// Identity is the caller attached to a request by the auth middleware.
type Identity struct {
	UserID  string
	Email   string
	IsAdmin bool
}
