package model

import "time"

// User binds a login to the token issued for it
type User struct {
	Login     string    `json:"login"`
	TokenHash string    `json:"-"` // bcrypt hash, the token itself is never stored
	IP        string    `json:"ip"`
	LastSeen  time.Time `json:"last_seen"`
	CreatedAt time.Time `json:"created_at"`
}

// ConnectionID identifies one transport connection
type ConnectionID string

// Presence is what a connection reported about itself with "user is online"
type Presence struct {
	Login string `json:"login"`
	Path  string `json:"path"`
}
