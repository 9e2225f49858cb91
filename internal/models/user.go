package models

import "time"

// User represents a registered account on the board.
//
// Timestamps are kept in UTC so the JSON encoding carries the
// trailing "Z" clients expect.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Bio          *string   `json:"bio"`
	PasswordHash string    `json:"-"` // Never expose this to the client
	CreatedAt    time.Time `json:"created"`
}
