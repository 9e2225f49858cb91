package models

import "time"

// Message is one post on the board. The ID is assigned by the store at
// insert time and is strictly increasing, which is what the stream's
// tail cursor relies on.
type Message struct {
	ID         int64      `json:"id"`
	Text       string     `json:"text"`
	CreatedAt  time.Time  `json:"created"`
	ModifiedAt *time.Time `json:"modified,omitempty"`
	User       User       `json:"user"`
}
