package chat

import "time"

// Session captures a transient anonymous widget conversation.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}
