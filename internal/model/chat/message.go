package chat

import "time"

// Kind records how a message entered the conversation.
type Kind string

const (
	KindWelcome    Kind = "welcome"
	KindUser       Kind = "user"
	KindAnswer     Kind = "answer"
	KindGenerated  Kind = "generated"
	KindEscalation Kind = "escalation"
	KindFollowUp   Kind = "follow_up"
)

// Message is a single turn in the widget conversation. Messages are never mutated after
// they are appended to a conversation.
type Message struct {
	ID              string    `json:"id"`
	Text            string    `json:"text"`
	IsFromAssistant bool      `json:"isFromAssistant"`
	Timestamp       time.Time `json:"timestamp"`
	Category        string    `json:"category,omitempty"`
	IsEscalation    bool      `json:"isEscalation,omitempty"`
	Kind            Kind      `json:"kind"`
}
