package conversation

import "time"

// Message is one turn of a conversation kept for operator debugging.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	State     State     `json:"state,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message senders.
const (
	SenderUser = "user"
	SenderBot  = "bot"
)
