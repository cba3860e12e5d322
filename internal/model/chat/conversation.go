package chat

import "time"

// Conversation is the scope messages and realtime subscriptions are
// partitioned by. Kept minimal; the id is what everything keys on.
type Conversation struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Participant records a user's membership in a conversation.
type Participant struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	JoinedAt       time.Time `json:"joined_at"`
}
