package chat

// ChangeKind tags a change-feed event.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// ChangeEvent is one row-level store mutation pushed over the change feed.
// Insert and update carry the full persisted row; delete carries only the
// id. Delivery is at least once and may arrive out of creation order.
type ChangeEvent struct {
	Kind           ChangeKind `json:"kind"`
	ConversationID string     `json:"conversation_id"`
	Message        Message    `json:"message,omitempty"`
	MessageID      string     `json:"message_id,omitempty"`
}

// TypingSignal is an ephemeral broadcast; nothing about it is persisted
// and last-broadcast-wins per user.
type TypingSignal struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Active         bool   `json:"active"`
}
