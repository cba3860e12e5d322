package chat

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrEmptyText             = errors.New("message text is empty")
	ErrConversationIDMissing = errors.New("conversation id is required")
	ErrSenderIDMissing       = errors.New("sender id is required")
	ErrMalformedRow          = errors.New("malformed message row")
)

// Message is one persisted conversation entry. IDs and timestamps are
// assigned by the store; timestamps are not guaranteed unique across
// senders, so ordering always uses the (CreatedAt, ID) pair.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	OriginalText   string    `json:"original_text"`
	TranslatedText string    `json:"translated_text,omitempty"`
	TargetLanguage string    `json:"target_language,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Valid reports whether a store row carries the fields every consumer
// relies on. Invalid rows are rejected at the store boundary instead of
// leaking half-formed entries into a log.
func (m Message) Valid() bool {
	return m.ID != "" && m.ConversationID != "" && m.SenderID != "" && !m.CreatedAt.IsZero()
}

// Less orders messages by creation time ascending, ties broken by id so
// the order stays total when two senders share a timestamp.
func (m Message) Less(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

// MessageDraft is the client-supplied part of a message, validated before
// it ever reaches a store.
type MessageDraft struct {
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	OriginalText   string `json:"original_text"`
	TargetLanguage string `json:"target_language,omitempty"`
}

// Validate trims the text and checks required fields. The trimmed text is
// written back so stores persist the canonical form.
func (d *MessageDraft) Validate() error {
	d.OriginalText = strings.TrimSpace(d.OriginalText)
	if d.OriginalText == "" {
		return ErrEmptyText
	}
	if d.ConversationID == "" {
		return ErrConversationIDMissing
	}
	if d.SenderID == "" {
		return ErrSenderIDMissing
	}
	return nil
}
