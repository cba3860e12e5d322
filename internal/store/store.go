package store

import (
	"context"
	"errors"

	"github.com/worklink-ua/backend/internal/model/chat"
)

var (
	ErrNotFound             = errors.New("message not found")
	ErrConversationNotFound = errors.New("conversation not found")
)

// Store is the durable side of the chat system. Both backends implement
// it: the in-memory one used by tests and default runs, and the pebble
// one used when a data directory is configured.
//
// InsertMessage assigns the id and server timestamp and returns the full
// persisted row synchronously; the synchronizer's optimistic echo depends
// on that contract.
type Store interface {
	ListMessages(ctx context.Context, conversationID string) ([]chat.Message, error)
	InsertMessage(ctx context.Context, draft chat.MessageDraft) (chat.Message, error)
	UpdateMessageText(ctx context.Context, conversationID, messageID, newText string) (chat.Message, error)
	DeleteMessage(ctx context.Context, conversationID, messageID string) error

	EnsureConversation(ctx context.Context, conversationID string) (chat.Conversation, error)
	AddParticipant(ctx context.Context, conversationID, userID string) (chat.Participant, error)
	ListParticipants(ctx context.Context, conversationID string) ([]chat.Participant, error)

	Close() error
}
