// Package chat is the server-side write path: it persists mutations
// through the store and publishes the resulting change events, so every
// feed subscriber (including the mutating client itself) observes the
// same row-level stream the store confirmed.
package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/worklink-ua/backend/internal/metrics"
	"github.com/worklink-ua/backend/internal/model/chat"
	"github.com/worklink-ua/backend/internal/realtime"
	"github.com/worklink-ua/backend/internal/store"
	"github.com/worklink-ua/backend/internal/syncer"
)

var ErrNotFound = errors.New("message not found")

// Service encapsulates conversation state management. It satisfies
// syncer.MessageStore, so synchronizer sessions run through the same
// path as the REST surface.
type Service struct {
	store  store.Store
	feed   *realtime.FeedHub
	typing *realtime.TypingHub
	logger zerolog.Logger
}

// NewService wires the store and the realtime hubs together.
func NewService(st store.Store, feed *realtime.FeedHub, typing *realtime.TypingHub, logger zerolog.Logger) *Service {
	return &Service{
		store:  st,
		feed:   feed,
		typing: typing,
		logger: logger.With().Str("component", "chat_service").Logger(),
	}
}

// EnsureConversation creates the conversation if it does not exist yet.
// Safe to race; whichever caller loses simply observes the existing row.
func (s *Service) EnsureConversation(ctx context.Context, conversationID string) (chat.Conversation, error) {
	return s.store.EnsureConversation(ctx, conversationID)
}

// Join adds a user to a conversation, idempotently.
func (s *Service) Join(ctx context.Context, conversationID, userID string) (chat.Participant, error) {
	return s.store.AddParticipant(ctx, conversationID, userID)
}

func (s *Service) Participants(ctx context.Context, conversationID string) ([]chat.Participant, error) {
	return s.store.ListParticipants(ctx, conversationID)
}

// ListMessages returns the conversation ordered by creation time
// ascending, malformed rows filtered out at the boundary.
func (s *Service) ListMessages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	msgs, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	valid := msgs[:0]
	for _, m := range msgs {
		if !m.Valid() {
			s.logger.Warn().Str("conversation_id", conversationID).Msg("dropping malformed message row")
			continue
		}
		valid = append(valid, m)
	}
	return valid, nil
}

// InsertMessage persists the draft and publishes the insert event. The
// returned row carries the store-assigned id and timestamp.
func (s *Service) InsertMessage(ctx context.Context, draft chat.MessageDraft) (chat.Message, error) {
	msg, err := s.store.InsertMessage(ctx, draft)
	if err != nil {
		return chat.Message{}, err
	}
	s.publish(chat.ChangeEvent{
		Kind:           chat.ChangeInsert,
		ConversationID: msg.ConversationID,
		Message:        msg,
	})
	metrics.MessagesSent.Inc()
	s.logger.Debug().
		Str("conversation_id", msg.ConversationID).
		Str("message_id", msg.ID).
		Msg("message inserted")
	return msg, nil
}

// UpdateMessageText rewrites a message's text and publishes the update.
// The text is trimmed and must stay non-empty, the same contract inserts
// enforce.
func (s *Service) UpdateMessageText(ctx context.Context, conversationID, messageID, newText string) (chat.Message, error) {
	newText = strings.TrimSpace(newText)
	if newText == "" {
		return chat.Message{}, chat.ErrEmptyText
	}
	msg, err := s.store.UpdateMessageText(ctx, conversationID, messageID, newText)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return chat.Message{}, ErrNotFound
		}
		return chat.Message{}, err
	}
	s.publish(chat.ChangeEvent{
		Kind:           chat.ChangeUpdate,
		ConversationID: msg.ConversationID,
		Message:        msg,
	})
	metrics.MessagesEdited.Inc()
	return msg, nil
}

// DeleteMessage removes a message and publishes the delete.
func (s *Service) DeleteMessage(ctx context.Context, conversationID, messageID string) error {
	if err := s.store.DeleteMessage(ctx, conversationID, messageID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.publish(chat.ChangeEvent{
		Kind:           chat.ChangeDelete,
		ConversationID: conversationID,
		MessageID:      messageID,
	})
	metrics.MessagesDeleted.Inc()
	return nil
}

func (s *Service) publish(ev chat.ChangeEvent) {
	s.feed.Publish(ev)
	metrics.FeedEvents.WithLabelValues(string(ev.Kind)).Inc()
}

// SubscribeChanges implements syncer.ChangeFeed.
func (s *Service) SubscribeChanges(conversationID string) (syncer.ChangeSubscription, error) {
	return s.feed.Subscribe(conversationID), nil
}

// SubscribeTyping implements syncer.Broadcast.
func (s *Service) SubscribeTyping(conversationID string) (syncer.TypingSubscription, error) {
	return s.typing.Subscribe(conversationID), nil
}

// PublishTyping implements syncer.Broadcast.
func (s *Service) PublishTyping(sig chat.TypingSignal) error {
	s.typing.Publish(sig)
	return nil
}
