package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/worklink-ua/backend/internal/model/chat"
)

// Memory keeps everything in process memory. It is the default backend
// and doubles as the fake store in tests.
type Memory struct {
	mu            sync.RWMutex
	conversations map[string]chat.Conversation
	participants  map[string][]chat.Participant
	messages      map[string][]chat.Message
}

// NewMemory bootstraps an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		conversations: make(map[string]chat.Conversation),
		participants:  make(map[string][]chat.Participant),
		messages:      make(map[string][]chat.Message),
	}
}

func (s *Memory) EnsureConversation(_ context.Context, conversationID string) (chat.Conversation, error) {
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if conv, ok := s.conversations[conversationID]; ok {
		return conv, nil
	}
	conv := chat.Conversation{ID: conversationID, CreatedAt: time.Now().UTC()}
	s.conversations[conversationID] = conv
	return conv, nil
}

func (s *Memory) AddParticipant(_ context.Context, conversationID, userID string) (chat.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return chat.Participant{}, ErrConversationNotFound
	}
	for _, p := range s.participants[conversationID] {
		if p.UserID == userID {
			return p, nil
		}
	}
	p := chat.Participant{
		ConversationID: conversationID,
		UserID:         userID,
		JoinedAt:       time.Now().UTC(),
	}
	s.participants[conversationID] = append(s.participants[conversationID], p)
	return p, nil
}

func (s *Memory) ListParticipants(_ context.Context, conversationID string) ([]chat.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return nil, ErrConversationNotFound
	}
	out := make([]chat.Participant, len(s.participants[conversationID]))
	copy(out, s.participants[conversationID])
	return out, nil
}

func (s *Memory) ListMessages(_ context.Context, conversationID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[conversationID]
	out := make([]chat.Message, len(msgs))
	copy(out, msgs)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}

func (s *Memory) InsertMessage(_ context.Context, draft chat.MessageDraft) (chat.Message, error) {
	if err := draft.Validate(); err != nil {
		return chat.Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[draft.ConversationID]; !ok {
		return chat.Message{}, ErrConversationNotFound
	}
	msg := chat.Message{
		ID:             uuid.NewString(),
		ConversationID: draft.ConversationID,
		SenderID:       draft.SenderID,
		OriginalText:   draft.OriginalText,
		TargetLanguage: draft.TargetLanguage,
		CreatedAt:      time.Now().UTC(),
	}
	s.messages[draft.ConversationID] = append(s.messages[draft.ConversationID], msg)
	return msg, nil
}

func (s *Memory) UpdateMessageText(_ context.Context, conversationID, messageID, newText string) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[conversationID]
	for i, m := range msgs {
		if m.ID == messageID {
			msgs[i].OriginalText = newText
			// Edits invalidate a translation made for the old text.
			msgs[i].TranslatedText = ""
			return msgs[i], nil
		}
	}
	return chat.Message{}, ErrNotFound
}

func (s *Memory) DeleteMessage(_ context.Context, conversationID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[conversationID]
	for i, m := range msgs {
		if m.ID == messageID {
			s.messages[conversationID] = append(msgs[:i], msgs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *Memory) Close() error { return nil }
