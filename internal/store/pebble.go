package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	"github.com/worklink-ua/backend/internal/model/chat"
)

// Pebble persists conversations and messages in a pebble database.
//
// Key layout:
//
//	conv:<conversationID>:meta                      -> Conversation
//	conv:<conversationID>:part:<userID>             -> Participant
//	conv:<conversationID>:msg:<padded ns>-<seq>     -> Message
//	msgidx:<messageID>                              -> primary message key
//
// The timestamp-prefixed message keys make a plain prefix scan return the
// conversation in creation order; the seq suffix keeps keys unique when
// two inserts land on the same nanosecond.
type Pebble struct {
	db  *pebble.DB
	seq uint64
}

// OpenPebble opens (or creates) the database at path.
func OpenPebble(path string) (*Pebble, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	return &Pebble{db: db}, nil
}

func (s *Pebble) Close() error { return s.db.Close() }

func convMetaKey(conversationID string) []byte {
	return []byte(fmt.Sprintf("conv:%s:meta", conversationID))
}

func participantKey(conversationID, userID string) []byte {
	return []byte(fmt.Sprintf("conv:%s:part:%s", conversationID, userID))
}

func messageIndexKey(messageID string) []byte {
	return []byte(fmt.Sprintf("msgidx:%s", messageID))
}

func (s *Pebble) messageKey(conversationID string, ts time.Time) []byte {
	n := atomic.AddUint64(&s.seq, 1)
	return []byte(fmt.Sprintf("conv:%s:msg:%020d-%06d", conversationID, ts.UnixNano(), n))
}

func (s *Pebble) get(key []byte, out any) error {
	val, closer, err := s.db.Get(key)
	if err != nil {
		return err
	}
	defer closer.Close()
	return json.Unmarshal(val, out)
}

func (s *Pebble) set(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Set(key, data, pebble.Sync)
}

func (s *Pebble) EnsureConversation(_ context.Context, conversationID string) (chat.Conversation, error) {
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	var conv chat.Conversation
	err := s.get(convMetaKey(conversationID), &conv)
	if err == nil {
		return conv, nil
	}
	if err != pebble.ErrNotFound {
		return chat.Conversation{}, err
	}

	conv = chat.Conversation{ID: conversationID, CreatedAt: time.Now().UTC()}
	if err := s.set(convMetaKey(conversationID), conv); err != nil {
		return chat.Conversation{}, err
	}
	return conv, nil
}

func (s *Pebble) hasConversation(conversationID string) (bool, error) {
	var conv chat.Conversation
	err := s.get(convMetaKey(conversationID), &conv)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Pebble) AddParticipant(_ context.Context, conversationID, userID string) (chat.Participant, error) {
	ok, err := s.hasConversation(conversationID)
	if err != nil {
		return chat.Participant{}, err
	}
	if !ok {
		return chat.Participant{}, ErrConversationNotFound
	}

	key := participantKey(conversationID, userID)
	var existing chat.Participant
	if err := s.get(key, &existing); err == nil {
		return existing, nil
	} else if err != pebble.ErrNotFound {
		return chat.Participant{}, err
	}

	p := chat.Participant{
		ConversationID: conversationID,
		UserID:         userID,
		JoinedAt:       time.Now().UTC(),
	}
	if err := s.set(key, p); err != nil {
		return chat.Participant{}, err
	}
	return p, nil
}

func (s *Pebble) ListParticipants(_ context.Context, conversationID string) ([]chat.Participant, error) {
	ok, err := s.hasConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConversationNotFound
	}

	prefix := fmt.Sprintf("conv:%s:part:", conversationID)
	return scan[chat.Participant](s.db, prefix)
}

func (s *Pebble) ListMessages(_ context.Context, conversationID string) ([]chat.Message, error) {
	prefix := fmt.Sprintf("conv:%s:msg:", conversationID)
	return scan[chat.Message](s.db, prefix)
}

func (s *Pebble) InsertMessage(_ context.Context, draft chat.MessageDraft) (chat.Message, error) {
	if err := draft.Validate(); err != nil {
		return chat.Message{}, err
	}
	ok, err := s.hasConversation(draft.ConversationID)
	if err != nil {
		return chat.Message{}, err
	}
	if !ok {
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
	key := s.messageKey(msg.ConversationID, msg.CreatedAt)
	if err := s.set(key, msg); err != nil {
		return chat.Message{}, err
	}
	if err := s.db.Set(messageIndexKey(msg.ID), key, pebble.Sync); err != nil {
		return chat.Message{}, err
	}
	return msg, nil
}

// resolveMessage follows the id index back to the primary row.
func (s *Pebble) resolveMessage(conversationID, messageID string) ([]byte, chat.Message, error) {
	val, closer, err := s.db.Get(messageIndexKey(messageID))
	if err == pebble.ErrNotFound {
		return nil, chat.Message{}, ErrNotFound
	}
	if err != nil {
		return nil, chat.Message{}, err
	}
	primary := append([]byte(nil), val...)
	closer.Close()

	var msg chat.Message
	if err := s.get(primary, &msg); err != nil {
		if err == pebble.ErrNotFound {
			return nil, chat.Message{}, ErrNotFound
		}
		return nil, chat.Message{}, err
	}
	if msg.ConversationID != conversationID {
		return nil, chat.Message{}, ErrNotFound
	}
	return primary, msg, nil
}

func (s *Pebble) UpdateMessageText(_ context.Context, conversationID, messageID, newText string) (chat.Message, error) {
	primary, msg, err := s.resolveMessage(conversationID, messageID)
	if err != nil {
		return chat.Message{}, err
	}
	msg.OriginalText = newText
	msg.TranslatedText = ""
	if err := s.set(primary, msg); err != nil {
		return chat.Message{}, err
	}
	return msg, nil
}

func (s *Pebble) DeleteMessage(_ context.Context, conversationID, messageID string) error {
	primary, _, err := s.resolveMessage(conversationID, messageID)
	if err != nil {
		return err
	}
	if err := s.db.Delete(primary, pebble.Sync); err != nil {
		return err
	}
	return s.db.Delete(messageIndexKey(messageID), pebble.Sync)
}

// scan returns every value under prefix in key order.
func scan[T any](db *pebble.DB, prefix string) ([]T, error) {
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: append([]byte(prefix), 0xff),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []T
	for iter.First(); iter.Valid(); iter.Next() {
		var v T
		if err := json.Unmarshal(iter.Value(), &v); err != nil {
			return nil, fmt.Errorf("decode row %q: %w", iter.Key(), err)
		}
		out = append(out, v)
	}
	return out, iter.Error()
}
