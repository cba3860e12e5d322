package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worklink-ua/backend/internal/model/chat"
)

// backends runs the contract suite against every Store implementation.
func backends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		s := NewMemory()
		defer s.Close()
		fn(t, s)
	})
	t.Run("pebble", func(t *testing.T) {
		s, err := OpenPebble(filepath.Join(t.TempDir(), "chat"))
		require.NoError(t, err)
		defer s.Close()
		fn(t, s)
	})
}

func draft(conversationID, senderID, text string) chat.MessageDraft {
	return chat.MessageDraft{
		ConversationID: conversationID,
		SenderID:       senderID,
		OriginalText:   text,
	}
}

func TestEnsureConversationIsIdempotent(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		first, err := s.EnsureConversation(ctx, "conv-1")
		require.NoError(t, err)
		assert.Equal(t, "conv-1", first.ID)

		second, err := s.EnsureConversation(ctx, "conv-1")
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestEnsureConversationGeneratesID(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		conv, err := s.EnsureConversation(context.Background(), "")
		require.NoError(t, err)
		assert.NotEmpty(t, conv.ID)
	})
}

func TestAddParticipantIsIdempotent(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.EnsureConversation(ctx, "conv-1")
		require.NoError(t, err)

		first, err := s.AddParticipant(ctx, "conv-1", "u1")
		require.NoError(t, err)
		second, err := s.AddParticipant(ctx, "conv-1", "u1")
		require.NoError(t, err)
		assert.Equal(t, first, second)

		_, err = s.AddParticipant(ctx, "conv-1", "u2")
		require.NoError(t, err)

		parts, err := s.ListParticipants(ctx, "conv-1")
		require.NoError(t, err)
		assert.Len(t, parts, 2)
	})
}

func TestParticipantOpsRequireConversation(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.AddParticipant(ctx, "missing", "u1")
		require.ErrorIs(t, err, ErrConversationNotFound)

		_, err = s.ListParticipants(ctx, "missing")
		require.ErrorIs(t, err, ErrConversationNotFound)
	})
}

func TestInsertAssignsIDAndTimestamp(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.EnsureConversation(ctx, "conv-1")
		require.NoError(t, err)

		msg, err := s.InsertMessage(ctx, draft("conv-1", "u1", "hello"))
		require.NoError(t, err)
		assert.NotEmpty(t, msg.ID)
		assert.False(t, msg.CreatedAt.IsZero())
		assert.Equal(t, "hello", msg.OriginalText)
	})
}

func TestInsertRejectsInvalidDraft(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.EnsureConversation(ctx, "conv-1")
		require.NoError(t, err)

		_, err = s.InsertMessage(ctx, draft("conv-1", "u1", "   "))
		require.ErrorIs(t, err, chat.ErrEmptyText)

		_, err = s.InsertMessage(ctx, draft("missing", "u1", "hi"))
		require.ErrorIs(t, err, ErrConversationNotFound)
	})
}

func TestListMessagesReturnsCreationOrder(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.EnsureConversation(ctx, "conv-1")
		require.NoError(t, err)

		var want []string
		for _, text := range []string{"one", "two", "three"} {
			msg, err := s.InsertMessage(ctx, draft("conv-1", "u1", text))
			require.NoError(t, err)
			want = append(want, msg.ID)
			// Distinct timestamps keep the order key unambiguous.
			time.Sleep(2 * time.Millisecond)
		}

		msgs, err := s.ListMessages(ctx, "conv-1")
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		for i, m := range msgs {
			assert.Equal(t, want[i], m.ID)
			if i > 0 {
				assert.True(t, msgs[i-1].Less(m) || msgs[i-1].CreatedAt.Equal(m.CreatedAt))
			}
		}
	})
}

func TestListMessagesIsolatesConversations(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, id := range []string{"conv-1", "conv-2"} {
			_, err := s.EnsureConversation(ctx, id)
			require.NoError(t, err)
		}
		_, err := s.InsertMessage(ctx, draft("conv-1", "u1", "here"))
		require.NoError(t, err)

		msgs, err := s.ListMessages(ctx, "conv-2")
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})
}

func TestUpdateMessageTextClearsTranslation(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.EnsureConversation(ctx, "conv-1")
		require.NoError(t, err)

		msg, err := s.InsertMessage(ctx, draft("conv-1", "u1", "hello"))
		require.NoError(t, err)

		updated, err := s.UpdateMessageText(ctx, "conv-1", msg.ID, "edited")
		require.NoError(t, err)
		assert.Equal(t, "edited", updated.OriginalText)
		assert.Empty(t, updated.TranslatedText)
		assert.Equal(t, msg.ID, updated.ID)
		assert.True(t, msg.CreatedAt.Equal(updated.CreatedAt), "edits keep the original order key")

		msgs, err := s.ListMessages(ctx, "conv-1")
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "edited", msgs[0].OriginalText)
	})
}

func TestUpdateUnknownMessage(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.EnsureConversation(ctx, "conv-1")
		require.NoError(t, err)

		_, err = s.UpdateMessageText(ctx, "conv-1", "no-such-id", "x")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUpdateRefusesCrossConversationID(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, id := range []string{"conv-1", "conv-2"} {
			_, err := s.EnsureConversation(ctx, id)
			require.NoError(t, err)
		}
		msg, err := s.InsertMessage(ctx, draft("conv-1", "u1", "hello"))
		require.NoError(t, err)

		// The id exists, but not under this conversation.
		_, err = s.UpdateMessageText(ctx, "conv-2", msg.ID, "x")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDeleteMessage(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.EnsureConversation(ctx, "conv-1")
		require.NoError(t, err)

		msg, err := s.InsertMessage(ctx, draft("conv-1", "u1", "hello"))
		require.NoError(t, err)

		require.NoError(t, s.DeleteMessage(ctx, "conv-1", msg.ID))
		require.ErrorIs(t, s.DeleteMessage(ctx, "conv-1", msg.ID), ErrNotFound)

		msgs, err := s.ListMessages(ctx, "conv-1")
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})
}

func TestPebbleSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chat")

	s, err := OpenPebble(path)
	require.NoError(t, err)
	_, err = s.EnsureConversation(ctx, "conv-1")
	require.NoError(t, err)
	_, err = s.AddParticipant(ctx, "conv-1", "u1")
	require.NoError(t, err)
	msg, err := s.InsertMessage(ctx, draft("conv-1", "u1", "durable"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := OpenPebble(path)
	require.NoError(t, err)
	defer reopened.Close()

	msgs, err := reopened.ListMessages(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, msg.ID, msgs[0].ID)
	assert.Equal(t, "durable", msgs[0].OriginalText)

	parts, err := reopened.ListParticipants(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "u1", parts[0].UserID)
}
