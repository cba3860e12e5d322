package chat_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worklink-ua/backend/internal/model/chat"
	"github.com/worklink-ua/backend/internal/realtime"
	chatservice "github.com/worklink-ua/backend/internal/service/chat"
	"github.com/worklink-ua/backend/internal/store"
	"github.com/worklink-ua/backend/internal/syncer"
)

func newService(t *testing.T) *chatservice.Service {
	t.Helper()
	st := store.NewMemory()
	t.Cleanup(func() { st.Close() })
	return chatservice.NewService(st, realtime.NewFeedHub(zerolog.Nop()), realtime.NewTypingHub(zerolog.Nop()), zerolog.Nop())
}

func nextEvent(t *testing.T, sub syncer.ChangeSubscription) chat.ChangeEvent {
	t.Helper()
	select {
	case ev := <-sub.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
		panic("unreachable")
	}
}

func TestInsertPublishesChangeEvent(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.EnsureConversation(ctx, "conv-1")
	require.NoError(t, err)

	sub, err := svc.SubscribeChanges("conv-1")
	require.NoError(t, err)
	defer sub.Close()

	msg, err := svc.InsertMessage(ctx, chat.MessageDraft{
		ConversationID: "conv-1",
		SenderID:       "u1",
		OriginalText:   "hello",
	})
	require.NoError(t, err)

	ev := nextEvent(t, sub)
	assert.Equal(t, chat.ChangeInsert, ev.Kind)
	assert.Equal(t, msg, ev.Message)
}

func TestUpdatePublishesFullRow(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.EnsureConversation(ctx, "conv-1")
	require.NoError(t, err)
	msg, err := svc.InsertMessage(ctx, chat.MessageDraft{
		ConversationID: "conv-1",
		SenderID:       "u1",
		OriginalText:   "hello",
	})
	require.NoError(t, err)

	sub, err := svc.SubscribeChanges("conv-1")
	require.NoError(t, err)
	defer sub.Close()

	updated, err := svc.UpdateMessageText(ctx, "conv-1", msg.ID, "edited")
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.OriginalText)

	ev := nextEvent(t, sub)
	assert.Equal(t, chat.ChangeUpdate, ev.Kind)
	assert.Equal(t, "edited", ev.Message.OriginalText)
}

func TestDeletePublishesIDOnly(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.EnsureConversation(ctx, "conv-1")
	require.NoError(t, err)
	msg, err := svc.InsertMessage(ctx, chat.MessageDraft{
		ConversationID: "conv-1",
		SenderID:       "u1",
		OriginalText:   "hello",
	})
	require.NoError(t, err)

	sub, err := svc.SubscribeChanges("conv-1")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, svc.DeleteMessage(ctx, "conv-1", msg.ID))

	ev := nextEvent(t, sub)
	assert.Equal(t, chat.ChangeDelete, ev.Kind)
	assert.Equal(t, msg.ID, ev.MessageID)
	assert.Empty(t, ev.Message.ID, "delete events carry only the id")
}

func TestUpdateRejectsWhitespaceText(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.EnsureConversation(ctx, "conv-1")
	require.NoError(t, err)
	msg, err := svc.InsertMessage(ctx, chat.MessageDraft{
		ConversationID: "conv-1",
		SenderID:       "u1",
		OriginalText:   "hello",
	})
	require.NoError(t, err)

	sub, err := svc.SubscribeChanges("conv-1")
	require.NoError(t, err)
	defer sub.Close()

	_, err = svc.UpdateMessageText(ctx, "conv-1", msg.ID, "   ")
	require.ErrorIs(t, err, chat.ErrEmptyText)

	msgs, err := svc.ListMessages(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].OriginalText)

	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event after rejected edit: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUpdateTrimsText(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.EnsureConversation(ctx, "conv-1")
	require.NoError(t, err)
	msg, err := svc.InsertMessage(ctx, chat.MessageDraft{
		ConversationID: "conv-1",
		SenderID:       "u1",
		OriginalText:   "hello",
	})
	require.NoError(t, err)

	updated, err := svc.UpdateMessageText(ctx, "conv-1", msg.ID, "  padded  ")
	require.NoError(t, err)
	assert.Equal(t, "padded", updated.OriginalText)
}

func TestMutationErrorsDoNotPublish(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.EnsureConversation(ctx, "conv-1")
	require.NoError(t, err)

	sub, err := svc.SubscribeChanges("conv-1")
	require.NoError(t, err)
	defer sub.Close()

	_, err = svc.UpdateMessageText(ctx, "conv-1", "no-such-id", "x")
	require.ErrorIs(t, err, chatservice.ErrNotFound)
	require.ErrorIs(t, svc.DeleteMessage(ctx, "conv-1", "no-such-id"), chatservice.ErrNotFound)

	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event after failed mutation: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTypingRoundTrip(t *testing.T) {
	svc := newService(t)

	sub, err := svc.SubscribeTyping("conv-1")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, svc.PublishTyping(chat.TypingSignal{
		ConversationID: "conv-1",
		UserID:         "u2",
		Active:         true,
	}))

	select {
	case sig := <-sub.Events():
		assert.Equal(t, "u2", sig.UserID)
		assert.True(t, sig.Active)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for typing signal")
	}
}
