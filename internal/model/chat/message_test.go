package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageLess(t *testing.T) {
	earlier := Message{ID: "b", CreatedAt: time.Unix(5, 0)}
	later := Message{ID: "a", CreatedAt: time.Unix(10, 0)}

	assert.True(t, earlier.Less(later))
	assert.False(t, later.Less(earlier))

	// Equal timestamps fall back to id so the order stays total.
	tied := Message{ID: "a", CreatedAt: time.Unix(5, 0)}
	assert.True(t, tied.Less(earlier))
	assert.False(t, earlier.Less(tied))
	assert.False(t, tied.Less(tied))
}

func TestMessageValid(t *testing.T) {
	m := Message{
		ID:             "m1",
		ConversationID: "conv-1",
		SenderID:       "u1",
		CreatedAt:      time.Unix(5, 0),
	}
	require.True(t, m.Valid())

	for name, mutate := range map[string]func(*Message){
		"missing id":           func(m *Message) { m.ID = "" },
		"missing conversation": func(m *Message) { m.ConversationID = "" },
		"missing sender":       func(m *Message) { m.SenderID = "" },
		"zero timestamp":       func(m *Message) { m.CreatedAt = time.Time{} },
	} {
		broken := m
		mutate(&broken)
		assert.False(t, broken.Valid(), name)
	}
}

func TestDraftValidateTrimsText(t *testing.T) {
	d := MessageDraft{ConversationID: "conv-1", SenderID: "u1", OriginalText: "  hello  "}
	require.NoError(t, d.Validate())
	assert.Equal(t, "hello", d.OriginalText)
}

func TestDraftValidateErrors(t *testing.T) {
	d := MessageDraft{ConversationID: "conv-1", SenderID: "u1", OriginalText: " \t\n "}
	require.ErrorIs(t, d.Validate(), ErrEmptyText)

	d = MessageDraft{SenderID: "u1", OriginalText: "hi"}
	require.ErrorIs(t, d.Validate(), ErrConversationIDMissing)

	d = MessageDraft{ConversationID: "conv-1", OriginalText: "hi"}
	require.ErrorIs(t, d.Validate(), ErrSenderIDMissing)
}
