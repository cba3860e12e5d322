// Package realtime provides the in-process push channels: a change feed
// carrying row-level store mutations and an ephemeral broadcast channel
// carrying typing signals. Both are scoped by conversation id.
package realtime

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/worklink-ua/backend/internal/model/chat"
)

// ErrSlowConsumer is reported on a subscription whose buffer overflowed.
// The subscriber missed events and must resynchronize from a snapshot;
// the feed has no resumption cursor.
var ErrSlowConsumer = errors.New("subscriber fell behind, events dropped")

// subscriberBuffer is the per-subscription channel depth. A consumer that
// lags this far behind is cut off rather than blocking the publisher.
const subscriberBuffer = 64

// Subscription is one subscriber's view of a hub. Events arrive on
// Events in publish order. Done is closed when the subscription ends;
// Err reports why (nil after a local Close).
type Subscription[T any] struct {
	events chan T
	done   chan struct{}
	err    error
	once   sync.Once
	cancel func()
}

func (s *Subscription[T]) Events() <-chan T { return s.events }

func (s *Subscription[T]) Done() <-chan struct{} { return s.done }

// Err is valid once Done is closed.
func (s *Subscription[T]) Err() error { return s.err }

// Close detaches the subscription. Idempotent.
func (s *Subscription[T]) Close() {
	s.cancel()
	s.fail(nil)
}

func (s *Subscription[T]) fail(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
	})
}

// hub is a per-conversation fan-out registry.
type hub[T any] struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription[T]]struct{}
	logger zerolog.Logger
}

func newHub[T any](logger zerolog.Logger) *hub[T] {
	return &hub[T]{
		subs:   make(map[string]map[*Subscription[T]]struct{}),
		logger: logger,
	}
}

func (h *hub[T]) subscribe(conversationID string) *Subscription[T] {
	sub := &Subscription[T]{
		events: make(chan T, subscriberBuffer),
		done:   make(chan struct{}),
	}
	sub.cancel = func() { h.unsubscribe(conversationID, sub) }

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[conversationID] == nil {
		h.subs[conversationID] = make(map[*Subscription[T]]struct{})
	}
	h.subs[conversationID][sub] = struct{}{}
	return sub
}

func (h *hub[T]) unsubscribe(conversationID string, sub *Subscription[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[conversationID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, conversationID)
		}
	}
}

// publish delivers ev to every live subscriber of the conversation.
// Publishers never block: a subscriber whose buffer is full is dropped
// and its subscription reports ErrSlowConsumer.
func (h *hub[T]) publish(conversationID string, ev T) {
	h.mu.Lock()
	var dropped []*Subscription[T]
	for sub := range h.subs[conversationID] {
		select {
		case sub.events <- ev:
		default:
			dropped = append(dropped, sub)
		}
	}
	for _, sub := range dropped {
		delete(h.subs[conversationID], sub)
	}
	h.mu.Unlock()

	for _, sub := range dropped {
		h.logger.Warn().Str("conversation_id", conversationID).Msg("dropping slow realtime subscriber")
		sub.fail(ErrSlowConsumer)
	}
}

func (h *hub[T]) subscriberCount(conversationID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[conversationID])
}

// FeedHub fans out store change events.
type FeedHub struct {
	hub *hub[chat.ChangeEvent]
}

func NewFeedHub(logger zerolog.Logger) *FeedHub {
	return &FeedHub{hub: newHub[chat.ChangeEvent](logger.With().Str("component", "feed_hub").Logger())}
}

func (h *FeedHub) Subscribe(conversationID string) *Subscription[chat.ChangeEvent] {
	return h.hub.subscribe(conversationID)
}

func (h *FeedHub) Publish(ev chat.ChangeEvent) {
	h.hub.publish(ev.ConversationID, ev)
}

func (h *FeedHub) Subscribers(conversationID string) int {
	return h.hub.subscriberCount(conversationID)
}

// TypingHub fans out ephemeral typing signals. Best effort only; a
// dropped signal is corrected by the next one.
type TypingHub struct {
	hub *hub[chat.TypingSignal]
}

func NewTypingHub(logger zerolog.Logger) *TypingHub {
	return &TypingHub{hub: newHub[chat.TypingSignal](logger.With().Str("component", "typing_hub").Logger())}
}

func (h *TypingHub) Subscribe(conversationID string) *Subscription[chat.TypingSignal] {
	return h.hub.subscribe(conversationID)
}

func (h *TypingHub) Publish(sig chat.TypingSignal) {
	h.hub.publish(sig.ConversationID, sig)
}
