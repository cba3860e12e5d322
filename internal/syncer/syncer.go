// Package syncer maintains the live, deduplicated, time-ordered view of
// one conversation: it merges an initial snapshot with change-feed
// events, echoes local sends optimistically, tracks who is typing, and
// reloads from scratch whenever its subscriptions drop.
package syncer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/worklink-ua/backend/internal/metrics"
	"github.com/worklink-ua/backend/internal/model/chat"
)

// Status is the connection state reported to the presentation layer.
// Reconnecting is transient, never fatal; the conversation stays usable.
type Status string

const (
	StatusLive         Status = "live"
	StatusReconnecting Status = "reconnecting"
	StatusClosed       Status = "closed"
)

const (
	defaultTypingWindow      = 2 * time.Second
	defaultReconnectMinDelay = 500 * time.Millisecond
	defaultReconnectMaxDelay = 10 * time.Second
)

// MessageStore is the durable collaborator. InsertMessage and
// UpdateMessageText must return the full persisted row synchronously;
// the optimistic echo depends on having the server-assigned id and
// timestamp in hand.
type MessageStore interface {
	ListMessages(ctx context.Context, conversationID string) ([]chat.Message, error)
	InsertMessage(ctx context.Context, draft chat.MessageDraft) (chat.Message, error)
	UpdateMessageText(ctx context.Context, conversationID, messageID, newText string) (chat.Message, error)
	DeleteMessage(ctx context.Context, conversationID, messageID string) error
}

// ChangeSubscription delivers store mutations in publish order. Done is
// closed when the feed is lost; there is no resumption cursor, so the
// only recovery is a fresh snapshot.
type ChangeSubscription interface {
	Events() <-chan chat.ChangeEvent
	Done() <-chan struct{}
	Err() error
	Close()
}

// ChangeFeed hands out per-conversation change subscriptions.
type ChangeFeed interface {
	SubscribeChanges(conversationID string) (ChangeSubscription, error)
}

// TypingSubscription delivers ephemeral typing signals.
type TypingSubscription interface {
	Events() <-chan chat.TypingSignal
	Done() <-chan struct{}
	Err() error
	Close()
}

// Broadcast is the ephemeral channel used for typing signals, best
// effort in both directions.
type Broadcast interface {
	SubscribeTyping(conversationID string) (TypingSubscription, error)
	PublishTyping(sig chat.TypingSignal) error
}

// Options configures one synchronizer session. Store, Feed and Broadcast
// are injected so tests and transports can swap implementations freely.
// Callbacks are optional and always invoked from the session's event
// loop goroutine, never concurrently with each other.
type Options struct {
	ConversationID string
	// UserID is the local participant; it is the sender id for Send and
	// the subject of outgoing typing broadcasts.
	UserID string

	Store     MessageStore
	Feed      ChangeFeed
	Broadcast Broadcast

	// TypingWindow is the silence window after which typing=false is
	// broadcast. Defaults to 2s.
	TypingWindow      time.Duration
	ReconnectMinDelay time.Duration
	ReconnectMaxDelay time.Duration

	Logger zerolog.Logger

	OnSnapshot func(messages []chat.Message)
	OnTyping   func(userIDs []string)
	OnStatus   func(status Status)
}

func (o *Options) validate() error {
	if o.ConversationID == "" {
		return fmt.Errorf("conversation id is required")
	}
	if o.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if o.Store == nil || o.Feed == nil || o.Broadcast == nil {
		return fmt.Errorf("store, feed and broadcast collaborators are required")
	}
	if o.TypingWindow <= 0 {
		o.TypingWindow = defaultTypingWindow
	}
	if o.ReconnectMinDelay <= 0 {
		o.ReconnectMinDelay = defaultReconnectMinDelay
	}
	if o.ReconnectMaxDelay <= 0 {
		o.ReconnectMaxDelay = defaultReconnectMaxDelay
	}
	return nil
}

// Syncer is one live conversation session. All state transitions happen
// on its event loop goroutine; Send/Edit/Remove block their caller only
// for the store round-trip and hand the log mutation to the loop.
type Syncer struct {
	opts   Options
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	log    *messageLog
	typing *typingTracker

	notifier *typingNotifier

	feedSub   ChangeSubscription
	typingSub TypingSubscription

	calls chan func()
	done  chan struct{}

	closeOnce sync.Once
}

// Open bulk-loads the conversation, subscribes to the change feed and
// the broadcast channel, and starts the event loop. On any failure no
// partial state is kept and the caller may simply retry.
func Open(ctx context.Context, opts Options) (*Syncer, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	msgs, err := opts.Store.ListMessages(ctx, opts.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	feedSub, err := opts.Feed.SubscribeChanges(opts.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubscription, err)
	}
	typingSub, err := opts.Broadcast.SubscribeTyping(opts.ConversationID)
	if err != nil {
		feedSub.Close()
		return nil, fmt.Errorf("%w: %w", ErrSubscription, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &Syncer{
		opts: opts,
		logger: opts.Logger.With().
			Str("component", "syncer").
			Str("conversation_id", opts.ConversationID).
			Logger(),
		ctx:       runCtx,
		cancel:    cancel,
		log:       newMessageLog(),
		typing:    newTypingTracker(),
		feedSub:   feedSub,
		typingSub: typingSub,
		calls:     make(chan func(), 16),
		done:      make(chan struct{}),
	}
	s.notifier = newTypingNotifier(opts.TypingWindow, s.publishTyping)
	s.log.reset(msgs)

	go s.run()
	return s, nil
}

func (s *Syncer) publishTyping(active bool) {
	sig := chat.TypingSignal{
		ConversationID: s.opts.ConversationID,
		UserID:         s.opts.UserID,
		Active:         active,
	}
	if err := s.opts.Broadcast.PublishTyping(sig); err != nil {
		// Best effort; the next signal corrects any loss.
		s.logger.Debug().Err(err).Msg("typing broadcast failed")
	}
}

func (s *Syncer) run() {
	defer close(s.done)
	defer s.emitStatus(StatusClosed)

	s.emitStatus(StatusLive)
	s.emitSnapshot()

	for {
		select {
		case <-s.ctx.Done():
			return
		case fn := <-s.calls:
			fn()
		case ev := <-s.feedSub.Events():
			s.apply(ev)
		case sig := <-s.typingSub.Events():
			s.applyTyping(sig)
		case <-s.feedSub.Done():
			if !s.resync(s.feedSub.Err()) {
				return
			}
		case <-s.typingSub.Done():
			if !s.resync(s.typingSub.Err()) {
				return
			}
		}
	}
}

// apply folds one change event into the log. Every branch is a no-op
// when the event is stale or duplicated, which is what makes at-least-
// once, out-of-order delivery safe.
func (s *Syncer) apply(ev chat.ChangeEvent) {
	var changed, typingChanged bool

	s.mu.Lock()
	switch ev.Kind {
	case chat.ChangeInsert:
		if !ev.Message.Valid() {
			s.logger.Warn().Str("kind", string(ev.Kind)).Msg("rejecting malformed feed row")
			break
		}
		changed = s.log.insert(ev.Message)
		// A message from a sender means that sender stopped typing,
		// whether or not the row itself was a duplicate.
		typingChanged = s.typing.clear(ev.Message.SenderID)
	case chat.ChangeUpdate:
		if !ev.Message.Valid() {
			s.logger.Warn().Str("kind", string(ev.Kind)).Msg("rejecting malformed feed row")
			break
		}
		changed = s.log.update(ev.Message)
	case chat.ChangeDelete:
		changed = s.log.remove(ev.MessageID, time.Now())
	}
	s.mu.Unlock()

	if changed {
		s.emitSnapshot()
	}
	if typingChanged {
		s.emitTyping()
	}
}

func (s *Syncer) applyTyping(sig chat.TypingSignal) {
	if sig.UserID == s.opts.UserID {
		return
	}
	s.mu.Lock()
	changed := s.typing.set(sig.UserID, sig.Active)
	s.mu.Unlock()
	if changed {
		s.emitTyping()
	}
}

// resync tears the session down to a fresh snapshot after a lost
// subscription. Reported as transient; retried with exponential backoff
// until it succeeds or the session closes.
func (s *Syncer) resync(cause error) bool {
	s.logger.Warn().Err(cause).Msg("realtime subscription lost, resynchronizing")
	s.emitStatus(StatusReconnecting)

	s.feedSub.Close()
	s.typingSub.Close()

	s.mu.Lock()
	typingChanged := s.typing.reset()
	s.mu.Unlock()
	if typingChanged {
		s.emitTyping()
	}

	delay := s.opts.ReconnectMinDelay
	for {
		select {
		case <-s.ctx.Done():
			return false
		case <-time.After(delay):
		}

		if s.tryResubscribe() {
			metrics.SyncResyncs.Inc()
			s.emitStatus(StatusLive)
			s.emitSnapshot()
			return true
		}

		delay *= 2
		if delay > s.opts.ReconnectMaxDelay {
			delay = s.opts.ReconnectMaxDelay
		}
	}
}

// tryResubscribe subscribes first and loads the snapshot second, so any
// mutation racing the load arrives on the new feed and is absorbed by
// the usual dedup rules.
func (s *Syncer) tryResubscribe() bool {
	feedSub, err := s.opts.Feed.SubscribeChanges(s.opts.ConversationID)
	if err != nil {
		s.logger.Debug().Err(err).Msg("feed resubscribe failed")
		return false
	}
	typingSub, err := s.opts.Broadcast.SubscribeTyping(s.opts.ConversationID)
	if err != nil {
		feedSub.Close()
		s.logger.Debug().Err(err).Msg("broadcast resubscribe failed")
		return false
	}
	msgs, err := s.opts.Store.ListMessages(s.ctx, s.opts.ConversationID)
	if err != nil {
		feedSub.Close()
		typingSub.Close()
		s.logger.Debug().Err(err).Msg("snapshot reload failed")
		return false
	}
	if s.ctx.Err() != nil {
		// Closed while the fetch was in flight; discard, do not apply.
		feedSub.Close()
		typingSub.Close()
		return false
	}

	s.feedSub = feedSub
	s.typingSub = typingSub
	s.mu.Lock()
	s.log.reset(msgs)
	s.mu.Unlock()
	return true
}

// Send validates, persists, then echoes the acknowledged row into the
// local log without waiting for the feed to deliver it back. The feed's
// own copy later collapses into a no-op by id.
func (s *Syncer) Send(ctx context.Context, text, targetLanguage string) (chat.Message, error) {
	if s.closed() {
		return chat.Message{}, ErrClosed
	}
	draft := chat.MessageDraft{
		ConversationID: s.opts.ConversationID,
		SenderID:       s.opts.UserID,
		OriginalText:   text,
		TargetLanguage: targetLanguage,
	}
	if err := draft.Validate(); err != nil {
		return chat.Message{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	msg, err := s.opts.Store.InsertMessage(ctx, draft)
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: %w", ErrSend, err)
	}

	s.notifier.Stop()
	s.do(func() {
		s.apply(chat.ChangeEvent{
			Kind:           chat.ChangeInsert,
			ConversationID: msg.ConversationID,
			Message:        msg,
		})
	})
	return msg, nil
}

// Edit updates a message's text. Unchanged or empty text is a local
// no-op that never reaches the store. Ownership is enforced by the
// store's access policy, not here.
func (s *Syncer) Edit(ctx context.Context, messageID, newText string) (chat.Message, error) {
	if s.closed() {
		return chat.Message{}, ErrClosed
	}
	trimmed := strings.TrimSpace(newText)

	s.mu.RLock()
	existing, ok := s.log.get(messageID)
	s.mu.RUnlock()
	if ok && (trimmed == "" || trimmed == existing.OriginalText) {
		return existing, nil
	}
	if trimmed == "" {
		return chat.Message{}, fmt.Errorf("%w: %w", ErrValidation, chat.ErrEmptyText)
	}

	msg, err := s.opts.Store.UpdateMessageText(ctx, s.opts.ConversationID, messageID, trimmed)
	if err != nil {
		// Log untouched; the caller keeps its edit buffer for retry.
		return chat.Message{}, fmt.Errorf("%w: %w", ErrEdit, err)
	}

	s.do(func() {
		s.apply(chat.ChangeEvent{
			Kind:           chat.ChangeUpdate,
			ConversationID: msg.ConversationID,
			Message:        msg,
		})
	})
	return msg, nil
}

// Remove deletes a message. The local log mutation is driven by the
// feed's delete echo rather than applied optimistically, which also
// sidesteps delete/edit interleavings on the same row.
func (s *Syncer) Remove(ctx context.Context, messageID string) error {
	if s.closed() {
		return ErrClosed
	}
	if err := s.opts.Store.DeleteMessage(ctx, s.opts.ConversationID, messageID); err != nil {
		return fmt.Errorf("%w: %w", ErrDelete, err)
	}
	return nil
}

// SetTyping feeds the outgoing debouncer: active=true marks input
// activity (bursts collapse into one broadcast), active=false ends the
// burst immediately.
func (s *Syncer) SetTyping(active bool) {
	if s.closed() {
		return
	}
	if active {
		s.notifier.Activity()
	} else {
		s.notifier.Stop()
	}
}

// Messages returns the current ordered view.
func (s *Syncer) Messages() []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log.snapshot()
}

// TypingUsers returns the ids currently marked typing, sorted.
func (s *Syncer) TypingUsers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.typing.users()
}

// Close tears the session down: a final typing=false goes out if a burst
// was live, the debounce timer is cancelled, subscriptions are released
// and the loop exits. Idempotent; late feed callbacks are discarded.
// Must not be called from inside a session callback.
func (s *Syncer) Close() {
	s.closeOnce.Do(func() {
		s.notifier.Stop()
		s.notifier.Close()
		s.cancel()
		<-s.done
		s.feedSub.Close()
		s.typingSub.Close()
		s.mu.Lock()
		s.typing.reset()
		s.mu.Unlock()
	})
}

func (s *Syncer) closed() bool {
	select {
	case <-s.ctx.Done():
		return true
	default:
		return false
	}
}

// do hands fn to the event loop, keeping every log mutation serialized.
// Dropped when the session is closing.
func (s *Syncer) do(fn func()) {
	select {
	case s.calls <- fn:
	case <-s.ctx.Done():
	}
}

func (s *Syncer) emitSnapshot() {
	if s.opts.OnSnapshot == nil {
		return
	}
	s.mu.RLock()
	snap := s.log.snapshot()
	s.mu.RUnlock()
	s.opts.OnSnapshot(snap)
}

func (s *Syncer) emitTyping() {
	if s.opts.OnTyping == nil {
		return
	}
	s.mu.RLock()
	users := s.typing.users()
	s.mu.RUnlock()
	s.opts.OnTyping(users)
}

func (s *Syncer) emitStatus(status Status) {
	if s.opts.OnStatus != nil {
		s.opts.OnStatus(status)
	}
}
