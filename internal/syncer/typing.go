package syncer

import (
	"sort"
	"sync"
	"time"
)

// typingTracker holds the volatile set of currently-typing participants,
// fed by incoming broadcast signals. Last broadcast wins per user.
// Mutated only from the syncer loop.
type typingTracker struct {
	active map[string]struct{}
}

func newTypingTracker() *typingTracker {
	return &typingTracker{active: make(map[string]struct{})}
}

// set applies a signal and reports whether the visible set changed.
func (t *typingTracker) set(userID string, active bool) bool {
	if active {
		if _, ok := t.active[userID]; ok {
			return false
		}
		t.active[userID] = struct{}{}
		return true
	}
	return t.clear(userID)
}

// clear drops a user's flag, used both for typing=false signals and as a
// side effect of that user's message arriving.
func (t *typingTracker) clear(userID string) bool {
	if _, ok := t.active[userID]; !ok {
		return false
	}
	delete(t.active, userID)
	return true
}

func (t *typingTracker) reset() bool {
	if len(t.active) == 0 {
		return false
	}
	t.active = make(map[string]struct{})
	return true
}

func (t *typingTracker) users() []string {
	out := make([]string, 0, len(t.active))
	for id := range t.active {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// typingNotifier debounces outgoing typing broadcasts: a burst of input
// activity collapses into one typing=true, and exactly one typing=false
// fires once the window elapses with no further activity. Sending a
// message short-circuits the window via Stop.
type typingNotifier struct {
	mu      sync.Mutex
	window  time.Duration
	publish func(active bool)
	active  bool
	timer   *time.Timer
	closed  bool
}

func newTypingNotifier(window time.Duration, publish func(active bool)) *typingNotifier {
	return &typingNotifier{window: window, publish: publish}
}

// Activity records one input event. The first event of a burst
// broadcasts typing=true; every event pushes the silence window out.
func (n *typingNotifier) Activity() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	if !n.active {
		n.active = true
		n.publish(true)
	}
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.window, n.expire)
}

func (n *typingNotifier) expire() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed || !n.active {
		return
	}
	n.active = false
	n.publish(false)
}

// Stop cancels the window and broadcasts typing=false immediately if a
// burst was in progress.
func (n *typingNotifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	if n.closed || !n.active {
		return
	}
	n.active = false
	n.publish(false)
}

// Close cancels any pending timer without broadcasting anything further.
func (n *typingNotifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}
