package syncer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type broadcastRecorder struct {
	mu    sync.Mutex
	calls []bool
}

func (r *broadcastRecorder) record(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, active)
}

func (r *broadcastRecorder) snapshot() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bool, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *broadcastRecorder) waitLen(t *testing.T, n int) []bool {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := r.snapshot(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d broadcasts, got %v", n, r.snapshot())
	return nil
}

func TestTypingNotifierCollapsesBurst(t *testing.T) {
	rec := &broadcastRecorder{}
	n := newTypingNotifier(80*time.Millisecond, rec.record)
	defer n.Close()

	// A burst of input events within the window.
	n.Activity()
	time.Sleep(20 * time.Millisecond)
	n.Activity()
	time.Sleep(20 * time.Millisecond)
	n.Activity()

	// Exactly one true so far.
	assert.Equal(t, []bool{true}, rec.snapshot())

	// One false once the window elapses in silence.
	got := rec.waitLen(t, 2)
	assert.Equal(t, []bool{true, false}, got)
}

func TestTypingNotifierActivityExtendsWindow(t *testing.T) {
	rec := &broadcastRecorder{}
	n := newTypingNotifier(100*time.Millisecond, rec.record)
	defer n.Close()

	n.Activity()
	time.Sleep(60 * time.Millisecond)
	n.Activity()
	time.Sleep(60 * time.Millisecond)

	// 120ms after the first event, but only 60ms after the last: the
	// window must not have expired yet.
	assert.Equal(t, []bool{true}, rec.snapshot())

	got := rec.waitLen(t, 2)
	assert.Equal(t, []bool{true, false}, got)
}

func TestTypingNotifierStopShortCircuits(t *testing.T) {
	rec := &broadcastRecorder{}
	n := newTypingNotifier(time.Hour, rec.record)
	defer n.Close()

	n.Activity()
	n.Stop()

	assert.Equal(t, []bool{true, false}, rec.snapshot())

	// The cancelled timer must not fire a second false.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []bool{true, false}, rec.snapshot())
}

func TestTypingNotifierStopWithoutBurstIsNoop(t *testing.T) {
	rec := &broadcastRecorder{}
	n := newTypingNotifier(time.Hour, rec.record)
	defer n.Close()

	n.Stop()
	assert.Empty(t, rec.snapshot())
}

func TestTypingNotifierCloseSilencesPendingTimer(t *testing.T) {
	rec := &broadcastRecorder{}
	n := newTypingNotifier(30*time.Millisecond, rec.record)

	n.Activity()
	n.Close()

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, []bool{true}, rec.snapshot())

	// Activity after close is ignored.
	n.Activity()
	assert.Equal(t, []bool{true}, rec.snapshot())
}

func TestTypingTrackerLastBroadcastWins(t *testing.T) {
	tr := newTypingTracker()

	require.True(t, tr.set("u1", true))
	require.False(t, tr.set("u1", true))
	require.True(t, tr.set("u2", true))
	assert.Equal(t, []string{"u1", "u2"}, tr.users())

	require.True(t, tr.set("u1", false))
	require.False(t, tr.set("u1", false))
	assert.Equal(t, []string{"u2"}, tr.users())
}

func TestTypingTrackerReset(t *testing.T) {
	tr := newTypingTracker()
	tr.set("u1", true)

	require.True(t, tr.reset())
	require.False(t, tr.reset())
	assert.Empty(t, tr.users())
}
