package syncer

import (
	"sort"
	"time"

	"github.com/worklink-ua/backend/internal/model/chat"
)

// tombstoneTTL bounds how long a delete-before-insert marker is kept.
// The window only needs to cover feed reordering, not history.
const tombstoneTTL = time.Minute

// messageLog is the deduplicated, time-ordered message sequence for one
// conversation. Entries are kept sorted by (created_at, id) on every
// mutation, so reads never sort. Not goroutine safe; the syncer
// serializes access.
type messageLog struct {
	entries    []chat.Message
	present    map[string]struct{}
	tombstones map[string]time.Time
}

func newMessageLog() *messageLog {
	return &messageLog{
		present:    make(map[string]struct{}),
		tombstones: make(map[string]time.Time),
	}
}

// reset replaces the whole log with a fresh snapshot. Tombstones are
// dropped: the snapshot is authoritative about what exists.
func (l *messageLog) reset(msgs []chat.Message) {
	l.entries = l.entries[:0]
	l.present = make(map[string]struct{}, len(msgs))
	l.tombstones = make(map[string]time.Time)
	for _, m := range msgs {
		l.insert(m)
	}
}

// insert places m by its order key. Returns false without mutating when
// the id is already present, tombstoned, or the row is malformed.
func (l *messageLog) insert(m chat.Message) bool {
	if !m.Valid() {
		return false
	}
	if _, dup := l.present[m.ID]; dup {
		return false
	}
	if _, dead := l.tombstones[m.ID]; dead {
		return false
	}
	i := sort.Search(len(l.entries), func(i int) bool { return m.Less(l.entries[i]) })
	l.entries = append(l.entries, chat.Message{})
	copy(l.entries[i+1:], l.entries[i:])
	l.entries[i] = m
	l.present[m.ID] = struct{}{}
	return true
}

// update replaces the entry with m's id, or inserts m when the id is
// unknown (update-before-insert race). Returns false when nothing
// visibly changed.
func (l *messageLog) update(m chat.Message) bool {
	if !m.Valid() {
		return false
	}
	idx := l.indexOf(m.ID)
	if idx < 0 {
		return l.insert(m)
	}
	if l.entries[idx] == m {
		return false
	}
	// Remove and re-insert so a changed timestamp cannot break the sort
	// invariant.
	l.removeAt(idx)
	l.insert(m)
	return true
}

// remove deletes the entry with the given id. Every delete records a
// tombstone: at-least-once delivery means the original insert can be
// replayed after the delete (or arrive before it), and neither ordering
// may resurrect the message.
func (l *messageLog) remove(id string, now time.Time) bool {
	l.tombstones[id] = now
	l.pruneTombstones(now)
	idx := l.indexOf(id)
	if idx < 0 {
		return false
	}
	l.removeAt(idx)
	return true
}

func (l *messageLog) removeAt(idx int) {
	delete(l.present, l.entries[idx].ID)
	l.entries = append(l.entries[:idx], l.entries[idx+1:]...)
}

func (l *messageLog) indexOf(id string) int {
	for i := range l.entries {
		if l.entries[i].ID == id {
			return i
		}
	}
	return -1
}

func (l *messageLog) pruneTombstones(now time.Time) {
	for id, t := range l.tombstones {
		if now.Sub(t) > tombstoneTTL {
			delete(l.tombstones, id)
		}
	}
}

// get returns the entry with the given id, if present.
func (l *messageLog) get(id string) (chat.Message, bool) {
	idx := l.indexOf(id)
	if idx < 0 {
		return chat.Message{}, false
	}
	return l.entries[idx], true
}

func (l *messageLog) len() int { return len(l.entries) }

// snapshot copies the current sequence for handing to callbacks.
func (l *messageLog) snapshot() []chat.Message {
	out := make([]chat.Message, len(l.entries))
	copy(out, l.entries)
	return out
}
