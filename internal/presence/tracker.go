// Package presence tracks the ephemeral per-group active and typing sets.
// State is process-local and rebuilt from live connections after a restart;
// nothing here is persisted.
package presence

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTypingTTL is how long a typing entry survives without a refresh.
const DefaultTypingTTL = 3 * time.Second

// Snapshot is a point-in-time copy of a group's presence sets.
type Snapshot struct {
	ActiveUsers []string `json:"activeUsers"`
	TypingUsers []string `json:"typingUsers"`
}

type typingEntry struct {
	timer *time.Timer
}

// groupState holds one group's sets. All mutations to a group go through its
// own mutex, so two users joining or typing at once cannot lose updates.
type groupState struct {
	mu     sync.Mutex
	active map[string]time.Time // userID -> last seen
	typing map[string]*typingEntry
}

// Tracker is the presence tracker. Constructed explicitly and injected;
// never ambient global state.
type Tracker struct {
	mu        sync.RWMutex
	groups    map[string]*groupState
	typingTTL time.Duration
	logger    *zap.Logger

	// afterFunc is a test seam for timer construction
	afterFunc func(d time.Duration, f func()) *time.Timer
}

// NewTracker creates a Tracker with the given typing TTL; ttl <= 0 uses the
// default.
func NewTracker(ttl time.Duration, logger *zap.Logger) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &Tracker{
		groups:    make(map[string]*groupState),
		typingTTL: ttl,
		logger:    logger,
		afterFunc: time.AfterFunc,
	}
}

func (t *Tracker) group(groupID string) *groupState {
	t.mu.RLock()
	g, ok := t.groups[groupID]
	t.mu.RUnlock()
	if ok {
		return g
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if g, ok = t.groups[groupID]; ok {
		return g
	}
	g = &groupState{
		active: make(map[string]time.Time),
		typing: make(map[string]*typingEntry),
	}
	t.groups[groupID] = g
	return g
}

// MarkActive inserts or refreshes the user's active entry. Idempotent; used
// on join and on periodic heartbeats.
func (t *Tracker) MarkActive(groupID, userID string) {
	g := t.group(groupID)
	g.mu.Lock()
	g.active[userID] = time.Now()
	g.mu.Unlock()
}

// MarkLeft removes the user's active entry and cancels any typing entry.
func (t *Tracker) MarkLeft(groupID, userID string) {
	g := t.group(groupID)
	g.mu.Lock()
	delete(g.active, userID)
	if e, ok := g.typing[userID]; ok {
		e.timer.Stop()
		delete(g.typing, userID)
	}
	empty := len(g.active) == 0 && len(g.typing) == 0
	g.mu.Unlock()

	if empty {
		t.mu.Lock()
		// re-check under the tracker lock; a concurrent join may have
		// repopulated the group
		g.mu.Lock()
		if len(g.active) == 0 && len(g.typing) == 0 {
			delete(t.groups, groupID)
		}
		g.mu.Unlock()
		t.mu.Unlock()
	}
}

// SetTyping drives the per-(group,user) typing state machine. A true while
// already typing replaces the entry and its expiry timer; false or timer
// expiry clears the entry, whichever comes first. Replacing rather than
// resetting means an old timer whose callback already fired but is still
// waiting on the group lock holds a stale entry pointer and cannot clear the
// refreshed session.
func (t *Tracker) SetTyping(groupID, userID string, isTyping bool) {
	g := t.group(groupID)
	g.mu.Lock()
	defer g.mu.Unlock()

	existing, typing := g.typing[userID]

	if !isTyping {
		if typing {
			existing.timer.Stop()
			delete(g.typing, userID)
		}
		return
	}

	if typing {
		existing.timer.Stop()
	}

	entry := &typingEntry{}
	entry.timer = t.afterFunc(t.typingTTL, func() {
		t.expireTyping(groupID, userID, entry)
	})
	g.typing[userID] = entry

	if !typing && t.logger != nil {
		t.logger.Debug("typing started",
			zap.String("group_id", groupID),
			zap.String("user_id", userID),
		)
	}
}

// expireTyping clears a typing entry from its timer callback. The entry
// identity check keeps a stale timer from clearing a newer typing session.
func (t *Tracker) expireTyping(groupID, userID string, entry *typingEntry) {
	g := t.group(groupID)
	g.mu.Lock()
	if current, ok := g.typing[userID]; ok && current == entry {
		delete(g.typing, userID)
	}
	g.mu.Unlock()
}

// Snapshot returns copies of the group's current sets, sorted for stable
// payloads. Pure read.
func (t *Tracker) Snapshot(groupID string) Snapshot {
	t.mu.RLock()
	g, ok := t.groups[groupID]
	t.mu.RUnlock()
	if !ok {
		return Snapshot{ActiveUsers: []string{}, TypingUsers: []string{}}
	}

	g.mu.Lock()
	active := make([]string, 0, len(g.active))
	for u := range g.active {
		active = append(active, u)
	}
	typing := make([]string, 0, len(g.typing))
	for u := range g.typing {
		typing = append(typing, u)
	}
	g.mu.Unlock()

	sort.Strings(active)
	sort.Strings(typing)
	return Snapshot{ActiveUsers: active, TypingUsers: typing}
}

// ActiveCount returns the number of active users in a group.
func (t *Tracker) ActiveCount(groupID string) int {
	t.mu.RLock()
	g, ok := t.groups[groupID]
	t.mu.RUnlock()
	if !ok {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active)
}
