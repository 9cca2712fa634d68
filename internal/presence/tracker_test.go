package presence

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkActiveIdempotent(t *testing.T) {
	tr := NewTracker(0, nil)

	tr.MarkActive("g1", "alice")
	tr.MarkActive("g1", "alice")
	tr.MarkActive("g1", "bob")

	snap := tr.Snapshot("g1")
	assert.Equal(t, []string{"alice", "bob"}, snap.ActiveUsers)
	assert.Equal(t, 2, tr.ActiveCount("g1"))
}

func TestMarkLeftClearsActiveAndTyping(t *testing.T) {
	tr := NewTracker(time.Minute, nil)

	tr.MarkActive("g1", "alice")
	tr.SetTyping("g1", "alice", true)
	tr.MarkLeft("g1", "alice")

	snap := tr.Snapshot("g1")
	assert.Empty(t, snap.ActiveUsers)
	assert.Empty(t, snap.TypingUsers)
}

func TestMarkLeftUnknownUser(t *testing.T) {
	tr := NewTracker(0, nil)

	tr.MarkActive("g1", "alice")
	tr.MarkLeft("g1", "bob")

	assert.Equal(t, 1, tr.ActiveCount("g1"))
}

func TestSnapshotUnknownGroup(t *testing.T) {
	tr := NewTracker(0, nil)

	snap := tr.Snapshot("missing")
	assert.NotNil(t, snap.ActiveUsers)
	assert.NotNil(t, snap.TypingUsers)
	assert.Empty(t, snap.ActiveUsers)
	assert.Empty(t, snap.TypingUsers)
}

func TestSetTypingFalseClears(t *testing.T) {
	tr := NewTracker(time.Minute, nil)

	tr.SetTyping("g1", "alice", true)
	assert.Equal(t, []string{"alice"}, tr.Snapshot("g1").TypingUsers)

	tr.SetTyping("g1", "alice", false)
	assert.Empty(t, tr.Snapshot("g1").TypingUsers)
}

func TestSetTypingExpiry(t *testing.T) {
	tr := NewTracker(20*time.Millisecond, nil)

	tr.SetTyping("g1", "alice", true)
	assert.Equal(t, []string{"alice"}, tr.Snapshot("g1").TypingUsers)

	require.Eventually(t, func() bool {
		return len(tr.Snapshot("g1").TypingUsers) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestSetTypingRefreshExtendsTTL(t *testing.T) {
	tr := NewTracker(50*time.Millisecond, nil)

	tr.SetTyping("g1", "alice", true)
	time.Sleep(30 * time.Millisecond)
	tr.SetTyping("g1", "alice", true)
	time.Sleep(30 * time.Millisecond)

	// 60ms after the first event but only 30ms after the refresh
	assert.Equal(t, []string{"alice"}, tr.Snapshot("g1").TypingUsers)
}

func TestStaleTimerDoesNotClearNewSession(t *testing.T) {
	tr := NewTracker(time.Minute, nil)

	var fired []func()
	tr.afterFunc = func(d time.Duration, f func()) *time.Timer {
		fired = append(fired, f)
		return time.NewTimer(time.Hour)
	}

	tr.SetTyping("g1", "alice", true)
	tr.SetTyping("g1", "alice", false)
	tr.SetTyping("g1", "alice", true)

	// the first session's expiry fires late, after a new session started
	fired[0]()
	assert.Equal(t, []string{"alice"}, tr.Snapshot("g1").TypingUsers)

	fired[1]()
	assert.Empty(t, tr.Snapshot("g1").TypingUsers)
}

func TestRefreshSurvivesStaleExpiry(t *testing.T) {
	tr := NewTracker(time.Minute, nil)

	var fired []func()
	tr.afterFunc = func(d time.Duration, f func()) *time.Timer {
		fired = append(fired, f)
		return time.NewTimer(time.Hour)
	}

	tr.SetTyping("g1", "alice", true)
	tr.SetTyping("g1", "alice", true)

	// the pre-refresh expiry runs after the refresh took the lock; it must
	// not tear down the refreshed session
	fired[0]()
	assert.Equal(t, []string{"alice"}, tr.Snapshot("g1").TypingUsers)

	fired[1]()
	assert.Empty(t, tr.Snapshot("g1").TypingUsers)
}

func TestConcurrentPresence(t *testing.T) {
	tr := NewTracker(time.Minute, nil)

	var wg sync.WaitGroup
	users := []string{"u1", "u2", "u3", "u4", "u5"}
	for _, u := range users {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				tr.MarkActive("g1", id)
				tr.SetTyping("g1", id, true)
				tr.SetTyping("g1", id, false)
			}
		}(u)
	}
	wg.Wait()

	assert.Equal(t, len(users), tr.ActiveCount("g1"))
	assert.Empty(t, tr.Snapshot("g1").TypingUsers)
}
