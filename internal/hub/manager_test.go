package hub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikspatil0120/eduplatform-sub001/internal/event"
	"github.com/nikspatil0120/eduplatform-sub001/internal/presence"
)

// newTestClient builds a connection-less client; Close tolerates a nil conn,
// so tests can exercise the hub's routing without real sockets.
func newTestClient(h *Hub, userID, groupID string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ID:         uuid.New().String(),
		UserID:     userID,
		GroupID:    groupID,
		manager:    h,
		egress:     make(chan event.WsEvent, sendBufSize),
		ctx:        ctx,
		cancel:     cancel,
		connClosed: make(chan struct{}),
	}
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(presence.NewTracker(time.Minute, nil))
	t.Cleanup(h.Stop)
	return h
}

func drain(c *Client) []event.WsEvent {
	var out []event.WsEvent
	for {
		select {
		case ev := <-c.egress:
			out = append(out, ev)
		default:
			return out
		}
	}
}

type recordingHandler struct {
	mu          sync.Mutex
	disconnects []string
	typing      []string
	heartbeats  []string
}

func (r *recordingHandler) HandleTyping(groupID, userID string, isTyping bool) {
	r.mu.Lock()
	r.typing = append(r.typing, groupID+"/"+userID)
	r.mu.Unlock()
}

func (r *recordingHandler) HandleHeartbeat(groupID, userID string) {
	r.mu.Lock()
	r.heartbeats = append(r.heartbeats, groupID+"/"+userID)
	r.mu.Unlock()
}

func (r *recordingHandler) HandleDisconnect(groupID, userID string) {
	r.mu.Lock()
	r.disconnects = append(r.disconnects, groupID+"/"+userID)
	r.mu.Unlock()
}

func TestGetShardStable(t *testing.T) {
	assert.Equal(t, getShard("course-42"), getShard("course-42"))
	assert.Less(t, getShard("course-42"), uint32(shardCount))
	assert.Equal(t, uint32(0), getShard(""))
}

func TestPublishReachesRoomMembers(t *testing.T) {
	h := newTestHub(t)

	a := newTestClient(h, "alice", "course-42")
	b := newTestClient(h, "bob", "course-42")
	other := newTestClient(h, "carol", "course-99")
	h.addClient(a)
	h.addClient(b)
	h.addClient(other)

	h.Publish("course-42", event.New(event.EventChatMessage, "course-42", nil))

	require.Len(t, drain(a), 1)
	require.Len(t, drain(b), 1)
	assert.Empty(t, drain(other))
}

func TestPublishEmptyRoomNoop(t *testing.T) {
	h := newTestHub(t)

	// must not panic or block
	h.Publish("nobody-home", event.New(event.EventChatMessage, "nobody-home", nil))
}

func TestPublishToUserAllConnections(t *testing.T) {
	h := newTestHub(t)

	tab1 := newTestClient(h, "alice", "course-42")
	tab2 := newTestClient(h, "alice", "course-99")
	bob := newTestClient(h, "bob", "course-42")
	h.addClient(tab1)
	h.addClient(tab2)
	h.addClient(bob)

	n := h.PublishToUser("alice", event.New(event.EventNotification, "", nil))
	assert.Equal(t, 2, n)

	require.Len(t, drain(tab1), 1)
	require.Len(t, drain(tab2), 1)
	assert.Empty(t, drain(bob))
}

func TestPublishToUserUnknown(t *testing.T) {
	h := newTestHub(t)
	assert.Equal(t, 0, h.PublishToUser("ghost", event.New(event.EventNotification, "", nil)))
}

func TestRemoveClientCleansRoutes(t *testing.T) {
	h := newTestHub(t)
	handler := &recordingHandler{}
	h.SetEventHandler(handler)

	c := newTestClient(h, "alice", "course-42")
	h.addClient(c)
	h.removeClient(c)

	assert.True(t, c.IsClosed())
	assert.Equal(t, 0, h.PublishToUser("alice", event.New(event.EventNotification, "", nil)))
	assert.Equal(t, []string{"course-42/alice"}, handler.disconnects)

	// removing again is a no-op, not a second disconnect
	h.removeClient(c)
	assert.Equal(t, []string{"course-42/alice"}, handler.disconnects)
}

func TestSafeSendClosedClient(t *testing.T) {
	h := newTestHub(t)

	c := newTestClient(h, "alice", "course-42")
	c.Close()

	assert.False(t, c.SafeSend(event.New(event.EventChatMessage, "course-42", nil), time.Millisecond))
}

func TestSafeSendConcurrentWithClose(t *testing.T) {
	h := newTestHub(t)

	for i := 0; i < 20; i++ {
		c := newTestClient(h, "alice", "course-42")
		h.addClient(c)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.SafeSend(event.New(event.EventChatMessage, "course-42", nil), time.Millisecond)
			}
		}()
		go func() {
			defer wg.Done()
			h.removeClient(c)
		}()
		wg.Wait()

		assert.False(t, c.SafeSend(event.New(event.EventChatMessage, "course-42", nil), time.Millisecond))
	}
}

func TestStopIdempotent(t *testing.T) {
	h := NewHub(presence.NewTracker(time.Minute, nil))
	c := newTestClient(h, "alice", "course-42")
	h.addClient(c)

	h.Stop()
	require.NotPanics(t, h.Stop)
	assert.True(t, c.IsClosed())
}

func TestInboundEventRouting(t *testing.T) {
	h := newTestHub(t)
	handler := &recordingHandler{}
	h.SetEventHandler(handler)

	c := newTestClient(h, "alice", "course-42")
	h.addClient(c)

	h.inbound <- inboundMessage{
		client: c,
		event:  event.New(event.EventClientTyping, "course-42", event.TypingPayload{IsTyping: true}),
	}
	h.inbound <- inboundMessage{
		client: c,
		event:  event.New(event.EventClientHeartbeat, "course-42", nil),
	}

	require.Eventually(t, func() bool {
		handler.mu.Lock()
		defer handler.mu.Unlock()
		return len(handler.typing) == 1 && len(handler.heartbeats) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"course-42/alice"}, handler.typing)
	assert.Equal(t, []string{"course-42/alice"}, handler.heartbeats)
}

func TestMonitorStats(t *testing.T) {
	tracker := presence.NewTracker(time.Minute, nil)
	h := NewHub(tracker)
	t.Cleanup(h.Stop)

	h.addClient(newTestClient(h, "alice", "course-42"))
	h.addClient(newTestClient(h, "bob", "course-42"))
	h.addClient(newTestClient(h, "carol", "course-99"))
	tracker.MarkActive("course-42", "alice")
	tracker.MarkActive("course-42", "bob")

	ms := NewMonitorService(h, tracker)
	stats := ms.GetStats()

	assert.Equal(t, "healthy", stats.Status)
	assert.Equal(t, 3, stats.Connections.TotalConnected)
	assert.Equal(t, 2, stats.Connections.TotalRooms)
	require.Len(t, stats.Rooms, 2)
	assert.Equal(t, "course-42", stats.Rooms[0].GroupID)
	assert.Equal(t, 2, stats.Rooms[0].Connections)
	assert.Equal(t, []string{"alice", "bob"}, stats.Rooms[0].ActiveUsers)
	assert.Equal(t, "course-99", stats.Rooms[1].GroupID)
}

func TestMonitorStatsIdle(t *testing.T) {
	tracker := presence.NewTracker(time.Minute, nil)
	h := NewHub(tracker)
	t.Cleanup(h.Stop)

	stats := NewMonitorService(h, tracker).GetStats()
	assert.Equal(t, "idle", stats.Status)
	assert.Zero(t, stats.Connections.TotalConnected)
}
