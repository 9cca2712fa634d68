package hub

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nikspatil0120/eduplatform-sub001/internal/event"
	"github.com/nikspatil0120/eduplatform-sub001/internal/metrics"
	"github.com/nikspatil0120/eduplatform-sub001/internal/presence"
)

const (
	shardCount = 64 // tune: 16/64/128 depending on load
)

type inboundMessage struct {
	event  event.WsEvent
	client *Client
}

type clientBucket struct {
	sync.RWMutex
	rooms map[string]map[string]*Client
}

// EventHandler receives client-originated events and disconnects. Implemented
// by the chat service; set once during container wiring.
type EventHandler interface {
	HandleTyping(groupID, userID string, isTyping bool)
	HandleHeartbeat(groupID, userID string)
	HandleDisconnect(groupID, userID string)
}

// Hub is the live fan-out broker. Each group maps to a room of subscribed
// connections across sha1-derived shards; delivery is at-most-once per
// connection with no backlog, so reconnecting clients reconcile against the
// message store.
type Hub struct {
	shards     [shardCount]*clientBucket
	register   chan *Client
	unregister chan *Client
	inbound    chan inboundMessage

	// per-user routes for targeted delivery (in-app notifications)
	userRoutes   map[string]map[string]*Client
	userRoutesMu sync.RWMutex

	tracker *presence.Tracker
	handler EventHandler

	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

func NewHub(tracker *presence.Tracker) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		register:   make(chan *Client, 1024),
		unregister: make(chan *Client, 1024),
		inbound:    make(chan inboundMessage, 4096), // buffer for burst handling
		userRoutes: make(map[string]map[string]*Client),
		tracker:    tracker,
		ctx:        ctx,
		cancel:     cancel,
	}

	for i := 0; i < shardCount; i++ {
		h.shards[i] = &clientBucket{
			rooms: make(map[string]map[string]*Client),
		}
	}

	// run manager loop
	go h.run()

	// start worker loop
	for i := 0; i < workerPoolSize; i++ {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			for {
				select {
				case <-h.ctx.Done():
					return
				case in, ok := <-h.inbound:
					if !ok {
						return
					}

					h.handleEvent(in.event, in.client)
				}
			}
		}()
	}

	return h
}

// SetEventHandler wires the chat service in after construction; the service
// needs the hub to publish, so the dependency runs both ways.
func (h *Hub) SetEventHandler(handler EventHandler) {
	h.handler = handler
}

func (h *Hub) handleEvent(ev event.WsEvent, c *Client) {
	switch ev.Event {
	case event.EventClientTyping:
		var payload event.TypingPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			log.Printf("failed to unmarshal typing payload from %s: %v", c.ID, err)
			return
		}
		if h.handler != nil {
			h.handler.HandleTyping(c.GroupID, c.UserID, payload.IsTyping)
		}
	case event.EventClientHeartbeat:
		if h.handler != nil {
			h.handler.HandleHeartbeat(c.GroupID, c.UserID)
		}
	default:
		log.Printf("unknown event type from %s: %s", c.ID, ev.Event)
	}
}

// Publish fans an event out to every connection currently subscribed to the
// group. Best effort: a full egress drops or kicks per policy, nothing is
// queued for absent subscribers.
func (h *Hub) Publish(groupID string, ev event.WsEvent) {
	sh := getShard(groupID)
	b := h.shards[sh]

	// collect clients while holding RLock
	b.RLock()
	room, ok := b.rooms[groupID]
	if !ok || len(room) == 0 {
		b.RUnlock()
		return
	}

	clients := make([]*Client, 0, len(room))
	for _, c := range room {
		clients = append(clients, c)
	}
	b.RUnlock()

	metrics.EventsPublished.WithLabelValues(ev.Event).Inc()

	// deliver to clients without holding lock
	for _, c := range clients {
		if !c.SafeSend(ev, sendTimeout) {
			log.Printf("egress full for client %s in group %s", c.ID, groupID)
			if kickOnFull {
				// Unregister (safe async)
				h.unregister <- c
			}
		}
	}
}

// PublishToUser delivers an event to every live connection of one user,
// regardless of group. Used by the in-app notification channel.
func (h *Hub) PublishToUser(userID string, ev event.WsEvent) int {
	h.userRoutesMu.RLock()
	routes := h.userRoutes[userID]
	clients := make([]*Client, 0, len(routes))
	for _, c := range routes {
		clients = append(clients, c)
	}
	h.userRoutesMu.RUnlock()

	delivered := 0
	for _, c := range clients {
		if c.SafeSend(ev, sendTimeout) {
			delivered++
		}
	}
	return delivered
}

// PublishPresenceSnapshot reads the current active set and broadcasts it
// under the activeUsers event.
func (h *Hub) PublishPresenceSnapshot(groupID string) {
	snap := h.tracker.Snapshot(groupID)
	h.Publish(groupID, event.New(event.EventActiveUsers, groupID, event.ActiveUsersPayload{
		Count: len(snap.ActiveUsers),
		Users: snap.ActiveUsers,
	}))
}

// PublishTypingSnapshot reads the current typing set and broadcasts it under
// the typingUsers event.
func (h *Hub) PublishTypingSnapshot(groupID string) {
	snap := h.tracker.Snapshot(groupID)
	h.Publish(groupID, event.New(event.EventTypingUsers, groupID, event.TypingUsersPayload{
		Users: snap.TypingUsers,
	}))
}

func getShard(groupID string) uint32 {
	if groupID == "" {
		return 0
	}

	h := sha1.Sum([]byte(groupID))
	return binary.BigEndian.Uint32(h[:4]) % shardCount
}

func (h *Hub) addClient(c *Client) {
	sh := getShard(c.GroupID)
	b := h.shards[sh]
	b.Lock()
	room, ok := b.rooms[c.GroupID]
	if !ok {
		room = make(map[string]*Client)
		b.rooms[c.GroupID] = room
	}
	room[c.ID] = c
	b.Unlock()

	h.userRoutesMu.Lock()
	routes, ok := h.userRoutes[c.UserID]
	if !ok {
		routes = make(map[string]*Client)
		h.userRoutes[c.UserID] = routes
	}
	routes[c.ID] = c
	h.userRoutesMu.Unlock()

	metrics.ConnectedClients.Inc()
	log.Printf("client %s registered in group %s (shard %d)", c.ID, c.GroupID, sh)
}

func (h *Hub) removeClient(c *Client) {
	sh := getShard(c.GroupID)
	b := h.shards[sh]
	b.Lock()
	removed := false
	if room, ok := b.rooms[c.GroupID]; ok {
		if _, exists := room[c.ID]; exists {
			delete(room, c.ID)
			removed = true
		}
		if len(room) == 0 {
			delete(b.rooms, c.GroupID)
		}
	}
	b.Unlock()

	if !removed {
		return
	}

	h.userRoutesMu.Lock()
	if routes, ok := h.userRoutes[c.UserID]; ok {
		delete(routes, c.ID)
		if len(routes) == 0 {
			delete(h.userRoutes, c.UserID)
		}
	}
	h.userRoutesMu.Unlock()

	c.Close()
	metrics.ConnectedClients.Dec()
	log.Printf("client %s removed from group %s (shard %d)", c.ID, c.GroupID, sh)

	if h.handler != nil {
		h.handler.HandleDisconnect(c.GroupID, c.UserID)
	}
}

func (h *Hub) run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

// Stop shuts the hub down: cancels the loops, closes every client and waits
// for the workers to drain. Idempotent; the server shutdown path and the
// container teardown may both call it.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		h.cancel()

		for _, shard := range h.shards {
			shard.RLock()
			for _, room := range shard.rooms {
				for _, client := range room {
					client.Close()
				}
			}
			shard.RUnlock()
		}

		close(h.inbound)
		h.wg.Wait()
	})
}

var websocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	switch origin {
	case "", "http://localhost:4200":
		return true
	case "https://app.eduplatform.io":
		return true
	default:
		return false
	}
}

// ServeWS upgrades the request and registers the connection as a subscriber
// of the given group. Authorization happens before the upgrade, in the route.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string, groupID string) {
	conn, err := websocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	RegisterClient(userID, groupID, conn, h)
}

// unregisterAsync hands a client to the manager loop without blocking forever.
func (h *Hub) unregisterAsync(c *Client) {
	select {
	case h.unregister <- c:
	case <-time.After(unregisterTimeout):
		log.Printf("failed to unregister client %s: timeout", c.ID)
	}
}
