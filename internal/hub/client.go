package hub

import (
	"context"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nikspatil0120/eduplatform-sub001/internal/event"
)

// Client is one live WebSocket subscription: a (group, user, connection)
// route. A user may hold several clients at once (multiple tabs/devices).
type Client struct {
	ID      string
	UserID  string
	GroupID string
	conn    *websocket.Conn
	manager *Hub
	egress  chan event.WsEvent

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	connClosed     chan struct{}
	connClosedOnce sync.Once

	closed   bool
	closedMu sync.RWMutex
}

// connection tuning
var (
	writeWait          = 10 * time.Second       // deadline for one outbound write
	pongWait           = 20 * time.Second       // max silence before the peer is considered gone
	pingInterval       = (pongWait * 9) / 10    // must beat pongWait or every client times out
	maxMessageSize     = 64 * 1024              // inbound frame cap
	sendBufSize        = 256                    // egress buffer per connection
	workerPoolSize     = 16                     // inbound event workers
	sendTimeout        = 2 * time.Second        // how long Publish waits on a full egress
	kickOnFull         = true                   // drop the connection instead of the event
	registerTimeout    = 5 * time.Second        // give up on registration past this
	unregisterTimeout  = 5 * time.Second        // give up on unregistration past this
	inboundSendTimeout = 500 * time.Millisecond // slow-consumer cutoff for the inbound queue
)

// RegisterClient wraps a fresh connection in a Client, hands it to the hub
// and starts the read/write pumps.
func RegisterClient(userID, groupID string, conn *websocket.Conn, h *Hub) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	client := &Client{
		ID:         uuid.New().String(),
		UserID:     userID,
		GroupID:    groupID,
		conn:       conn,
		manager:    h,
		egress:     make(chan event.WsEvent, sendBufSize),
		ctx:        ctx,
		cancel:     cancel,
		connClosed: make(chan struct{}),
	}

	select {
	case h.register <- client:
		go client.ReadMessages()
		go client.WriteMessages()
		log.Printf("client %s registered for user %s in group %s", client.ID, userID, groupID)
		return client
	case <-time.After(registerTimeout):
		log.Printf("registration of client %s timed out, dropping connection", client.ID)
		cancel()
		conn.Close()
		return nil
	}
}

// ReadMessages pumps inbound frames into the hub's worker queue. It owns the
// read side of the connection and triggers unregistration on exit.
func (c *Client) ReadMessages() {
	defer func() {
		c.manager.unregisterAsync(c)
		c.Close()
	}()

	c.conn.SetReadLimit(int64(maxMessageSize))
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(c.pongHandler)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			var ev event.WsEvent

			if err := c.conn.ReadJSON(&ev); err != nil {
				if websocket.IsCloseError(err,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
				) {
					log.Printf("client %s disconnected", c.ID)
					return
				}

				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseInternalServerErr,
					websocket.CloseProtocolError,
				) {
					log.Printf("unexpected close from client %s: %v", c.ID, err)
				}

				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					log.Printf("client %s missed its pong deadline, closing", c.ID)
					return
				}

				log.Printf("read from client %s failed: %v", c.ID, err)
				return
			}

			// Hand off without blocking the reader; a full queue means the
			// process cannot keep up and this client is sacrificed.
			select {
			case c.manager.inbound <- inboundMessage{client: c, event: ev}:
			case <-time.After(inboundSendTimeout):
				log.Printf("inbound queue full, dropping client %s", c.ID)
				c.cancel()
				c.conn.Close()
			case <-c.ctx.Done():
				return
			}
		}
	}
}

// WriteMessages drains the egress buffer onto the connection and keeps the
// ping/pong cycle alive. It is the only goroutine that writes to conn.
func (c *Client) WriteMessages() {
	ticker := time.NewTicker(pingInterval)

	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()

		c.connClosedOnce.Do(func() {
			close(c.connClosed)
		})
	}()

	for {
		select {
		case <-c.ctx.Done():
			if err := c.conn.WriteMessage(websocket.CloseMessage, nil); err != nil {
				log.Printf("close frame to client %s failed: %v", c.ID, err)
			}
			return
		case ev := <-c.egress:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				log.Printf("write to client %s failed: %v", c.ID, err)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Printf("ping to client %s failed: %v", c.ID, err)
				return
			}
		}
	}
}

func (c *Client) pongHandler(string) error {
	return c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

// Close tears the client down exactly once: marks it closed and cancels the
// pumps. The egress channel is never closed, only abandoned; a concurrent
// SafeSend that slipped past the closed check can then at worst buffer an
// event nobody reads. The underlying connection is closed by WriteMessages,
// with a timed fallback in case the write pump is already gone.
func (c *Client) Close() {
	c.once.Do(func() {
		c.closedMu.Lock()
		c.closed = true
		c.closedMu.Unlock()

		c.cancel()

		if c.conn == nil {
			return
		}

		go func() {
			select {
			case <-c.connClosed:
			case <-time.After(5 * time.Second):
				_ = c.conn.Close()
				log.Printf("force closed lingering connection for client %s", c.ID)
			}
		}()
	})
}

// IsClosed reports whether Close has run.
func (c *Client) IsClosed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}

// SafeSend tries to enqueue an event for this client. It returns false when
// the client is closed or the egress buffer stayed full past the timeout;
// the caller decides whether that costs the event or the connection.
func (c *Client) SafeSend(ev event.WsEvent, timeout time.Duration) bool {
	if c.IsClosed() {
		return false
	}

	select {
	case <-c.ctx.Done():
		return false
	case c.egress <- ev:
		return true
	case <-time.After(timeout):
		return false
	}
}
