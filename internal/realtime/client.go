package realtime

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
)

// Client is one authenticated websocket connection
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	userID uint
	role   string

	topics map[Topic]struct{}

	closeOnce sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, userID uint, role string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 64),
		done:   make(chan struct{}),
		userID: userID,
		role:   role,
		topics: make(map[Topic]struct{}),
	}
}

// close signals the write pump to shut down. The send channel is never
// closed; broadcasters select on done instead, so an in-flight Broadcast
// that snapshotted the room can never hit a closed channel.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// readPump consumes client events until the connection drops
func (c *Client) readPump() {
	defer func() {
		c.hub.disconnect(c)
		c.close()
		c.conn.Close()
		log.Printf("[Realtime] user %d disconnected", c.userID)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Realtime] read error for user %d: %v", c.userID, err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("[Realtime] malformed message from user %d: %v", c.userID, err)
			continue
		}

		c.dispatch(msg)
	}
}

// dispatch routes one client event. Unknown events are ignored.
func (c *Client) dispatch(msg clientMessage) {
	switch msg.Event {
	case "join-session":
		var data struct {
			SessionID uint `json:"sessionId"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.SessionID == 0 {
			return
		}
		c.hub.join(c, SessionTopic(data.SessionID))

	case "leave-session":
		var data struct {
			SessionID uint `json:"sessionId"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.SessionID == 0 {
			return
		}
		c.hub.leave(c, SessionTopic(data.SessionID))

	case "submit-rating":
		var data struct {
			SessionID uint    `json:"sessionId"`
			Rating    float64 `json:"rating"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.SessionID == 0 {
			return
		}
		c.hub.handleSubmitRating(c, data.SessionID, data.Rating)
	}
}

// writePump flushes outbound messages and keeps the connection alive
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
