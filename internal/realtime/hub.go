package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/auth"
	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Hub fans events out to clients subscribed to per-session topics. Fanout is
// process-local; a multi-instance deployment needs an external pub/sub in
// front of it.
type Hub struct {
	authenticator *auth.Authenticator
	sessions      *services.SessionService

	mu    sync.RWMutex
	rooms map[Topic]map[*Client]struct{}

	upgrader websocket.Upgrader
}

func NewHub(authenticator *auth.Authenticator, sessions *services.SessionService) *Hub {
	return &Hub{
		authenticator: authenticator,
		sessions:      sessions,
		rooms:         make(map[Topic]map[*Client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect cross-origin from the frontend; token
			// auth is the admission control, not the Origin header.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleConnection authenticates the handshake and upgrades it. The token
// comes from the `token` query parameter or a bearer Authorization header;
// unauthenticated connections are rejected before the upgrade.
func (h *Hub) HandleConnection(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		header := c.GetHeader("Authorization")
		if strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimPrefix(header, "Bearer ")
		}
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication token required"})
		return
	}

	claims, err := h.authenticator.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[Realtime] upgrade failed for user %d: %v", claims.UserID, err)
		return
	}

	client := newClient(h, conn, claims.UserID, claims.Role)
	go client.writePump()
	go client.readPump()

	log.Printf("[Realtime] user %d (%s) connected", claims.UserID, claims.Role)
}

func (h *Hub) join(client *Client, topic Topic) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[topic]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[topic] = room
	}
	room[client] = struct{}{}
	client.topics[topic] = struct{}{}
}

func (h *Hub) leave(client *Client, topic Topic) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client, topic)
}

func (h *Hub) disconnect(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic := range client.topics {
		h.removeLocked(client, topic)
	}
}

func (h *Hub) removeLocked(client *Client, topic Topic) {
	if room, ok := h.rooms[topic]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, topic)
		}
	}
	delete(client.topics, topic)
}

// Broadcast sends an event to every client in a topic's room. Slow clients
// are dropped rather than allowed to block the room.
func (h *Hub) Broadcast(topic Topic, event string, payload interface{}) {
	message, err := json.Marshal(serverMessage{Event: event, Data: payload})
	if err != nil {
		log.Printf("[Realtime] failed to encode %s event: %v", event, err)
		return
	}

	h.mu.RLock()
	room := h.rooms[topic]
	clients := make([]*Client, 0, len(room))
	for client := range room {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case <-client.done:
			// Already shutting down; the room snapshot raced its teardown
		case client.send <- message:
		default:
			log.Printf("[Realtime] dropping slow client user %d on %s", client.userID, topic)
			h.disconnect(client)
			client.close()
		}
	}
}

// BroadcastSessionEnded implements services.Broadcaster
func (h *Hub) BroadcastSessionEnded(sessionID uint, finalConsensus float64, judgeCount, tradesSettled int) {
	h.Broadcast(SessionTopic(sessionID), "session-ended", gin.H{
		"sessionId":      sessionID,
		"finalConsensus": finalConsensus,
		"judgeCount":     judgeCount,
		"tradesSettled":  tradesSettled,
	})
}

// handleSubmitRating appends a rating and broadcasts the fresh consensus.
// Submissions from non-judges or against non-live sessions are silently
// dropped; no error goes back to the sender.
func (h *Hub) handleSubmitRating(client *Client, sessionID uint, rating float64) {
	update, err := h.sessions.SubmitRating(sessionID, client.userID, client.role, rating)
	if err != nil {
		log.Printf("[Realtime] dropped rating from user %d on session %d: %v", client.userID, sessionID, err)
		return
	}

	h.Broadcast(SessionTopic(sessionID), "consensus-update", update)
}

type serverMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type clientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}
