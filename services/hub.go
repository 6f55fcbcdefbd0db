package services

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"vidquiz/logger"
)

const (
	writeTimeout   = 10 * time.Second
	pongTimeout    = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 4096
)

// Event is the envelope for every server-to-client message.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// clientMessage is the envelope for client-to-server messages; the
// payload stays raw until the event type selects its schema.
type clientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub tracks every websocket connection and fans room-scoped events out
// to the connections subscribed to that room. It is also the connection
// tracker: a dying connection is mapped back to its (room, player) pair
// so the player can be flagged offline without losing their submission.
type Hub struct {
	clients     map[*Client]bool
	register    chan *Client
	unregister  chan *Client
	mutex       sync.RWMutex
	gameService *GameService
}

// Client is one websocket connection. Room and player bindings are set by
// join_game_room, not at upgrade time.
type Client struct {
	hub      *Hub
	id       string
	socket   *websocket.Conn
	send     chan []byte
	roomCode string
	playerID string
	isHost   bool
}

func NewHub(gameService *GameService) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		gameService: gameService,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			logger.S().Infof("client %s connected (total: %d)", client.id, total)

		case client := <-h.unregister:
			if h.removeClient(client) {
				logger.S().Infof("client %s disconnected from room %q", client.id, client.roomCode)
				h.gameService.HandleDisconnect(h, client)
			}
		}
	}
}

// RegisterClient wraps a freshly upgraded connection and starts its read
// and write pumps.
func (h *Hub) RegisterClient(conn *websocket.Conn) *Client {
	client := &Client{
		hub:    h,
		id:     uuid.New().String(),
		socket: conn,
		send:   make(chan []byte, 256),
	}

	h.register <- client

	go client.writePump()
	go client.readPump()

	return client
}

func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

// removeClient deletes a client from the map and closes its send channel.
// Returns false when the client was already removed, so disconnect
// handling runs exactly once per connection.
func (h *Hub) removeClient(client *Client) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; !ok {
		return false
	}
	delete(h.clients, client)
	close(client.send)
	return true
}

// bindRoom subscribes a connection to a room's broadcasts. playerID is
// empty for host connections.
func (h *Hub) bindRoom(client *Client, roomCode, playerID string, isHost bool) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	client.roomCode = roomCode
	client.playerID = playerID
	client.isHost = isHost
}

// BroadcastToRoom sends an event to every connection subscribed to the
// room. Events from a single transition are observed in emission order
// because each send lands in the per-connection queue before this
// returns.
func (h *Hub) BroadcastToRoom(roomCode string, eventType string, payload interface{}) {
	data, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		logger.S().Errorf("marshal %s broadcast: %v", eventType, err)
		return
	}

	var dead []*Client
	h.mutex.RLock()
	for client := range h.clients {
		if !strings.EqualFold(client.roomCode, roomCode) {
			continue
		}
		select {
		case client.send <- data:
		default:
			dead = append(dead, client)
		}
	}
	h.mutex.RUnlock()

	logger.S().Debugf("broadcast %s to room %s", eventType, roomCode)

	for _, client := range dead {
		logger.S().Warnf("client %s send buffer full, dropping connection", client.id)
		if h.removeClient(client) {
			client.socket.Close()
			h.gameService.HandleDisconnect(h, client)
		}
	}
}

// SendToClient delivers an event to one connection only; used for
// join errors, rejections and resynchronization snapshots.
func (h *Hub) SendToClient(client *Client, eventType string, payload interface{}) {
	data, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		logger.S().Errorf("marshal %s event: %v", eventType, err)
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	select {
	case client.send <- data:
	default:
		logger.S().Warnf("client %s send buffer full, dropping %s event", client.id, eventType)
	}
}

// ConnectedClients reports how many connections are subscribed to a room.
func (h *Hub) ConnectedClients(roomCode string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	count := 0
	for client := range h.clients {
		if strings.EqualFold(client.roomCode, roomCode) {
			count++
		}
	}
	return count
}

func (c *Client) readPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		c.socket.Close()
	}()

	c.socket.SetReadLimit(maxMessageSize)
	c.socket.SetReadDeadline(time.Now().Add(pongTimeout))
	c.socket.SetPongHandler(func(string) error {
		c.socket.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		_, message, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.S().Warnf("client %s read error: %v", c.id, err)
			}
			break
		}
		c.handleMessage(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.socket.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches one client event. Failures here are
// handler-local: a malformed payload earns the sender a solo error event
// and never affects other rooms or connections.
func (c *Client) handleMessage(raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			logger.S().Errorf("client %s handler panicked: %v", c.id, r)
		}
	}()

	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("malformed message")
		return
	}

	gs := c.hub.gameService

	switch msg.Type {
	case "ping":
		c.hub.SendToClient(c, "pong", nil)

	case "join_game_room":
		var req JoinRoomEvent
		if c.decode(msg.Payload, &req) {
			gs.HandleJoinRoom(c.hub, c, req)
		}

	case "start_game":
		var req RoomEvent
		if c.decode(msg.Payload, &req) {
			gs.HandleStartGame(c.hub, c, req)
		}

	case "broadcast_question":
		var req BroadcastQuestionEvent
		if c.decode(msg.Payload, &req) {
			gs.HandleBroadcastQuestion(c.hub, c, req)
		}

	case "submit_answer":
		var req SubmitAnswerEvent
		if c.decode(msg.Payload, &req) {
			gs.HandleSubmitAnswer(c.hub, c, req)
		}

	case "show_feedback":
		var req RoomEvent
		if c.decode(msg.Payload, &req) {
			gs.HandleShowFeedback(c.hub, c, req)
		}

	case "clear_feedback":
		var req RoomEvent
		if c.decode(msg.Payload, &req) {
			gs.HandleClearFeedback(c.hub, c, req)
		}

	case "answer_result":
		var req AnswerResultEvent
		if c.decode(msg.Payload, &req) {
			gs.HandleAnswerResult(c.hub, c, req)
		}

	default:
		logger.S().Warnf("client %s sent unknown event type %q", c.id, msg.Type)
		c.sendError("unknown event type")
	}
}

func (c *Client) decode(raw json.RawMessage, v interface{}) bool {
	if err := json.Unmarshal(raw, v); err != nil {
		c.sendError("malformed payload")
		return false
	}
	return true
}

func (c *Client) sendError(message string) {
	c.hub.SendToClient(c, "error", map[string]string{"message": message})
}
