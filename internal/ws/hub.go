package ws

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Event is the JSON frame exchanged with clients. Clients send join-room,
// leave-room, typing and stop-typing; the server emits new-message,
// user-typing and user-stop-typing.
type Event struct {
	Event   string      `json:"event"`
	RoomID  string      `json:"roomId"`
	Payload interface{} `json:"payload,omitempty"`
}

const (
	EventJoinRoom   = "join-room"
	EventLeaveRoom  = "leave-room"
	EventTyping     = "typing"
	EventStopTyping = "stop-typing"

	EventNewMessage = "new-message"
	EventUserTyping = "user-typing"
	EventStopped    = "user-stop-typing"
)

type subscription struct {
	client *Client
	roomID string
}

type frame struct {
	roomID  string
	data    []byte
	exclude *Client
}

// Hub relays events between connected clients grouped by chat room. A room
// maps one-to-one to an accepted chat request.
type Hub struct {
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	join       chan subscription
	leave      chan subscription
	broadcast  chan frame

	mu     sync.RWMutex
	logger *zap.Logger
}

// NewHub builds an idle hub. Call Run to start relaying.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan subscription),
		leave:      make(chan subscription),
		broadcast:  make(chan frame, 256),
		logger:     logger,
	}
}

// Run processes hub events until ctx is cancelled. All client connections
// are closed on shutdown.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("ws client connected", zap.String("user_id", client.userID))
		case client := <-h.unregister:
			h.dropClient(client)
		case sub := <-h.join:
			h.joinRoom(sub)
		case sub := <-h.leave:
			h.leaveRoom(sub)
		case f := <-h.broadcast:
			h.deliver(f)
		}
	}
}

// Publish broadcasts a server-side event to every member of a room. It never
// blocks the caller; when the hub is saturated the event is dropped.
func (h *Hub) Publish(roomID, event string, payload interface{}) {
	h.relay(roomID, event, payload, nil)
}

func (h *Hub) relay(roomID, event string, payload interface{}, exclude *Client) {
	data, err := json.Marshal(Event{Event: event, RoomID: roomID, Payload: payload})
	if err != nil {
		h.logger.Error("failed to marshal ws event", zap.String("event", event), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- frame{roomID: roomID, data: data, exclude: exclude}:
	default:
		h.logger.Warn("ws broadcast buffer full, event dropped", zap.String("room_id", roomID), zap.String("event", event))
	}
}

func (h *Hub) inRoom(client *Client, roomID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return client.rooms[roomID]
}

// RoomSize reports the number of clients currently in a room.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (h *Hub) joinRoom(sub subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[sub.roomID]; !ok {
		h.rooms[sub.roomID] = make(map[*Client]bool)
	}
	h.rooms[sub.roomID][sub.client] = true
	sub.client.rooms[sub.roomID] = true

	h.logger.Debug("ws client joined room",
		zap.String("room_id", sub.roomID),
		zap.String("user_id", sub.client.userID))
}

func (h *Hub) leaveRoom(sub subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoom(sub.client, sub.roomID)
}

func (h *Hub) dropClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roomID := range client.rooms {
		h.removeFromRoom(client, roomID)
	}
	delete(h.clients, client)
	if !client.closed {
		client.closed = true
		close(client.send)
	}
	h.logger.Debug("ws client disconnected", zap.String("user_id", client.userID))
}

// removeFromRoom must be called with h.mu held.
func (h *Hub) removeFromRoom(client *Client, roomID string) {
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, client)
	delete(client.rooms, roomID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

func (h *Hub) deliver(f frame) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[f.roomID]))
	for client := range h.rooms[f.roomID] {
		if client != f.exclude {
			members = append(members, client)
		}
	}
	h.mu.RUnlock()

	var slow []*Client
	for _, client := range members {
		select {
		case client.send <- f.data:
		default:
			// Slow consumer, drop the connection rather than block the hub.
			slow = append(slow, client)
		}
	}
	for _, client := range slow {
		h.dropClientLocked(client)
	}
}

func (h *Hub) dropClientLocked(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for roomID := range client.rooms {
		h.removeFromRoom(client, roomID)
	}
	delete(h.clients, client)
	if !client.closed {
		client.closed = true
		close(client.send)
	}
	h.logger.Warn("ws client evicted, send buffer full", zap.String("user_id", client.userID))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.rooms = make(map[string]map[*Client]bool)
	for client := range h.clients {
		if !client.closed {
			client.closed = true
			close(client.send)
		}
	}
	h.clients = make(map[*Client]bool)
}
