package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Hub maintains the set of active clients, their room membership, and
// routes messages. It is the broadcast fabric the game engine publishes
// events through.
type Hub struct {
	Clients    map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	Incoming   chan *ClientMessage
	rooms      map[string]map[*Client]bool
	mu         sync.RWMutex

	// OnMessage is called for each incoming client message.
	OnMessage func(cm *ClientMessage)
	// OnDisconnect is called when a client disconnects.
	OnDisconnect func(client *Client)
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		Clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Incoming:   make(chan *ClientMessage, 256),
		rooms:      make(map[string]map[*Client]bool),
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.Clients[client] = true
			h.mu.Unlock()
			slog.Info("client connected", "client", client.ID)

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.Clients[client]; ok {
				delete(h.Clients, client)
				h.leaveRoomLocked(client)
				close(client.Send)
			}
			h.mu.Unlock()
			slog.Info("client disconnected", "client", client.ID)
			if h.OnDisconnect != nil {
				h.OnDisconnect(client)
			}

		case cm := <-h.Incoming:
			if h.OnMessage != nil {
				h.OnMessage(cm)
			}
		}
	}
}

// JoinRoom binds a client to a room for addressed publishes. A client is
// in at most one room.
func (h *Hub) JoinRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveRoomLocked(client)
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[roomID] = members
	}
	members[client] = true
	client.RoomID = roomID
}

// LeaveRoom unbinds a client from its room.
func (h *Hub) LeaveRoom(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveRoomLocked(client)
}

func (h *Hub) leaveRoomLocked(client *Client) {
	if client.RoomID == "" {
		return
	}
	if members, ok := h.rooms[client.RoomID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, client.RoomID)
		}
	}
	client.RoomID = ""
}

// PublishRoom sends an event to every client in a room.
func (h *Hub) PublishRoom(roomID, eventType string, payload any) {
	data, ok := encodeEvent(eventType, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[roomID] {
		client.send(data)
	}
}

// PublishPlayer sends an event to the one client in a room with the given
// nickname. Unknown nicknames are dropped silently; the player may have
// disconnected.
func (h *Hub) PublishPlayer(roomID, nickname, eventType string, payload any) {
	data, ok := encodeEvent(eventType, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[roomID] {
		if client.Nickname == nickname {
			client.send(data)
			return
		}
	}
}

func encodeEvent(eventType string, payload any) ([]byte, bool) {
	msg, err := NewMessage(eventType, payload)
	if err != nil {
		slog.Error("event payload marshal failed", "type", eventType, "error", err)
		return nil, false
	}
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("event marshal failed", "type", eventType, "error", err)
		return nil, false
	}
	return data, true
}

// RoomClientCount returns how many clients are bound to a room.
func (h *Hub) RoomClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.Clients)
}
