// Package handler dispatches WebSocket messages to the lobby and gameplay
// handlers. All handlers run on the hub's message loop; per-room state is
// protected by the room's own lock.
package handler

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/modaba/pursuit-server/internal/engine"
	"github.com/modaba/pursuit-server/internal/room"
	"github.com/modaba/pursuit-server/internal/store"
	"github.com/modaba/pursuit-server/internal/ws"
)

// Router dispatches incoming messages to the appropriate handler.
type Router struct {
	lobby    *LobbyHandler
	gameplay *GameplayHandler

	// playerMap tracks client ID -> player ID mapping, shared across handlers.
	playerMap map[string]string
	mu        sync.RWMutex
}

// NewRouter creates a new message router.
func NewRouter(rm *room.Manager, eng *engine.Engine, hub *ws.Hub, st store.GameStore) *Router {
	r := &Router{
		playerMap: make(map[string]string),
	}
	r.lobby = NewLobbyHandler(rm, eng, hub, st, r)
	r.gameplay = NewGameplayHandler(rm, eng, hub, r)
	return r
}

// RegisterPlayer maps a client ID to a player ID.
func (r *Router) RegisterPlayer(clientID, playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playerMap[clientID] = playerID
}

// UnregisterPlayer removes a client's player mapping.
func (r *Router) UnregisterPlayer(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.playerMap, clientID)
}

// GetPlayerID returns the player ID for a client, or empty string if not found.
func (r *Router) GetPlayerID(clientID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.playerMap[clientID]
}

// HandleMessage parses and routes an incoming client message.
func (r *Router) HandleMessage(cm *ws.ClientMessage) {
	var msg ws.Message
	if err := json.Unmarshal(cm.Data, &msg); err != nil {
		slog.Warn("invalid message format", "client", cm.Client.ID, "error", err)
		cm.Client.SendMessage(ws.NewErrorMessage("invalid message format"))
		return
	}

	switch msg.Type {
	// Lobby messages
	case ws.TypeCreateRoom:
		r.lobby.HandleCreateRoom(cm.Client, msg)
	case ws.TypeJoinRoom:
		r.lobby.HandleJoinRoom(cm.Client, msg)
	case ws.TypeLeaveRoom:
		r.lobby.HandleLeaveRoom(cm.Client, msg)
	case ws.TypePlayerReady:
		r.lobby.HandlePlayerReady(cm.Client, msg)
	case ws.TypeStartGame:
		r.lobby.HandleStartGame(cm.Client, msg)

	// Gameplay messages
	case ws.TypeLocation:
		r.gameplay.HandleLocation(cm.Client, msg)
	case ws.TypeArrestRequest:
		r.gameplay.HandleArrestRequest(cm.Client, msg)
	case ws.TypeRescueRequest:
		r.gameplay.HandleRescueRequest(cm.Client, msg)
	case ws.TypeTag:
		r.gameplay.HandleTag(cm.Client, msg)

	default:
		slog.Warn("unknown message type", "type", msg.Type, "client", cm.Client.ID)
		cm.Client.SendMessage(ws.NewErrorMessage("unknown message type: " + msg.Type))
	}
}

// HandleDisconnect handles client disconnection.
func (r *Router) HandleDisconnect(client *ws.Client) {
	r.lobby.HandleDisconnect(client)
}
