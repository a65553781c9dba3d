package handler

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/modaba/pursuit-server/internal/engine"
	"github.com/modaba/pursuit-server/internal/room"
	"github.com/modaba/pursuit-server/internal/ws"
)

// GameplayHandler handles in-game messages.
type GameplayHandler struct {
	rm     *room.Manager
	eng    *engine.Engine
	hub    *ws.Hub
	router *Router
}

// NewGameplayHandler creates a new gameplay handler.
func NewGameplayHandler(rm *room.Manager, eng *engine.Engine, hub *ws.Hub, router *Router) *GameplayHandler {
	return &GameplayHandler{rm: rm, eng: eng, hub: hub, router: router}
}

type locationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// HandleLocation ingests one location report.
func (h *GameplayHandler) HandleLocation(client *ws.Client, msg ws.Message) {
	var req locationRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		client.SendMessage(ws.NewErrorMessage("invalid location data"))
		return
	}
	if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
		client.SendMessage(ws.NewErrorMessage("coordinates out of range"))
		return
	}
	if client.RoomID == "" {
		client.SendMessage(ws.NewErrorMessage("not in a room"))
		return
	}

	h.eng.ReportLocation(context.Background(), client.RoomID, client.Nickname, req.Lat, req.Lng)
}

type arrestRequest struct {
	Target string `json:"target"`
}

// HandleArrestRequest resolves an arrest attempt against a target nickname.
func (h *GameplayHandler) HandleArrestRequest(client *ws.Client, msg ws.Message) {
	var req arrestRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil || req.Target == "" {
		client.SendMessage(ws.NewErrorMessage("target nickname is required"))
		return
	}
	if client.RoomID == "" {
		client.SendMessage(ws.NewErrorMessage("not in a room"))
		return
	}

	h.eng.RequestArrest(context.Background(), client.RoomID, client.Nickname, req.Target)
}

// HandleRescueRequest resolves a jail-rescue attempt by the sender.
func (h *GameplayHandler) HandleRescueRequest(client *ws.Client, _ ws.Message) {
	if client.RoomID == "" {
		client.SendMessage(ws.NewErrorMessage("not in a room"))
		return
	}

	h.eng.RequestRescue(context.Background(), client.RoomID, client.Nickname)
}

type tagBroadcast struct {
	Nickname string          `json:"nickname"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// HandleTag relays a free-form tag payload to the sender's room. The
// payload is not interpreted server-side; membership is the only check.
func (h *GameplayHandler) HandleTag(client *ws.Client, msg ws.Message) {
	playerID := h.router.GetPlayerID(client.ID)
	r := h.rm.GetRoom(client.RoomID)
	if r == nil {
		client.SendMessage(ws.NewErrorMessage("not in a room"))
		return
	}
	if err := r.Tag(playerID); err != nil {
		client.SendMessage(ws.NewErrorMessage("not a member of this room"))
		return
	}

	h.hub.PublishRoom(r.ID, ws.TypeTag, tagBroadcast{
		Nickname: client.Nickname,
		Data:     msg.Data,
	})
	slog.Debug("tag relayed", "room", r.ID, "player", client.Nickname)
}
