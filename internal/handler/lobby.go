package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/modaba/pursuit-server/internal/engine"
	"github.com/modaba/pursuit-server/internal/game"
	"github.com/modaba/pursuit-server/internal/geo"
	"github.com/modaba/pursuit-server/internal/room"
	"github.com/modaba/pursuit-server/internal/store"
	"github.com/modaba/pursuit-server/internal/ws"
)

// LobbyHandler handles room lifecycle messages.
type LobbyHandler struct {
	rm     *room.Manager
	eng    *engine.Engine
	hub    *ws.Hub
	store  store.GameStore
	router *Router
}

// NewLobbyHandler creates a new lobby handler.
func NewLobbyHandler(rm *room.Manager, eng *engine.Engine, hub *ws.Hub,
	st store.GameStore, router *Router) *LobbyHandler {

	return &LobbyHandler{
		rm:     rm,
		eng:    eng,
		hub:    hub,
		store:  st,
		router: router,
	}
}

type createRoomRequest struct {
	Nickname string `json:"nickname"`
}

type roomJoinedResponse struct {
	Code     string `json:"code"`
	PlayerID string `json:"player_id"`
}

// HandleCreateRoom handles room creation.
func (h *LobbyHandler) HandleCreateRoom(client *ws.Client, msg ws.Message) {
	var req createRoomRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil || req.Nickname == "" {
		client.SendMessage(ws.NewErrorMessage("nickname is required"))
		return
	}

	r := h.rm.CreateRoom()
	p := game.NewParticipant(req.Nickname)
	if err := r.AddParticipant(p); err != nil {
		client.SendMessage(ws.NewErrorMessage("could not join the new room"))
		return
	}
	h.bindClient(client, p, r)

	if err := h.store.SaveRoom(context.Background(), store.RoomRecord{
		ID: r.ID, Status: r.Status.String(), HostID: r.HostID, MaxPlayers: r.MaxPlayers,
	}); err != nil {
		slog.Error("room persistence failed", "room", r.ID, "error", err)
	}
	h.persistParticipant(r.ID, p)

	resp, _ := ws.NewMessage(ws.TypeCreateRoom, roomJoinedResponse{
		Code:     r.ID,
		PlayerID: p.PlayerID,
	})
	client.SendMessage(resp)
	h.broadcastRoomInfo(r)

	slog.Info("player created room", "player", p.Nickname, "room", r.ID)
}

type joinRoomRequest struct {
	Code     string `json:"code"`
	Nickname string `json:"nickname"`
}

// HandleJoinRoom handles joining an existing room. Nicknames must be
// unique within a room: the shared position index is keyed by them.
func (h *LobbyHandler) HandleJoinRoom(client *ws.Client, msg ws.Message) {
	var req joinRoomRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil || req.Code == "" || req.Nickname == "" {
		client.SendMessage(ws.NewErrorMessage("code and nickname are required"))
		return
	}

	r := h.rm.GetRoom(req.Code)
	if r == nil {
		client.SendMessage(ws.NewErrorMessage("room not found"))
		return
	}
	if _, taken := r.ParticipantByNickname(req.Nickname); taken {
		client.SendMessage(ws.NewErrorMessage("nickname already taken in this room"))
		return
	}

	p := game.NewParticipant(req.Nickname)
	if err := r.AddParticipant(p); err != nil {
		switch {
		case errors.Is(err, room.ErrRoomFull):
			client.SendMessage(ws.NewErrorMessage("room is full"))
		case errors.Is(err, room.ErrAlreadyStarted):
			client.SendMessage(ws.NewErrorMessage("game already started"))
		default:
			client.SendMessage(ws.NewErrorMessage("could not join room"))
		}
		return
	}
	h.bindClient(client, p, r)
	h.persistParticipant(r.ID, p)

	resp, _ := ws.NewMessage(ws.TypeJoinRoom, roomJoinedResponse{
		Code:     r.ID,
		PlayerID: p.PlayerID,
	})
	client.SendMessage(resp)
	h.broadcastRoomInfo(r)

	slog.Info("player joined room", "player", p.Nickname, "room", r.ID)
}

type playerReadyRequest struct {
	Ready *bool `json:"ready"`
}

// HandlePlayerReady toggles the sender's pre-game ready flag. An absent
// flag means ready.
func (h *LobbyHandler) HandlePlayerReady(client *ws.Client, msg ws.Message) {
	playerID := h.router.GetPlayerID(client.ID)
	r := h.rm.FindRoomByPlayer(playerID)
	if r == nil {
		client.SendMessage(ws.NewErrorMessage("not in a room"))
		return
	}

	ready := true
	var req playerReadyRequest
	if err := json.Unmarshal(msg.Data, &req); err == nil && req.Ready != nil {
		ready = *req.Ready
	}

	if err := r.SetReady(playerID, ready); err != nil {
		client.SendMessage(ws.NewErrorMessage("cannot change ready status now"))
		return
	}
	h.broadcastRoomInfo(r)

	slog.Info("player ready changed", "player", playerID, "room", r.ID, "ready", ready)
}

type startGameRequest struct {
	Boundary [][]geo.Point `json:"boundary"`
	Jail     []geo.Point   `json:"jail"`
}

// HandleStartGame starts the session on the host's request. The engine
// broadcasts GameStarted to the room; only errors come back here.
func (h *LobbyHandler) HandleStartGame(client *ws.Client, msg ws.Message) {
	playerID := h.router.GetPlayerID(client.ID)
	r := h.rm.FindRoomByPlayer(playerID)
	if r == nil {
		client.SendMessage(ws.NewErrorMessage("not in a room"))
		return
	}

	var req startGameRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			client.SendMessage(ws.NewErrorMessage("invalid boundary payload"))
			return
		}
	}

	_, err := h.eng.StartGame(context.Background(), r.ID, playerID, req.Boundary, req.Jail)
	switch {
	case err == nil:
	case errors.Is(err, room.ErrForbidden):
		client.SendMessage(ws.NewErrorMessage("only the host can start the game"))
	case errors.Is(err, room.ErrAlreadyStarted):
		client.SendMessage(ws.NewErrorMessage("game already started"))
	case errors.Is(err, room.ErrInvalidBoundary):
		client.SendMessage(ws.NewErrorMessage("invalid boundary: " + err.Error()))
	default:
		client.SendMessage(ws.NewErrorMessage("could not start game"))
	}
}

// HandleLeaveRoom handles a player leaving a room.
func (h *LobbyHandler) HandleLeaveRoom(client *ws.Client, _ ws.Message) {
	h.removePlayer(client)
}

// HandleDisconnect handles client disconnection.
func (h *LobbyHandler) HandleDisconnect(client *ws.Client) {
	h.removePlayer(client)
}

// removePlayer detaches a client from its room. Leaving mid-game marks
// the participant escaped instead of shrinking the roster, so the room
// stays alive for settlement.
func (h *LobbyHandler) removePlayer(client *ws.Client) {
	playerID := h.router.GetPlayerID(client.ID)
	if playerID == "" {
		return
	}

	r := h.rm.FindRoomByPlayer(playerID)
	if r != nil {
		escaped := h.eng.PlayerLeft(context.Background(), r.ID, playerID)
		if !escaped {
			if err := h.store.RemoveParticipant(context.Background(), r.ID, playerID); err != nil {
				slog.Error("participant removal persistence failed", "room", r.ID, "error", err)
			}
		}
		if r.IsEmpty() {
			h.rm.RemoveRoom(r.ID)
		} else {
			h.broadcastRoomInfo(r)
		}
	}

	h.hub.LeaveRoom(client)
	h.router.UnregisterPlayer(client.ID)
	slog.Info("player left", "player", playerID)
}

func (h *LobbyHandler) bindClient(client *ws.Client, p *game.Participant, r *room.Room) {
	client.Nickname = p.Nickname
	h.hub.JoinRoom(client, r.ID)
	h.router.RegisterPlayer(client.ID, p.PlayerID)
}

func (h *LobbyHandler) persistParticipant(roomID string, p *game.Participant) {
	if err := h.store.SaveParticipant(context.Background(), store.ParticipantRecord{
		RoomID: roomID, PlayerID: p.PlayerID, Nickname: p.Nickname,
		Role: p.Role.String(), Status: p.Status.String(), MMR: p.MMR,
	}); err != nil {
		slog.Error("participant persistence failed", "room", roomID, "error", err)
	}
}

type roomInfoResponse struct {
	Code         string             `json:"code"`
	Status       string             `json:"status"`
	Participants []game.Participant `json:"participants"`
	HostID       string             `json:"host_id"`
}

func (h *LobbyHandler) broadcastRoomInfo(r *room.Room) {
	h.hub.PublishRoom(r.ID, ws.TypeRoomInfo, roomInfoResponse{
		Code:         r.ID,
		Status:       r.Status.String(),
		Participants: r.Snapshot(),
		HostID:       r.HostID,
	})
}
