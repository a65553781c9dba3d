package engine

import (
	"github.com/modaba/pursuit-server/internal/game"
	"github.com/modaba/pursuit-server/internal/geo"
)

// Event types carried on the broadcast fabric.
const (
	EventGameStarted     = "game_started"
	EventLocationUpdate  = "location_update"
	EventBoundaryWarning = "boundary_warning"
	EventArrestResult    = "arrest_result"
	EventRescueResult    = "rescue_result"
	EventGameEnded       = "game_ended"
	EventGameReport      = "game_report"
)

// Game-end reasons.
const (
	ReasonAllArrested = "ALL_ARRESTED"
	ReasonTimeout     = "TIMEOUT"
	ReasonManual      = "MANUAL"
)

// Publisher is the broadcast fabric: fire-and-forget, at-most-once from
// this subsystem's perspective. Room publishes reach every participant;
// player publishes are addressed to one nickname.
type Publisher interface {
	PublishRoom(roomID, eventType string, payload any)
	PublishPlayer(roomID, nickname, eventType string, payload any)
}

// Recorder is the out-of-band activity/trajectory collaborator. Calls are
// never awaited by the engine, and summaries feed the post-game reports.
type Recorder interface {
	RecordMovement(roomID, nickname string, lat, lng float64)
	Summary(roomID, nickname string) (totalDistanceM int, maxSpeedKmh float64)
	Clear(roomID string)
}

// GameStartedEvent carries role assignments and boundary for broadcast.
type GameStartedEvent struct {
	RoomID       string             `json:"room_id"`
	SessionID    string             `json:"session_id"`
	PoliceCount  int                `json:"police_count"`
	ThiefCount   int                `json:"thief_count"`
	Participants []game.Participant `json:"participants"`
	Boundary     [][]geo.Point      `json:"boundary,omitempty"`
	Jail         []geo.Point        `json:"jail,omitempty"`
	Deadline     int64              `json:"deadline"` // unix millis
}

// LocationUpdateEvent is broadcast to the whole room. Team visibility
// filtering happens client-side; the reporter's role rides along for it.
type LocationUpdateEvent struct {
	RoomID   string    `json:"room_id"`
	Nickname string    `json:"nickname"`
	Role     game.Role `json:"role"`
	Lat      float64   `json:"lat"`
	Lng      float64   `json:"lng"`
}

// BoundaryWarningEvent is addressed to the straying player only.
type BoundaryWarningEvent struct {
	RoomID   string `json:"room_id"`
	Nickname string `json:"nickname"`
	Message  string `json:"message"`
}

// ArrestResultEvent reports an arrest attempt to the room.
type ArrestResultEvent struct {
	RoomID           string   `json:"room_id"`
	Actor            string   `json:"actor"`
	Target           string   `json:"target"`
	Success          bool     `json:"success"`
	Distance         *float64 `json:"distance,omitempty"`
	RemainingThieves *int     `json:"remaining_thieves,omitempty"`
	Message          string   `json:"message"`
}

// RescueResultEvent reports a jail-rescue attempt to the room.
type RescueResultEvent struct {
	RoomID           string `json:"room_id"`
	Actor            string `json:"actor"`
	Success          bool   `json:"success"`
	RemainingThieves *int   `json:"remaining_thieves,omitempty"`
	Message          string `json:"message"`
}

// GameEndedEvent closes out the session for the room.
type GameEndedEvent struct {
	RoomID string      `json:"room_id"`
	Winner game.Winner `json:"winner"`
	Reason string      `json:"reason"`
}
