package store

import (
	"context"
	"time"
)

// RoomRecord is a persisted room row.
type RoomRecord struct {
	ID         string
	Status     string
	HostID     string
	MaxPlayers int
}

// ParticipantRecord is a persisted (room, player) roster row.
type ParticipantRecord struct {
	RoomID   string
	PlayerID string
	Nickname string
	Role     string
	Status   string
	MMR      int
}

// SessionRecord is a persisted game session.
type SessionRecord struct {
	ID        string
	RoomID    string
	StartedAt time.Time
	Deadline  time.Time
}

// MMRHistory is one immutable rating-history entry.
type MMRHistory struct {
	PlayerID  string
	SessionID string
	OldMMR    int
	NewMMR    int
	Delta     int
	Reason    string
	CreatedAt time.Time
}

// GameStore persists rooms, rosters, sessions, and rating history. The
// engine treats it as a collaborator: write failures on hot paths are
// logged, never allowed to block game flow.
type GameStore interface {
	SaveRoom(ctx context.Context, r RoomRecord) error
	UpdateRoomStatus(ctx context.Context, roomID, status string) error
	// SaveBoundary stores the play region and jail as WKT polygons.
	SaveBoundary(ctx context.Context, roomID, boundaryWKT, jailWKT string) error
	// FindBoundary returns the stored WKT polygons, empty when unset.
	FindBoundary(ctx context.Context, roomID string) (boundaryWKT, jailWKT string, err error)

	SaveParticipant(ctx context.Context, p ParticipantRecord) error
	UpdateParticipantRole(ctx context.Context, roomID, playerID, role string) error
	UpdateParticipantStatus(ctx context.Context, roomID, playerID, status string) error
	RemoveParticipant(ctx context.Context, roomID, playerID string) error

	CreateSession(ctx context.Context, s SessionRecord) error
	// CloseSession records the winner and the pre-game average MMR.
	CloseSession(ctx context.Context, sessionID, winner string, avgMMR int) error

	UpdateMMR(ctx context.Context, playerID string, mmr int) error
	// InsertMMRHistory appends one immutable rating-history entry.
	InsertMMRHistory(ctx context.Context, h MMRHistory) error

	Close() error
}
