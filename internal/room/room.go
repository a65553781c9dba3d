package room

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/modaba/pursuit-server/internal/game"
	"github.com/modaba/pursuit-server/internal/geo"
)

// Room owns one game's participant roster, boundary, and session
// lifecycle. All state transitions run under the room lock, which is also
// the per-room critical section for arrest and rescue resolution: callers
// needing read-check-mutate atomicity use WithLock.
type Room struct {
	ID         string
	Status     game.RoomStatus
	HostID     string
	MaxPlayers int

	// Boundary is the outer play region, possibly with holes; Jail the
	// optional sub-region. Both are immutable once PLAYING.
	Boundary *geo.Polygon
	Jail     *geo.Polygon

	Session *Session

	participants map[string]*game.Participant // player ID -> participant
	mu           sync.Mutex
}

// NewRoom creates a waiting room with the given code.
func NewRoom(code string, maxPlayers int) *Room {
	return &Room{
		ID:           code,
		Status:       game.RoomWaiting,
		MaxPlayers:   maxPlayers,
		participants: make(map[string]*game.Participant),
	}
}

// WithLock runs fn inside the room's critical section.
func (r *Room) WithLock(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}

// AddParticipant adds a player. The first player becomes host.
func (r *Room) AddParticipant(p *game.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Status != game.RoomWaiting {
		return ErrAlreadyStarted
	}
	if len(r.participants) >= r.MaxPlayers {
		return ErrRoomFull
	}

	r.participants[p.PlayerID] = p
	if len(r.participants) == 1 {
		r.HostID = p.PlayerID
	}
	return nil
}

// RemoveParticipant removes a player. Leaving mid-game marks the
// participant escaped so settlement can apply the departure penalty, and
// the roster entry is kept for that settlement. The host role transfers
// when the host leaves pre-game.
func (r *Room) RemoveParticipant(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeParticipantLocked(playerID)
}

// RemoveParticipantLocked is RemoveParticipant for callers already inside
// WithLock. Returns true when the player escaped a running game, so the
// caller can re-evaluate the win condition in the same critical section.
func (r *Room) RemoveParticipantLocked(playerID string) bool {
	return r.removeParticipantLocked(playerID)
}

func (r *Room) removeParticipantLocked(playerID string) bool {
	p, ok := r.participants[playerID]
	if !ok {
		return false
	}

	if r.Status == game.RoomPlaying {
		p.Escaped = true
		slog.Info("participant escaped mid-game", "room", r.ID, "player", p.Nickname)
		return true
	}

	delete(r.participants, playerID)
	if r.HostID == playerID && len(r.participants) > 0 {
		for id := range r.participants {
			r.HostID = id
			break
		}
	}
	return false
}

// SetReady toggles a player's pre-game ready status.
func (r *Room) SetReady(playerID string, ready bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Status != game.RoomWaiting {
		return ErrAlreadyStarted
	}
	p, ok := r.participants[playerID]
	if !ok {
		return ErrNotFound
	}
	p.Ready = ready
	return nil
}

// Tag validates membership for free-form tag payloads. The payload itself
// is not interpreted yet.
func (r *Room) Tag(playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.participants[playerID]; !ok {
		return ErrForbidden
	}
	return nil
}

// StartResult carries everything the GameStarted broadcast needs.
type StartResult struct {
	Session      *Session
	PoliceCount  int
	ThiefCount   int
	Participants []game.Participant
	Boundary     *geo.Polygon
	Jail         *geo.Polygon
}

// Start transitions WAITING -> PLAYING: validates the requester is host,
// optionally validates and stores the boundary, creates the session,
// assigns roles through the injected strategy, and moves every participant
// to IN_GAME. Roles are assigned exactly here and never again.
func (r *Room) Start(requesterID string, boundaryRings [][]geo.Point, jailRing []geo.Point,
	assigner game.RoleAssigner, duration time.Duration) (*StartResult, error) {

	r.mu.Lock()
	defer r.mu.Unlock()

	if requesterID != r.HostID {
		return nil, ErrForbidden
	}
	if r.Status != game.RoomWaiting {
		return nil, ErrAlreadyStarted
	}

	if len(boundaryRings) > 0 {
		boundary, err := geo.NewPolygon(boundaryRings)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBoundary, err)
		}
		r.Boundary = boundary
	}
	if len(jailRing) > 0 {
		jail, err := geo.NewPolygon([][]geo.Point{jailRing})
		if err != nil {
			return nil, fmt.Errorf("%w: jail: %v", ErrInvalidBoundary, err)
		}
		r.Jail = jail
	}

	roster := make([]*game.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		roster = append(roster, p)
	}
	policeCount := assigner.Assign(roster)

	for _, p := range roster {
		p.Status = game.StatusInGame
	}

	r.Session = newSession(r.ID, duration)
	r.Status = game.RoomPlaying

	slog.Info("game started", "room", r.ID, "session", r.Session.ID,
		"police", policeCount, "thieves", len(roster)-policeCount)

	return &StartResult{
		Session:      r.Session,
		PoliceCount:  policeCount,
		ThiefCount:   len(roster) - policeCount,
		Participants: r.snapshotLocked(),
		Boundary:     r.Boundary,
		Jail:         r.Jail,
	}, nil
}

// Finish is the idempotent terminal transition. The first caller closes
// the session and gets true; later callers (a racing timeout sweep, a
// second arrest-completion) get false and a log line rather than an error.
func (r *Room) Finish(winner game.Winner) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finishLocked(winner)
}

// FinishLocked is Finish for callers already inside WithLock.
func (r *Room) FinishLocked(winner game.Winner) bool {
	return r.finishLocked(winner)
}

func (r *Room) finishLocked(winner game.Winner) bool {
	if r.Session == nil || !r.Session.close(winner) {
		slog.Info("finish ignored, session already closed", "room", r.ID, "winner", winner)
		return false
	}
	r.Status = game.RoomFinished
	slog.Info("session closed", "room", r.ID, "session", r.Session.ID, "winner", winner)
	return true
}

// ParticipantByNickname scans the roster for a nickname.
func (r *Room) ParticipantByNickname(nickname string) (*game.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.participantByNicknameLocked(nickname)
}

// ParticipantByNicknameLocked looks up a nickname under an already-held lock.
func (r *Room) ParticipantByNicknameLocked(nickname string) (*game.Participant, bool) {
	return r.participantByNicknameLocked(nickname)
}

func (r *Room) participantByNicknameLocked(nickname string) (*game.Participant, bool) {
	for _, p := range r.participants {
		if p.Nickname == nickname {
			return p, true
		}
	}
	return nil, false
}

// Participant returns the participant with the given player ID.
func (r *Room) Participant(playerID string) (*game.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[playerID]
	return p, ok
}

// HasParticipant reports roster membership by player ID.
func (r *Room) HasParticipant(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.participants[playerID]
	return ok
}

// FreeThiefCountLocked counts thieves still in play; callers hold the lock.
func (r *Room) FreeThiefCountLocked() int {
	count := 0
	for _, p := range r.participants {
		if p.IsFreeThief() {
			count++
		}
	}
	return count
}

// ReleaseArrestedLocked moves every ARRESTED thief back to IN_GAME (mass
// release) and returns how many were released. Callers hold the lock.
func (r *Room) ReleaseArrestedLocked() int {
	released := 0
	for _, p := range r.participants {
		if p.Role == game.RoleThief && p.IsArrested() {
			p.Release()
			released++
		}
	}
	return released
}

// Snapshot returns a copy of the roster for broadcast payloads.
func (r *Room) Snapshot() []game.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() []game.Participant {
	out := make([]game.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, *p)
	}
	return out
}

// ParticipantCount returns the roster size.
func (r *Room) ParticipantCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}

// IsEmpty reports whether the room has no participants.
func (r *Room) IsEmpty() bool {
	return r.ParticipantCount() == 0
}

// IsPlaying reports whether a session is in progress.
func (r *Room) IsPlaying() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Status == game.RoomPlaying
}
