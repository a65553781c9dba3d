package room

import (
	"time"

	"github.com/google/uuid"
	"github.com/modaba/pursuit-server/internal/game"
)

// Session is one timed play-through within a room, created at the
// WAITING -> PLAYING transition and immutable after closure.
type Session struct {
	ID        string      `json:"id"`
	RoomID    string      `json:"room_id"`
	StartedAt time.Time   `json:"started_at"`
	Deadline  time.Time   `json:"deadline"`
	Winner    game.Winner `json:"winner"`
	AvgMMR    int         `json:"avg_mmr"`

	closed bool
}

func newSession(roomID string, duration time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		StartedAt: now,
		Deadline:  now.Add(duration),
	}
}

// close marks the session terminal and records the winner. Returns false
// when the session was already closed; the first caller wins and is the
// one responsible for settlement. Caller holds the room lock.
func (s *Session) close(winner game.Winner) bool {
	if s.closed {
		return false
	}
	s.closed = true
	s.Winner = winner
	return true
}

// Closed reports whether the session has reached its terminal state.
func (s *Session) Closed() bool {
	return s.closed
}

// Overdue reports whether the session has exceeded its time budget.
func (s *Session) Overdue(now time.Time) bool {
	return now.After(s.Deadline)
}
