package room

import (
	"log/slog"
	"sync"
	"time"
)

// Manager tracks all active rooms in this instance.
type Manager struct {
	rooms      map[string]*Room // code -> room
	maxPlayers int
	mu         sync.RWMutex
}

// NewManager creates a room manager; maxPlayers caps every room it creates.
func NewManager(maxPlayers int) *Manager {
	return &Manager{
		rooms:      make(map[string]*Room),
		maxPlayers: maxPlayers,
	}
}

// CreateRoom creates a new room with a unique code.
func (m *Manager) CreateRoom() *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := make(map[string]bool, len(m.rooms))
	for code := range m.rooms {
		existing[code] = true
	}

	code := GenerateCode(existing)
	r := NewRoom(code, m.maxPlayers)
	m.rooms[code] = r

	slog.Info("room created", "code", code)
	return r
}

// GetRoom returns a room by its code, nil when unknown.
func (m *Manager) GetRoom(code string) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[code]
}

// RemoveRoom removes a room by its code.
func (m *Manager) RemoveRoom(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, code)
	slog.Info("room removed", "code", code)
}

// RoomCount returns the number of active rooms.
func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// FindRoomByPlayer finds the room containing a player ID.
func (m *Manager) FindRoomByPlayer(playerID string) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rooms {
		if r.HasParticipant(playerID) {
			return r
		}
	}
	return nil
}

// OverduePlaying returns rooms still PLAYING whose session deadline has
// passed, for the timeout sweep.
func (m *Manager) OverduePlaying(now time.Time) []*Room {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var overdue []*Room
	for _, r := range m.rooms {
		if r.IsPlaying() && r.Session != nil && r.Session.Overdue(now) {
			overdue = append(overdue, r)
		}
	}
	return overdue
}
