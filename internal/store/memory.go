package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-process GameStore for tests and development without
// a database.
type MemoryStore struct {
	mu           sync.Mutex
	Rooms        map[string]RoomRecord
	Boundaries   map[string][2]string // roomID -> [boundary, jail]
	Participants map[string]ParticipantRecord // roomID+playerID
	Sessions     map[string]SessionRecord
	ClosedWith   map[string]string // sessionID -> winner
	History      []MMRHistory
	MMR          map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Rooms:        make(map[string]RoomRecord),
		Boundaries:   make(map[string][2]string),
		Participants: make(map[string]ParticipantRecord),
		Sessions:     make(map[string]SessionRecord),
		ClosedWith:   make(map[string]string),
		MMR:          make(map[string]int),
	}
}

func (s *MemoryStore) SaveRoom(_ context.Context, r RoomRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Rooms[r.ID] = r
	return nil
}

func (s *MemoryStore) UpdateRoomStatus(_ context.Context, roomID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.Rooms[roomID]
	r.ID = roomID
	r.Status = status
	s.Rooms[roomID] = r
	return nil
}

func (s *MemoryStore) SaveBoundary(_ context.Context, roomID, boundaryWKT, jailWKT string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Boundaries[roomID] = [2]string{boundaryWKT, jailWKT}
	return nil
}

func (s *MemoryStore) FindBoundary(_ context.Context, roomID string) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.Boundaries[roomID]
	return b[0], b[1], nil
}

func (s *MemoryStore) SaveParticipant(_ context.Context, p ParticipantRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Participants[p.RoomID+"/"+p.PlayerID] = p
	return nil
}

func (s *MemoryStore) UpdateParticipantRole(_ context.Context, roomID, playerID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := roomID + "/" + playerID
	if p, ok := s.Participants[k]; ok {
		p.Role = role
		s.Participants[k] = p
	}
	return nil
}

func (s *MemoryStore) UpdateParticipantStatus(_ context.Context, roomID, playerID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := roomID + "/" + playerID
	if p, ok := s.Participants[k]; ok {
		p.Status = status
		s.Participants[k] = p
	}
	return nil
}

func (s *MemoryStore) RemoveParticipant(_ context.Context, roomID, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Participants, roomID+"/"+playerID)
	return nil
}

func (s *MemoryStore) CreateSession(_ context.Context, sess SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sessions[sess.ID] = sess
	return nil
}

func (s *MemoryStore) CloseSession(_ context.Context, sessionID, winner string, avgMMR int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, done := s.ClosedWith[sessionID]; !done {
		s.ClosedWith[sessionID] = winner
	}
	return nil
}

func (s *MemoryStore) UpdateMMR(_ context.Context, playerID string, mmr int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MMR[playerID] = mmr
	return nil
}

func (s *MemoryStore) InsertMMRHistory(_ context.Context, h MMRHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.History = append(s.History, h)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// HistoryFor returns the recorded rating history for one player.
func (s *MemoryStore) HistoryFor(playerID string) []MMRHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []MMRHistory
	for _, h := range s.History {
		if h.PlayerID == playerID {
			out = append(out, h)
		}
	}
	return out
}
