package position

import (
	"context"
	"sync"

	"github.com/modaba/pursuit-server/internal/geo"
)

// MemoryIndex is an in-process Index for tests and single-node development.
// It does not satisfy the cross-instance visibility guarantee; production
// deployments use RedisIndex.
type MemoryIndex struct {
	mu    sync.RWMutex
	rooms map[string]map[string]geo.Point
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{rooms: make(map[string]map[string]geo.Point)}
}

func (x *MemoryIndex) Set(_ context.Context, roomID, nickname string, lat, lng float64) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	room, ok := x.rooms[roomID]
	if !ok {
		room = make(map[string]geo.Point)
		x.rooms[roomID] = room
	}
	room[nickname] = geo.Point{Lat: lat, Lng: lng}
	return nil
}

func (x *MemoryIndex) Get(_ context.Context, roomID, nickname string) (float64, float64, bool, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	p, ok := x.rooms[roomID][nickname]
	if !ok {
		return 0, 0, false, nil
	}
	return p.Lat, p.Lng, true, nil
}

func (x *MemoryIndex) Distance(_ context.Context, roomID, a, b string) (float64, bool, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	pa, okA := x.rooms[roomID][a]
	pb, okB := x.rooms[roomID][b]
	if !okA || !okB {
		return 0, false, nil
	}
	return geo.HaversineMeters(pa.Lat, pa.Lng, pb.Lat, pb.Lng), true, nil
}

func (x *MemoryIndex) Remove(_ context.Context, roomID, nickname string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.rooms[roomID], nickname)
	return nil
}

func (x *MemoryIndex) Clear(_ context.Context, roomID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.rooms, roomID)
	return nil
}
