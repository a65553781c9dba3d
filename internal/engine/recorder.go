package engine

import (
	"sync"
	"time"

	"github.com/modaba/pursuit-server/internal/geo"
)

// track accumulates one player's movement within a session.
type track struct {
	lastLat, lastLng float64
	lastAt           time.Time
	hasLast          bool
	distanceM        float64
	maxSpeedKmh      float64
}

// TrackingRecorder keeps per-player distance and top speed in process
// memory for the post-game reports. Durable trajectory storage is a
// separate concern; this only survives as long as the session does.
type TrackingRecorder struct {
	mu     sync.Mutex
	tracks map[string]map[string]*track // roomID -> nickname -> track
	now    func() time.Time
}

func NewTrackingRecorder() *TrackingRecorder {
	return &TrackingRecorder{
		tracks: make(map[string]map[string]*track),
		now:    time.Now,
	}
}

func (r *TrackingRecorder) RecordMovement(roomID, nickname string, lat, lng float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.tracks[roomID]
	if !ok {
		room = make(map[string]*track)
		r.tracks[roomID] = room
	}
	t, ok := room[nickname]
	if !ok {
		t = &track{}
		room[nickname] = t
	}

	now := r.now()
	if t.hasLast {
		d := geo.HaversineMeters(t.lastLat, t.lastLng, lat, lng)
		t.distanceM += d
		if dt := now.Sub(t.lastAt).Seconds(); dt > 0 {
			speed := d / dt * 3.6
			if speed > t.maxSpeedKmh {
				t.maxSpeedKmh = speed
			}
		}
	}
	t.lastLat, t.lastLng, t.lastAt, t.hasLast = lat, lng, now, true
}

func (r *TrackingRecorder) Summary(roomID, nickname string) (int, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tracks[roomID][nickname]; ok {
		return int(t.distanceM), t.maxSpeedKmh
	}
	return 0, 0
}

func (r *TrackingRecorder) Clear(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tracks, roomID)
}
