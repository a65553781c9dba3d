package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modaba/pursuit-server/internal/game"
	"github.com/modaba/pursuit-server/internal/geo"
	"github.com/modaba/pursuit-server/internal/position"
	"github.com/modaba/pursuit-server/internal/rating"
	"github.com/modaba/pursuit-server/internal/report"
	"github.com/modaba/pursuit-server/internal/room"
	"github.com/modaba/pursuit-server/internal/store"
)

type capturedEvent struct {
	roomID    string
	nickname  string
	eventType string
	payload   any
}

type capturePublisher struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (p *capturePublisher) PublishRoom(roomID, eventType string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, capturedEvent{roomID: roomID, eventType: eventType, payload: payload})
}

func (p *capturePublisher) PublishPlayer(roomID, nickname, eventType string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, capturedEvent{roomID: roomID, nickname: nickname, eventType: eventType, payload: payload})
}

func (p *capturePublisher) byType(eventType string) []capturedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []capturedEvent
	for _, e := range p.events {
		if e.eventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// captureGenerator records the stats handed to the report collaborator.
type captureGenerator struct {
	mu    sync.Mutex
	stats []report.Stats
}

func (g *captureGenerator) Generate(_ context.Context, s report.Stats) report.Report {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stats = append(g.stats, s)
	return report.Fallback()
}

func (g *captureGenerator) snapshot() []report.Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]report.Stats(nil), g.stats...)
}

const (
	baseLat = 35.0
	baseLng = 126.0
)

// latOffset converts meters to a latitude delta.
func latOffset(m float64) float64 { return m / 111320.0 }

// squareAround builds a closed square ring centered on (lat, lng).
func squareAround(lat, lng, halfDeg float64) []geo.Point {
	return []geo.Point{
		{Lat: lat - halfDeg, Lng: lng - halfDeg},
		{Lat: lat - halfDeg, Lng: lng + halfDeg},
		{Lat: lat + halfDeg, Lng: lng + halfDeg},
		{Lat: lat + halfDeg, Lng: lng - halfDeg},
		{Lat: lat - halfDeg, Lng: lng - halfDeg},
	}
}

type fixture struct {
	engine *Engine
	rooms  *room.Manager
	index  *position.MemoryIndex
	store  *store.MemoryStore
	pub    *capturePublisher
	gen    *captureGenerator
	room   *room.Room
	cop    *game.Participant
	t1     *game.Participant
	t2     *game.Participant
}

// newFixture builds an engine around a 1-police / 2-thieves room. The game
// is started with the supplied boundary geometry; nil rings start without.
func newFixture(t *testing.T, boundary [][]geo.Point, jail []geo.Point) *fixture {
	t.Helper()

	f := &fixture{
		rooms: room.NewManager(8),
		index: position.NewMemoryIndex(),
		store: store.NewMemoryStore(),
		pub:   &capturePublisher{},
		gen:   &captureGenerator{},
	}

	cfg := Config{
		ArrestRangeMeters:    50,
		RescueRangeMeters:    5,
		BoundaryBufferMeters: 5,
		WarningCooldown:      5 * time.Second,
		GameDuration:         15 * time.Minute,
	}
	f.engine = New(cfg, f.rooms, f.index, f.store, f.pub,
		rating.NewSettler(f.store), f.gen, NewTrackingRecorder(),
		game.KeywordAssigner{PoliceKeyword: "cop", ThiefKeyword: "runner"})

	f.room = f.rooms.CreateRoom()
	f.cop = game.NewParticipant("cop-kim")
	f.t1 = game.NewParticipant("runner-lee")
	f.t2 = game.NewParticipant("runner-park")
	for _, p := range []*game.Participant{f.cop, f.t1, f.t2} {
		require.NoError(t, f.room.AddParticipant(p))
	}

	_, err := f.engine.StartGame(context.Background(), f.room.ID, f.cop.PlayerID, boundary, jail)
	require.NoError(t, err)
	return f
}

func (f *fixture) place(t *testing.T, nickname string, lat, lng float64) {
	t.Helper()
	require.NoError(t, f.index.Set(context.Background(), f.room.ID, nickname, lat, lng))
}

func TestStartGame_BroadcastsRolesAndPersists(t *testing.T) {
	boundary := [][]geo.Point{squareAround(baseLat, baseLng, 0.01)}
	f := newFixture(t, boundary, nil)

	started := f.pub.byType(EventGameStarted)
	require.Len(t, started, 1)
	ev := started[0].payload.(GameStartedEvent)
	assert.Equal(t, 1, ev.PoliceCount)
	assert.Equal(t, 2, ev.ThiefCount)
	assert.Len(t, ev.Participants, 3)
	assert.Greater(t, ev.Deadline, time.Now().UnixMilli())
	require.Len(t, ev.Boundary, 1)

	boundaryWKT, _, err := f.store.FindBoundary(context.Background(), f.room.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, boundaryWKT)
	assert.Contains(t, f.store.Sessions, f.room.Session.ID)
}

func TestStartGame_NonHostRejected(t *testing.T) {
	f := newFixture(t, nil, nil)
	_, err := f.engine.StartGame(context.Background(), f.room.ID, f.t1.PlayerID, nil, nil)
	assert.ErrorIs(t, err, room.ErrForbidden)
}

func TestRequestArrest_WithinRangeSucceeds(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.place(t, "cop-kim", baseLat, baseLng)
	f.place(t, "runner-lee", baseLat+latOffset(50), baseLng) // right at the limit

	f.engine.RequestArrest(context.Background(), f.room.ID, "cop-kim", "runner-lee")

	results := f.pub.byType(EventArrestResult)
	require.Len(t, results, 1)
	ev := results[0].payload.(ArrestResultEvent)
	assert.True(t, ev.Success)
	require.NotNil(t, ev.RemainingThieves)
	assert.Equal(t, 1, *ev.RemainingThieves)
	assert.True(t, f.t1.IsArrested())

	rec := f.store.Participants[f.room.ID+"/"+f.t1.PlayerID]
	assert.Equal(t, "ARRESTED", rec.Status)
}

func TestRequestArrest_OutOfRangeFails(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.place(t, "cop-kim", baseLat, baseLng)
	f.place(t, "runner-lee", baseLat+latOffset(100), baseLng)

	f.engine.RequestArrest(context.Background(), f.room.ID, "cop-kim", "runner-lee")

	results := f.pub.byType(EventArrestResult)
	require.Len(t, results, 1)
	ev := results[0].payload.(ArrestResultEvent)
	assert.False(t, ev.Success)
	assert.Contains(t, ev.Message, "Too far away")
	assert.False(t, f.t1.IsArrested())
	assert.True(t, f.room.IsPlaying())
}

func TestRequestArrest_NoPositionFails(t *testing.T) {
	f := newFixture(t, nil, nil)

	f.engine.RequestArrest(context.Background(), f.room.ID, "cop-kim", "runner-lee")

	results := f.pub.byType(EventArrestResult)
	require.Len(t, results, 1)
	ev := results[0].payload.(ArrestResultEvent)
	assert.False(t, ev.Success)
	assert.Contains(t, ev.Message, "no position")
}

func TestRequestArrest_LastThiefEndsGame(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.place(t, "cop-kim", baseLat, baseLng)
	f.place(t, "runner-lee", baseLat, baseLng)
	f.place(t, "runner-park", baseLat, baseLng)

	f.engine.RequestArrest(context.Background(), f.room.ID, "cop-kim", "runner-lee")
	assert.Empty(t, f.pub.byType(EventGameEnded), "one free thief left, game goes on")

	f.engine.RequestArrest(context.Background(), f.room.ID, "cop-kim", "runner-park")

	ended := f.pub.byType(EventGameEnded)
	require.Len(t, ended, 1)
	ev := ended[0].payload.(GameEndedEvent)
	assert.Equal(t, game.WinnerPolice, ev.Winner)
	assert.Equal(t, ReasonAllArrested, ev.Reason)

	assert.Equal(t, "POLICE", f.store.ClosedWith[f.room.Session.ID])
	_, _, ok, err := f.index.Get(context.Background(), f.room.ID, "cop-kim")
	require.NoError(t, err)
	assert.False(t, ok, "positions cleared at game end")
}

func TestRequestArrest_EscapedThiefNotCounted(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.place(t, "cop-kim", baseLat, baseLng)
	f.place(t, "runner-lee", baseLat, baseLng)

	require.True(t, f.engine.PlayerLeft(context.Background(), f.room.ID, f.t2.PlayerID))

	f.engine.RequestArrest(context.Background(), f.room.ID, "cop-kim", "runner-lee")

	ended := f.pub.byType(EventGameEnded)
	require.Len(t, ended, 1, "last present thief arrested, police win")
	ev := ended[0].payload.(GameEndedEvent)
	assert.Equal(t, game.WinnerPolice, ev.Winner)
	assert.Equal(t, ReasonAllArrested, ev.Reason)
}

func TestPlayerLeft_LastFreeThiefEscapeEndsGame(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.place(t, "cop-kim", baseLat, baseLng)
	f.place(t, "runner-lee", baseLat, baseLng)
	f.engine.RequestArrest(context.Background(), f.room.ID, "cop-kim", "runner-lee")
	require.True(t, f.t1.IsArrested())
	assert.Empty(t, f.pub.byType(EventGameEnded))

	require.True(t, f.engine.PlayerLeft(context.Background(), f.room.ID, f.t2.PlayerID))

	ended := f.pub.byType(EventGameEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, game.WinnerPolice, ended[0].payload.(GameEndedEvent).Winner)
	assert.True(t, f.t2.Escaped)
}

func TestPlayerLeft_FreeThiefRemainingKeepsPlaying(t *testing.T) {
	f := newFixture(t, nil, nil)

	require.True(t, f.engine.PlayerLeft(context.Background(), f.room.ID, f.t2.PlayerID))

	assert.Empty(t, f.pub.byType(EventGameEnded))
	assert.True(t, f.room.IsPlaying())
}

func TestRequestArrest_ConcurrentSameTarget(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.place(t, "cop-kim", baseLat, baseLng)
	f.place(t, "runner-lee", baseLat, baseLng)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.engine.RequestArrest(context.Background(), f.room.ID, "cop-kim", "runner-lee")
		}()
	}
	wg.Wait()

	successes := 0
	for _, e := range f.pub.byType(EventArrestResult) {
		if e.payload.(ArrestResultEvent).Success {
			successes++
		}
	}
	assert.Equal(t, 1, successes, "only one arrest lands on a target")
}

func TestRequestRescue_FailureReasons(t *testing.T) {
	jail := squareAround(baseLat+0.005, baseLng+0.005, 0.0005)

	t.Run("no position", func(t *testing.T) {
		f := newFixture(t, nil, jail)
		f.engine.RequestRescue(context.Background(), f.room.ID, "runner-park")

		results := f.pub.byType(EventRescueResult)
		require.Len(t, results, 1)
		assert.Contains(t, results[0].payload.(RescueResultEvent).Message, "no position")
	})

	t.Run("no jail", func(t *testing.T) {
		f := newFixture(t, nil, nil)
		f.place(t, "runner-park", baseLat, baseLng)
		f.engine.RequestRescue(context.Background(), f.room.ID, "runner-park")

		results := f.pub.byType(EventRescueResult)
		require.Len(t, results, 1)
		assert.Contains(t, results[0].payload.(RescueResultEvent).Message, "no jail")
	})

	t.Run("too far", func(t *testing.T) {
		f := newFixture(t, nil, jail)
		f.place(t, "runner-park", baseLat, baseLng) // ~780m from the jail
		f.engine.RequestRescue(context.Background(), f.room.ID, "runner-park")

		results := f.pub.byType(EventRescueResult)
		require.Len(t, results, 1)
		ev := results[0].payload.(RescueResultEvent)
		assert.False(t, ev.Success)
		assert.Contains(t, ev.Message, "Too far")
	})
}

func TestRequestRescue_ReleasesEveryArrestedThief(t *testing.T) {
	jailLat, jailLng := baseLat+0.005, baseLng+0.005
	jail := squareAround(jailLat, jailLng, 0.0005)
	f := newFixture(t, nil, jail)

	f.place(t, "cop-kim", baseLat, baseLng)
	f.place(t, "runner-lee", baseLat, baseLng)
	f.engine.RequestArrest(context.Background(), f.room.ID, "cop-kim", "runner-lee")
	require.True(t, f.t1.IsArrested())

	f.place(t, "runner-park", jailLat, jailLng)
	f.engine.RequestRescue(context.Background(), f.room.ID, "runner-park")

	results := f.pub.byType(EventRescueResult)
	require.Len(t, results, 1)
	ev := results[0].payload.(RescueResultEvent)
	assert.True(t, ev.Success)
	require.NotNil(t, ev.RemainingThieves)
	assert.Equal(t, 2, *ev.RemainingThieves)
	assert.False(t, f.t1.IsArrested())
}

func TestReportLocation_BoundaryWarningWithCooldown(t *testing.T) {
	boundary := [][]geo.Point{squareAround(baseLat, baseLng, 0.01)}
	f := newFixture(t, boundary, nil)

	outsideLat := baseLat + 0.02
	f.engine.ReportLocation(context.Background(), f.room.ID, "runner-lee", outsideLat, baseLng)
	f.engine.ReportLocation(context.Background(), f.room.ID, "runner-lee", outsideLat, baseLng)

	warnings := f.pub.byType(EventBoundaryWarning)
	require.Len(t, warnings, 1, "second warning suppressed inside the cooldown")
	assert.Equal(t, "runner-lee", warnings[0].nickname)

	updates := f.pub.byType(EventLocationUpdate)
	assert.Len(t, updates, 2, "location updates broadcast regardless")
	assert.Equal(t, game.RoleThief, updates[0].payload.(LocationUpdateEvent).Role)
}

func TestReportLocation_ArrestedPlayerNotWarned(t *testing.T) {
	boundary := [][]geo.Point{squareAround(baseLat, baseLng, 0.01)}
	f := newFixture(t, boundary, nil)
	f.t1.Arrest()

	f.engine.ReportLocation(context.Background(), f.room.ID, "runner-lee", baseLat+0.02, baseLng)

	assert.Empty(t, f.pub.byType(EventBoundaryWarning))
}

func TestReportLocation_InsideBufferNotWarned(t *testing.T) {
	boundary := [][]geo.Point{squareAround(baseLat, baseLng, 0.01)}
	f := newFixture(t, boundary, nil)

	// Just past the edge but within the ~5m buffer.
	f.engine.ReportLocation(context.Background(), f.room.ID, "runner-lee", baseLat+0.01+0.00002, baseLng)

	assert.Empty(t, f.pub.byType(EventBoundaryWarning))
}

func TestEndGame_SettlesExactlyOnce(t *testing.T) {
	f := newFixture(t, nil, nil)

	f.engine.EndGame(context.Background(), f.room.ID, game.WinnerThief, ReasonTimeout)
	f.engine.EndGame(context.Background(), f.room.ID, game.WinnerPolice, ReasonManual)

	ended := f.pub.byType(EventGameEnded)
	require.Len(t, ended, 1)
	ev := ended[0].payload.(GameEndedEvent)
	assert.Equal(t, game.WinnerThief, ev.Winner)
	assert.Equal(t, ReasonTimeout, ev.Reason)

	assert.Equal(t, "THIEF", f.store.ClosedWith[f.room.Session.ID])
	assert.Equal(t, "FINISHED", f.store.Rooms[f.room.ID].Status)

	// Settlement ran once: one history row per participant.
	for _, p := range []*game.Participant{f.cop, f.t1, f.t2} {
		assert.Len(t, f.store.HistoryFor(p.PlayerID), 1)
	}
}

func TestEndGame_ReportsCarryMovementStats(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.engine.ReportLocation(context.Background(), f.room.ID, "runner-lee", baseLat, baseLng)
	f.engine.ReportLocation(context.Background(), f.room.ID, "runner-lee", baseLat+latOffset(200), baseLng)

	f.engine.EndGame(context.Background(), f.room.ID, game.WinnerThief, ReasonTimeout)

	require.Eventually(t, func() bool {
		return len(f.gen.snapshot()) == 3
	}, time.Second, 10*time.Millisecond, "one report per participant")

	var maxDistance int
	for _, s := range f.gen.snapshot() {
		if s.TotalDistanceM > maxDistance {
			maxDistance = s.TotalDistanceM
		}
	}
	assert.InDelta(t, 200, maxDistance, 5, "moving thief's distance survives the cache teardown")
}

func TestTrackingRecorder_AccumulatesDistance(t *testing.T) {
	r := NewTrackingRecorder()
	r.RecordMovement("ROOM", "runner-lee", baseLat, baseLng)
	r.RecordMovement("ROOM", "runner-lee", baseLat+latOffset(100), baseLng)
	r.RecordMovement("ROOM", "runner-lee", baseLat+latOffset(200), baseLng)

	dist, _ := r.Summary("ROOM", "runner-lee")
	assert.InDelta(t, 200, dist, 2)

	r.Clear("ROOM")
	dist, speed := r.Summary("ROOM", "runner-lee")
	assert.Zero(t, dist)
	assert.Zero(t, speed)
}
