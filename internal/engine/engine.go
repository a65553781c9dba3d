// Package engine is the pursuit-game core: it consumes location reports
// and arrest/rescue requests, applies geofence and proximity rules, and
// drives room sessions to their outcome.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/modaba/pursuit-server/internal/game"
	"github.com/modaba/pursuit-server/internal/geo"
	"github.com/modaba/pursuit-server/internal/position"
	"github.com/modaba/pursuit-server/internal/rating"
	"github.com/modaba/pursuit-server/internal/report"
	"github.com/modaba/pursuit-server/internal/room"
	"github.com/modaba/pursuit-server/internal/store"
)

// Config is the tunable rule surface.
type Config struct {
	ArrestRangeMeters    float64
	RescueRangeMeters    float64
	BoundaryBufferMeters float64
	WarningCooldown      time.Duration
	GameDuration         time.Duration
}

// roomGeo is the cached, parsed geometry for one room. Process-local with
// explicit invalidation at game end; cross-instance staleness is accepted
// since a missed or duplicate warning is not safety-critical.
type roomGeo struct {
	boundary *geo.Polygon
	jail     *geo.Polygon
}

// Engine mutates room sessions in response to player events. Arrest and
// rescue resolution run inside the room's critical section so concurrent
// requests cannot double-report success or double-fire the endgame.
type Engine struct {
	cfg      Config
	rooms    *room.Manager
	index    position.Index
	store    store.GameStore
	pub      Publisher
	settler  *rating.Settler
	reports  report.Generator
	recorder Recorder
	assigner game.RoleAssigner

	mu         sync.Mutex
	geoCache   map[string]*roomGeo
	warnedAt   map[string]map[string]time.Time // roomID -> nickname -> last warning
}

// New wires the engine with its collaborators. recorder may be nil.
func New(cfg Config, rooms *room.Manager, index position.Index, st store.GameStore,
	pub Publisher, settler *rating.Settler, reports report.Generator,
	recorder Recorder, assigner game.RoleAssigner) *Engine {

	return &Engine{
		cfg:      cfg,
		rooms:    rooms,
		index:    index,
		store:    st,
		pub:      pub,
		settler:  settler,
		reports:  reports,
		recorder: recorder,
		assigner: assigner,
		geoCache: make(map[string]*roomGeo),
		warnedAt: make(map[string]map[string]time.Time),
	}
}

// StartGame runs the WAITING -> PLAYING transition for the host and
// broadcasts the GameStarted event with role assignments and boundary.
func (e *Engine) StartGame(ctx context.Context, roomID, requesterID string,
	boundaryRings [][]geo.Point, jailRing []geo.Point) (*room.StartResult, error) {

	r := e.rooms.GetRoom(roomID)
	if r == nil {
		return nil, room.ErrNotFound
	}

	res, err := r.Start(requesterID, boundaryRings, jailRing, e.assigner, e.cfg.GameDuration)
	if err != nil {
		return nil, err
	}

	e.persistStart(ctx, r, res)

	ev := GameStartedEvent{
		RoomID:       roomID,
		SessionID:    res.Session.ID,
		PoliceCount:  res.PoliceCount,
		ThiefCount:   res.ThiefCount,
		Participants: res.Participants,
		Deadline:     res.Session.Deadline.UnixMilli(),
	}
	if res.Boundary != nil {
		ev.Boundary = res.Boundary.Rings
	}
	if res.Jail != nil {
		ev.Jail = res.Jail.Outer()
	}
	e.pub.PublishRoom(roomID, EventGameStarted, ev)
	return res, nil
}

// persistStart writes the started room, roles, boundary, and session to
// the roster store. Fire-and-log: persistence problems must not unwind a
// started game.
func (e *Engine) persistStart(ctx context.Context, r *room.Room, res *room.StartResult) {
	logErr := func(what string, err error) {
		if err != nil {
			slog.Error("start persistence failed", "room", r.ID, "op", what, "error", err)
		}
	}

	logErr("room", e.store.SaveRoom(ctx, store.RoomRecord{
		ID: r.ID, Status: r.Status.String(), HostID: r.HostID, MaxPlayers: r.MaxPlayers,
	}))
	if res.Boundary != nil {
		jailWKT := ""
		if res.Jail != nil {
			jailWKT = geo.FormatWKT(res.Jail)
		}
		logErr("boundary", e.store.SaveBoundary(ctx, r.ID, geo.FormatWKT(res.Boundary), jailWKT))
	}
	for _, p := range res.Participants {
		logErr("participant", e.store.SaveParticipant(ctx, store.ParticipantRecord{
			RoomID: r.ID, PlayerID: p.PlayerID, Nickname: p.Nickname,
			Role: p.Role.String(), Status: p.Status.String(), MMR: p.MMR,
		}))
	}
	logErr("session", e.store.CreateSession(ctx, store.SessionRecord{
		ID: res.Session.ID, RoomID: r.ID,
		StartedAt: res.Session.StartedAt, Deadline: res.Session.Deadline,
	}))
}

// ReportLocation ingests one location report: upserts the shared position
// index, records activity, checks geofence containment, and broadcasts
// the update to the room.
func (e *Engine) ReportLocation(ctx context.Context, roomID, nickname string, lat, lng float64) {
	r := e.rooms.GetRoom(roomID)
	if r == nil {
		slog.Warn("location for unknown room", "room", roomID, "nickname", nickname)
		return
	}

	// Last-write-wins upsert. A missed single update is tolerable, so a
	// failing write is logged rather than surfaced to the reporter.
	if err := e.index.Set(ctx, roomID, nickname, lat, lng); err != nil {
		slog.Error("position upsert failed", "room", roomID, "nickname", nickname, "error", err)
	}

	if e.recorder != nil {
		e.recorder.RecordMovement(roomID, nickname, lat, lng)
	}

	p, ok := r.ParticipantByNickname(nickname)
	if !ok {
		slog.Warn("location from non-member", "room", roomID, "nickname", nickname)
		return
	}

	e.checkOutOfBound(ctx, r, p, lat, lng)

	e.pub.PublishRoom(roomID, EventLocationUpdate, LocationUpdateEvent{
		RoomID:   roomID,
		Nickname: nickname,
		Role:     p.Role,
		Lat:      lat,
		Lng:      lng,
	})
}

// checkOutOfBound warns a player who strayed outside the buffered play
// region. Arrested players are exempt, and warnings are rate-limited per
// (room, nickname).
func (e *Engine) checkOutOfBound(ctx context.Context, r *room.Room, p *game.Participant, lat, lng float64) {
	g := e.resolveGeo(ctx, r)
	if g.boundary == nil {
		slog.Warn("boundary check skipped, no boundary for room", "room", r.ID)
		return
	}
	if p.IsArrested() {
		return
	}

	buffer := geo.MetersToDegrees(e.cfg.BoundaryBufferMeters)
	if !geo.IsOutOfBound(g.boundary, lat, lng, buffer) {
		return
	}

	if !e.warningDue(r.ID, p.Nickname) {
		return
	}

	slog.Warn("player out of bound", "room", r.ID, "nickname", p.Nickname)
	e.pub.PublishPlayer(r.ID, p.Nickname, EventBoundaryWarning, BoundaryWarningEvent{
		RoomID:   r.ID,
		Nickname: p.Nickname,
		Message:  "You have left the play area! Return within 10 seconds.",
	})
}

// warningDue checks and refreshes the per-player warning cooldown.
func (e *Engine) warningDue(roomID, nickname string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	warned, ok := e.warnedAt[roomID]
	if !ok {
		warned = make(map[string]time.Time)
		e.warnedAt[roomID] = warned
	}
	now := time.Now()
	if last, ok := warned[nickname]; ok && now.Sub(last) < e.cfg.WarningCooldown {
		return false
	}
	warned[nickname] = now
	return true
}

// resolveGeo returns the room's parsed boundary geometry, preferring the
// in-memory room, then the stored WKT (the room may have been started on
// another instance). Cached until game end.
func (e *Engine) resolveGeo(ctx context.Context, r *room.Room) *roomGeo {
	e.mu.Lock()
	if g, ok := e.geoCache[r.ID]; ok {
		e.mu.Unlock()
		return g
	}
	e.mu.Unlock()

	g := &roomGeo{boundary: r.Boundary, jail: r.Jail}
	if g.boundary == nil {
		boundaryWKT, jailWKT, err := e.store.FindBoundary(ctx, r.ID)
		if err != nil {
			slog.Error("boundary lookup failed", "room", r.ID, "error", err)
			return g // not cached; retried on the next report
		}
		if boundaryWKT != "" {
			if poly, err := geo.ParseWKT(boundaryWKT); err == nil {
				g.boundary = poly
			} else {
				slog.Error("stored boundary unparseable", "room", r.ID, "error", err)
			}
		}
		if jailWKT != "" {
			if poly, err := geo.ParseWKT(jailWKT); err == nil {
				g.jail = poly
			}
		}
	}

	e.mu.Lock()
	e.geoCache[r.ID] = g
	e.mu.Unlock()
	return g
}

// RequestArrest resolves a police player's arrest attempt against a
// target thief using the shared position index. The mutation and the
// last-thief check run inside the room's critical section so two
// concurrent arrests cannot both succeed against one target and the
// endgame fires exactly once.
func (e *Engine) RequestArrest(ctx context.Context, roomID, policeNickname, targetNickname string) {
	r := e.rooms.GetRoom(roomID)
	if r == nil {
		slog.Warn("arrest for unknown room", "room", roomID)
		return
	}

	distance, hasDistance, err := e.index.Distance(ctx, roomID, policeNickname, targetNickname)
	if err != nil {
		slog.Error("arrest distance lookup failed", "room", roomID, "error", err)
		hasDistance = false
	}

	ev := ArrestResultEvent{
		RoomID: roomID,
		Actor:  policeNickname,
		Target: targetNickname,
	}

	if !hasDistance {
		ev.Message = "Distance unknown: no position on file."
		e.pub.PublishRoom(roomID, EventArrestResult, ev)
		return
	}
	ev.Distance = &distance

	if distance > e.cfg.ArrestRangeMeters {
		ev.Message = fmt.Sprintf("Too far away. (current distance: %.2fm)", distance)
		e.pub.PublishRoom(roomID, EventArrestResult, ev)
		return
	}

	var (
		arrested      bool
		remaining     int
		closedSession bool
		targetID      string
	)
	r.WithLock(func() {
		target, ok := r.ParticipantByNicknameLocked(targetNickname)
		if !ok || target.Role != game.RoleThief || target.IsArrested() {
			return
		}
		target.Arrest()
		targetID = target.PlayerID
		arrested = true
		remaining = r.FreeThiefCountLocked()
		if remaining == 0 {
			closedSession = r.FinishLocked(game.WinnerPolice)
		}
	})

	if !arrested {
		ev.Message = "Target cannot be arrested."
		e.pub.PublishRoom(roomID, EventArrestResult, ev)
		return
	}

	if err := e.store.UpdateParticipantStatus(ctx, roomID, targetID, game.StatusArrested.String()); err != nil {
		slog.Error("arrest persistence failed", "room", roomID, "target", targetNickname, "error", err)
	}

	ev.Success = true
	ev.RemainingThieves = &remaining
	ev.Message = fmt.Sprintf("%s has been arrested!", targetNickname)
	e.pub.PublishRoom(roomID, EventArrestResult, ev)
	slog.Info("arrest succeeded", "room", roomID, "police", policeNickname,
		"thief", targetNickname, "distance_m", distance, "remaining", remaining)

	if closedSession {
		e.concludeSession(ctx, r, game.WinnerPolice, ReasonAllArrested)
	}
}

// RequestRescue resolves a jail-rescue attempt. Success releases every
// arrested thief in the room at once; each failure mode gets its own
// reason so clients can render it directly.
func (e *Engine) RequestRescue(ctx context.Context, roomID, rescuerNickname string) {
	r := e.rooms.GetRoom(roomID)
	if r == nil {
		slog.Warn("rescue for unknown room", "room", roomID)
		return
	}

	ev := RescueResultEvent{RoomID: roomID, Actor: rescuerNickname}

	lat, lng, ok, err := e.index.Get(ctx, roomID, rescuerNickname)
	if err != nil {
		slog.Error("rescue position lookup failed", "room", roomID, "error", err)
		ok = false
	}
	if !ok {
		ev.Message = "Rescue failed: no position on file."
		e.pub.PublishRoom(roomID, EventRescueResult, ev)
		return
	}

	g := e.resolveGeo(ctx, r)
	if g.jail == nil {
		ev.Message = "Rescue failed: this room has no jail."
		e.pub.PublishRoom(roomID, EventRescueResult, ev)
		return
	}

	limit := geo.MetersToDegrees(e.cfg.RescueRangeMeters)
	if !geo.IsNear(g.jail, lat, lng, limit) {
		ev.Message = "Too far from the jail. Get closer!"
		e.pub.PublishRoom(roomID, EventRescueResult, ev)
		return
	}

	var released, remaining int
	r.WithLock(func() {
		released = r.ReleaseArrestedLocked()
		remaining = r.FreeThiefCountLocked()
	})

	ev.Success = true
	ev.RemainingThieves = &remaining
	ev.Message = fmt.Sprintf("The thieves broke out! (rescuer: %s)", rescuerNickname)
	e.pub.PublishRoom(roomID, EventRescueResult, ev)
	slog.Info("rescue succeeded", "room", roomID, "rescuer", rescuerNickname,
		"released", released, "free_thieves", remaining)
}

// PlayerLeft detaches a player from a room. A mid-game departure marks
// the participant escaped; when that leaves the police with no thief to
// chase, the session ends as a police win in the same critical section,
// so an arrest racing the departure cannot see a stale count. Returns
// true for a mid-game escape.
func (e *Engine) PlayerLeft(ctx context.Context, roomID, playerID string) bool {
	r := e.rooms.GetRoom(roomID)
	if r == nil {
		return false
	}

	var escaped, closedSession bool
	r.WithLock(func() {
		escaped = r.RemoveParticipantLocked(playerID)
		if escaped && r.FreeThiefCountLocked() == 0 {
			closedSession = r.FinishLocked(game.WinnerPolice)
		}
	})

	if closedSession {
		e.concludeSession(ctx, r, game.WinnerPolice, ReasonAllArrested)
	}
	return escaped
}

// EndGame is the terminal entry point for the timeout sweep and manual
// overrides. Finish is idempotent, so racing triggers settle exactly once.
func (e *Engine) EndGame(ctx context.Context, roomID string, winner game.Winner, reason string) {
	r := e.rooms.GetRoom(roomID)
	if r == nil {
		return
	}
	if !r.Finish(winner) {
		return
	}
	e.concludeSession(ctx, r, winner, reason)
}

// concludeSession runs once per session, by whoever won the Finish race:
// settlement, the GameEnded broadcast, cache/position cleanup, and the
// asynchronous narrative reports.
func (e *Engine) concludeSession(ctx context.Context, r *room.Room, winner game.Winner, reason string) {
	result := e.settler.Settle(ctx, r)

	e.pub.PublishRoom(r.ID, EventGameEnded, GameEndedEvent{
		RoomID: r.ID,
		Winner: winner,
		Reason: reason,
	})

	// Movement stats are read out before invalidateRoom clears the
	// recorder; the reports are generated asynchronously afterwards.
	summaries := e.captureSummaries(r.ID, result)

	e.invalidateRoom(ctx, r.ID)

	go e.publishReports(r, result, summaries)
}

// activitySummary is one player's movement stats, captured at game end.
type activitySummary struct {
	distanceM   int
	maxSpeedKmh float64
}

func (e *Engine) captureSummaries(roomID string, result *rating.Result) map[string]activitySummary {
	out := make(map[string]activitySummary, len(result.Players))
	if e.recorder == nil {
		return out
	}
	for _, pr := range result.Players {
		d, s := e.recorder.Summary(roomID, pr.Nickname)
		out[pr.Nickname] = activitySummary{distanceM: d, maxSpeedKmh: s}
	}
	return out
}

// invalidateRoom clears the boundary cache, warning cooldowns, and shared
// positions for an ended room.
func (e *Engine) invalidateRoom(ctx context.Context, roomID string) {
	e.mu.Lock()
	delete(e.geoCache, roomID)
	delete(e.warnedAt, roomID)
	e.mu.Unlock()

	if err := e.index.Clear(ctx, roomID); err != nil {
		slog.Error("position cleanup failed", "room", roomID, "error", err)
	}
	if e.recorder != nil {
		e.recorder.Clear(roomID)
	}
	slog.Info("cleared location caches", "room", roomID)
}

// publishReports asks the narrative collaborator for a per-player report
// and delivers each one addressed. Never awaited by game flow; the
// generator falls back internally on failure.
func (e *Engine) publishReports(r *room.Room, result *rating.Result, summaries map[string]activitySummary) {
	sess := r.Session
	playMinutes := int(time.Since(sess.StartedAt).Minutes())

	for _, pr := range result.Players {
		outcome := "LOSE"
		if pr.Delta > 0 {
			outcome = "WIN"
		}

		stats := report.Stats{
			Role:        pr.Role.String(),
			Result:      outcome,
			PlayTimeMin: playMinutes,
		}
		if s, ok := summaries[pr.Nickname]; ok {
			stats.TotalDistanceM = s.distanceM
			stats.MaxSpeedKmh = s.maxSpeedKmh
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		rep := e.reports.Generate(ctx, stats)
		cancel()

		e.pub.PublishPlayer(r.ID, pr.Nickname, EventGameReport, rep)
	}
}
