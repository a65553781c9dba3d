// Package rating settles skill scores once a session closes: winners gain,
// losers lose, deserters pay a flat penalty, and every change lands in the
// append-only rating history.
package rating

import (
	"context"
	"log/slog"
	"time"

	"github.com/modaba/pursuit-server/internal/game"
	"github.com/modaba/pursuit-server/internal/room"
	"github.com/modaba/pursuit-server/internal/store"
)

const (
	WinDelta      = 25
	LoseDelta     = 20
	EscapePenalty = 50

	defaultAvgMMR = 1000
	retryDelay    = 5 * time.Second
)

// History reasons.
const (
	ReasonGameResult    = "GAME_RESULT"
	ReasonEscapePenalty = "ESCAPE_PENALTY"
)

// PlayerResult is one participant's settlement outcome.
type PlayerResult struct {
	PlayerID string    `json:"player_id"`
	Nickname string    `json:"nickname"`
	Role     game.Role `json:"role"`
	OldMMR   int       `json:"old_mmr"`
	NewMMR   int       `json:"new_mmr"`
	Delta    int       `json:"delta"`
	Reason   string    `json:"reason"`
}

// Result is the full settlement of one session.
type Result struct {
	RoomID    string         `json:"room_id"`
	SessionID string         `json:"session_id"`
	Winner    game.Winner    `json:"winner"`
	AvgMMR    int            `json:"avg_mmr"`
	Players   []PlayerResult `json:"players"`
}

// Settler computes and persists rating changes. Exactly-once execution is
// guaranteed by the caller: only the Finish call that actually closed the
// session settles it.
type Settler struct {
	store store.GameStore
}

func NewSettler(st store.GameStore) *Settler {
	return &Settler{store: st}
}

// Settle computes per-player deltas for the closed session and persists
// them. Persistence failures never unwind the game outcome: they are
// logged and retried once asynchronously.
func (s *Settler) Settle(ctx context.Context, r *room.Room) *Result {
	sess := r.Session
	roster := r.Snapshot()
	winner := sess.Winner

	avg := defaultAvgMMR
	if len(roster) > 0 {
		total := 0
		for _, p := range roster {
			total += p.MMR
		}
		avg = total / len(roster)
	}
	sess.AvgMMR = avg

	result := &Result{
		RoomID:    r.ID,
		SessionID: sess.ID,
		Winner:    winner,
		AvgMMR:    avg,
		Players:   make([]PlayerResult, 0, len(roster)),
	}

	for _, p := range roster {
		delta, reason := deltaFor(&p, winner)
		newMMR := p.MMR + delta
		if newMMR < 0 {
			newMMR = 0
		}

		pr := PlayerResult{
			PlayerID: p.PlayerID,
			Nickname: p.Nickname,
			Role:     p.Role,
			OldMMR:   p.MMR,
			NewMMR:   newMMR,
			Delta:    delta,
			Reason:   reason,
		}
		result.Players = append(result.Players, pr)

		s.persist(ctx, func(ctx context.Context) error {
			if err := s.store.UpdateMMR(ctx, pr.PlayerID, pr.NewMMR); err != nil {
				return err
			}
			return s.store.InsertMMRHistory(ctx, store.MMRHistory{
				PlayerID:  pr.PlayerID,
				SessionID: sess.ID,
				OldMMR:    pr.OldMMR,
				NewMMR:    pr.NewMMR,
				Delta:     pr.Delta,
				Reason:    pr.Reason,
				CreatedAt: time.Now(),
			})
		})
	}

	s.persist(ctx, func(ctx context.Context) error {
		if err := s.store.CloseSession(ctx, sess.ID, winner.String(), avg); err != nil {
			return err
		}
		return s.store.UpdateRoomStatus(ctx, r.ID, game.RoomFinished.String())
	})

	slog.Info("session settled", "room", r.ID, "session", sess.ID,
		"winner", winner, "avg_mmr", avg, "players", len(result.Players))
	return result
}

// persist runs a store write, retrying once in the background on failure.
// Bookkeeping must never block "game outcome is final".
func (s *Settler) persist(ctx context.Context, fn func(context.Context) error) {
	if err := fn(ctx); err == nil {
		return
	} else {
		slog.Error("settlement write failed, retrying", "error", err)
	}
	go func() {
		time.Sleep(retryDelay)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			slog.Error("settlement retry failed, giving up", "error", err)
		}
	}()
}

func deltaFor(p *game.Participant, winner game.Winner) (int, string) {
	if p.Escaped {
		return -EscapePenalty, ReasonEscapePenalty
	}
	if p.Role == winner.Team() {
		return WinDelta, ReasonGameResult
	}
	return -LoseDelta, ReasonGameResult
}
