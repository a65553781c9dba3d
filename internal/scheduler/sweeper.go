// Package scheduler runs the periodic session-timeout sweep: any room
// still PLAYING past its deadline is ended with a thief victory.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/modaba/pursuit-server/internal/engine"
	"github.com/modaba/pursuit-server/internal/game"
	"github.com/modaba/pursuit-server/internal/room"
)

// Ender is the slice of the engine the sweeper needs.
type Ender interface {
	EndGame(ctx context.Context, roomID string, winner game.Winner, reason string)
}

// Sweeper scans for overdue sessions on a fixed interval. Ending is
// idempotent downstream, so a sweep racing an in-flight arrest completion
// is harmless.
type Sweeper struct {
	rooms    *room.Manager
	ender    Ender
	interval time.Duration
}

func NewSweeper(rooms *room.Manager, ender Ender, interval time.Duration) *Sweeper {
	return &Sweeper{rooms: rooms, ender: ender, interval: interval}
}

// Run blocks until ctx is cancelled, sweeping every interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("timeout sweeper started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("timeout sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep ends every overdue PLAYING session.
func (s *Sweeper) Sweep(ctx context.Context) {
	overdue := s.rooms.OverduePlaying(time.Now())
	for _, r := range overdue {
		slog.Info("session deadline passed, ending game", "room", r.ID, "session", r.Session.ID)
		s.ender.EndGame(ctx, r.ID, game.WinnerThief, engine.ReasonTimeout)
	}
}
