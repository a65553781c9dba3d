package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/modaba/pursuit-server/internal/config"
	"github.com/modaba/pursuit-server/internal/engine"
	"github.com/modaba/pursuit-server/internal/game"
	"github.com/modaba/pursuit-server/internal/handler"
	"github.com/modaba/pursuit-server/internal/position"
	"github.com/modaba/pursuit-server/internal/rating"
	"github.com/modaba/pursuit-server/internal/report"
	"github.com/modaba/pursuit-server/internal/room"
	"github.com/modaba/pursuit-server/internal/scheduler"
	"github.com/modaba/pursuit-server/internal/store"
	"github.com/modaba/pursuit-server/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gameStore := newGameStore(ctx, cfg)
	defer gameStore.Close()

	index := newPositionIndex(ctx, cfg)

	hub := ws.NewHub()
	rm := room.NewManager(cfg.MaxPlayers)

	eng := engine.New(engine.Config{
		ArrestRangeMeters:    cfg.ArrestRangeMeters,
		RescueRangeMeters:    cfg.RescueRangeMeters,
		BoundaryBufferMeters: cfg.BoundaryBufferMeters,
		WarningCooldown:      cfg.WarningCooldown,
		GameDuration:         cfg.GameDuration,
	}, rm, index, gameStore, hub,
		rating.NewSettler(gameStore), newReportGenerator(cfg),
		engine.NewTrackingRecorder(), newAssigner(cfg))

	router := handler.NewRouter(rm, eng, hub, gameStore)
	hub.OnMessage = router.HandleMessage
	hub.OnDisconnect = router.HandleDisconnect

	go hub.Run()
	go scheduler.NewSweeper(rm, eng, cfg.SweepInterval).Run(ctx)

	http.HandleFunc("/health", handleHealth)
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(hub, w, r)
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		srv.Shutdown(context.Background())
	}()

	slog.Info("server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// newGameStore connects to Postgres when configured, otherwise runs on
// the in-process store.
func newGameStore(ctx context.Context, cfg *config.Config) store.GameStore {
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set, game records are not durable")
		return store.NewMemoryStore()
	}
	st, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to postgres")
	return st
}

// newPositionIndex connects to Redis when configured; the in-process
// index works for a single instance only.
func newPositionIndex(ctx context.Context, cfg *config.Config) position.Index {
	if cfg.RedisURL == "" {
		slog.Warn("REDIS_URL not set, positions are instance-local")
		return position.NewMemoryIndex()
	}
	idx, err := position.NewRedisIndex(ctx, cfg.RedisURL, cfg.PositionTTL)
	if err != nil {
		slog.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to redis")
	return idx
}

func newReportGenerator(cfg *config.Config) report.Generator {
	if cfg.ReportURL == "" {
		return report.NopGenerator{}
	}
	return report.NewHTTPGenerator(cfg.ReportURL, cfg.ReportTimeout)
}

func newAssigner(cfg *config.Config) game.RoleAssigner {
	switch cfg.RoleAssignmentStrategy {
	case "keyword":
		return game.KeywordAssigner{PoliceKeyword: "police", ThiefKeyword: "thief"}
	default:
		return game.RandomAssigner{PoliceRatio: cfg.PoliceRatio}
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func handleWebSocket(hub *ws.Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	client := ws.NewClient(uuid.New().String(), hub, conn)
	hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

func setupLogger(cfg *config.Config) {
	var h slog.Handler
	opts := &slog.HandlerOptions{}

	switch cfg.LogLevel {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	switch cfg.LogFormat {
	case "json":
		h = slog.NewJSONHandler(os.Stdout, opts)
	default:
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(h))
}
