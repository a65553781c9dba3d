package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
    id TEXT PRIMARY KEY,
    status TEXT NOT NULL DEFAULT 'WAITING',
    host_id TEXT NOT NULL DEFAULT '',
    max_players INT NOT NULL DEFAULT 8,
    boundary_wkt TEXT,
    jail_wkt TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS participants (
    room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
    player_id TEXT NOT NULL,
    nickname TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'NONE',
    status TEXT NOT NULL DEFAULT 'READY',
    mmr INT NOT NULL DEFAULT 1000,
    PRIMARY KEY (room_id, player_id)
);
CREATE TABLE IF NOT EXISTS game_sessions (
    id TEXT PRIMARY KEY,
    room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
    started_at TIMESTAMPTZ NOT NULL,
    deadline TIMESTAMPTZ NOT NULL,
    winner TEXT,
    avg_mmr INT,
    closed_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS mmr_history (
    id BIGSERIAL PRIMARY KEY,
    player_id TEXT NOT NULL,
    session_id TEXT NOT NULL,
    old_mmr INT NOT NULL,
    new_mmr INT NOT NULL,
    delta INT NOT NULL,
    reason TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_sessions_room_id ON game_sessions(room_id);
CREATE INDEX IF NOT EXISTS idx_mmr_history_player_id ON mmr_history(player_id);
`

// PostgresStore implements GameStore using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to PostgreSQL and initializes the schema.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) SaveRoom(ctx context.Context, r RoomRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rooms (id, status, host_id, max_players)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET status = $2, host_id = $3`,
		r.ID, r.Status, r.HostID, r.MaxPlayers)
	return err
}

func (s *PostgresStore) UpdateRoomStatus(ctx context.Context, roomID, status string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE rooms SET status = $1 WHERE id = $2`, status, roomID)
	return err
}

func (s *PostgresStore) SaveBoundary(ctx context.Context, roomID, boundaryWKT, jailWKT string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE rooms SET boundary_wkt = $1, jail_wkt = NULLIF($2, '') WHERE id = $3`,
		boundaryWKT, jailWKT, roomID)
	return err
}

func (s *PostgresStore) FindBoundary(ctx context.Context, roomID string) (string, string, error) {
	var boundary, jail *string
	err := s.pool.QueryRow(ctx,
		`SELECT boundary_wkt, jail_wkt FROM rooms WHERE id = $1`, roomID).
		Scan(&boundary, &jail)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}
	return deref(boundary), deref(jail), nil
}

func (s *PostgresStore) SaveParticipant(ctx context.Context, p ParticipantRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO participants (room_id, player_id, nickname, role, status, mmr)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (room_id, player_id) DO UPDATE SET role = $4, status = $5, mmr = $6`,
		p.RoomID, p.PlayerID, p.Nickname, p.Role, p.Status, p.MMR)
	return err
}

func (s *PostgresStore) UpdateParticipantRole(ctx context.Context, roomID, playerID, role string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE participants SET role = $1 WHERE room_id = $2 AND player_id = $3`,
		role, roomID, playerID)
	return err
}

func (s *PostgresStore) UpdateParticipantStatus(ctx context.Context, roomID, playerID, status string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE participants SET status = $1 WHERE room_id = $2 AND player_id = $3`,
		status, roomID, playerID)
	return err
}

func (s *PostgresStore) RemoveParticipant(ctx context.Context, roomID, playerID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM participants WHERE room_id = $1 AND player_id = $2`, roomID, playerID)
	return err
}

func (s *PostgresStore) CreateSession(ctx context.Context, sess SessionRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO game_sessions (id, room_id, started_at, deadline)
		 VALUES ($1, $2, $3, $4)`,
		sess.ID, sess.RoomID, sess.StartedAt, sess.Deadline)
	return err
}

func (s *PostgresStore) CloseSession(ctx context.Context, sessionID, winner string, avgMMR int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE game_sessions SET winner = $1, avg_mmr = $2, closed_at = NOW()
		 WHERE id = $3 AND closed_at IS NULL`,
		winner, avgMMR, sessionID)
	return err
}

func (s *PostgresStore) UpdateMMR(ctx context.Context, playerID string, mmr int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE participants SET mmr = $1 WHERE player_id = $2`, mmr, playerID)
	return err
}

func (s *PostgresStore) InsertMMRHistory(ctx context.Context, h MMRHistory) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO mmr_history (player_id, session_id, old_mmr, new_mmr, delta, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		h.PlayerID, h.SessionID, h.OldMMR, h.NewMMR, h.Delta, h.Reason, h.CreatedAt)
	return err
}

// Close releases database resources.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
