package position

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	opTimeout  = 2 * time.Second
	retryDelay = 100 * time.Millisecond
)

// RedisIndex implements Index on Redis GEO commands. One sorted set per
// room, keyed room:{id}:locations, with a TTL so abandoned rooms self-clean.
type RedisIndex struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisIndex connects to Redis and verifies the connection.
func NewRedisIndex(ctx context.Context, redisURL string, ttl time.Duration) (*RedisIndex, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, errors.New("redis URL required for position index")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisIndex{rdb: rdb, ttl: ttl}, nil
}

// Close releases the Redis connection.
func (x *RedisIndex) Close() error {
	return x.rdb.Close()
}

func key(roomID string) string {
	return "room:" + roomID + ":locations"
}

// Set upserts the player's position (GEOADD) and refreshes the room TTL.
// A missed single location update is tolerable, so callers treat failures
// as fire-and-log rather than blocking the report path.
func (x *RedisIndex) Set(ctx context.Context, roomID, nickname string, lat, lng float64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	k := key(roomID)
	if err := x.rdb.GeoAdd(ctx, k, &redis.GeoLocation{
		Name:      nickname,
		Latitude:  lat,
		Longitude: lng,
	}).Err(); err != nil {
		return fmt.Errorf("geoadd %s: %w", k, err)
	}
	if err := x.rdb.Expire(ctx, k, x.ttl).Err(); err != nil {
		slog.Warn("position ttl refresh failed", "key", k, "error", err)
	}
	return nil
}

// Get returns the last known position (GEOPOS), retrying once on a
// transient failure.
func (x *RedisIndex) Get(ctx context.Context, roomID, nickname string) (float64, float64, bool, error) {
	pos, err := x.geoPos(ctx, roomID, nickname)
	if err != nil {
		time.Sleep(retryDelay)
		pos, err = x.geoPos(ctx, roomID, nickname)
	}
	if err != nil {
		return 0, 0, false, err
	}
	if pos == nil {
		return 0, 0, false, nil
	}
	return pos.Latitude, pos.Longitude, true, nil
}

func (x *RedisIndex) geoPos(ctx context.Context, roomID, nickname string) (*redis.GeoPos, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := x.rdb.GeoPos(ctx, key(roomID), nickname).Result()
	if err != nil {
		return nil, fmt.Errorf("geopos: %w", err)
	}
	if len(res) == 0 || res[0] == nil {
		return nil, nil
	}
	return res[0], nil
}

// Distance returns the distance in meters between two players (GEODIST),
// retrying once on a transient failure.
func (x *RedisIndex) Distance(ctx context.Context, roomID, a, b string) (float64, bool, error) {
	d, ok, err := x.geoDist(ctx, roomID, a, b)
	if err != nil {
		time.Sleep(retryDelay)
		d, ok, err = x.geoDist(ctx, roomID, a, b)
	}
	return d, ok, err
}

func (x *RedisIndex) geoDist(ctx context.Context, roomID, a, b string) (float64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	d, err := x.rdb.GeoDist(ctx, key(roomID), a, b, "m").Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("geodist: %w", err)
	}
	return d, true, nil
}

// Remove deletes one player's position. GEO sets are sorted sets
// underneath, so plain ZREM works.
func (x *RedisIndex) Remove(ctx context.Context, roomID, nickname string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return x.rdb.ZRem(ctx, key(roomID), nickname).Err()
}

// Clear drops the whole room key.
func (x *RedisIndex) Clear(ctx context.Context, roomID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return x.rdb.Del(ctx, key(roomID)).Err()
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	pass, _ := u.User.Password()
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
