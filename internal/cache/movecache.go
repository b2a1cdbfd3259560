// Package cache stores computed best moves in Redis so repeated queries for
// the same position and movetime skip the engine.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "bm:"
	defaultTTL = time.Hour
)

type Entry struct {
	BestMove   string    `json:"best_move"`
	Ponder     string    `json:"ponder,omitempty"`
	MovetimeMs int64     `json:"movetime_ms"`
	ComputedAt time.Time `json:"computed_at"`
}

type MoveCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewMoveCache(rdb *redis.Client, ttl time.Duration) *MoveCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MoveCache{rdb: rdb, ttl: ttl}
}

// Key identifies a search by position, history and movetime.
func Key(fen string, moves []string, movetime time.Duration) string {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		fen = "startpos"
	}
	h := sha256.New()
	h.Write([]byte(fen))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(moves, " ")))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(movetime.Milliseconds(), 10)))
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get returns nil, nil on a miss.
func (c *MoveCache) Get(ctx context.Context, key string) (*Entry, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil { return nil, nil }
	if err != nil { return nil, err }
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil { return nil, fmt.Errorf("decode cache entry: %w", err) }
	return &e, nil
}

func (c *MoveCache) Put(ctx context.Context, key string, e *Entry) error {
	if e == nil || e.BestMove == "" { return nil }
	raw, err := json.Marshal(e)
	if err != nil { return err }
	return c.rdb.Set(ctx, key, raw, c.ttl).Err()
}

func (c *MoveCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *MoveCache) Close() error {
	return c.rdb.Close()
}

// NewClient connects to redis://[:password@]host[:port][/db] and checks the
// connection.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func ParseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := u.Port()
	if port == "" {
		port = "6379"
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid db %q", p)
		}
		db = n
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: host + ":" + port, Username: u.User.Username(), Password: pass, DB: db}, nil
}
