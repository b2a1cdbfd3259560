package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func newTestCache(t *testing.T) (*MoveCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil { t.Fatalf("miniredis: %v", err) }
	t.Cleanup(mr.Close)
	rdb, err := NewClient(context.Background(), "redis://"+mr.Addr()+"/0")
	if err != nil { t.Fatalf("NewClient: %v", err) }
	c := NewMoveCache(rdb, time.Minute)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestPutGetRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	key := Key("", []string{"e2e4"}, time.Second)

	got, err := c.Get(ctx, key)
	if err != nil || got != nil { t.Fatalf("expected miss, got %+v %v", got, err) }

	if err := c.Put(ctx, key, &Entry{BestMove: "e7e5", Ponder: "g1f3", MovetimeMs: 1000, ComputedAt: time.Now()}); err != nil { t.Fatalf("Put: %v", err) }
	got, err = c.Get(ctx, key)
	if err != nil || got == nil { t.Fatalf("Get: %+v %v", got, err) }
	if got.BestMove != "e7e5" || got.Ponder != "g1f3" { t.Fatalf("unexpected entry %+v", got) }

	mr.FastForward(2 * time.Minute)
	if got, _ := c.Get(ctx, key); got != nil { t.Fatalf("entry survived its ttl") }
}

func TestKeyDistinguishesInputs(t *testing.T) {
	base := Key("startpos", []string{"e2e4"}, time.Second)
	if Key("", []string{"e2e4"}, time.Second) != base { t.Fatalf("empty fen and startpos should share a key") }
	if Key("startpos", []string{"d2d4"}, time.Second) == base { t.Fatalf("moves ignored") }
	if Key("startpos", []string{"e2e4"}, 2*time.Second) == base { t.Fatalf("movetime ignored") }
}

func TestPutSkipsEmptyMove(t *testing.T) {
	c, mr := newTestCache(t)
	if err := c.Put(context.Background(), "bm:x", &Entry{}); err != nil { t.Fatalf("Put: %v", err) }
	if mr.Exists("bm:x") { t.Fatalf("empty entry stored") }
}

func TestParseRedisURL(t *testing.T) {
	opts, err := ParseRedisURL("redis://:secret@cache.local:6380/2")
	if err != nil { t.Fatalf("ParseRedisURL: %v", err) }
	if opts.Addr != "cache.local:6380" || opts.Password != "secret" || opts.DB != 2 { t.Fatalf("unexpected options %+v", opts) }
	if _, err := ParseRedisURL("http://x"); err == nil { t.Fatalf("expected scheme error") }
}
