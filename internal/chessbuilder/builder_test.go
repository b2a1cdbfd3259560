package chessbuilder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	corechess "github.com/park285/chess-engine-mcp/internal/chess"
	"github.com/park285/chess-engine-mcp/internal/chess/uci/ucitest"
	"github.com/park285/chess-engine-mcp/internal/config"
)

func TestMain(m *testing.M) { ucitest.Main(m) }

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	exe := ucitest.Use(t, ucitest.ModeNormal)
	return &config.AppConfig{
		EnginePath:       exe,
		EngineName:       "stockfish",
		EngineVersion:    "0",
		EngineOS:         "linux",
		EnginesDir:       t.TempDir(),
		MovetimeMs:       100,
		MinMovetimeMs:    50,
		MaxMovetimeMs:    2000,
		HashMB:           16,
		Threads:          1,
		SkillLevel:       -1,
		StartupTimeoutMs: 5000,
		SearchGraceMs:    2000,
		QueueTimeoutMs:   5000,
		QuitTimeoutMs:    500,
		MoveCacheTTLSec:  60,
	}
}

func TestNewWiresEngine(t *testing.T) {
	cfg := testConfig(t)
	deps, err := New(context.Background(), cfg, nil)
	if err != nil { t.Fatalf("New: %v", err) }
	t.Cleanup(func() { _ = deps.Close(context.Background()) })

	if deps.Location.Source != config.SourceExplicit || deps.Location.Path != cfg.EnginePath { t.Fatalf("unexpected location %+v", deps.Location) }
	if deps.Cache != nil || deps.Journal != nil { t.Fatalf("stores enabled without urls") }
	if checks := deps.HealthChecks(); len(checks) != 1 || checks[0].Name != "engine" { t.Fatalf("unexpected checks %+v", checks) }

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := deps.Engine.ComputeBestMove(ctx, corechess.BestMoveRequest{})
	if err != nil || res.BestMoveUCI == "" { t.Fatalf("ComputeBestMove: %+v %v", res, err) }
}

func TestNewWithRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"
	deps, err := New(context.Background(), cfg, nil)
	if err != nil { t.Fatalf("New: %v", err) }
	t.Cleanup(func() { _ = deps.Close(context.Background()) })
	if deps.Cache == nil { t.Fatalf("cache not wired") }
	if checks := deps.HealthChecks(); len(checks) != 2 || !checks[1].Optional { t.Fatalf("redis check missing: %+v", checks) }

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	first, err := deps.Engine.ComputeBestMove(ctx, corechess.BestMoveRequest{Moves: []string{"e2e4"}})
	if err != nil { t.Fatalf("first: %v", err) }
	second, err := deps.Engine.ComputeBestMove(ctx, corechess.BestMoveRequest{Moves: []string{"e2e4"}})
	if err != nil || !second.Cached || second.BestMoveUCI != first.BestMoveUCI { t.Fatalf("second call not served from cache: %+v %v", second, err) }
}

func TestNewFailures(t *testing.T) {
	if _, err := New(context.Background(), nil, nil); err == nil { t.Fatalf("nil config accepted") }

	cfg := testConfig(t)
	opts := filepath.Join(t.TempDir(), "engine.yaml")
	if err := os.WriteFile(opts, []byte("options:\n  - name: Threads\n    value: 2\n"), 0o600); err != nil { t.Fatalf("write: %v", err) }
	cfg.EngineOptionsFile = opts
	if _, err := New(context.Background(), cfg, nil); err == nil { t.Fatalf("reserved option accepted") }

	cfg = testConfig(t)
	cfg.RedisURL = "redis://127.0.0.1:1/0"
	if _, err := New(context.Background(), cfg, nil); err == nil { t.Fatalf("unreachable redis accepted") }

	cfg = testConfig(t)
	cfg.EnginePath = filepath.Join(t.TempDir(), "missing")
	deps, err := New(context.Background(), cfg, nil)
	if err == nil {
		// a stockfish installed on the host satisfies the system fallback
		_ = deps.Close(context.Background())
		t.Skip("system engine present")
	}
	if !errors.Is(err, config.ErrEngineNotFound) { t.Fatalf("expected ErrEngineNotFound, got %v", err) }
}
