package chessbuilder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/park285/chess-engine-mcp/internal/cache"
	corechess "github.com/park285/chess-engine-mcp/internal/chess"
	"github.com/park285/chess-engine-mcp/internal/chess/uci"
	"github.com/park285/chess-engine-mcp/internal/config"
	"github.com/park285/chess-engine-mcp/internal/health"
	"github.com/park285/chess-engine-mcp/internal/journal"
	"go.uber.org/zap"
)

type Deps struct {
	Engine   *corechess.Engine
	Location config.EngineLocation
	Cache    *cache.MoveCache
	Journal  *journal.Repository
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := config.ResolveEnginePath(cfg)
	if err != nil {
		return nil, err
	}
	for _, skipped := range loc.Skipped {
		logger.Warn("engine_path_skipped", zap.String("path", skipped))
	}
	logger.Info("engine_binary", zap.String("path", loc.Path), zap.String("source", string(loc.Source)))

	extra, err := config.LoadEngineOptions(cfg.EngineOptionsFile)
	if err != nil {
		return nil, err
	}
	opts := uci.Options{Threads: cfg.Threads, HashMB: cfg.HashMB, SkillLevel: cfg.SkillLevel}
	for _, o := range extra {
		opts.Extra = append(opts.Extra, uci.Option{Name: o.Name, Value: o.Value})
	}

	ctrl, err := uci.NewController(uci.ControllerConfig{
		Session: uci.SessionConfig{
			BinaryPath:     loc.Path,
			Options:        opts,
			StartupTimeout: ms(cfg.StartupTimeoutMs),
			QuitTimeout:    ms(cfg.QuitTimeoutMs),
		},
		QueueTimeout: ms(cfg.QueueTimeoutMs),
		SearchGrace:  ms(cfg.SearchGraceMs),
	}, logger.Named("uci"))
	if err != nil {
		return nil, fmt.Errorf("init engine controller: %w", err)
	}

	deps := &Deps{Location: loc}
	var engineOpts []corechess.Option

	// Cache (optional)
	if strings.TrimSpace(cfg.RedisURL) != "" {
		rdb, err := cache.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("init cache: %w", err)
		}
		deps.Cache = cache.NewMoveCache(rdb, time.Duration(cfg.MoveCacheTTLSec)*time.Second)
		engineOpts = append(engineOpts, corechess.WithCache(deps.Cache))
		logger.Info("move_cache_enabled", zap.Int("ttl_sec", cfg.MoveCacheTTLSec))
	}

	// Journal (optional)
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		repo, err := journal.NewRepository(cfg.DatabaseURL)
		if err != nil {
			deps.closeStores()
			return nil, fmt.Errorf("init journal: %w", err)
		}
		sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = repo.EnsureSchema(sctx)
		cancel()
		if err != nil {
			_ = repo.Close()
			deps.closeStores()
			return nil, fmt.Errorf("journal schema: %w", err)
		}
		deps.Journal = repo
		engineOpts = append(engineOpts, corechess.WithJournal(repo))
		logger.Info("journal_enabled")
	}

	engine, err := corechess.NewEngine(ctrl, corechess.Config{
		DefaultMovetime: ms(cfg.MovetimeMs),
		MinMovetime:     ms(cfg.MinMovetimeMs),
		MaxMovetime:     ms(cfg.MaxMovetimeMs),
	}, logger.Named("engine"), engineOpts...)
	if err != nil {
		deps.closeStores()
		return nil, err
	}
	deps.Engine = engine
	return deps, nil
}

// HealthChecks lists the engine as required and the stores as optional.
func (d *Deps) HealthChecks() []health.Check {
	checks := []health.Check{{Name: "engine", Probe: d.Engine.Ping}}
	if d.Cache != nil {
		checks = append(checks, health.Check{Name: "redis", Optional: true, Probe: d.Cache.Ping})
	}
	if d.Journal != nil {
		checks = append(checks, health.Check{Name: "postgres", Optional: true, Probe: d.Journal.Ping})
	}
	return checks
}

// Close stops the engine process first, then the stores.
func (d *Deps) Close(ctx context.Context) error {
	var err error
	if d.Engine != nil {
		err = d.Engine.Close(ctx)
	}
	d.closeStores()
	return err
}

func (d *Deps) closeStores() {
	if d.Cache != nil {
		_ = d.Cache.Close()
	}
	if d.Journal != nil {
		_ = d.Journal.Close()
	}
}
