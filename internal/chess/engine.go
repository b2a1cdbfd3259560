package chess

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/park285/chess-engine-mcp/internal/cache"
	"github.com/park285/chess-engine-mcp/internal/chess/rules"
	"github.com/park285/chess-engine-mcp/internal/chess/uci"
	"github.com/park285/chess-engine-mcp/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultMovetime   = time.Second
	minMovetime       = 100 * time.Millisecond
	maxMovetime       = 60 * time.Second
	sideEffectTimeout = 2 * time.Second
)

var ErrInvalidTimeLimit = errors.New("invalid time limit")

type MoveCache interface {
	Get(ctx context.Context, key string) (*cache.Entry, error)
	Put(ctx context.Context, key string, e *cache.Entry) error
}

type Journal interface {
	Record(ctx context.Context, c domain.Computation) error
}

type Config struct {
	DefaultMovetime time.Duration
	MinMovetime     time.Duration
	MaxMovetime     time.Duration
}

func (c Config) withDefaults() Config {
	if c.MinMovetime <= 0 {
		c.MinMovetime = minMovetime
	}
	if c.MaxMovetime <= 0 {
		c.MaxMovetime = maxMovetime
	}
	if c.DefaultMovetime <= 0 {
		c.DefaultMovetime = defaultMovetime
	}
	return c
}

type Option func(*Engine)

func WithCache(c MoveCache) Option { return func(e *Engine) { e.cache = c } }

func WithJournal(j Journal) Option { return func(e *Engine) { e.journal = j } }

// Engine validates requests, consults the cache and runs searches on the
// single engine process owned by the controller.
type Engine struct {
	ctrl    *uci.Controller
	cfg     Config
	cache   MoveCache
	journal Journal
	logger  *zap.Logger
}

func NewEngine(ctrl *uci.Controller, cfg Config, logger *zap.Logger, opts ...Option) (*Engine, error) {
	if ctrl == nil {
		return nil, fmt.Errorf("nil controller")
	}
	cfg = cfg.withDefaults()
	if cfg.DefaultMovetime < cfg.MinMovetime || cfg.DefaultMovetime > cfg.MaxMovetime {
		return nil, fmt.Errorf("%w: default %s outside %s..%s", ErrInvalidTimeLimit, cfg.DefaultMovetime, cfg.MinMovetime, cfg.MaxMovetime)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{ctrl: ctrl, cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

type BestMoveRequest struct {
	FEN   string
	Moves []string
	// TimeLimitMs 0 uses the configured default; negative values are rejected.
	TimeLimitMs int
}

type BestMoveResult struct {
	RequestID   string
	BestMoveUCI string
	Ponder      string
	Movetime    time.Duration
	Duration    time.Duration
	Cached      bool
}

func (e *Engine) movetime(limitMs int) (time.Duration, error) {
	if limitMs == 0 {
		return e.cfg.DefaultMovetime, nil
	}
	if limitMs < 0 {
		return 0, fmt.Errorf("%w: %dms is negative", ErrInvalidTimeLimit, limitMs)
	}
	d := time.Duration(limitMs) * time.Millisecond
	if d < e.cfg.MinMovetime || d > e.cfg.MaxMovetime {
		return 0, fmt.Errorf("%w: %dms outside %d..%dms", ErrInvalidTimeLimit, limitMs, e.cfg.MinMovetime.Milliseconds(), e.cfg.MaxMovetime.Milliseconds())
	}
	return d, nil
}

func (e *Engine) ComputeBestMove(ctx context.Context, req BestMoveRequest) (BestMoveResult, error) {
	start := time.Now()
	res := BestMoveResult{RequestID: uuid.NewString()}

	movetime, err := e.movetime(req.TimeLimitMs)
	if err != nil {
		return res, err
	}
	res.Movetime = movetime
	req.Moves = rules.NormalizeMoves(req.Moves)
	if _, err := rules.Replay(req.FEN, req.Moves); err != nil {
		return res, err
	}

	key := cache.Key(req.FEN, req.Moves, movetime)
	if hit := e.lookup(ctx, key); hit != nil {
		res.BestMoveUCI = hit.BestMove
		res.Ponder = hit.Ponder
		res.Cached = true
		res.Duration = time.Since(start)
		e.record(req, res, "")
		return res, nil
	}

	mv, err := e.ctrl.BestMove(ctx, uci.NewPosition(req.FEN, req.Moves), movetime)
	res.Duration = time.Since(start)
	if err != nil {
		e.logger.Warn("best_move_failed",
			zap.String("request_id", res.RequestID),
			zap.String("kind", string(uci.KindOf(err))),
			zap.Duration("duration", res.Duration),
			zap.Error(err),
		)
		e.record(req, res, string(uci.KindOf(err)))
		return res, err
	}
	res.BestMoveUCI = mv.BestMove
	res.Ponder = mv.Ponder

	e.logger.Info("best_move",
		zap.String("request_id", res.RequestID),
		zap.String("move", mv.BestMove),
		zap.Int64("movetime_ms", movetime.Milliseconds()),
		zap.Duration("duration", res.Duration),
	)
	e.store(key, res)
	e.record(req, res, "")
	return res, nil
}

func (e *Engine) lookup(ctx context.Context, key string) *cache.Entry {
	if e.cache == nil {
		return nil
	}
	hit, err := e.cache.Get(ctx, key)
	if err != nil {
		e.logger.Warn("move_cache_get_failed", zap.Error(err))
		return nil
	}
	return hit
}

func (e *Engine) store(key string, res BestMoveResult) {
	if e.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()
	err := e.cache.Put(ctx, key, &cache.Entry{
		BestMove:   res.BestMoveUCI,
		Ponder:     res.Ponder,
		MovetimeMs: res.Movetime.Milliseconds(),
		ComputedAt: time.Now(),
	})
	if err != nil {
		e.logger.Warn("move_cache_put_failed", zap.Error(err))
	}
}

func (e *Engine) record(req BestMoveRequest, res BestMoveResult, kind string) {
	if e.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()
	err := e.journal.Record(ctx, domain.Computation{
		RequestID:  res.RequestID,
		SessionID:  e.ctrl.Status().SessionID,
		FEN:        req.FEN,
		MovesUCI:   append([]string(nil), req.Moves...),
		MovetimeMs: res.Movetime.Milliseconds(),
		BestMove:   res.BestMoveUCI,
		Ponder:     res.Ponder,
		ErrorKind:  kind,
		Cached:     res.Cached,
		Duration:   res.Duration,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		e.logger.Warn("journal_record_failed", zap.String("request_id", res.RequestID), zap.Error(err))
	}
}

// Ping runs isready/readyok through the serializer.
func (e *Engine) Ping(ctx context.Context) error {
	return e.ctrl.Ping(ctx)
}

func (e *Engine) Status() uci.Status {
	return e.ctrl.Status()
}

func (e *Engine) Close(ctx context.Context) error {
	return e.ctrl.Close(ctx)
}
