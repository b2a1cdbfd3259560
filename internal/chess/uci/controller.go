package uci

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultQueueTimeout = 30 * time.Second
	defaultSearchGrace  = 2 * time.Second
)

type ControllerConfig struct {
	Session      SessionConfig
	QueueTimeout time.Duration
	// SearchGrace is added to movetime to bound the wait for bestmove.
	SearchGrace time.Duration
}

// Command is one request/response exchange with the engine.
type Command struct {
	Op      string
	Lines   []string
	Match   Matcher
	Timeout time.Duration
	// Check inspects the matched response while the turn is still held.
	// A fatal *Error from Check discards the session.
	Check func(Response) error
}

type Status struct {
	State     State
	SessionID string
	PID       int
	Started   int
	Queued    int
	Closed    bool
}

// Controller owns at most one engine session, serializes every exchange
// through a FIFO turn queue and replaces the session after any fault.
type Controller struct {
	cfg    ControllerConfig
	logger *zap.Logger
	turns  *turnQueue

	mu      sync.Mutex
	session *Session
	started int
	closed  bool
}

func NewController(cfg ControllerConfig, logger *zap.Logger) (*Controller, error) {
	if strings.TrimSpace(cfg.Session.BinaryPath) == "" {
		return nil, fmt.Errorf("binary path required")
	}
	if err := validateOptions(cfg.Session.Options); err != nil {
		return nil, err
	}
	if cfg.QueueTimeout <= 0 {
		cfg.QueueTimeout = defaultQueueTimeout
	}
	if cfg.SearchGrace <= 0 {
		cfg.SearchGrace = defaultSearchGrace
	}
	cfg.Session = cfg.Session.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		cfg:    cfg,
		logger: logger,
		turns:  newTurnQueue(),
	}, nil
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Execute waits for the turn, makes sure a Ready session exists and runs one
// exchange on it. The request is never retried.
func (c *Controller) Execute(ctx context.Context, cmd Command) (Response, error) {
	if c.isClosed() {
		return Response{}, ErrClosed
	}
	if cmd.Match == nil {
		return Response{}, fmt.Errorf("command %q has no matcher", cmd.Op)
	}
	if cmd.Timeout <= 0 {
		return Response{}, fmt.Errorf("command %q has no timeout", cmd.Op)
	}

	qctx, cancel := context.WithTimeout(ctx, c.cfg.QueueTimeout)
	err := c.turns.acquire(qctx)
	cancel()
	if err != nil {
		return Response{}, newError(KindComputationTimeout, cmd.Op, fmt.Errorf("wait for engine turn: %w", err))
	}
	defer c.turns.release()

	if c.isClosed() {
		return Response{}, ErrClosed
	}

	s, err := c.ensureSession(ctx)
	if err != nil {
		return Response{}, err
	}

	resp, err := s.exchange(ctx, &pendingCommand{
		op:          cmd.Op,
		lines:       cmd.Lines,
		match:       cmd.Match,
		deadline:    time.Now().Add(cmd.Timeout),
		timeoutKind: KindComputationTimeout,
	})
	if err != nil {
		c.discard(s, err)
		return resp, err
	}
	if cmd.Check != nil {
		if err := cmd.Check(resp); err != nil {
			var ue *Error
			if !errors.As(err, &ue) || ue.Fatal() {
				c.discard(s, err)
			}
			return resp, err
		}
	}
	return resp, nil
}

// BestMove sends the position and a movetime search, and parses the bestmove
// reply.
func (c *Controller) BestMove(ctx context.Context, pos Position, movetime time.Duration) (MoveResult, error) {
	goCmd, err := BuildGoCommand(movetime)
	if err != nil {
		return MoveResult{}, err
	}
	var res MoveResult
	_, err = c.Execute(ctx, Command{
		Op:      "bestmove",
		Lines:   []string{BuildPositionCommand(pos), goCmd},
		Match:   matchBestMove,
		Timeout: movetime + c.cfg.SearchGrace,
		Check: func(resp Response) error {
			parsed, err := ParseBestMove(resp.Line)
			if err != nil {
				return err
			}
			res = parsed
			return nil
		},
	})
	if err != nil {
		return MoveResult{}, err
	}
	return res, nil
}

// Ping checks engine responsiveness with isready/readyok.
func (c *Controller) Ping(ctx context.Context) error {
	_, err := c.Execute(ctx, Command{
		Op:      "ping",
		Lines:   []string{"isready"},
		Match:   matchReadyOK,
		Timeout: c.cfg.Session.StartupTimeout,
	})
	return err
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	s := c.session
	st := Status{Started: c.started, Closed: c.closed}
	c.mu.Unlock()

	st.Queued = c.turns.queued()
	switch {
	case s != nil:
		st.State = s.State()
		st.SessionID = s.ID()
		st.PID = s.PID()
	case st.Closed:
		st.State = StateTerminated
	default:
		st.State = StateUnstarted
	}
	return st
}

func (c *Controller) ensureSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()

	if s != nil {
		if s.State() == StateReady && s.Alive() {
			return s, nil
		}
		c.logger.Warn("engine_session_stale",
			zap.String("session_id", s.ID()),
			zap.Int("pid", s.PID()),
			zap.Stringer("state", s.State()),
		)
		c.drop(s)
	}

	s, err := NewSession(c.cfg.Session, c.logger)
	if err != nil {
		return nil, newError(KindLaunchFailure, "new session", err)
	}
	if err := s.Start(ctx); err != nil {
		c.logger.Error("engine_session_start_failed",
			zap.String("binary", c.cfg.Session.BinaryPath),
			zap.String("kind", string(KindOf(err))),
			zap.Error(err),
		)
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		// Close ran during the handshake and could not see this session
		c.mu.Unlock()
		if err := s.Stop(context.Background()); err != nil {
			c.logger.Warn("engine_session_stop_failed", zap.String("session_id", s.ID()), zap.Error(err))
		}
		return nil, ErrClosed
	}
	c.session = s
	c.started++
	c.mu.Unlock()
	return s, nil
}

func (c *Controller) discard(s *Session, cause error) {
	c.logger.Warn("engine_session_discarded",
		zap.String("session_id", s.ID()),
		zap.Int("pid", s.PID()),
		zap.String("kind", string(KindOf(cause))),
		zap.Error(cause),
	)
	c.drop(s)
}

func (c *Controller) drop(s *Session) {
	c.mu.Lock()
	if c.session == s {
		c.session = nil
	}
	c.mu.Unlock()
	if err := s.Stop(context.Background()); err != nil {
		c.logger.Warn("engine_session_stop_failed", zap.String("session_id", s.ID()), zap.Error(err))
	}
}

// Close rejects further work and stops the current session. A computation
// still holding the turn when ctx ends is killed.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if err := c.turns.acquire(ctx); err != nil {
		c.mu.Lock()
		s := c.session
		c.mu.Unlock()
		if s != nil {
			_ = s.kill()
		}
		kctx, cancel := context.WithTimeout(context.Background(), killWait)
		err := c.turns.acquire(kctx)
		cancel()
		if err != nil {
			return fmt.Errorf("close engine controller: %w", err)
		}
	}
	defer c.turns.release()

	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Stop(ctx)
}
