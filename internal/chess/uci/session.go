package uci

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultStartupTimeout = 5 * time.Second
	defaultQuitTimeout    = time.Second
	killWait              = 2 * time.Second
)

type State int

const (
	StateUnstarted State = iota
	StateStarting
	StateNegotiating
	StateReady
	StateComputing
	StateStopping
	StateTerminated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateStarting:
		return "starting"
	case StateNegotiating:
		return "negotiating"
	case StateReady:
		return "ready"
	case StateComputing:
		return "computing"
	case StateStopping:
		return "stopping"
	case StateTerminated:
		return "terminated"
	case StateFailed:
		return "failed"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

type Option struct {
	Name  string
	Value string
}

type Options struct {
	Threads int
	HashMB  int
	// SkillLevel < 0 leaves the engine default untouched.
	SkillLevel int
	Extra      []Option
}

type SessionConfig struct {
	BinaryPath     string
	Args           []string
	Options        Options
	StartupTimeout time.Duration
	QuitTimeout    time.Duration
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = defaultStartupTimeout
	}
	if c.QuitTimeout <= 0 {
		c.QuitTimeout = defaultQuitTimeout
	}
	if c.Options.Threads <= 0 {
		c.Options.Threads = 1
	}
	return c
}

func validateOptions(opt Options) error {
	if opt.SkillLevel > 20 {
		return fmt.Errorf("skill level %d out of range 0-20", opt.SkillLevel)
	}
	if opt.HashMB <= 0 {
		return fmt.Errorf("hash size must be > 0: %d", opt.HashMB)
	}
	for _, o := range opt.Extra {
		if strings.TrimSpace(o.Name) == "" {
			return fmt.Errorf("option name required")
		}
	}
	return nil
}

// pendingCommand is one command/response exchange. It lives only while the
// session is Computing.
type pendingCommand struct {
	op          string
	lines       []string
	match       Matcher
	deadline    time.Time
	timeoutKind ErrorKind
}

// Session is one engine process and its UCI conversation. It is not safe for
// concurrent exchanges; the Controller hands out exclusive turns.
type Session struct {
	id     string
	cfg    SessionConfig
	logger *zap.Logger
	t      *transport

	mu       sync.Mutex
	state    State
	inflight *pendingCommand
}

func NewSession(cfg SessionConfig, logger *zap.Logger) (*Session, error) {
	if strings.TrimSpace(cfg.BinaryPath) == "" {
		return nil, fmt.Errorf("binary path required")
	}
	if err := validateOptions(cfg.Options); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	return &Session{
		id:     id,
		cfg:    cfg.withDefaults(),
		logger: logger.With(zap.String("session_id", id)),
		state:  StateUnstarted,
	}, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) PID() int {
	if s.t == nil {
		return 0
	}
	return s.t.pid()
}

// Alive reports whether the process is still running.
func (s *Session) Alive() bool {
	return s.t != nil && !s.t.hasExited()
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateUnstarted {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("session already %s", st)
	}
	s.state = StateStarting
	s.mu.Unlock()

	t, err := startTransport(s.cfg.BinaryPath, s.cfg.Args, s.logger)
	if err != nil {
		s.setState(StateTerminated)
		return newError(KindLaunchFailure, "spawn "+s.cfg.BinaryPath, err)
	}
	s.t = t
	s.setState(StateNegotiating)

	hsCtx, cancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer cancel()

	if err := s.handshake(hsCtx); err != nil {
		s.setState(StateFailed)
		_ = s.Stop(context.Background())
		return err
	}
	s.setState(StateReady)
	s.logger.Info("engine_session_ready",
		zap.Int("pid", t.pid()),
		zap.String("binary", s.cfg.BinaryPath),
	)
	return nil
}

func (s *Session) handshake(ctx context.Context) error {
	resp, err := s.roundTrip(ctx, "wait uciok", []string{"uci"}, matchUCIOK, KindHandshakeFailure)
	if err != nil {
		return err
	}
	s.logger.Debug("engine_uciok", zap.Int("declarations", len(resp.Discarded)))

	for _, line := range optionCommands(s.cfg.Options) {
		if err := s.t.send(line); err != nil {
			return newError(KindProcessCrashed, "apply options", err)
		}
	}

	if _, err := s.roundTrip(ctx, "wait readyok", []string{"isready"}, matchReadyOK, KindHandshakeFailure); err != nil {
		return err
	}
	return nil
}

func optionCommands(opt Options) []string {
	cmds := []string{
		fmt.Sprintf("setoption name Threads value %d", opt.Threads),
		fmt.Sprintf("setoption name Hash value %d", opt.HashMB),
	}
	if opt.SkillLevel >= 0 {
		cmds = append(cmds, fmt.Sprintf("setoption name Skill Level value %d", opt.SkillLevel))
	}
	for _, o := range opt.Extra {
		cmds = append(cmds, fmt.Sprintf("setoption name %s value %s", strings.TrimSpace(o.Name), strings.TrimSpace(o.Value)))
	}
	return cmds
}

// exchange runs one pending command: Ready -> Computing -> Ready, or Failed
// on any fault.
func (s *Session) exchange(ctx context.Context, pc *pendingCommand) (Response, error) {
	s.mu.Lock()
	if s.state != StateReady {
		st := s.state
		s.mu.Unlock()
		return Response{}, newError(KindProcessCrashed, pc.op, fmt.Errorf("session not ready: %s", st))
	}
	s.state = StateComputing
	s.inflight = pc
	s.mu.Unlock()

	exCtx, cancel := context.WithDeadline(ctx, pc.deadline)
	defer cancel()
	resp, err := s.roundTrip(exCtx, pc.op, pc.lines, pc.match, pc.timeoutKind)

	s.mu.Lock()
	s.inflight = nil
	if err != nil {
		s.state = StateFailed
	} else {
		s.state = StateReady
	}
	s.mu.Unlock()
	return resp, err
}

func (s *Session) roundTrip(ctx context.Context, op string, lines []string, match Matcher, timeoutKind ErrorKind) (Response, error) {
	for _, line := range lines {
		if err := s.t.send(line); err != nil {
			return Response{}, newError(KindProcessCrashed, op, fmt.Errorf("send %q: %w", line, err))
		}
	}
	var discarded []string
	for {
		line, err := s.t.readLine(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return Response{Discarded: discarded}, newError(timeoutKind, op, err)
			}
			return Response{Discarded: discarded}, newError(KindProcessCrashed, op, err)
		}
		if line == "" {
			continue
		}
		if match(line) {
			return Response{Line: line, Discarded: discarded}, nil
		}
		discarded = append(discarded, line)
	}
}

// Stop ends the session. A responsive Ready engine gets "quit"; anything else
// is killed. Resources are reclaimed either way.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	prev := s.state
	switch prev {
	case StateStopping, StateTerminated:
		s.mu.Unlock()
		return nil
	case StateUnstarted:
		s.state = StateTerminated
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	s.mu.Unlock()

	var err error
	if t := s.t; t != nil {
		exited := false
		if prev == StateReady && !t.hasExited() && t.send("quit") == nil {
			exited = waitExit(ctx, t, s.cfg.QuitTimeout)
		}
		if !exited {
			if kerr := t.kill(); kerr != nil {
				err = fmt.Errorf("kill engine: %w", kerr)
			}
			waitExit(context.Background(), t, killWait)
		}
		t.close()
	}
	s.setState(StateTerminated)
	s.logger.Info("engine_session_stopped", zap.Int("pid", s.PID()), zap.Stringer("from", prev))
	return err
}

// kill forcibly terminates the process without waiting for a turn. An
// in-flight exchange then fails with ProcessCrashed.
func (s *Session) kill() error {
	if s.t == nil {
		return nil
	}
	return s.t.kill()
}

func waitExit(ctx context.Context, t *transport, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-t.exited:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}
