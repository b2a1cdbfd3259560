// Package health serves liveness endpoints next to the MCP transport and
// offers a small client for probing them.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"

	defaultCheckTimeout = 3 * time.Second
)

// Check probes one dependency. Optional checks report their state without
// failing the endpoint.
type Check struct {
	Name     string
	Optional bool
	Probe    func(ctx context.Context) error
}

type Report struct {
	Status       string            `json:"status"`
	Service      string            `json:"service"`
	Timestamp    time.Time         `json:"timestamp"`
	Dependencies map[string]string `json:"dependencies"`
}

type Server struct {
	service string
	checks  []Check
	timeout time.Duration
	logger  *zap.Logger

	mu  sync.Mutex
	srv *fasthttp.Server
}

type ServerOption func(*Server)

func WithCheckTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.timeout = d }
}

func NewServer(service string, logger *zap.Logger, checks []Check, opts ...ServerOption) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{service: service, checks: checks, timeout: defaultCheckTimeout, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler routes /health and /ping.
func (s *Server) Handler(ctx *fasthttp.RequestCtx) {
	if !ctx.IsGet() && !ctx.IsHead() {
		ctx.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
		return
	}
	switch string(ctx.Path()) {
	case "/health":
		report := s.Evaluate(context.Background())
		code := fasthttp.StatusOK
		if s.requiredFailed(report) {
			code = fasthttp.StatusServiceUnavailable
		}
		writeJSON(ctx, code, report)
	case "/ping":
		writeJSON(ctx, fasthttp.StatusOK, map[string]string{"ping": "pong"})
	default:
		ctx.Error("not found", fasthttp.StatusNotFound)
	}
}

// Evaluate runs every check concurrently, each bounded by the check timeout.
func (s *Server) Evaluate(parent context.Context) Report {
	report := Report{Status: StatusOK, Service: s.service, Timestamp: time.Now().UTC(), Dependencies: map[string]string{}}
	results := make([]error, len(s.checks))
	var wg sync.WaitGroup
	for i, c := range s.checks {
		wg.Add(1)
		go func(i int, c Check) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(parent, s.timeout)
			defer cancel()
			results[i] = c.Probe(ctx)
		}(i, c)
	}
	wg.Wait()

	for i, c := range s.checks {
		if err := results[i]; err != nil {
			report.Dependencies[c.Name] = "error: " + err.Error()
			report.Status = StatusDegraded
			s.logger.Warn("health_check_failed", zap.String("dependency", c.Name), zap.Bool("optional", c.Optional), zap.Error(err))
			continue
		}
		report.Dependencies[c.Name] = StatusOK
	}
	return report
}

func (s *Server) requiredFailed(r Report) bool {
	for _, c := range s.checks {
		if !c.Optional && r.Dependencies[c.Name] != StatusOK {
			return true
		}
	}
	return false
}

func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.srv = &fasthttp.Server{
		Handler:      s.Handler,
		Name:         s.service,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: s.timeout + 5*time.Second,
	}
	srv := s.srv
	s.mu.Unlock()
	s.logger.Info("health_server_listening", zap.String("addr", ln.Addr().String()))
	return srv.Serve(ln)
}

func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		return fmt.Errorf("health listen %s: %w", addr, err)
	}
	return s.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.ShutdownWithContext(ctx)
}

func writeJSON(ctx *fasthttp.RequestCtx, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		ctx.Error("encode failed", fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(code)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}
