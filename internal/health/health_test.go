package health

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func ok(context.Context) error { return nil }

func failing(context.Context) error { return errors.New("down") }

func get(t *testing.T, s *Server, path string) *fasthttp.RequestCtx {
	t.Helper()
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(fasthttp.MethodGet)
	ctx.Request.SetRequestURI(path)
	s.Handler(&ctx)
	return &ctx
}

func TestHealthOK(t *testing.T) {
	s := NewServer("chess-engine-mcp", nil, []Check{{Name: "engine", Probe: ok}})
	ctx := get(t, s, "/health")
	if ctx.Response.StatusCode() != fasthttp.StatusOK { t.Fatalf("status %d", ctx.Response.StatusCode()) }
	var r Report
	if err := json.Unmarshal(ctx.Response.Body(), &r); err != nil { t.Fatalf("decode: %v", err) }
	if r.Status != StatusOK || r.Dependencies["engine"] != StatusOK || r.Service != "chess-engine-mcp" { t.Fatalf("unexpected report %+v", r) }
}

func TestHealthDegraded(t *testing.T) {
	s := NewServer("svc", nil, []Check{{Name: "engine", Probe: failing}, {Name: "redis", Optional: true, Probe: ok}})
	ctx := get(t, s, "/health")
	if ctx.Response.StatusCode() != fasthttp.StatusServiceUnavailable { t.Fatalf("status %d", ctx.Response.StatusCode()) }
	var r Report
	_ = json.Unmarshal(ctx.Response.Body(), &r)
	if r.Status != StatusDegraded || r.Dependencies["engine"] != "error: down" { t.Fatalf("unexpected report %+v", r) }
}

func TestOptionalFailureKeepsOK(t *testing.T) {
	s := NewServer("svc", nil, []Check{{Name: "engine", Probe: ok}, {Name: "postgres", Optional: true, Probe: failing}})
	ctx := get(t, s, "/health")
	if ctx.Response.StatusCode() != fasthttp.StatusOK { t.Fatalf("optional failure should not fail the endpoint") }
	var r Report
	_ = json.Unmarshal(ctx.Response.Body(), &r)
	if r.Status != StatusDegraded { t.Fatalf("status should still show degradation: %+v", r) }
}

func TestCheckTimeout(t *testing.T) {
	slow := func(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }
	s := NewServer("svc", nil, []Check{{Name: "engine", Probe: slow}}, WithCheckTimeout(20*time.Millisecond))
	start := time.Now()
	r := s.Evaluate(context.Background())
	if r.Status != StatusDegraded || time.Since(start) > time.Second { t.Fatalf("timeout not applied: %+v", r) }
}

func TestPingAndRouting(t *testing.T) {
	s := NewServer("svc", nil, nil)
	ctx := get(t, s, "/ping")
	if string(ctx.Response.Body()) != `{"ping":"pong"}` { t.Fatalf("ping body %q", ctx.Response.Body()) }
	if get(t, s, "/nope").Response.StatusCode() != fasthttp.StatusNotFound { t.Fatalf("expected 404") }
	var post fasthttp.RequestCtx
	post.Request.Header.SetMethod(fasthttp.MethodPost)
	post.Request.SetRequestURI("/health")
	s.Handler(&post)
	if post.Response.StatusCode() != fasthttp.StatusMethodNotAllowed { t.Fatalf("expected 405") }
}

func serveInMemory(t *testing.T, s *Server) *Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = s.Serve(ln) }()
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return NewClient("http://health.local", WithRetry(1), WithDial(func(string) (net.Conn, error) { return ln.Dial() }))
}

func TestClientAgainstServer(t *testing.T) {
	c := serveInMemory(t, NewServer("svc", nil, []Check{{Name: "engine", Probe: ok}}))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Ping(ctx); err != nil { t.Fatalf("Ping: %v", err) }
	r, err := c.Check(ctx)
	if err != nil || r.Dependencies["engine"] != StatusOK { t.Fatalf("Check: %+v %v", r, err) }
}

func TestClientReportsUnhealthy(t *testing.T) {
	c := serveInMemory(t, NewServer("svc", nil, []Check{{Name: "engine", Probe: failing}}))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r, err := c.Check(ctx)
	if !errors.Is(err, ErrUnhealthy) || r == nil || r.Status != StatusDegraded { t.Fatalf("expected unhealthy report, got %+v %v", r, err) }
}
