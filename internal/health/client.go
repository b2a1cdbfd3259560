package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

var ErrUnhealthy = errors.New("service unhealthy")

// Client probes a running health server.
type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type ClientOption func(*Client)

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) ClientOption {
	return func(c *Client) { c.retryMax = max }
}

func WithDial(dial fasthttp.DialFunc) ClientOption {
	return func(c *Client) { c.http.Dial = dial }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 4},
		defaultTimeout: 5 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check fetches /health. A degraded report is returned together with
// ErrUnhealthy.
func (c *Client) Check(ctx context.Context) (*Report, error) {
	var report Report
	status, err := c.getJSON(ctx, "/health", &report)
	if err != nil {
		return nil, err
	}
	if status == fasthttp.StatusServiceUnavailable || report.Status != StatusOK {
		return &report, fmt.Errorf("%w: %s", ErrUnhealthy, describe(report))
	}
	return &report, nil
}

func (c *Client) Ping(ctx context.Context) error {
	var out map[string]string
	if _, err := c.getJSON(ctx, "/ping", &out); err != nil {
		return err
	}
	if out["ping"] != "pong" {
		return fmt.Errorf("unexpected ping reply %v", out)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) (int, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.baseURL + path)

	attempts := c.retryMax
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
		} else {
			status := resp.StatusCode()
			// 503 carries a report body
			if status == fasthttp.StatusOK || status == fasthttp.StatusServiceUnavailable {
				if err := json.Unmarshal(resp.Body(), out); err != nil {
					return status, fmt.Errorf("decode response: %w", err)
				}
				return status, nil
			}
			lastErr = fmt.Errorf("health api error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
			if !shouldRetryStatus(status) {
				return status, lastErr
			}
		}
		if attempt == attempts {
			break
		}
		if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
			return 0, lastErr
		}
	}
	return 0, lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func describe(r Report) string {
	var failed []string
	for name, state := range r.Dependencies {
		if state != StatusOK {
			failed = append(failed, name+"="+state)
		}
	}
	if len(failed) == 0 {
		return r.Status
	}
	return strings.Join(failed, ", ")
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
