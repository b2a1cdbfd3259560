package uci

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func startShell(t *testing.T, script string, logger *zap.Logger) *transport {
	t.Helper()
	tr, err := startTransport("/bin/sh", []string{"-c", script}, logger)
	if err != nil { t.Fatalf("startTransport: %v", err) }
	t.Cleanup(func() {
		_ = tr.kill()
		tr.close()
		<-tr.exited
	})
	return tr
}

func TestReadLineDeadlineKeepsPartialLine(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tr := startShell(t, "echo noise >&2; printf par; sleep 0.3; printf 'tial\\n'", zap.New(core))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	_, err := tr.readLine(ctx)
	cancel()
	if !errors.Is(err, context.DeadlineExceeded) { t.Fatalf("expected deadline, got %v", err) }

	ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	line, err := tr.readLine(ctx)
	if err != nil { t.Fatalf("second read: %v", err) }
	// the stderr line never shows up on the stdout side
	if line != "partial" { t.Fatalf("expected %q, got %q", "partial", line) }

	if _, err := tr.readLine(ctx); !errors.Is(err, errProcessUnavailable) { t.Fatalf("expected end of output, got %v", err) }
	deadline := time.Now().Add(2 * time.Second)
	for logs.FilterMessage("engine_stderr").FilterField(zap.String("line", "noise")).Len() == 0 {
		if time.Now().After(deadline) { t.Fatalf("stderr line was not logged: %v", logs.All()) }
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSendAfterExitIsProcessUnavailable(t *testing.T) {
	tr := startShell(t, "exit 0", zap.NewNop())
	select {
	case <-tr.exited:
	case <-time.After(2 * time.Second):
		t.Fatalf("child did not exit")
	}
	if err := tr.send("isready"); !errors.Is(err, errProcessUnavailable) { t.Fatalf("expected process unavailable, got %v", err) }
	if _, err := tr.readLine(context.Background()); !errors.Is(err, errProcessUnavailable) { t.Fatalf("expected process unavailable, got %v", err) }
}
