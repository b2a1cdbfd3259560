package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const stdoutBacklog = 256

// transport owns the three standard streams of one engine process.
// stdout and stderr are plain os.Pipe pairs so reaping the process never
// closes a descriptor a reader goroutine is still draining.
type transport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	writer *bufio.Writer
	mu     sync.Mutex

	lines   chan string
	readErr error

	exited  chan struct{}
	exitErr error

	closed    chan struct{}
	closeOnce sync.Once

	logger *zap.Logger
}

func startTransport(binaryPath string, args []string, logger *zap.Logger) (*transport, error) {
	cmd := exec.Command(binaryPath, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	outR, outW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		outR.Close()
		outW.Close()
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}
	cmd.Stdout = outW
	cmd.Stderr = errW

	if err := cmd.Start(); err != nil {
		stdin.Close()
		outR.Close()
		outW.Close()
		errR.Close()
		errW.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}
	// the child holds its own copies now
	outW.Close()
	errW.Close()

	t := &transport{
		cmd:    cmd,
		stdin:  stdin,
		writer: bufio.NewWriter(stdin),
		lines:  make(chan string, stdoutBacklog),
		exited: make(chan struct{}),
		closed: make(chan struct{}),
		logger: logger,
	}
	go t.readStdout(outR)
	go t.drainStderr(errR)
	go t.wait()
	return t, nil
}

func (t *transport) pid() int {
	if t.cmd == nil || t.cmd.Process == nil {
		return 0
	}
	return t.cmd.Process.Pid
}

func (t *transport) send(line string) error {
	if t.hasExited() {
		return errProcessUnavailable
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.writer.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("%w: %w", errProcessUnavailable, err)
	}
	if err := t.writer.Flush(); err != nil {
		return fmt.Errorf("%w: %w", errProcessUnavailable, err)
	}
	return nil
}

// readLine blocks until a complete line arrives, the context ends, or the
// process output is exhausted. A context expiry leaves any partial line with
// the reader goroutine, so a later call can still complete it.
func (t *transport) readLine(ctx context.Context) (string, error) {
	select {
	case line, ok := <-t.lines:
		if !ok {
			if t.readErr != nil && !errors.Is(t.readErr, io.EOF) {
				return "", fmt.Errorf("%w: %w", errProcessUnavailable, t.readErr)
			}
			return "", errProcessUnavailable
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (t *transport) readStdout(r io.ReadCloser) {
	defer r.Close()
	br := bufio.NewReader(r)
	for {
		raw, err := br.ReadString('\n')
		if raw != "" && (err == nil || errors.Is(err, io.EOF)) {
			select {
			case t.lines <- strings.TrimSpace(raw):
			case <-t.closed:
				return
			}
		}
		if err != nil {
			t.readErr = err
			close(t.lines)
			return
		}
	}
}

func (t *transport) drainStderr(r io.ReadCloser) {
	defer r.Close()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			t.logger.Debug("engine_stderr", zap.Int("pid", t.pid()), zap.String("line", line))
		}
	}
}

func (t *transport) wait() {
	t.exitErr = t.cmd.Wait()
	close(t.exited)
}

func (t *transport) hasExited() bool {
	select {
	case <-t.exited:
		return true
	default:
		return false
	}
}

func (t *transport) kill() error {
	if t.cmd.Process == nil || t.hasExited() {
		return nil
	}
	if err := t.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func (t *transport) close() {
	t.closeOnce.Do(func() {
		close(t.closed)
		t.mu.Lock()
		_ = t.stdin.Close()
		t.mu.Unlock()
	})
}
