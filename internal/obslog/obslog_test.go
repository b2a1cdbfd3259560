package obslog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitFromEnvWritesToConsoleWriter(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_TO_FILE", "false")
	var buf bytes.Buffer
	if err := InitFromEnv(WithConsole(&buf)); err != nil { t.Fatalf("InitFromEnv: %v", err) }
	L().Debug("engine_stderr", zap.String("line", "hello"))
	if !strings.Contains(buf.String(), `"msg":"engine_stderr"`) { t.Fatalf("unexpected output %q", buf.String()) }
}

func TestInitFromEnvFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	t.Setenv("LOG_TO_CONSOLE", "false")
	t.Setenv("LOG_TO_FILE", "true")
	t.Setenv("LOG_FILE", path)
	t.Setenv("LOG_FORMAT", "text")
	if err := InitFromEnv(); err != nil { t.Fatalf("InitFromEnv: %v", err) }
	L().Info("engine_session_ready")
	Sync()
	raw, err := os.ReadFile(path)
	if err != nil { t.Fatalf("read log: %v", err) }
	if !strings.Contains(string(raw), "engine_session_ready") || !strings.Contains(string(raw), " | ") { t.Fatalf("unexpected file content %q", raw) }
}

func TestSettingsFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"LOG_LEVEL", "LOG_FORMAT", "LOG_TO_CONSOLE", "LOG_FILE", "LOG_CALLER"} {
		t.Setenv(k, "")
	}
	t.Setenv("LOG_TO_FILE", "")
	s := SettingsFromEnv()
	if s.Level != zapcore.InfoLevel || s.Format != FormatText || !s.Console || s.File != "" || !s.Caller { t.Fatalf("unexpected defaults %+v", s) }

	dir := t.TempDir()
	t.Setenv("LOG_TO_FILE", "1")
	t.Setenv("LOG_DIR", dir)
	t.Setenv("LOG_FORMAT", "JSON")
	s = SettingsFromEnv()
	if s.File != filepath.Join(dir, "chess-engine-mcp.log") || s.Format != FormatJSON || s.Caller { t.Fatalf("unexpected settings %+v", s) }
}

func TestNewTagsService(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Settings{Level: zapcore.InfoLevel, Format: FormatJSON, Console: true}, &buf)
	if err != nil { t.Fatalf("New: %v", err) }
	logger.Info("mcp_server_starting")
	if !strings.Contains(buf.String(), `"service":"chess-engine-mcp"`) { t.Fatalf("service field missing: %q", buf.String()) }
}

func TestParseLevel(t *testing.T) {
	if parseLevel("WARNING") != zapcore.WarnLevel { t.Fatalf("warning alias") }
	if parseLevel("bogus") != zapcore.InfoLevel { t.Fatalf("fallback level") }
}
