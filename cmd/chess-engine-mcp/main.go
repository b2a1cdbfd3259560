package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/park285/chess-engine-mcp/internal/chessbuilder"
	appcfg "github.com/park285/chess-engine-mcp/internal/config"
	"github.com/park285/chess-engine-mcp/internal/health"
	"github.com/park285/chess-engine-mcp/internal/mcpserver"
	"github.com/park285/chess-engine-mcp/internal/obslog"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

var version = "dev"

const (
	serviceName     = "chess-engine-mcp"
	shutdownTimeout = 5 * time.Second
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    serviceName,
		Usage:   "serve a UCI chess engine as MCP tools",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "transport", Usage: "sse or stdio (overrides MCP_TRANSPORT)"},
			&cli.StringFlag{Name: "host", Usage: "listen host (overrides MCP_HOST)"},
			&cli.IntFlag{Name: "port", Usage: "SSE port (overrides MCP_PORT)"},
			&cli.IntFlag{Name: "health-port", Usage: "health server port, 0 disables (overrides HEALTH_PORT)"},
			&cli.StringFlag{Name: "engine-path", Usage: "engine binary (overrides ENGINE_PATH)"},
			&cli.StringFlag{Name: "engine-options", Usage: "YAML file with extra setoption lines (overrides ENGINE_OPTIONS_FILE)"},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:  "healthcheck",
				Usage: "probe a running server's /health endpoint",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Usage: "health server base URL (default http://127.0.0.1:$HEALTH_PORT)"},
					&cli.DurationFlag{Name: "timeout", Value: 5 * time.Second},
				},
				Action: healthcheck,
			},
		},
	}
}

func loadConfig(cmd *cli.Command) (*appcfg.AppConfig, error) {
	cfg, err := appcfg.Load()
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if cmd.IsSet("transport") {
		cfg.Transport = strings.ToLower(strings.TrimSpace(cmd.String("transport")))
	}
	if cmd.IsSet("host") {
		cfg.Host = strings.TrimSpace(cmd.String("host"))
	}
	if cmd.IsSet("port") {
		cfg.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("health-port") {
		cfg.HealthPort = int(cmd.Int("health-port"))
	}
	if cmd.IsSet("engine-path") {
		cfg.EnginePath = strings.TrimSpace(cmd.String("engine-path"))
	}
	if cmd.IsSet("engine-options") {
		cfg.EngineOptionsFile = strings.TrimSpace(cmd.String("engine-options"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// stdout carries JSON-RPC in stdio mode
	var logOpts []obslog.Option
	if cfg.Transport == appcfg.TransportStdio {
		logOpts = append(logOpts, obslog.WithConsole(os.Stderr))
	}
	if err := obslog.InitFromEnv(logOpts...); err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := chessbuilder.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("chess init error: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := deps.Close(sctx); err != nil {
			logger.Warn("engine_close_failed", zap.Error(err))
		}
		logger.Info("engine_stopped")
	}()

	warmup(ctx, deps, time.Duration(cfg.StartupTimeoutMs)*time.Millisecond, logger)

	if cfg.HealthPort > 0 {
		hs := health.NewServer(serviceName, logger.Named("health"), deps.HealthChecks())
		go func() {
			if err := hs.ListenAndServe(fmt.Sprintf("%s:%d", cfg.Host, cfg.HealthPort)); err != nil {
				logger.Error("health_server_failed", zap.Error(err))
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = hs.Shutdown(sctx)
		}()
	}

	srv := mcpserver.New(deps.Engine, version, logger.Named("mcp"))
	logger.Info("mcp_server_starting",
		zap.String("transport", cfg.Transport),
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("version", version),
	)
	switch cfg.Transport {
	case appcfg.TransportStdio:
		err = srv.ServeStdio(ctx)
	default:
		err = srv.ServeSSE(ctx, fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	}
	logger.Info("mcp_server_stopped", zap.Error(err))
	return err
}

// warmup starts the engine session eagerly so a bad binary shows up in the
// startup log. The server still starts; tools report the failure per call.
func warmup(ctx context.Context, deps *chessbuilder.Deps, timeout time.Duration, logger *zap.Logger) {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := deps.Engine.Ping(wctx); err != nil {
		logger.Warn("engine_warmup_failed", zap.String("path", deps.Location.Path), zap.Error(err))
		return
	}
	st := deps.Engine.Status()
	logger.Info("engine_ready", zap.String("session_id", st.SessionID), zap.Int("pid", st.PID))
}

func healthcheck(ctx context.Context, cmd *cli.Command) error {
	base := strings.TrimSpace(cmd.String("url"))
	if base == "" {
		port := strings.TrimSpace(os.Getenv("HEALTH_PORT"))
		if port == "" || port == "0" {
			return errors.New("--url or HEALTH_PORT is required")
		}
		base = "http://127.0.0.1:" + port
	}
	timeout := cmd.Duration("timeout")
	client := health.NewClient(base, health.WithTimeout(timeout))

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	report, err := client.Check(cctx)
	if report != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	}
	return err
}
