// Package mcpserver exposes the chess engine and the rules helpers as MCP
// tools over SSE or stdio.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/park285/chess-engine-mcp/internal/chess"
	"github.com/park285/chess-engine-mcp/internal/chess/uci"
	"go.uber.org/zap"
)

const (
	serverName      = "chess_engine"
	shutdownTimeout = 5 * time.Second
)

const instructions = `Chess engine tools backed by a UCI engine process.

AVAILABLE TOOLS:
- get_best_move_tool: best move for a FEN plus optional move history (UCI moves)
- validate_move_tool: is a UCI move legal in a FEN
- get_legal_moves_tool: every legal UCI move in a FEN
- get_game_status_tool: IN_PROGRESS, CHECKMATE (with winner), STALEMATE or DRAW (with reason)
- render_board_tool: PNG image of a FEN, optionally highlighting a move
- engine_status_tool: engine session state

Successful calls return {"result": ...}. Failures return {"error": kind, "message": text}.`

// Engine is the part of chess.Engine the tools need.
type Engine interface {
	ComputeBestMove(ctx context.Context, req chess.BestMoveRequest) (chess.BestMoveResult, error)
	Status() uci.Status
}

type Server struct {
	engine Engine
	logger *zap.Logger
	mcp    *server.MCPServer
}

func New(engine Engine, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{engine: engine, logger: logger}
	s.mcp = server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	s.registerTools()
	return s
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// ServeStdio reads JSON-RPC from stdin until EOF or ctx is done.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger.Named("stdio")))
	s.logger.Info("mcp_stdio_serving")
	err := stdio.Listen(ctx, os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}
	return nil
}

// ServeSSE serves the SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	sse := server.NewSSEServer(s.mcp)
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("mcp_sse_listening", zap.String("addr", addr))
		errCh <- sse.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("sse server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sse.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("sse shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("sse server: %w", err)
	}
	return nil
}
