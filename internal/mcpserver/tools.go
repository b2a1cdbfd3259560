package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/park285/chess-engine-mcp/internal/chess"
	"github.com/park285/chess-engine-mcp/internal/chess/rules"
	"github.com/park285/chess-engine-mcp/internal/render"
	"github.com/park285/chess-engine-mcp/pkg/chessdto"
	"go.uber.org/zap"
)

const renderTimeout = 10 * time.Second

func fenProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Board position in FEN format. Empty or \"startpos\" is the initial position.",
	}
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.Tool{
		Name:        "get_best_move_tool",
		Description: "Get the best move in the given position using the chess engine",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"fen": fenProperty(),
				"move_history": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Moves played from the FEN, in UCI notation (e.g. e2e4)",
				},
				"time_limit_ms": map[string]interface{}{
					"type":        "integer",
					"description": "Search time in milliseconds (optional)",
				},
			},
			Required: []string{"fen"},
		},
	}, s.handleBestMove)

	s.mcp.AddTool(mcp.Tool{
		Name:        "validate_move_tool",
		Description: "Validate if a move is legal in the given position",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"fen": fenProperty(),
				"move": map[string]interface{}{
					"type":        "string",
					"description": "Move in UCI format (e.g. e2e4, e7e8q)",
				},
			},
			Required: []string{"fen", "move"},
		},
	}, s.handleValidateMove)

	s.mcp.AddTool(mcp.Tool{
		Name:        "get_legal_moves_tool",
		Description: "Get all legal moves in the given position",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"fen": fenProperty()},
			Required:   []string{"fen"},
		},
	}, s.handleLegalMoves)

	s.mcp.AddTool(mcp.Tool{
		Name:        "get_game_status_tool",
		Description: "Get the game status (IN_PROGRESS, CHECKMATE, STALEMATE, DRAW) of the given position",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"fen": fenProperty()},
			Required:   []string{"fen"},
		},
	}, s.handleGameStatus)

	s.mcp.AddTool(mcp.Tool{
		Name:        "render_board_tool",
		Description: "Render the given position as a PNG image",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"fen": fenProperty(),
				"highlight_move": map[string]interface{}{
					"type":        "string",
					"description": "UCI move to mark with an arrow (optional)",
				},
				"flip": map[string]interface{}{
					"type":        "boolean",
					"description": "Draw the board from black's side",
				},
				"size": map[string]interface{}{
					"type":        "integer",
					"description": fmt.Sprintf("Image edge in pixels (default %d)", render.DefaultSize),
				},
			},
			Required: []string{"fen"},
		},
	}, s.handleRenderBoard)

	s.mcp.AddTool(mcp.Tool{
		Name:        "engine_status_tool",
		Description: "Report the engine session state",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleEngineStatus)
}

func (s *Server) handleBestMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	history, err := stringList(args["move_history"])
	if err != nil {
		return s.failure("get_best_move_tool", err), nil
	}
	limit, err := intArg(args["time_limit_ms"])
	if err != nil {
		return s.failure("get_best_move_tool", err), nil
	}

	res, err := s.engine.ComputeBestMove(ctx, chess.BestMoveRequest{
		FEN:         stringArg(args["fen"]),
		Moves:       history,
		TimeLimitMs: limit,
	})
	if err != nil {
		return s.failure("get_best_move_tool", err), nil
	}
	return success(chessdto.BestMoveResponse{
		BestMoveUCI: res.BestMoveUCI,
		Ponder:      res.Ponder,
		MovetimeMs:  res.Movetime.Milliseconds(),
		DurationMs:  res.Duration.Milliseconds(),
		Cached:      res.Cached,
		RequestID:   res.RequestID,
	})
}

func (s *Server) handleValidateMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	legal, err := rules.ValidateMove(stringArg(args["fen"]), stringArg(args["move"]))
	if err != nil {
		return s.failure("validate_move_tool", err), nil
	}
	return success(legal)
}

func (s *Server) handleLegalMoves(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	moves, err := rules.LegalMoves(stringArg(arguments(request)["fen"]))
	if err != nil {
		return s.failure("get_legal_moves_tool", err), nil
	}
	return success(moves)
}

func (s *Server) handleGameStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := rules.GetStatus(stringArg(arguments(request)["fen"]))
	if err != nil {
		return s.failure("get_game_status_tool", err), nil
	}
	return success(chessdto.GameStatusResponse{
		Status:     string(st.Status),
		Winner:     st.Winner,
		DrawReason: st.Reason,
		Turn:       st.Turn,
	})
}

func (s *Server) handleRenderBoard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	highlight, err := render.ParseHighlight(stringArg(args["highlight_move"]))
	if err != nil {
		return s.failure("render_board_tool", err), nil
	}
	size, err := intArg(args["size"])
	if err != nil {
		return s.failure("render_board_tool", err), nil
	}
	flip, _ := args["flip"].(bool)

	ctx, cancel := context.WithTimeout(ctx, renderTimeout)
	defer cancel()
	fen := stringArg(args["fen"])
	png, err := render.RenderFEN(ctx, fen, render.Options{Size: size, Highlight: highlight, Flip: flip})
	if err != nil {
		return s.failure("render_board_tool", err), nil
	}
	caption := "board"
	if fen != "" {
		caption = fen
	}
	return mcp.NewToolResultImage(caption, base64.StdEncoding.EncodeToString(png), "image/png"), nil
}

func (s *Server) handleEngineStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.engine.Status()
	return success(chessdto.EngineStatusResponse{
		State:           st.State.String(),
		SessionID:       st.SessionID,
		PID:             st.PID,
		SessionsStarted: st.Started,
		Queued:          st.Queued,
	})
}

func success(v any) (*mcp.CallToolResult, error) {
	body, err := json.Marshal(chessdto.Envelope[any]{Result: v})
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}

func (s *Server) failure(tool string, err error) *mcp.CallToolResult {
	de := toDomainError(err)
	if de.Code == codeInternal {
		s.logger.Error("tool_failed", zap.String("tool", tool), zap.Error(err))
	} else {
		s.logger.Warn("tool_failed", zap.String("tool", tool), zap.String("error", de.Code), zap.Error(err))
	}
	body, merr := json.Marshal(de)
	if merr != nil {
		return mcp.NewToolResultError(de.Message)
	}
	return mcp.NewToolResultError(string(body))
}

// arguments accepts flat arguments and the {"request": {...}} wrapping some
// clients send.
func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	if inner, ok := args["request"].(map[string]interface{}); ok {
		return inner
	}
	return args
}

func stringArg(v interface{}) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func stringList(v interface{}) ([]string, error) {
	switch list := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return list, nil
	case []interface{}:
		out := make([]string, 0, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: move_history[%d] is not a string", errBadArgument, i)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: move_history must be an array of strings", errBadArgument)
	}
}

func intArg(v interface{}) (int, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: %v is not an integer", errBadArgument, n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", errBadArgument, err)
		}
		return int(i), nil
	default:
		return 0, fmt.Errorf("%w: expected an integer, got %T", errBadArgument, v)
	}
}
