// Package chessdto holds the wire shapes of the MCP chess tools.
package chessdto

// Envelope wraps a successful tool result.
type Envelope[T any] struct {
	Result T `json:"result"`
}

type BestMoveResponse struct {
	BestMoveUCI string `json:"best_move_uci"`
	Ponder      string `json:"ponder,omitempty"`
	MovetimeMs  int64  `json:"movetime_ms"`
	DurationMs  int64  `json:"duration_ms"`
	Cached      bool   `json:"cached"`
	RequestID   string `json:"request_id"`
}

type GameStatusResponse struct {
	Status     string `json:"status"`
	Winner     string `json:"winner,omitempty"`
	DrawReason string `json:"draw_reason,omitempty"`
	Turn       string `json:"turn"`
}

type EngineStatusResponse struct {
	State           string `json:"state"`
	SessionID       string `json:"session_id,omitempty"`
	PID             int    `json:"pid,omitempty"`
	SessionsStarted int    `json:"sessions_started"`
	Queued          int    `json:"queued"`
}
