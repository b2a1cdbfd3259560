package domain

import "time"

// Computation is one best-move request as recorded in the journal.
type Computation struct {
	RequestID  string
	SessionID  string
	FEN        string
	MovesUCI   []string
	MovetimeMs int64
	BestMove   string
	Ponder     string
	ErrorKind  string
	Cached     bool
	Duration   time.Duration
	CreatedAt  time.Time
}

// Succeeded reports whether the engine produced a move.
func (c Computation) Succeeded() bool {
	return c.ErrorKind == "" && c.BestMove != ""
}
