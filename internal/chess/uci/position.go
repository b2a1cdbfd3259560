package uci

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Position struct {
	fen   string
	moves []string
}

func NewPosition(fen string, moves []string) Position {
	return Position{fen: strings.TrimSpace(fen), moves: append([]string(nil), moves...)}
}

func (p Position) FEN() string { return p.fen }

func (p Position) Moves() []string { return append([]string(nil), p.moves...) }

type MoveResult struct {
	BestMove string
	Ponder   string
}

func BuildPositionCommand(p Position) string {
	var sb strings.Builder
	if p.fen == "" || p.fen == "startpos" {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position fen ")
		sb.WriteString(p.fen)
	}
	if len(p.moves) > 0 {
		sb.WriteString(" moves ")
		sb.WriteString(strings.Join(p.moves, " "))
	}
	return sb.String()
}

func BuildGoCommand(movetime time.Duration) (string, error) {
	ms := movetime.Milliseconds()
	if ms <= 0 {
		return "", fmt.Errorf("movetime must be > 0: %s", movetime)
	}
	return "go movetime " + strconv.FormatInt(ms, 10), nil
}

func ParseBestMove(line string) (MoveResult, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 || parts[0] != "bestmove" {
		return MoveResult{}, newError(KindMalformedResponse, "parse bestmove", fmt.Errorf("unexpected line %q", line))
	}
	if len(parts) < 2 {
		return MoveResult{}, newError(KindMalformedResponse, "parse bestmove", fmt.Errorf("missing move in %q", line))
	}
	move := parts[1]
	// some engines print 0000 instead of (none)
	if move == "(none)" || move == "0000" {
		return MoveResult{}, newError(KindNoLegalMove, "parse bestmove", nil)
	}
	res := MoveResult{BestMove: move}
	for i := 2; i < len(parts)-1; i++ {
		if parts[i] == "ponder" {
			res.Ponder = parts[i+1]
			break
		}
	}
	return res, nil
}
