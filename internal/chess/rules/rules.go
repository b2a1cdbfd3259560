// Package rules answers chess-rules questions (FEN parsing, legality, game
// status) without touching the engine.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

var (
	ErrInvalidPosition   = errors.New("invalid position")
	ErrInvalidMoveFormat = errors.New("invalid move format")
	ErrIllegalMove       = errors.New("illegal move")
)

const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusCheckmate  Status = "CHECKMATE"
	StatusStalemate  Status = "STALEMATE"
	StatusDraw       Status = "DRAW"
)

type GameStatus struct {
	Status Status
	// Winner is WHITE or BLACK for checkmate, empty otherwise.
	Winner string
	Reason string
	Turn   string
}

var coordinateMove = regexp.MustCompile(`^[a-h][1-8][a-h][1-8][qrbn]?$`)

// IsCoordinateMove reports whether s is long algebraic (UCI) notation.
func IsCoordinateMove(s string) bool {
	return coordinateMove.MatchString(s)
}

func normalizeMove(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeMoves returns moves in the canonical form Replay checks them in.
// Engines only understand lower-case coordinates, so the same slice must be
// sent to them.
func NormalizeMoves(moves []string) []string {
	if len(moves) == 0 {
		return nil
	}
	out := make([]string, len(moves))
	for i, m := range moves {
		out[i] = normalizeMove(m)
	}
	return out
}

// NewGame loads a position. An empty FEN or "startpos" is the initial position.
func NewGame(fen string) (*nchess.Game, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		return nchess.NewGame(), nil
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	return nchess.NewGame(opt), nil
}

// Replay loads fen and applies moves in order, rejecting the first illegal one.
func Replay(fen string, moves []string) (*nchess.Game, error) {
	game, err := NewGame(fen)
	if err != nil {
		return nil, err
	}
	notation := nchess.UCINotation{}
	for i, raw := range moves {
		mv := normalizeMove(raw)
		if !IsCoordinateMove(mv) {
			return nil, fmt.Errorf("%w: move %d %q", ErrInvalidMoveFormat, i+1, raw)
		}
		move, err := notation.Decode(game.Position(), mv)
		if err != nil {
			return nil, fmt.Errorf("%w: move %d %q: %v", ErrIllegalMove, i+1, raw, err)
		}
		if err := game.Move(move, nil); err != nil {
			return nil, fmt.Errorf("%w: move %d %q: %v", ErrIllegalMove, i+1, raw, err)
		}
	}
	return game, nil
}

// LegalMoves lists every legal move of the side to move in UCI notation.
func LegalMoves(fen string) ([]string, error) {
	game, err := NewGame(fen)
	if err != nil {
		return nil, err
	}
	return legalMoves(game), nil
}

func legalMoves(game *nchess.Game) []string {
	pos := game.Position()
	valid := game.ValidMoves()
	out := make([]string, 0, len(valid))
	notation := nchess.UCINotation{}
	for i := range valid {
		out = append(out, strings.ToLower(notation.Encode(pos, &valid[i])))
	}
	return out
}

// ValidateMove reports whether move is legal in fen. A malformed move is an
// error, not an illegal one.
func ValidateMove(fen, move string) (bool, error) {
	game, err := NewGame(fen)
	if err != nil {
		return false, err
	}
	mv := normalizeMove(move)
	if !IsCoordinateMove(mv) {
		return false, fmt.Errorf("%w: %q", ErrInvalidMoveFormat, move)
	}
	for _, legal := range legalMoves(game) {
		if legal == mv {
			return true, nil
		}
	}
	return false, nil
}

func GetStatus(fen string) (GameStatus, error) {
	game, err := NewGame(fen)
	if err != nil {
		return GameStatus{}, err
	}
	return statusOf(game), nil
}

func statusOf(game *nchess.Game) GameStatus {
	turn := game.Position().Turn()
	st := GameStatus{Status: StatusInProgress, Turn: colorName(turn)}
	switch game.Outcome() {
	case nchess.NoOutcome:
		return st
	case nchess.WhiteWon, nchess.BlackWon:
		if game.Method() == nchess.Checkmate {
			st.Status = StatusCheckmate
			st.Winner = colorName(turn.Other())
			return st
		}
	case nchess.Draw:
		if game.Method() == nchess.Stalemate {
			st.Status = StatusStalemate
			return st
		}
		st.Status = StatusDraw
		st.Reason = drawReason(game.Method())
		return st
	}
	return st
}

func drawReason(m nchess.Method) string {
	switch m {
	case nchess.InsufficientMaterial:
		return "insufficient_material"
	case nchess.SeventyFiveMoveRule:
		return "seventy_five_move_rule"
	case nchess.FiftyMoveRule:
		return "fifty_move_rule"
	case nchess.FivefoldRepetition:
		return "fivefold_repetition"
	case nchess.ThreefoldRepetition:
		return "threefold_repetition"
	default:
		return strings.ToLower(m.String())
	}
}

func colorName(c nchess.Color) string {
	switch c {
	case nchess.White:
		return "WHITE"
	case nchess.Black:
		return "BLACK"
	default:
		return ""
	}
}
