package rules

import (
	"errors"
	"strings"
	"testing"
)

const (
	foolsMate = "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3"
	stalemate = "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1"
	bareKings = "8/8/4k3/8/8/4K3/8/8 w - - 0 1"
)

func TestLegalMovesInitialPosition(t *testing.T) {
	moves, err := LegalMoves("")
	if err != nil { t.Fatalf("LegalMoves: %v", err) }
	if len(moves) != 20 { t.Fatalf("expected 20 moves, got %d: %v", len(moves), moves) }
	for _, m := range moves {
		if !IsCoordinateMove(m) { t.Fatalf("not a coordinate move: %q", m) }
	}
}

func TestValidateMove(t *testing.T) {
	ok, err := ValidateMove(StartFEN, "e2e4")
	if err != nil || !ok { t.Fatalf("e2e4 should be legal: %v %v", ok, err) }
	ok, err = ValidateMove(StartFEN, "E2E5")
	if err != nil || ok { t.Fatalf("e2e5 should be illegal: %v %v", ok, err) }
	if _, err := ValidateMove(StartFEN, "Nf3"); !errors.Is(err, ErrInvalidMoveFormat) { t.Fatalf("expected format error, got %v", err) }
	if _, err := ValidateMove("not a fen", "e2e4"); !errors.Is(err, ErrInvalidPosition) { t.Fatalf("expected position error, got %v", err) }
}

func TestReplay(t *testing.T) {
	game, err := Replay("startpos", []string{"e2e4", "e7e5", "g1f3"})
	if err != nil { t.Fatalf("Replay: %v", err) }
	if len(game.Moves()) != 3 { t.Fatalf("expected 3 moves, got %d", len(game.Moves())) }
	if _, err := Replay("", []string{"e2e4", "e2e4"}); !errors.Is(err, ErrIllegalMove) { t.Fatalf("expected illegal move, got %v", err) }
	if _, err := Replay("", []string{"e4"}); !errors.Is(err, ErrInvalidMoveFormat) { t.Fatalf("expected format error, got %v", err) }
}

func TestNormalizeMoves(t *testing.T) {
	got := NormalizeMoves([]string{"E2E4", " e7e5 ", "E7E8Q"})
	if strings.Join(got, ",") != "e2e4,e7e5,e7e8q" { t.Fatalf("NormalizeMoves: %q", got) }
	if NormalizeMoves(nil) != nil { t.Fatalf("nil history should stay nil") }
	if _, err := Replay("", []string{"E2E4", "E7E5"}); err != nil { t.Fatalf("upper-case history rejected: %v", err) }
}

func TestGetStatus(t *testing.T) {
	cases := []struct {
		fen    string
		status Status
		winner string
	}{
		{StartFEN, StatusInProgress, ""},
		{foolsMate, StatusCheckmate, "BLACK"},
		{stalemate, StatusStalemate, ""},
		{bareKings, StatusDraw, ""},
	}
	for _, tc := range cases {
		st, err := GetStatus(tc.fen)
		if err != nil { t.Fatalf("GetStatus(%q): %v", tc.fen, err) }
		if st.Status != tc.status || st.Winner != tc.winner { t.Fatalf("GetStatus(%q) = %+v", tc.fen, st) }
	}
	st, _ := GetStatus(bareKings)
	if st.Reason != "insufficient_material" { t.Fatalf("unexpected draw reason %q", st.Reason) }
}

func TestCheckmateHasNoLegalMoves(t *testing.T) {
	moves, err := LegalMoves(foolsMate)
	if err != nil { t.Fatalf("LegalMoves: %v", err) }
	if len(moves) != 0 { t.Fatalf("expected no moves, got %v", moves) }
}
