package uci

import (
	"testing"
	"time"
)

func TestBuildPositionCommand(t *testing.T) {
	cases := []struct {
		name string
		pos  Position
		want string
	}{
		{"startpos", NewPosition("", nil), "position startpos"},
		{"startpos keyword with moves", NewPosition("startpos", []string{"e2e4", "e7e5"}), "position startpos moves e2e4 e7e5"},
		{"fen", NewPosition("8/8/8/8/8/8/8/K6k w - - 0 1", nil), "position fen 8/8/8/8/8/8/8/K6k w - - 0 1"},
		{"fen with moves", NewPosition(" 8/8/8/8/8/8/8/K6k w - - 0 1 ", []string{"a1a2"}), "position fen 8/8/8/8/8/8/8/K6k w - - 0 1 moves a1a2"},
	}
	for _, tc := range cases {
		if got := BuildPositionCommand(tc.pos); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}

func TestPositionCopiesMoves(t *testing.T) {
	moves := []string{"e2e4"}
	p := NewPosition("", moves)
	moves[0] = "d2d4"
	if got := p.Moves()[0]; got != "e2e4" { t.Fatalf("position mutated through caller slice: %q", got) }
	p.Moves()[0] = "g1f3"
	if got := BuildPositionCommand(p); got != "position startpos moves e2e4" { t.Fatalf("position mutated through accessor: %q", got) }
}

func TestBuildGoCommand(t *testing.T) {
	got, err := BuildGoCommand(1500 * time.Millisecond)
	if err != nil { t.Fatalf("BuildGoCommand: %v", err) }
	if got != "go movetime 1500" { t.Fatalf("got %q", got) }
	if _, err := BuildGoCommand(0); err == nil { t.Fatalf("expected error for zero movetime") }
}

func TestParseBestMove(t *testing.T) {
	res, err := ParseBestMove("bestmove e2e4 ponder e7e5")
	if err != nil { t.Fatalf("ParseBestMove: %v", err) }
	if res.BestMove != "e2e4" || res.Ponder != "e7e5" { t.Fatalf("unexpected result %+v", res) }

	res, err = ParseBestMove("bestmove e7e8q")
	if err != nil || res.BestMove != "e7e8q" || res.Ponder != "" { t.Fatalf("promotion parse: %+v %v", res, err) }

	if _, err := ParseBestMove("bestmove (none)"); KindOf(err) != KindNoLegalMove { t.Fatalf("expected NoLegalMove, got %v", err) }
	if _, err := ParseBestMove("bestmove 0000"); !IsNoLegalMove(err) { t.Fatalf("expected NoLegalMove for 0000, got %v", err) }
	if _, err := ParseBestMove("bestmove"); KindOf(err) != KindMalformedResponse { t.Fatalf("expected MalformedResponse, got %v", err) }
	if _, err := ParseBestMove("info depth 3"); KindOf(err) != KindMalformedResponse { t.Fatalf("expected MalformedResponse, got %v", err) }
}

func TestMatchers(t *testing.T) {
	if !matchBestMove("bestmove e2e4") || !matchBestMove("bestmove") { t.Fatalf("bestmove matcher too strict") }
	if matchBestMove("bestmoves") || matchBestMove("info bestmove") { t.Fatalf("bestmove matcher too loose") }
	if !matchUCIOK("uciok") || matchUCIOK("uciok2") { t.Fatalf("uciok matcher") }
	if !LinePrefix("id ")("id name x") { t.Fatalf("prefix matcher") }
}

func TestErrorFatal(t *testing.T) {
	if newError(KindNoLegalMove, "op", nil).Fatal() { t.Fatalf("NoLegalMove must not be fatal") }
	for _, k := range []ErrorKind{KindLaunchFailure, KindHandshakeFailure, KindComputationTimeout, KindProcessCrashed, KindMalformedResponse} {
		if !newError(k, "op", nil).Fatal() { t.Fatalf("%s must be fatal", k) }
	}
}
