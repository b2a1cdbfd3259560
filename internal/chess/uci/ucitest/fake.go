// Package ucitest turns a test binary into a scripted UCI engine. A package
// calls Main from its TestMain and points the engine path at os.Executable.
package ucitest

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	nchess "github.com/corentings/chess/v2"
)

const (
	ModeEnv = "FAKE_UCI_MODE"
	OnceEnv = "FAKE_UCI_ONCE"
	LogEnv  = "FAKE_UCI_LOG"
)

const (
	ModeNormal    = "normal"
	ModeHang      = "hang"
	ModeCrash     = "crash"
	ModeNoUCIOK   = "nouciok"
	ModeGarbage   = "garbage"
	ModeSlowStart = "slowstart"
)

// SlowStartDelay is how long ModeSlowStart holds back uciok.
const SlowStartDelay = 400 * time.Millisecond

// Main runs the fake engine when ModeEnv is set and the tests otherwise.
func Main(m *testing.M) {
	if mode := os.Getenv(ModeEnv); mode != "" {
		os.Exit(run(mode))
	}
	os.Exit(m.Run())
}

// Use configures the fake for the rest of the test and returns the binary to
// launch.
func Use(t testing.TB, mode string) string {
	t.Helper()
	t.Setenv(ModeEnv, mode)
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}
	return exe
}

// Once limits the configured misbehaviour to the first process launched.
func Once(t testing.TB) {
	t.Helper()
	t.Setenv(OnceEnv, filepath.Join(t.TempDir(), "once"))
}

func effectiveMode(mode string) string {
	marker := os.Getenv(OnceEnv)
	if marker == "" {
		return mode
	}
	if _, err := os.Stat(marker); err == nil {
		return ModeNormal
	}
	_ = os.WriteFile(marker, []byte(strconv.Itoa(os.Getpid())), 0o600)
	return mode
}

func run(requested string) int {
	mode := effectiveMode(requested)
	fmt.Fprintln(os.Stderr, "fake engine", os.Getpid(), "mode", mode)

	var logFile *os.File
	if path := os.Getenv(LogEnv); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err == nil {
			logFile = f
			defer f.Close()
		}
	}

	out := bufio.NewWriter(os.Stdout)
	reply := func(lines ...string) {
		for _, l := range lines {
			out.WriteString(l + "\n")
		}
		out.Flush()
	}

	var position string
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if logFile != nil {
			fmt.Fprintln(logFile, line)
		}
		switch {
		case line == "uci":
			if mode == ModeNoUCIOK {
				reply("id name Silent")
				continue
			}
			if mode == ModeSlowStart {
				time.Sleep(SlowStartDelay)
			}
			reply("id name FakeFish", "id author tests", "option name Hash type spin default 16 min 1 max 1024", "uciok")
		case line == "isready":
			reply("readyok")
		case line == "quit":
			return 0
		case strings.HasPrefix(line, "position "):
			position = line
		case strings.HasPrefix(line, "go"):
			switch mode {
			case ModeHang:
				continue
			case ModeCrash:
				return 3
			case ModeGarbage:
				reply("bestmove")
				continue
			}
			if d := movetimeOf(line); d > 0 {
				time.Sleep(d)
			}
			reply("info depth 1 score cp 13 pv a2a3", "info string thinking")
			reply(pickMove(position))
		}
	}
	return 0
}

func movetimeOf(goLine string) time.Duration {
	fields := strings.Fields(goLine)
	for i := 0; i+1 < len(fields); i++ {
		if fields[i] == "movetime" {
			ms, err := strconv.Atoi(fields[i+1])
			if err == nil {
				return time.Duration(ms) * time.Millisecond
			}
		}
	}
	return 0
}

func pickMove(positionLine string) string {
	game, err := GameFromPositionLine(positionLine)
	if err != nil {
		return "info string " + err.Error()
	}
	moves := game.ValidMoves()
	if len(moves) == 0 {
		return "bestmove (none)"
	}
	best := nchess.UCINotation{}.Encode(game.Position(), &moves[0])
	if len(moves) > 1 {
		return "bestmove " + best + " ponder " + best
	}
	return "bestmove " + best
}

// GameFromPositionLine replays a UCI "position" command.
func GameFromPositionLine(line string) (*nchess.Game, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "position"))
	var movesPart string
	if idx := strings.Index(rest, " moves "); idx >= 0 {
		movesPart = rest[idx+len(" moves "):]
		rest = rest[:idx]
	}
	var game *nchess.Game
	switch {
	case rest == "startpos":
		game = nchess.NewGame()
	case strings.HasPrefix(rest, "fen "):
		opt, err := nchess.FEN(strings.TrimPrefix(rest, "fen "))
		if err != nil {
			return nil, err
		}
		game = nchess.NewGame(opt)
	default:
		return nil, fmt.Errorf("bad position %q", line)
	}
	notation := nchess.UCINotation{}
	for _, mv := range strings.Fields(movesPart) {
		move, err := notation.Decode(game.Position(), mv)
		if err != nil {
			return nil, err
		}
		if err := game.Move(move, nil); err != nil {
			return nil, err
		}
	}
	return game, nil
}

// IsLegal reports whether move can be played after the given position command.
func IsLegal(positionLine, move string) error {
	game, err := GameFromPositionLine(positionLine)
	if err != nil {
		return err
	}
	_, err = nchess.UCINotation{}.Decode(game.Position(), move)
	return err
}
