package uci

import "strings"

// Matcher decides whether an engine output line terminates the exchange.
type Matcher func(line string) bool

func LineEquals(token string) Matcher {
	return func(line string) bool { return line == token }
}

func LinePrefix(prefix string) Matcher {
	return func(line string) bool { return strings.HasPrefix(line, prefix) }
}

// Response is the terminal line of an exchange plus everything skipped on the way.
type Response struct {
	Line      string
	Discarded []string
}

var (
	matchUCIOK    = LineEquals("uciok")
	matchReadyOK  = LineEquals("readyok")
	matchBestMove = func(line string) bool { return line == "bestmove" || strings.HasPrefix(line, "bestmove ") }
)
