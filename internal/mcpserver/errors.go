package mcpserver

import (
	"errors"

	"github.com/park285/chess-engine-mcp/internal/chess"
	"github.com/park285/chess-engine-mcp/internal/chess/rules"
	"github.com/park285/chess-engine-mcp/internal/chess/uci"
	"github.com/park285/chess-engine-mcp/pkg/chessdto"
)

const (
	codeInvalidPosition   = "InvalidPosition"
	codeInvalidMoveFormat = "InvalidMoveFormat"
	codeIllegalMove       = "IllegalMove"
	codeInvalidTimeLimit  = "InvalidTimeLimit"
	codeInvalidArgument   = "InvalidArgument"
	codeEngineClosed      = "EngineUnavailable"
	codeInternal          = "InternalError"
)

var errBadArgument = errors.New("invalid argument")

func toDomainError(err error) chessdto.DomainError {
	switch {
	case errors.Is(err, rules.ErrInvalidPosition):
		return chessdto.DomainError{Code: codeInvalidPosition, Message: err.Error()}
	case errors.Is(err, rules.ErrInvalidMoveFormat):
		return chessdto.DomainError{Code: codeInvalidMoveFormat, Message: err.Error()}
	case errors.Is(err, rules.ErrIllegalMove):
		return chessdto.DomainError{Code: codeIllegalMove, Message: err.Error()}
	case errors.Is(err, chess.ErrInvalidTimeLimit):
		return chessdto.DomainError{Code: codeInvalidTimeLimit, Message: err.Error()}
	case errors.Is(err, errBadArgument):
		return chessdto.DomainError{Code: codeInvalidArgument, Message: err.Error()}
	case errors.Is(err, uci.ErrClosed):
		return chessdto.DomainError{Code: codeEngineClosed, Message: "engine is shutting down"}
	}

	var ue *uci.Error
	if errors.As(err, &ue) {
		return chessdto.DomainError{Code: string(ue.Kind), Message: kindMessage(ue), Retryable: retryable(ue.Kind)}
	}
	return chessdto.DomainError{Code: codeInternal, Message: "internal server error"}
}

func kindMessage(ue *uci.Error) string {
	switch ue.Kind {
	case uci.KindNoLegalMove:
		return "no legal move: the side to move is checkmated or stalemated"
	case uci.KindLaunchFailure:
		return "engine binary could not be started"
	case uci.KindHandshakeFailure:
		return "engine did not complete the UCI handshake"
	case uci.KindComputationTimeout:
		return "engine did not answer within the time limit"
	case uci.KindProcessCrashed:
		return "engine process exited unexpectedly"
	case uci.KindMalformedResponse:
		return "engine sent an unparseable reply"
	}
	return ue.Error()
}

// retryable reports whether a fresh session is likely to succeed.
func retryable(kind uci.ErrorKind) bool {
	switch kind {
	case uci.KindComputationTimeout, uci.KindProcessCrashed, uci.KindMalformedResponse, uci.KindHandshakeFailure:
		return true
	}
	return false
}
