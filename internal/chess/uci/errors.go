package uci

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindLaunchFailure      ErrorKind = "LaunchFailure"
	KindHandshakeFailure   ErrorKind = "HandshakeFailure"
	KindComputationTimeout ErrorKind = "ComputationTimeout"
	KindProcessCrashed     ErrorKind = "ProcessCrashed"
	KindMalformedResponse  ErrorKind = "MalformedResponse"
	KindNoLegalMove        ErrorKind = "NoLegalMove"
)

// Error is the only error type that crosses the Controller boundary.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fatal reports whether the fault invalidates the session that produced it.
func (e *Error) Fatal() bool { return e.Kind != KindNoLegalMove }

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of a uci error, or "" when err is not one.
func KindOf(err error) ErrorKind {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return ""
}

func IsNoLegalMove(err error) bool { return KindOf(err) == KindNoLegalMove }

var (
	errProcessUnavailable = errors.New("engine process unavailable")
	ErrClosed             = errors.New("engine controller closed")
)
