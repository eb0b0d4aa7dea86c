package game

import "fmt"

type ErrorKind string

const (
	ErrArgs   ErrorKind = "args"   // malformed construction or payload
	ErrPlayer ErrorKind = "player" // wrong-turn violation
	ErrAction ErrorKind = "action" // illegal move
	ErrState  ErrorKind = "state"  // invariant violation, e.g. resuming a finished game
)

// Error is a rule-level failure. It never indicates corrupted state: engines
// validate before mutating.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Msg
}

func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
