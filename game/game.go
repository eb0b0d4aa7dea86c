package game

import "encoding/json"

type Kind string

const (
	Connect4 Kind = "connect4"
	Poker    Kind = "poker"
)

const (
	StateInProgress = "in_progress"
	StateOver       = "over"
)

const (
	ResultWinner  = "winner"
	ResultDraw    = "draw"
	ResultErrored = "errored"
)

// Status is the match-level outcome of a turn. While the match runs it names
// the seat to move; once Over it carries the terminal result and no further
// turns may be applied.
type Status struct {
	State        string  `json:"state"`
	ActivePlayer int     `json:"activePlayer"`
	Result       *Result `json:"result,omitempty"`
}

type Result struct {
	Kind    string `json:"kind"`
	Winners []int  `json:"winners,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func InProgress(activePlayer int) Status {
	return Status{State: StateInProgress, ActivePlayer: activePlayer}
}

func Won(seats ...int) Status {
	return Status{State: StateOver, Result: &Result{Kind: ResultWinner, Winners: seats}}
}

func Drawn() Status {
	return Status{State: StateOver, Result: &Result{Kind: ResultDraw}}
}

func Errored(reason string) Status {
	return Status{State: StateOver, Result: &Result{Kind: ResultErrored, Reason: reason}}
}

func (s Status) Over() bool {
	return s.State == StateOver
}

// Engine is the uniform contract every game implements. States and actions
// cross the contract as serialized JSON because that is how turns are
// persisted; each engine owns its own concrete types.
//
// Callers run Check before Apply. Apply still re-derives safety itself: it is
// reachable with agent-supplied actions that were validated against a copy of
// state, and must never corrupt state when handed garbage.
type Engine interface {
	New(players int) (state json.RawMessage, status Status, err error)
	Check(state json.RawMessage, seat int, action json.RawMessage) error
	Apply(state json.RawMessage, seat int, action json.RawMessage) (json.RawMessage, Status, error)
	// View redacts the state down to what the given seat may see. Seat -1
	// yields a spectator view with all private information hidden.
	View(state json.RawMessage, seat int) (json.RawMessage, error)
}

// ForKind dispatches statically to the engine for a game kind.
func ForKind(kind Kind) (Engine, error) {
	switch kind {
	case Connect4:
		return connect4Engine{}, nil
	case Poker:
		return pokerEngine{}, nil
	default:
		return nil, Errorf(ErrArgs, "unknown game kind %q", kind)
	}
}
