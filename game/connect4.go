package game

import "encoding/json"

const (
	connect4Rows  = 6
	connect4Cols  = 7
	connect4Win   = 4
	connect4Empty = -1
)

// connect4State keeps the full board; row 0 is the top row, so gravity fills
// from the highest row index upward. Cells hold the owning seat or -1.
type connect4State struct {
	Board        [][]int `json:"board"`
	ActivePlayer int     `json:"activePlayer"`
}

type connect4Action struct {
	Column int `json:"column"`
}

type connect4Engine struct{}

func (connect4Engine) New(players int) (json.RawMessage, Status, error) {
	if players != 2 {
		return nil, Status{}, Errorf(ErrArgs, "connect4 requires exactly 2 players, got %d", players)
	}

	board := make([][]int, connect4Rows)
	for r := range board {
		board[r] = make([]int, connect4Cols)
		for c := range board[r] {
			board[r][c] = connect4Empty
		}
	}

	raw, err := json.Marshal(connect4State{Board: board, ActivePlayer: 0})
	if err != nil {
		return nil, Status{}, err
	}
	return raw, InProgress(0), nil
}

func (connect4Engine) Check(state json.RawMessage, seat int, action json.RawMessage) error {
	st, act, err := connect4Decode(state, action)
	if err != nil {
		return err
	}
	return connect4Check(st, seat, act)
}

func (connect4Engine) Apply(state json.RawMessage, seat int, action json.RawMessage) (json.RawMessage, Status, error) {
	st, act, err := connect4Decode(state, action)
	if err != nil {
		return nil, Status{}, err
	}
	if err := connect4Check(st, seat, act); err != nil {
		return nil, Status{}, err
	}

	row := -1
	for r := connect4Rows - 1; r >= 0; r-- {
		if st.Board[r][act.Column] == connect4Empty {
			st.Board[r][act.Column] = seat
			row = r
			break
		}
	}

	var status Status
	switch {
	case connect4Wins(st.Board, row, act.Column):
		status = Won(seat)
	case connect4Full(st.Board):
		status = Drawn()
	default:
		st.ActivePlayer = 1 - seat
		status = InProgress(st.ActivePlayer)
	}

	raw, err := json.Marshal(st)
	if err != nil {
		return nil, Status{}, err
	}
	return raw, status, nil
}

// View is the identity for connect4: the board has no hidden information.
func (connect4Engine) View(state json.RawMessage, seat int) (json.RawMessage, error) {
	return state, nil
}

func connect4Decode(state, action json.RawMessage) (*connect4State, *connect4Action, error) {
	var st connect4State
	if err := json.Unmarshal(state, &st); err != nil {
		return nil, nil, Errorf(ErrState, "malformed connect4 state: %v", err)
	}
	if len(st.Board) != connect4Rows {
		return nil, nil, Errorf(ErrState, "connect4 board has %d rows, want %d", len(st.Board), connect4Rows)
	}
	for _, row := range st.Board {
		if len(row) != connect4Cols {
			return nil, nil, Errorf(ErrState, "connect4 board row has %d columns, want %d", len(row), connect4Cols)
		}
	}
	var act connect4Action
	if err := json.Unmarshal(action, &act); err != nil {
		return nil, nil, Errorf(ErrAction, "malformed connect4 action: %v", err)
	}
	return &st, &act, nil
}

func connect4Check(st *connect4State, seat int, act *connect4Action) error {
	if seat != st.ActivePlayer {
		return Errorf(ErrPlayer, "seat %d moved out of turn, seat %d is active", seat, st.ActivePlayer)
	}
	if act.Column < 0 || act.Column >= connect4Cols {
		return Errorf(ErrAction, "column %d out of range", act.Column)
	}
	if st.Board[0][act.Column] != connect4Empty {
		return Errorf(ErrAction, "column %d is full", act.Column)
	}
	return nil
}

// connect4Wins scans the four axes through the just-placed cell, counting
// contiguous same-seat cells in both directions along each axis.
func connect4Wins(board [][]int, row, col int) bool {
	mark := board[row][col]
	dirs := [4][2]int{{1, 0}, {0, 1}, {1, 1}, {1, -1}}

	for _, d := range dirs {
		count := 1
		for r, c := row+d[0], col+d[1]; r >= 0 && r < connect4Rows && c >= 0 && c < connect4Cols && board[r][c] == mark; r, c = r+d[0], c+d[1] {
			count++
		}
		for r, c := row-d[0], col-d[1]; r >= 0 && r < connect4Rows && c >= 0 && c < connect4Cols && board[r][c] == mark; r, c = r-d[0], c-d[1] {
			count++
		}
		if count >= connect4Win {
			return true
		}
	}
	return false
}

func connect4Full(board [][]int) bool {
	for c := 0; c < connect4Cols; c++ {
		if board[0][c] == connect4Empty {
			return false
		}
	}
	return true
}
