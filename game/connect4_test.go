package game

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func c4action(col int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"column":%d}`, col))
}

func c4state(t *testing.T, raw json.RawMessage) *connect4State {
	t.Helper()
	var st connect4State
	require.NoError(t, json.Unmarshal(raw, &st))
	return &st
}

func c4board(t *testing.T, rows []string) [][]int {
	t.Helper()
	require.Len(t, rows, connect4Rows)
	board := make([][]int, connect4Rows)
	for r, row := range rows {
		require.Len(t, row, connect4Cols)
		board[r] = make([]int, connect4Cols)
		for c, ch := range row {
			switch ch {
			case '.':
				board[r][c] = connect4Empty
			case '0':
				board[r][c] = 0
			case '1':
				board[r][c] = 1
			}
		}
	}
	return board
}

func TestConnect4NewRequiresTwoPlayers(t *testing.T) {
	engine := connect4Engine{}

	for _, n := range []int{0, 1, 3} {
		_, _, err := engine.New(n)
		var gameErr *Error
		require.ErrorAs(t, err, &gameErr)
		assert.Equal(t, ErrArgs, gameErr.Kind)
	}

	state, status, err := engine.New(2)
	require.NoError(t, err)
	assert.False(t, status.Over())
	assert.Equal(t, 0, status.ActivePlayer)
	assert.NotNil(t, state)
}

func TestConnect4AlternationAndCellCount(t *testing.T) {
	engine := connect4Engine{}
	state, status, err := engine.New(2)
	require.NoError(t, err)

	moves := []int{0, 1, 2, 3, 4, 5}
	for i, col := range moves {
		wantSeat := i % 2
		assert.Equal(t, wantSeat, status.ActivePlayer)

		state, status, err = engine.Apply(state, wantSeat, c4action(col))
		require.NoError(t, err)
	}

	st := c4state(t, state)
	placed := 0
	for _, row := range st.Board {
		for _, cell := range row {
			if cell != connect4Empty {
				placed++
			}
		}
	}
	assert.Equal(t, len(moves), placed)
	assert.False(t, status.Over())
}

func TestConnect4WrongTurn(t *testing.T) {
	engine := connect4Engine{}
	state, _, err := engine.New(2)
	require.NoError(t, err)

	err = engine.Check(state, 1, c4action(0))
	var gameErr *Error
	require.ErrorAs(t, err, &gameErr)
	assert.Equal(t, ErrPlayer, gameErr.Kind)
}

func TestConnect4ColumnFull(t *testing.T) {
	engine := connect4Engine{}
	state, status, err := engine.New(2)
	require.NoError(t, err)

	// Six drops into the same column fill it without a win.
	for i := 0; i < connect4Rows; i++ {
		state, status, err = engine.Apply(state, i%2, c4action(2))
		require.NoError(t, err)
		require.False(t, status.Over())
	}

	err = engine.Check(state, status.ActivePlayer, c4action(2))
	var gameErr *Error
	require.ErrorAs(t, err, &gameErr)
	assert.Equal(t, ErrAction, gameErr.Kind)

	_, _, err = engine.Apply(state, status.ActivePlayer, c4action(2))
	require.ErrorAs(t, err, &gameErr)
	assert.Equal(t, ErrAction, gameErr.Kind)
}

func TestConnect4HorizontalWin(t *testing.T) {
	engine := connect4Engine{}
	state, status, err := engine.New(2)
	require.NoError(t, err)

	// Seat 0 lines up columns 0-3 while seat 1 stacks column 6.
	moves := []int{0, 6, 1, 6, 2, 6, 3}
	for i, col := range moves {
		state, status, err = engine.Apply(state, i%2, c4action(col))
		require.NoError(t, err)
	}

	require.True(t, status.Over())
	require.NotNil(t, status.Result)
	assert.Equal(t, ResultWinner, status.Result.Kind)
	assert.Equal(t, []int{0}, status.Result.Winners)
}

func TestConnect4VerticalWin(t *testing.T) {
	engine := connect4Engine{}
	state, status, err := engine.New(2)
	require.NoError(t, err)

	moves := []int{0, 1, 0, 1, 0, 1, 0}
	for i, col := range moves {
		state, status, err = engine.Apply(state, i%2, c4action(col))
		require.NoError(t, err)
	}

	require.True(t, status.Over())
	assert.Equal(t, ResultWinner, status.Result.Kind)
	assert.Equal(t, []int{0}, status.Result.Winners)
}

func TestConnect4DiagonalWin(t *testing.T) {
	// Seat 0 holds three on the up-right diagonal; dropping into column 3
	// lands at the fourth cell.
	board := c4board(t, []string{
		".......",
		".......",
		".......",
		"..01...",
		".011...",
		"0111...",
	})
	raw, err := json.Marshal(connect4State{Board: board, ActivePlayer: 0})
	require.NoError(t, err)

	engine := connect4Engine{}
	_, status, err := engine.Apply(raw, 0, c4action(3))
	require.NoError(t, err)

	require.True(t, status.Over())
	assert.Equal(t, ResultWinner, status.Result.Kind)
	assert.Equal(t, []int{0}, status.Result.Winners)
}

func TestConnect4Draw(t *testing.T) {
	// Full board with no four-in-a-row anywhere, one slot left at the top
	// of column 6.
	board := c4board(t, []string{
		"010101.",
		"0101010",
		"1010101",
		"1010101",
		"0101010",
		"0101010",
	})
	raw, err := json.Marshal(connect4State{Board: board, ActivePlayer: 0})
	require.NoError(t, err)

	engine := connect4Engine{}
	_, status, err := engine.Apply(raw, 0, c4action(6))
	require.NoError(t, err)

	require.True(t, status.Over())
	require.NotNil(t, status.Result)
	assert.Equal(t, ResultDraw, status.Result.Kind)
}

func TestConnect4ViewIsIdentity(t *testing.T) {
	engine := connect4Engine{}
	state, _, err := engine.New(2)
	require.NoError(t, err)

	view, err := engine.View(state, 1)
	require.NoError(t, err)
	assert.JSONEq(t, string(state), string(view))
}
