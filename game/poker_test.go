package game

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pokerApply(t *testing.T, state json.RawMessage, seat int, action string) (json.RawMessage, Status) {
	t.Helper()
	next, status, err := pokerEngine{}.Apply(state, seat, json.RawMessage(action))
	require.NoError(t, err)
	return next, status
}

func pokerUnmarshal(t *testing.T, raw json.RawMessage) *pokerState {
	t.Helper()
	var st pokerState
	require.NoError(t, json.Unmarshal(raw, &st))
	return &st
}

func pokerMarshal(t *testing.T, st *pokerState) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(st)
	require.NoError(t, err)
	return raw
}

// pokerTotal sums chips plus everything committed on the table. It must stay
// constant for the life of a match.
func pokerTotal(st *pokerState) int {
	total := 0
	for _, c := range st.Chips {
		total += c
	}
	for i := range st.Rounds {
		total += st.Rounds[i].Pot
		for _, b := range st.Rounds[i].Bets {
			total += b
		}
	}
	return total
}

func TestPokerNewPostsBlinds(t *testing.T) {
	raw, status, err := pokerEngine{}.New(3)
	require.NoError(t, err)
	require.False(t, status.Over())

	st := pokerUnmarshal(t, raw)
	r := &st.Rounds[st.Round]

	// Dealer 0: seat 1 posts the small blind, seat 2 the big blind, and the
	// seat after the big blind opens.
	assert.Equal(t, 0, r.Dealer)
	assert.Equal(t, []int{0, 1, 2}, r.Bets)
	assert.Equal(t, pokerBigBlind, r.CurrentBet)
	assert.Equal(t, 0, status.ActivePlayer)
	assert.Equal(t, StagePreFlop, r.Stage)

	for s := range st.Chips {
		assert.Len(t, r.HoleCards[s], 2)
		assert.Equal(t, SeatPlaying, r.SeatStatus[s])
	}
	assert.Equal(t, 3*pokerStartingChips, pokerTotal(st))
}

func TestPokerNewRejectsSinglePlayer(t *testing.T) {
	_, _, err := pokerEngine{}.New(1)
	var gameErr *Error
	require.ErrorAs(t, err, &gameErr)
	assert.Equal(t, ErrArgs, gameErr.Kind)
}

func TestPokerRejectsMisSizedRound(t *testing.T) {
	raw, _, err := pokerEngine{}.New(3)
	require.NoError(t, err)

	// A round whose per-seat slices do not line up with the chip count must
	// surface as a state error, not a panic deeper in the rules.
	truncate := []func(st *pokerState){
		func(st *pokerState) { st.Rounds[st.Round].Bets = st.Rounds[st.Round].Bets[:1] },
		func(st *pokerState) { st.Rounds[st.Round].SeatStatus = nil },
		func(st *pokerState) { st.Rounds[st.Round].Acted = st.Rounds[st.Round].Acted[:2] },
		func(st *pokerState) { st.Rounds[st.Round].HoleCards = st.Rounds[st.Round].HoleCards[:1] },
	}
	for _, mutate := range truncate {
		st := pokerUnmarshal(t, raw)
		mutate(st)
		bad := pokerMarshal(t, st)

		var gameErr *Error
		err := pokerEngine{}.Check(bad, 0, json.RawMessage(`{"type":"check"}`))
		require.ErrorAs(t, err, &gameErr)
		assert.Equal(t, ErrState, gameErr.Kind)

		_, _, err = pokerEngine{}.Apply(bad, 0, json.RawMessage(`{"type":"check"}`))
		require.ErrorAs(t, err, &gameErr)
		assert.Equal(t, ErrState, gameErr.Kind)
	}
}

func TestPokerCheckedDownHand(t *testing.T) {
	raw, status, err := pokerEngine{}.New(3)
	require.NoError(t, err)

	// Preflop: everyone matches the big blind.
	steps := []struct {
		seat   int
		action string
	}{
		{0, `{"type":"call"}`},
		{1, `{"type":"call"}`},
		{2, `{"type":"check"}`},
	}
	// Flop, turn and river: checked around, first to speak after the dealer.
	for i := 0; i < 3; i++ {
		steps = append(steps,
			struct {
				seat   int
				action string
			}{1, `{"type":"check"}`},
			struct {
				seat   int
				action string
			}{2, `{"type":"check"}`},
			struct {
				seat   int
				action string
			}{0, `{"type":"check"}`},
		)
	}

	for _, step := range steps {
		require.Equal(t, step.seat, status.ActivePlayer)
		raw, status = pokerApply(t, raw, step.seat, step.action)
		assert.Equal(t, 3*pokerStartingChips, pokerTotal(pokerUnmarshal(t, raw)))
	}

	// The showdown resolved and the next hand was dealt.
	require.False(t, status.Over())
	st := pokerUnmarshal(t, raw)
	assert.Equal(t, 1, st.Round)
	assert.Len(t, st.Rounds, 2)

	done := &st.Rounds[0]
	assert.NotEmpty(t, done.Winners)
	assert.Zero(t, done.Pot)
	assert.Nil(t, done.Deck)
	assert.Len(t, done.TableCards, 5)

	next := &st.Rounds[1]
	assert.Equal(t, StagePreFlop, next.Stage)
	assert.Equal(t, 1, next.Dealer)
}

func TestPokerFoldEndsHand(t *testing.T) {
	raw, status, err := pokerEngine{}.New(2)
	require.NoError(t, err)

	// Heads-up: dealer 0, seat 1 posts the small blind and speaks first.
	require.Equal(t, 1, status.ActivePlayer)

	raw, status = pokerApply(t, raw, 1, `{"type":"fold"}`)
	require.False(t, status.Over())

	st := pokerUnmarshal(t, raw)
	assert.Equal(t, []int{0}, st.Rounds[0].Winners)
	assert.Equal(t, 1, st.Round)

	// Seat 0 banked the blinds, then both posted for the next hand with the
	// button passed to seat 1.
	assert.Equal(t, []int{100, 97}, st.Chips)
	assert.Equal(t, []int{1, 2}, st.Rounds[1].Bets)
	assert.Equal(t, 0, status.ActivePlayer)
	assert.Equal(t, 2*pokerStartingChips, pokerTotal(st))
}

func TestPokerShowdownAwardsPot(t *testing.T) {
	st := &pokerState{
		Chips:      []int{95, 95},
		SmallBlind: pokerSmallBlind,
		BigBlind:   pokerBigBlind,
		Round:      0,
		Rounds: []pokerRound{{
			Stage: StageRiver,
			TableCards: cards(
				2, SuitClubs, 5, SuitDiamonds, 9, SuitHearts, 11, SuitSpades, 13, SuitDiamonds,
			),
			Pot:          10,
			Dealer:       0,
			ActivePlayer: 1,
			SeatStatus:   []string{SeatPlaying, SeatPlaying},
			Bets:         []int{0, 0},
			Acted:        []bool{false, false},
			HoleCards: [][]Card{
				cards(14, SuitHearts, 14, SuitDiamonds),
				cards(3, SuitClubs, 4, SuitClubs),
			},
		}},
	}

	raw, status := pokerApply(t, pokerMarshal(t, st), 1, `{"type":"check"}`)
	require.Equal(t, 0, status.ActivePlayer)
	raw, status = pokerApply(t, raw, 0, `{"type":"check"}`)

	// Pair of aces beats four-high; seat 0 takes the pot and the next hand
	// is dealt with the button on seat 1.
	require.False(t, status.Over())
	got := pokerUnmarshal(t, raw)
	assert.Equal(t, []int{0}, got.Rounds[0].Winners)
	assert.Equal(t, []int{104, 93}, got.Chips)
	assert.Equal(t, 1, got.Round)
	assert.Equal(t, 200, pokerTotal(got))
}

func TestPokerShortCallGoesAllIn(t *testing.T) {
	st := &pokerState{
		Chips:      []int{5, 100},
		SmallBlind: pokerSmallBlind,
		BigBlind:   pokerBigBlind,
		Round:      0,
		Rounds: []pokerRound{{
			Stage:        StageFlop,
			Deck:         cards(13, SuitDiamonds, 7, SuitSpades),
			TableCards:   cards(2, SuitClubs, 9, SuitHearts, 11, SuitSpades),
			Pot:          4,
			Dealer:       0,
			ActivePlayer: 1,
			SeatStatus:   []string{SeatPlaying, SeatPlaying},
			Bets:         []int{0, 0},
			Acted:        []bool{false, false},
			HoleCards: [][]Card{
				cards(3, SuitHearts, 4, SuitDiamonds),
				cards(14, SuitHearts, 14, SuitDiamonds),
			},
		}},
	}

	raw, status := pokerApply(t, pokerMarshal(t, st), 1, `{"type":"bet","amount":50}`)
	require.Equal(t, 0, status.ActivePlayer)

	// Seat 0 calls 50 with a 5-chip stack: the call is capped and the seat
	// is all-in, so the stage settles and the turn card falls.
	raw, status = pokerApply(t, raw, 0, `{"type":"call"}`)
	require.False(t, status.Over())
	require.Equal(t, 1, status.ActivePlayer)

	got := pokerUnmarshal(t, raw)
	r := &got.Rounds[0]
	assert.Equal(t, SeatAllIn, r.SeatStatus[0])
	assert.Equal(t, []int{0, 50}, got.Chips)
	assert.Equal(t, 59, r.Pot)
	assert.Equal(t, StageTurn, r.Stage)
	assert.Len(t, r.TableCards, 4)

	// Seat 1 checks it down and the aces hold: seat 0 busts and the match
	// ends.
	raw, status = pokerApply(t, raw, 1, `{"type":"check"}`)
	require.False(t, status.Over())
	_, status = pokerApply(t, raw, 1, `{"type":"check"}`)

	require.True(t, status.Over())
	require.NotNil(t, status.Result)
	assert.Equal(t, ResultWinner, status.Result.Kind)
	assert.Equal(t, []int{1}, status.Result.Winners)
}

func TestPokerEliminationEndsMatch(t *testing.T) {
	st := &pokerState{
		Chips:      []int{0, 180},
		SmallBlind: pokerSmallBlind,
		BigBlind:   pokerBigBlind,
		Round:      0,
		Rounds: []pokerRound{{
			Stage: StageRiver,
			TableCards: cards(
				2, SuitClubs, 5, SuitDiamonds, 9, SuitHearts, 11, SuitSpades, 13, SuitDiamonds,
			),
			Pot:          20,
			Dealer:       0,
			ActivePlayer: 1,
			SeatStatus:   []string{SeatAllIn, SeatPlaying},
			Bets:         []int{0, 0},
			Acted:        []bool{false, false},
			HoleCards: [][]Card{
				cards(3, SuitHearts, 4, SuitDiamonds),
				cards(14, SuitHearts, 14, SuitDiamonds),
			},
		}},
	}

	raw, status := pokerApply(t, pokerMarshal(t, st), 1, `{"type":"check"}`)

	require.True(t, status.Over())
	require.NotNil(t, status.Result)
	assert.Equal(t, ResultWinner, status.Result.Kind)
	assert.Equal(t, []int{1}, status.Result.Winners)

	got := pokerUnmarshal(t, raw)
	assert.Equal(t, []int{0, 200}, got.Chips)
	assert.Equal(t, []int{1}, got.Rounds[0].Winners)
}

func TestPokerActionLegality(t *testing.T) {
	raw, status, err := pokerEngine{}.New(3)
	require.NoError(t, err)
	require.Equal(t, 0, status.ActivePlayer)

	engine := pokerEngine{}
	tests := []struct {
		name   string
		seat   int
		action string
		kind   ErrorKind
	}{
		{"check facing the blind", 0, `{"type":"check"}`, ErrAction},
		{"bet into an existing bet", 0, `{"type":"bet","amount":10}`, ErrAction},
		{"raise of zero", 0, `{"type":"raise"}`, ErrAction},
		{"raise beyond stack", 0, `{"type":"raise","amount":200}`, ErrAction},
		{"unknown action type", 0, `{"type":"shove"}`, ErrAction},
		{"out of turn", 1, `{"type":"call"}`, ErrPlayer},
		{"seat out of range", 5, `{"type":"call"}`, ErrArgs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := engine.Check(raw, tt.seat, json.RawMessage(tt.action))
			var gameErr *Error
			require.ErrorAs(t, err, &gameErr)
			assert.Equal(t, tt.kind, gameErr.Kind)
		})
	}
}

func TestPokerBetReopensAction(t *testing.T) {
	st := &pokerState{
		Chips:      []int{90, 90, 90},
		SmallBlind: pokerSmallBlind,
		BigBlind:   pokerBigBlind,
		Round:      0,
		Rounds: []pokerRound{{
			Stage:        StageFlop,
			Deck:         newDeck()[:20],
			TableCards:   cards(2, SuitClubs, 9, SuitHearts, 11, SuitSpades),
			Pot:          30,
			Dealer:       0,
			ActivePlayer: 1,
			SeatStatus:   []string{SeatPlaying, SeatPlaying, SeatPlaying},
			Bets:         []int{0, 0, 0},
			Acted:        []bool{false, false, false},
			HoleCards: [][]Card{
				cards(3, SuitHearts, 4, SuitDiamonds),
				cards(14, SuitHearts, 14, SuitDiamonds),
				cards(13, SuitClubs, 13, SuitSpades),
			},
		}},
	}

	// Seat 1 checks, seat 2 bets: seat 1 must speak again before the stage
	// can close.
	raw, status := pokerApply(t, pokerMarshal(t, st), 1, `{"type":"check"}`)
	raw, status = pokerApply(t, raw, 2, `{"type":"bet","amount":10}`)
	require.Equal(t, 0, status.ActivePlayer)
	raw, status = pokerApply(t, raw, 0, `{"type":"fold"}`)
	require.Equal(t, 1, status.ActivePlayer)

	got := pokerUnmarshal(t, raw)
	r := &got.Rounds[0]
	assert.Equal(t, StageFlop, r.Stage)
	assert.Equal(t, 10, r.CurrentBet)
	assert.Equal(t, SeatFolded, r.SeatStatus[0])

	// Raising reopens it again for the original bettor.
	_, status = pokerApply(t, raw, 1, `{"type":"raise","amount":10}`)
	require.Equal(t, 2, status.ActivePlayer)
}

func TestPokerViewHidesDeckAndOpponents(t *testing.T) {
	raw, _, err := pokerEngine{}.New(2)
	require.NoError(t, err)

	view, err := pokerEngine{}.View(raw, 0)
	require.NoError(t, err)

	st := pokerUnmarshal(t, view)
	r := &st.Rounds[0]
	assert.Nil(t, r.Deck)
	assert.Len(t, r.HoleCards[0], 2)
	assert.Empty(t, r.HoleCards[1])

	// Spectators see no hole cards at all.
	view, err = pokerEngine{}.View(raw, -1)
	require.NoError(t, err)
	st = pokerUnmarshal(t, view)
	assert.Empty(t, st.Rounds[0].HoleCards[0])
	assert.Empty(t, st.Rounds[0].HoleCards[1])
}

func TestPokerStateRoundTrip(t *testing.T) {
	// Guard against field drift: an applied action on an unmarshalled state
	// keeps every seat accounted for.
	raw, _, err := pokerEngine{}.New(4)
	require.NoError(t, err)

	st := pokerUnmarshal(t, raw)
	r := &st.Rounds[0]
	for _, n := range []int{len(r.SeatStatus), len(r.Bets), len(r.Acted), len(r.HoleCards)} {
		assert.Equal(t, 4, n)
	}
	assert.Equal(t, 0, st.Round)
}
