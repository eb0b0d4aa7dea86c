package game

import "encoding/json"

const (
	pokerSmallBlind    = 1
	pokerBigBlind      = 2
	pokerStartingChips = 100
	maxForcedDeals     = 1000
)

const (
	StagePreFlop  = "pre_flop"
	StageFlop     = "flop"
	StageTurn     = "turn"
	StageRiver    = "river"
	StageShowdown = "showdown"
)

const (
	SeatPlaying = "playing"
	SeatAllIn   = "all_in"
	SeatFolded  = "folded"
	SeatOut     = "out"
)

const (
	ActionFold  = "fold"
	ActionCheck = "check"
	ActionBet   = "bet"
	ActionCall  = "call"
	ActionRaise = "raise"
)

// pokerState is the whole match: stacks plus the full round history. Chips
// are conserved: sum(Chips) + sum of every round's Pot and Bets never
// changes for the life of the match.
type pokerState struct {
	Chips      []int        `json:"chips"`
	SmallBlind int          `json:"smallBlind"`
	BigBlind   int          `json:"bigBlind"`
	Round      int          `json:"round"`
	Rounds     []pokerRound `json:"rounds"`
}

// pokerRound is one hand of poker, from deal to pot award. Bets holds each
// seat's chips committed in the current stage; they move into Pot when the
// stage closes. Acted marks who has spoken since the last bet or raise.
type pokerRound struct {
	Stage        string   `json:"stage"`
	Deck         []Card   `json:"deck,omitempty"`
	TableCards   []Card   `json:"tableCards"`
	CurrentBet   int      `json:"currentBet"`
	Pot          int      `json:"pot"`
	Dealer       int      `json:"dealer"`
	ActivePlayer int      `json:"activePlayer"`
	SeatStatus   []string `json:"seatStatus"`
	Bets         []int    `json:"bets"`
	Acted        []bool   `json:"acted"`
	HoleCards    [][]Card `json:"holeCards"`
	Winners      []int    `json:"winners,omitempty"`
}

type pokerAction struct {
	Type   string `json:"type"`
	Amount int    `json:"amount,omitempty"`
}

type pokerEngine struct{}

func (pokerEngine) New(players int) (json.RawMessage, Status, error) {
	if players < 2 {
		return nil, Status{}, Errorf(ErrArgs, "poker requires at least 2 players, got %d", players)
	}

	st := &pokerState{
		Chips:      make([]int, players),
		SmallBlind: pokerSmallBlind,
		BigBlind:   pokerBigBlind,
	}
	for i := range st.Chips {
		st.Chips[i] = pokerStartingChips
	}
	st.dealRound(0)

	status := st.progress()
	if status.Over() {
		return nil, Status{}, Errorf(ErrState, "new poker game resolved immediately")
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return nil, Status{}, err
	}
	return raw, status, nil
}

func (pokerEngine) Check(state json.RawMessage, seat int, action json.RawMessage) error {
	st, act, err := pokerDecode(state, action)
	if err != nil {
		return err
	}
	return st.check(seat, act)
}

func (pokerEngine) Apply(state json.RawMessage, seat int, action json.RawMessage) (json.RawMessage, Status, error) {
	st, act, err := pokerDecode(state, action)
	if err != nil {
		return nil, Status{}, err
	}
	if err := st.check(seat, act); err != nil {
		return nil, Status{}, err
	}

	st.apply(seat, act)
	status := st.progress()

	raw, err := json.Marshal(st)
	if err != nil {
		return nil, Status{}, err
	}
	return raw, status, nil
}

// View hides the deck and every other seat's hole cards.
func (pokerEngine) View(state json.RawMessage, seat int) (json.RawMessage, error) {
	var st pokerState
	if err := json.Unmarshal(state, &st); err != nil {
		return nil, Errorf(ErrState, "malformed poker state: %v", err)
	}
	for i := range st.Rounds {
		r := &st.Rounds[i]
		r.Deck = nil
		for s := range r.HoleCards {
			if s != seat {
				r.HoleCards[s] = nil
			}
		}
	}
	return json.Marshal(st)
}

func pokerDecode(state, action json.RawMessage) (*pokerState, *pokerAction, error) {
	var st pokerState
	if err := json.Unmarshal(state, &st); err != nil {
		return nil, nil, Errorf(ErrState, "malformed poker state: %v", err)
	}
	if len(st.Rounds) == 0 || st.Round >= len(st.Rounds) {
		return nil, nil, Errorf(ErrState, "poker state has no active round")
	}
	r := &st.Rounds[st.Round]
	n := len(st.Chips)
	if len(r.SeatStatus) != n || len(r.Bets) != n || len(r.Acted) != n || len(r.HoleCards) != n {
		return nil, nil, Errorf(ErrState, "poker round is not sized for %d seats", n)
	}
	var act pokerAction
	if err := json.Unmarshal(action, &act); err != nil {
		return nil, nil, Errorf(ErrAction, "malformed poker action: %v", err)
	}
	return &st, &act, nil
}

func (st *pokerState) current() *pokerRound {
	return &st.Rounds[st.Round]
}

func (st *pokerState) check(seat int, act *pokerAction) error {
	r := st.current()
	if r.Stage == StageShowdown {
		return Errorf(ErrState, "round is at showdown")
	}
	if seat < 0 || seat >= len(st.Chips) {
		return Errorf(ErrArgs, "seat %d out of range", seat)
	}
	if seat != r.ActivePlayer {
		return Errorf(ErrPlayer, "seat %d moved out of turn, seat %d is active", seat, r.ActivePlayer)
	}
	if r.SeatStatus[seat] != SeatPlaying {
		return Errorf(ErrPlayer, "seat %d is %s and cannot act", seat, r.SeatStatus[seat])
	}

	toCall := r.CurrentBet - r.Bets[seat]
	switch act.Type {
	case ActionFold:
		return nil
	case ActionCheck:
		if toCall > 0 {
			return Errorf(ErrAction, "cannot check facing a bet of %d", r.CurrentBet)
		}
	case ActionBet:
		if r.CurrentBet != 0 {
			return Errorf(ErrAction, "cannot bet into an existing bet, raise instead")
		}
		if act.Amount <= 0 {
			return Errorf(ErrAction, "bet amount must be positive")
		}
		if act.Amount > st.Chips[seat] {
			return Errorf(ErrAction, "bet of %d exceeds stack of %d", act.Amount, st.Chips[seat])
		}
	case ActionCall:
		if r.CurrentBet == 0 {
			return Errorf(ErrAction, "nothing to call")
		}
	case ActionRaise:
		if r.CurrentBet == 0 {
			return Errorf(ErrAction, "cannot raise without a bet, bet instead")
		}
		if act.Amount <= 0 {
			return Errorf(ErrAction, "raise amount must be positive")
		}
		if toCall+act.Amount > st.Chips[seat] {
			return Errorf(ErrAction, "raise of %d over a call of %d exceeds stack of %d", act.Amount, toCall, st.Chips[seat])
		}
	default:
		return Errorf(ErrAction, "unknown action %q", act.Type)
	}
	return nil
}

// apply mutates the round for a checked action. A bet or raise reopens the
// action: every other playing seat must speak again.
func (st *pokerState) apply(seat int, act *pokerAction) {
	r := st.current()
	toCall := r.CurrentBet - r.Bets[seat]

	switch act.Type {
	case ActionFold:
		r.SeatStatus[seat] = SeatFolded
	case ActionCheck:
		// nothing moves
	case ActionBet:
		st.commit(r, seat, act.Amount)
		r.CurrentBet = r.Bets[seat]
		st.reopen(r, seat)
	case ActionCall:
		if toCall > st.Chips[seat] {
			toCall = st.Chips[seat] // short call goes all-in
		}
		st.commit(r, seat, toCall)
	case ActionRaise:
		st.commit(r, seat, toCall+act.Amount)
		r.CurrentBet = r.Bets[seat]
		st.reopen(r, seat)
	}
	r.Acted[seat] = true
	r.ActivePlayer = nextPlaying(r, seat)
}

func (st *pokerState) commit(r *pokerRound, seat, amount int) {
	st.Chips[seat] -= amount
	r.Bets[seat] += amount
	if st.Chips[seat] == 0 {
		r.SeatStatus[seat] = SeatAllIn
	}
}

func (st *pokerState) reopen(r *pokerRound, except int) {
	for s := range r.Acted {
		if s != except {
			r.Acted[s] = false
		}
	}
}

// progress drives the round state machine until a player decision is needed
// or the match ends: it closes settled stages, fast-forwards when nobody can
// act, resolves showdowns, and deals the next round.
func (st *pokerState) progress() Status {
	deals := 0
	for {
		r := st.current()

		if contenders(r) <= 1 || r.Stage == StageShowdown {
			if status, over := st.finishRound(); over {
				return status
			}
			// Blind-locked equal stacks can split pots forever without a
			// single decision; call that a draw among the seats left.
			if deals++; deals > maxForcedDeals {
				winners := make([]int, 0, len(st.Chips))
				for s, chips := range st.Chips {
					if chips > 0 {
						winners = append(winners, s)
					}
				}
				return Status{State: StateOver, Result: &Result{Kind: ResultDraw, Winners: winners}}
			}
			continue
		}

		if !stageSettled(r) {
			return InProgress(r.ActivePlayer)
		}

		st.closeStage(r)
	}
}

// stageSettled reports whether every seat still able to act has spoken and
// matched the current bet.
func stageSettled(r *pokerRound) bool {
	for s, status := range r.SeatStatus {
		if status != SeatPlaying {
			continue
		}
		if !r.Acted[s] || r.Bets[s] < r.CurrentBet {
			return false
		}
	}
	return true
}

// contenders counts seats still in the hand (playing or all-in).
func contenders(r *pokerRound) int {
	n := 0
	for _, status := range r.SeatStatus {
		if status == SeatPlaying || status == SeatAllIn {
			n++
		}
	}
	return n
}

// closeStage moves outstanding bets into the pot and opens the next stage,
// revealing its shared cards.
func (st *pokerState) closeStage(r *pokerRound) {
	st.collectBets(r)

	var dealt []Card
	switch r.Stage {
	case StagePreFlop:
		r.Stage = StageFlop
		dealt, r.Deck = draw(r.Deck, 3)
	case StageFlop:
		r.Stage = StageTurn
		dealt, r.Deck = draw(r.Deck, 1)
	case StageTurn:
		r.Stage = StageRiver
		dealt, r.Deck = draw(r.Deck, 1)
	case StageRiver:
		r.Stage = StageShowdown
		return
	}
	r.TableCards = append(r.TableCards, dealt...)

	for s := range r.Acted {
		r.Acted[s] = false
	}
	r.ActivePlayer = nextPlaying(r, r.Dealer)
}

func (st *pokerState) collectBets(r *pokerRound) {
	for s, bet := range r.Bets {
		r.Pot += bet
		r.Bets[s] = 0
	}
	r.CurrentBet = 0
}

// finishRound awards the pot, eliminates busted seats and either ends the
// match or deals the next hand. Returns (status, true) when the match is
// over; otherwise the caller keeps progressing the freshly dealt round.
func (st *pokerState) finishRound() (Status, bool) {
	r := st.current()
	st.collectBets(r)

	winners := st.roundWinners(r)
	if len(winners) > 0 {
		// Ties split evenly; remainder chips are dropped, not assigned.
		share := r.Pot / len(winners)
		for _, w := range winners {
			st.Chips[w] += share
		}
	}
	r.Winners = winners
	r.Pot = 0
	r.Deck = nil

	alive := make([]int, 0, len(st.Chips))
	for s, chips := range st.Chips {
		if chips > 0 {
			alive = append(alive, s)
		}
	}
	if len(alive) == 1 {
		return Won(alive[0]), true
	}

	dealer := nextWithChips(st, r.Dealer)
	st.dealRound(dealer)
	return Status{}, false
}

func (st *pokerState) roundWinners(r *pokerRound) []int {
	inHand := make([]int, 0, len(r.SeatStatus))
	for s, status := range r.SeatStatus {
		if status == SeatPlaying || status == SeatAllIn {
			inHand = append(inHand, s)
		}
	}
	if len(inHand) <= 1 {
		return inHand
	}

	var winners []int
	var best Hand
	for _, s := range inHand {
		cards := append(append([]Card{}, r.HoleCards[s]...), r.TableCards...)
		h := BestHand(cards)
		switch {
		case len(winners) == 0 || CompareHands(h, best) > 0:
			winners = []int{s}
			best = h
		case CompareHands(h, best) == 0:
			winners = append(winners, s)
		}
	}
	return winners
}

// dealRound starts a new hand: fresh shuffled deck, two hole cards per live
// seat, blinds posted by the two seats after the dealer, action opening on
// the seat after the big blind.
func (st *pokerState) dealRound(dealer int) {
	n := len(st.Chips)
	r := pokerRound{
		Stage:      StagePreFlop,
		Deck:       newDeck(),
		TableCards: []Card{},
		Dealer:     dealer,
		SeatStatus: make([]string, n),
		Bets:       make([]int, n),
		Acted:      make([]bool, n),
		HoleCards:  make([][]Card, n),
	}
	for s := range r.SeatStatus {
		if st.Chips[s] > 0 {
			r.SeatStatus[s] = SeatPlaying
		} else {
			r.SeatStatus[s] = SeatOut
		}
	}
	for s := range r.HoleCards {
		if r.SeatStatus[s] == SeatPlaying {
			r.HoleCards[s], r.Deck = draw(r.Deck, 2)
		} else {
			r.HoleCards[s] = []Card{}
		}
	}

	sb := nextPlaying(&r, dealer)
	st.commit(&r, sb, min(st.SmallBlind, st.Chips[sb]))
	bb := nextPlaying(&r, sb)
	if bb >= 0 {
		st.commit(&r, bb, min(st.BigBlind, st.Chips[bb]))
	}
	r.CurrentBet = st.BigBlind

	opener := bb
	if opener < 0 {
		opener = sb
	}
	r.ActivePlayer = nextPlaying(&r, opener)

	st.Rounds = append(st.Rounds, r)
	st.Round = len(st.Rounds) - 1
}

// nextPlaying returns the first seat after from with status playing, or -1.
func nextPlaying(r *pokerRound, from int) int {
	n := len(r.SeatStatus)
	for i := 1; i <= n; i++ {
		s := (from + i) % n
		if r.SeatStatus[s] == SeatPlaying {
			return s
		}
	}
	return -1
}

// nextWithChips returns the first seat after from holding chips. The caller
// guarantees at least two such seats exist.
func nextWithChips(st *pokerState, from int) int {
	n := len(st.Chips)
	for i := 1; i <= n; i++ {
		s := (from + i) % n
		if st.Chips[s] > 0 {
			return s
		}
	}
	return from
}
