package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"gamehub/game"
	"gamehub/store"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrNotAllowed = errors.New("not allowed")
)

// Notifier publishes "the match has advanced to at least this turn" signals
// after every successful turn write.
type Notifier interface {
	Publish(matchID string, turnNumber int64)
}

// Seat names one participant at match creation: a user by username, or one
// of that user's agents by username plus agentname.
type Seat struct {
	Username  string `json:"username"`
	Agentname string `json:"agentname,omitempty"`
}

// Orchestrator owns the turn log. All coordination between concurrent calls
// goes through the store: the turn primary key for user turns, the agent
// lease for agent turns. There is no shared in-process state.
type Orchestrator struct {
	store    store.Store
	agents   *AgentClient
	notifier Notifier
	leaseTTL time.Duration
}

func NewOrchestrator(st store.Store, agents *AgentClient, notifier Notifier, leaseTTL time.Duration) *Orchestrator {
	return &Orchestrator{
		store:    st,
		agents:   agents,
		notifier: notifier,
		leaseTTL: leaseTTL,
	}
}

// CreateMatch resolves every seat, starts the game and persists the match,
// seats and genesis turn in one batch. The returned bool reports whether the
// opening seat belongs to an agent, so the caller can enqueue the first
// agent task.
func (o *Orchestrator) CreateMatch(ctx context.Context, creatorID int64, kind game.Kind, seats []Seat) (string, bool, error) {
	engine, err := game.ForKind(kind)
	if err != nil {
		return "", false, err
	}

	players := make([]*store.MatchPlayer, len(seats))
	for i, seat := range seats {
		user, err := o.store.GetUserByUsername(seat.Username)
		if err != nil {
			return "", false, err
		}
		if user == nil {
			return "", false, fmt.Errorf("%w: user %q", ErrNotFound, seat.Username)
		}
		p := &store.MatchPlayer{Seat: i, UserID: user.ID, Username: user.Username}
		if seat.Agentname != "" {
			agent, err := o.store.GetAgent(seat.Username, seat.Agentname)
			if err != nil {
				return "", false, err
			}
			if agent == nil {
				return "", false, fmt.Errorf("%w: agent %q of user %q", ErrNotFound, seat.Agentname, seat.Username)
			}
			p.AgentID = &agent.ID
			p.Agentname = agent.Agentname
			p.AgentURL = agent.URL
		}
		players[i] = p
	}

	state, status, err := engine.New(len(seats))
	if err != nil {
		return "", false, err
	}
	if status.Over() {
		return "", false, game.Errorf(game.ErrState, "new %s game is not in progress", kind)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", false, fmt.Errorf("failed to generate match id: %w", err)
	}
	matchID := id.String()
	for _, p := range players {
		p.MatchID = matchID
	}

	statusJSON, err := json.Marshal(status)
	if err != nil {
		return "", false, err
	}
	genesis := &store.MatchTurn{
		MatchID: matchID,
		Status:  statusJSON,
		State:   state,
	}
	m := &store.Match{ID: matchID, Game: string(kind), CreatedBy: creatorID}
	if err := o.store.CreateMatch(m, players, genesis); err != nil {
		return "", false, err
	}

	return matchID, players[status.ActivePlayer].AgentID != nil, nil
}

// TakeUserTurn applies one action on behalf of a user. The first bool is
// false when a concurrent submission already advanced the turn: the caller
// should refetch and show the real state, not treat it as an error. The
// second bool reports whether the next seat to move belongs to an agent.
func (o *Orchestrator) TakeUserTurn(ctx context.Context, userID int64, matchID string, action json.RawMessage) (bool, bool, error) {
	m, players, turn, status, err := o.loadMatch(matchID)
	if err != nil {
		return false, false, err
	}
	if status.Over() {
		return false, false, game.Errorf(game.ErrState, "match is over")
	}

	seat := status.ActivePlayer
	p := players[seat]
	if p.AgentID != nil || p.UserID != userID {
		return false, false, fmt.Errorf("%w: seat %d is not yours", ErrNotAllowed, seat)
	}

	engine, err := game.ForKind(game.Kind(m.Game))
	if err != nil {
		return false, false, err
	}
	if err := engine.Check(turn.State, seat, action); err != nil {
		return false, false, err
	}
	newState, newStatus, err := engine.Apply(turn.State, seat, action)
	if err != nil {
		return false, false, err
	}

	newTurn, err := buildTurn(matchID, turn.TurnNumber+1, newStatus, &seat, action, newState)
	if err != nil {
		return false, false, err
	}
	if err := o.store.AppendTurn(newTurn); err != nil {
		if errors.Is(err, store.ErrTurnConflict) {
			return false, false, nil
		}
		return false, false, err
	}

	o.notifier.Publish(matchID, newTurn.TurnNumber)
	return true, agentNext(newStatus, players), nil
}

// TakeAgentTurn advances a match by one agent move under the match lease.
// Every failure mode of the remote call ends the match as errored rather
// than leaving it stuck. The returned bool reports whether the new active
// seat is again an agent, so the worker can re-enqueue.
func (o *Orchestrator) TakeAgentTurn(ctx context.Context, matchID string) (bool, error) {
	token := uuid.NewString()
	if err := o.store.AcquireAgentLease(matchID, token, o.leaseTTL); err != nil {
		if errors.Is(err, store.ErrLeaseHeld) {
			return false, nil
		}
		return false, err
	}

	m, players, turn, status, err := o.loadMatch(matchID)
	if err != nil {
		o.releaseLease(matchID, token)
		return false, err
	}
	if status.Over() {
		o.releaseLease(matchID, token)
		return false, nil
	}
	seat := status.ActivePlayer
	p := players[seat]
	if p.AgentID == nil {
		o.releaseLease(matchID, token)
		return false, nil
	}

	engine, err := game.ForKind(game.Kind(m.Game))
	if err != nil {
		o.releaseLease(matchID, token)
		return false, err
	}
	view, err := engine.View(turn.State, seat)
	if err != nil {
		o.releaseLease(matchID, token)
		return false, err
	}
	agentData, err := o.store.GetAgentData(matchID, seat)
	if err != nil {
		o.releaseLease(matchID, token)
		return false, err
	}

	resp, callErr := o.agents.Call(ctx, p.AgentURL, &AgentRequest{
		Game:      m.Game,
		Agentname: p.Agentname,
		State:     view,
		AgentData: agentData,
	})

	var newState json.RawMessage
	var newStatus game.Status
	var action json.RawMessage
	var newData []byte

	switch {
	case callErr != nil:
		newState, newStatus = turn.State, game.Errored(callErr.Error())
	default:
		action = resp.Action
		newData = resp.AgentData
		if err := engine.Check(turn.State, seat, action); err != nil {
			newState, newStatus = turn.State, game.Errored("agent played an illegal action: "+err.Error())
			action, newData = nil, nil
		} else if newState, newStatus, err = engine.Apply(turn.State, seat, action); err != nil {
			newState, newStatus = turn.State, game.Errored("agent action failed to apply: "+err.Error())
			action, newData = nil, nil
		}
	}

	newTurn, err := buildTurn(matchID, turn.TurnNumber+1, newStatus, &seat, action, newState)
	if err != nil {
		o.releaseLease(matchID, token)
		return false, err
	}
	if err := o.store.AppendAgentTurn(newTurn, token, seat, newData); err != nil {
		if errors.Is(err, store.ErrTurnConflict) {
			// Our lease was stolen and the thief won the turn race. The
			// uniqueness constraint kept the log consistent; our work is
			// simply wasted.
			return false, nil
		}
		return false, err
	}

	o.notifier.Publish(matchID, newTurn.TurnNumber)
	return agentNext(newStatus, players), nil
}

// MatchView is what a caller sees of a match: the players, the current
// status and the state redacted to the caller's seat.
type MatchView struct {
	MatchID    string          `json:"matchId"`
	Game       string          `json:"game"`
	TurnNumber int64           `json:"turnNumber"`
	Status     game.Status     `json:"status"`
	Players    []Seat          `json:"players"`
	YourSeat   *int            `json:"yourSeat,omitempty"`
	State      json.RawMessage `json:"state"`
}

// FetchMatch returns the caller's redacted view of the match's current turn.
// Callers without a seat get a spectator view with all private state hidden.
func (o *Orchestrator) FetchMatch(ctx context.Context, userID int64, matchID string) (*MatchView, error) {
	m, players, turn, status, err := o.loadMatch(matchID)
	if err != nil {
		return nil, err
	}

	seat := -1
	for _, p := range players {
		if p.AgentID == nil && p.UserID == userID {
			seat = p.Seat
			break
		}
	}

	engine, err := game.ForKind(game.Kind(m.Game))
	if err != nil {
		return nil, err
	}
	view, err := engine.View(turn.State, seat)
	if err != nil {
		return nil, err
	}

	mv := &MatchView{
		MatchID:    m.ID,
		Game:       m.Game,
		TurnNumber: turn.TurnNumber,
		Status:     status,
		Players:    make([]Seat, len(players)),
		State:      view,
	}
	for i, p := range players {
		mv.Players[i] = Seat{Username: p.Username, Agentname: p.Agentname}
	}
	if seat >= 0 {
		mv.YourSeat = &seat
	}
	return mv, nil
}

func (o *Orchestrator) loadMatch(matchID string) (*store.Match, []*store.MatchPlayer, *store.MatchTurn, game.Status, error) {
	var status game.Status

	m, err := o.store.GetMatch(matchID)
	if err != nil {
		return nil, nil, nil, status, err
	}
	if m == nil {
		return nil, nil, nil, status, fmt.Errorf("%w: match %q", ErrNotFound, matchID)
	}

	players, err := o.store.GetMatchPlayers(matchID)
	if err != nil {
		return nil, nil, nil, status, err
	}
	turn, err := o.store.GetCurrentTurn(matchID)
	if err != nil {
		return nil, nil, nil, status, err
	}
	if turn == nil {
		return nil, nil, nil, status, fmt.Errorf("match %q has no turns", matchID)
	}

	if err := json.Unmarshal(turn.Status, &status); err != nil {
		return nil, nil, nil, status, fmt.Errorf("corrupt status on match %q turn %d: %w", matchID, turn.TurnNumber, err)
	}
	if !status.Over() && (status.ActivePlayer < 0 || status.ActivePlayer >= len(players)) {
		return nil, nil, nil, status, fmt.Errorf("corrupt active seat %d on match %q", status.ActivePlayer, matchID)
	}
	return m, players, turn, status, nil
}

func (o *Orchestrator) releaseLease(matchID, token string) {
	if err := o.store.ReleaseAgentLease(matchID, token); err != nil {
		log.Printf("Failed to release lease on match %s: %v", matchID, err)
	}
}

func buildTurn(matchID string, number int64, status game.Status, seat *int, action, state json.RawMessage) (*store.MatchTurn, error) {
	statusJSON, err := json.Marshal(status)
	if err != nil {
		return nil, err
	}
	return &store.MatchTurn{
		MatchID:    matchID,
		TurnNumber: number,
		Status:     statusJSON,
		PlayerSeat: seat,
		Action:     action,
		State:      state,
	}, nil
}

func agentNext(status game.Status, players []*store.MatchPlayer) bool {
	return !status.Over() && players[status.ActivePlayer].AgentID != nil
}
