package ws

type OutgoingMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// TurnPayload is the whole signal: the match has advanced to at least this
// turn number. Watchers refetch the match to see the actual state.
type TurnPayload struct {
	MatchID    string `json:"matchId"`
	TurnNumber int64  `json:"turnNumber"`
}
