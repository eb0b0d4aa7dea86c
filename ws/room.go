package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

type Client struct {
	conn   *websocket.Conn
	userID int64
	send   chan []byte
}

// trySend drops the signal when the client's buffer is full. The signal is
// last-value, so the next turn or a refetch covers the loss.
func (c *Client) trySend(data []byte) {
	select {
	case c.send <- data:
	default:
		log.Printf("Watcher %d send buffer full, dropping turn signal", c.userID)
	}
}

// Room fans turn-advance signals out to everyone watching one match. It
// remembers the latest turn number so a watcher who connects between turns
// is caught up immediately instead of waiting for the next move.
type Room struct {
	matchID  string
	mu       sync.Mutex
	clients  map[*Client]bool
	lastTurn int64
}

func NewRoom(matchID string) *Room {
	return &Room{
		matchID: matchID,
		clients: make(map[*Client]bool),
	}
}

func (r *Room) AddClient(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clients[client] = true
	if r.lastTurn > 0 {
		if data, err := r.turnSignal(r.lastTurn); err == nil {
			client.trySend(data)
		}
	}
}

// RemoveClient returns the number of watchers left, so the hub can drop the
// room once the last one leaves.
func (r *Room) RemoveClient(client *Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[client]; ok {
		delete(r.clients, client)
		close(client.send)
	}
	return len(r.clients)
}

// AnnounceTurn tells every watcher the match has advanced to at least the
// given turn. Signals that would move the turn number backwards carry no
// information and are dropped.
func (r *Room) AnnounceTurn(turnNumber int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if turnNumber <= r.lastTurn {
		return
	}
	r.lastTurn = turnNumber

	data, err := r.turnSignal(turnNumber)
	if err != nil {
		log.Printf("Failed to encode turn signal for match %s: %v", r.matchID, err)
		return
	}
	for client := range r.clients {
		client.trySend(data)
	}
}

func (r *Room) turnSignal(turnNumber int64) ([]byte, error) {
	return json.Marshal(OutgoingMessage{
		Type: "turn",
		Payload: TurnPayload{
			MatchID:    r.matchID,
			TurnNumber: turnNumber,
		},
	})
}

func (r *Room) ClientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
