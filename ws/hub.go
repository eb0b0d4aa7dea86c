package ws

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Hub fans turn-advance signals out to everyone watching a match. Watching
// is read-only: clients never submit moves over the socket, they react to
// the signal and refetch through the API.
type Hub struct {
	rooms map[string]*Room
	mu    sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]*Room)}
}

// Publish tells every watcher that the match has advanced to at least the
// given turn number. No room means nobody is watching; the signal is
// last-value, so a missed one is recovered by the next.
func (h *Hub) Publish(matchID string, turnNumber int64) {
	h.mu.RLock()
	room := h.rooms[matchID]
	h.mu.RUnlock()

	if room == nil {
		return
	}
	room.AnnounceTurn(turnNumber)
}

func (h *Hub) HandleConnection(conn *websocket.Conn, matchID string, userID int64) {
	client := &Client{
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 256),
	}

	room := h.join(matchID, client)

	go h.writePump(client)
	go h.readPump(client, room)
}

// join adds the client under the hub lock, so a room can never be reaped
// between lookup and membership.
func (h *Hub) join(matchID string, client *Client) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, exists := h.rooms[matchID]
	if !exists {
		room = NewRoom(matchID)
		h.rooms[matchID] = room
	}
	room.AddClient(client)
	return room
}

// leave removes the client and reaps the room once its last watcher is gone,
// so a long-lived process does not hold a room per match ever watched.
func (h *Hub) leave(room *Room, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room.RemoveClient(client) == 0 && h.rooms[room.matchID] == room {
		delete(h.rooms, room.matchID)
	}
}

// readPump only keeps the connection alive; incoming payloads are ignored.
func (h *Hub) readPump(client *Client, room *Room) {
	defer func() {
		h.leave(room, client)
		client.conn.Close()
	}()

	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}

func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := client.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Flush anything queued behind this message.
			n := len(client.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-client.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
