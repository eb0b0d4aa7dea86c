package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(userID int64) *Client {
	return &Client{userID: userID, send: make(chan []byte, 4)}
}

func decodeTurnSignal(t *testing.T, data []byte) TurnPayload {
	t.Helper()
	var msg OutgoingMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	require.Equal(t, "turn", msg.Type)

	payload, err := json.Marshal(msg.Payload)
	require.NoError(t, err)
	var turn TurnPayload
	require.NoError(t, json.Unmarshal(payload, &turn))
	return turn
}

func TestRoomMembership(t *testing.T) {
	room := NewRoom("m1")
	assert.Zero(t, room.ClientCount())

	a := newTestClient(1)
	b := newTestClient(2)
	room.AddClient(a)
	room.AddClient(b)
	assert.Equal(t, 2, room.ClientCount())

	assert.Equal(t, 1, room.RemoveClient(a))

	// Removing twice is safe.
	assert.Equal(t, 1, room.RemoveClient(a))
	assert.Equal(t, 0, room.RemoveClient(b))
}

func TestPublishReachesEveryWatcher(t *testing.T) {
	hub := NewHub()
	a := newTestClient(1)
	b := newTestClient(2)
	hub.join("m1", a)
	hub.join("m1", b)

	hub.Publish("m1", 7)

	for _, c := range []*Client{a, b} {
		select {
		case data := <-c.send:
			turn := decodeTurnSignal(t, data)
			assert.Equal(t, "m1", turn.MatchID)
			assert.EqualValues(t, 7, turn.TurnNumber)
		default:
			t.Fatalf("client %d got no message", c.userID)
		}
	}
}

func TestPublishWithoutWatchersIsNoOp(t *testing.T) {
	hub := NewHub()
	assert.NotPanics(t, func() { hub.Publish("nobody-watching", 1) })
}

func TestLateWatcherIsCaughtUp(t *testing.T) {
	room := NewRoom("m1")
	early := newTestClient(1)
	room.AddClient(early)
	room.AnnounceTurn(5)
	<-early.send

	// A watcher joining after turn 5 gets the last-value signal right away.
	late := newTestClient(2)
	room.AddClient(late)

	select {
	case data := <-late.send:
		turn := decodeTurnSignal(t, data)
		assert.EqualValues(t, 5, turn.TurnNumber)
	default:
		t.Fatal("late watcher got no catch-up signal")
	}
}

func TestStaleTurnSignalIsDropped(t *testing.T) {
	room := NewRoom("m1")
	c := newTestClient(1)
	room.AddClient(c)

	room.AnnounceTurn(5)
	<-c.send

	// An older or repeated turn number carries no information.
	room.AnnounceTurn(5)
	room.AnnounceTurn(3)

	select {
	case <-c.send:
		t.Fatal("stale signal was delivered")
	default:
	}

	room.AnnounceTurn(6)
	turn := decodeTurnSignal(t, <-c.send)
	assert.EqualValues(t, 6, turn.TurnNumber)
}

func TestPublishSkipsSlowClient(t *testing.T) {
	hub := NewHub()
	slow := &Client{userID: 1, send: make(chan []byte)} // unbuffered, never drained
	fast := newTestClient(2)
	hub.join("m1", slow)
	hub.join("m1", fast)

	// Must not block on the stuck client.
	hub.Publish("m1", 3)

	select {
	case <-fast.send:
	default:
		t.Fatal("fast client was starved by the slow one")
	}
}

func TestRoomIsSharedAndReaped(t *testing.T) {
	hub := NewHub()
	a := newTestClient(1)
	b := newTestClient(2)
	roomA := hub.join("m1", a)
	roomB := hub.join("m1", b)
	assert.Same(t, roomA, roomB)

	hub.leave(roomA, a)
	hub.mu.RLock()
	_, exists := hub.rooms["m1"]
	hub.mu.RUnlock()
	assert.True(t, exists, "room must survive while watchers remain")

	// The last watcher leaving reaps the room.
	hub.leave(roomA, b)
	hub.mu.RLock()
	_, exists = hub.rooms["m1"]
	hub.mu.RUnlock()
	assert.False(t, exists, "empty room must be removed")

	// Publishing to the reaped match is a no-op, and rejoining recreates
	// the room.
	assert.NotPanics(t, func() { hub.Publish("m1", 9) })
	c := newTestClient(3)
	roomC := hub.join("m1", c)
	assert.NotSame(t, roomA, roomC)
}
