package services

import (
	"encoding/json"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidquiz/models"
)

// Hub tests construct clients directly and place them in the client map,
// mirroring what Run does for its register branch, so event routing can
// be asserted against the send queues without real sockets.

func newTestHub() (*Hub, *GameService, *RoomRegistry) {
	clock := clockwork.NewFakeClock()
	registry := NewRoomRegistry(clock)
	gameService := NewGameService(registry, nil)
	return NewHub(gameService), gameService, registry
}

func addTestClient(hub *Hub, id string) *Client {
	client := &Client{hub: hub, id: id, send: make(chan []byte, 16)}
	hub.mutex.Lock()
	hub.clients[client] = true
	hub.mutex.Unlock()
	return client
}

func nextEvent(t *testing.T, c *Client) (string, map[string]interface{}) {
	t.Helper()
	select {
	case data := <-c.send:
		var event struct {
			Type    string                 `json:"type"`
			Payload map[string]interface{} `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(data, &event))
		return event.Type, event.Payload
	default:
		t.Fatal("expected a queued event")
		return "", nil
	}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	assert.Empty(t, c.send, "expected no queued events")
}

func TestJoinUnknownRoomSendsSoloJoinError(t *testing.T) {
	hub, gameService, _ := newTestHub()
	client := addTestClient(hub, "c1")

	gameService.HandleJoinRoom(hub, client, JoinRoomEvent{RoomCode: "NOSUCH"})

	eventType, payload := nextEvent(t, client)
	assert.Equal(t, "join_error", eventType)
	assert.Equal(t, "Unknown room code", payload["message"])
	assertNoEvent(t, client)
	assert.Empty(t, client.roomCode)
}

func TestHostJoinReceivesSnapshot(t *testing.T) {
	hub, gameService, registry := newTestHub()
	session := registry.Create("vid123", models.Settings{})
	session.AddPlayer("alice")

	host := addTestClient(hub, "host")
	gameService.HandleJoinRoom(hub, host, JoinRoomEvent{RoomCode: session.Code(), IsHost: true})

	eventType, payload := nextEvent(t, host)
	assert.Equal(t, "room_joined", eventType)
	assert.Equal(t, session.Code(), payload["room_code"])

	eventType, payload = nextEvent(t, host)
	assert.Equal(t, "game_state_update", eventType)
	assert.Equal(t, string(models.PhaseLobby), payload["phase"])
	require.Len(t, payload["players"], 1)

	assert.Equal(t, "host", session.HostConn())
	assert.True(t, host.isHost)
}

func TestNewPlayerJoinBindsWithoutBroadcast(t *testing.T) {
	hub, gameService, registry := newTestHub()
	session := registry.Create("vid123", models.Settings{})

	client := addTestClient(hub, "c1")
	gameService.HandleJoinRoom(hub, client, JoinRoomEvent{RoomCode: session.Code()})

	eventType, _ := nextEvent(t, client)
	assert.Equal(t, "room_joined", eventType)
	assertNoEvent(t, client)
	assert.Equal(t, session.Code(), client.roomCode)
	assert.Empty(t, client.playerID)
}

func TestPlayerReconnectAnnouncesAndResyncs(t *testing.T) {
	hub, gameService, registry := newTestHub()
	session := registry.Create("vid123", models.Settings{})
	player := session.AddPlayer("alice")
	session.MarkDisconnected(player.ID)

	observer := addTestClient(hub, "observer")
	hub.bindRoom(observer, session.Code(), "", true)

	client := addTestClient(hub, "c1")
	gameService.HandleJoinRoom(hub, client, JoinRoomEvent{
		RoomCode: session.Code(),
		PlayerID: player.ID,
	})

	eventType, _ := nextEvent(t, client)
	assert.Equal(t, "room_joined", eventType)
	eventType, payload := nextEvent(t, client)
	assert.Equal(t, "player_reconnected", eventType)
	assert.Equal(t, player.ID, payload["player_id"])
	eventType, payload = nextEvent(t, client)
	assert.Equal(t, "game_state_update", eventType)
	assert.Equal(t, session.Code(), payload["room_code"])

	eventType, _ = nextEvent(t, observer)
	assert.Equal(t, "player_reconnected", eventType)

	snap := session.Snapshot()
	require.Len(t, snap.Players, 1)
	assert.True(t, snap.Players[0].Connected)
}

func TestBroadcastScopedToRoom(t *testing.T) {
	hub, _, _ := newTestHub()
	inRoom := addTestClient(hub, "in")
	hub.bindRoom(inRoom, "AAAAAA", "1", false)
	elsewhere := addTestClient(hub, "out")
	hub.bindRoom(elsewhere, "BBBBBB", "1", false)
	unbound := addTestClient(hub, "unbound")

	hub.BroadcastToRoom("aaaaaa", "game_started", map[string]string{})

	eventType, _ := nextEvent(t, inRoom)
	assert.Equal(t, "game_started", eventType)
	assertNoEvent(t, elsewhere)
	assertNoEvent(t, unbound)

	assert.Equal(t, 1, hub.ConnectedClients("AAAAAA"))
}

func TestSubmitAnswerBroadcastOrderAndLateRejection(t *testing.T) {
	hub, gameService, registry := newTestHub()
	session := registry.Create("vid123", models.Settings{})
	player := session.AddPlayer("alice")
	session.StartGame()

	host := addTestClient(hub, "host")
	hub.bindRoom(host, session.Code(), "", true)
	client := addTestClient(hub, "c1")
	hub.bindRoom(client, session.Code(), player.ID, false)

	gameService.HandleBroadcastQuestion(hub, host, BroadcastQuestionEvent{
		RoomCode: session.Code(),
		Question: models.Question{Question: "What is shown at 2:10?", CorrectAnswer: "a bridge"},
	})
	eventType, payload := nextEvent(t, client)
	assert.Equal(t, "new_question", eventType)
	assert.Equal(t, float64(60), payload["timer_duration_seconds"])
	nextEvent(t, host)

	gameService.HandleSubmitAnswer(hub, client, SubmitAnswerEvent{
		RoomCode: session.Code(),
		PlayerID: player.ID,
		Answer:   "a bridge",
	})

	// answer_submitted lands before the timer update on every connection
	eventType, payload = nextEvent(t, host)
	assert.Equal(t, "answer_submitted", eventType)
	assert.Equal(t, "a bridge", payload["answer"])
	eventType, payload = nextEvent(t, host)
	assert.Equal(t, "timer_update", eventType)
	assert.Equal(t, float64(60), payload["remaining_seconds"])
	nextEvent(t, client)
	nextEvent(t, client)

	gameService.HandleShowFeedback(hub, host, RoomEvent{RoomCode: session.Code()})
	eventType, _ = nextEvent(t, host)
	assert.Equal(t, "show_feedback", eventType)
	nextEvent(t, client)

	gameService.HandleSubmitAnswer(hub, client, SubmitAnswerEvent{
		RoomCode: session.Code(),
		PlayerID: player.ID,
		Answer:   "too late",
	})
	eventType, payload = nextEvent(t, client)
	assert.Equal(t, "answer_rejected", eventType)
	assert.Equal(t, "Feedback has already been shown", payload["reason"])
	assertNoEvent(t, host)
}

func TestShowFeedbackBroadcastsOnce(t *testing.T) {
	hub, gameService, registry := newTestHub()
	session := registry.Create("vid123", models.Settings{})
	session.StartGame()

	host := addTestClient(hub, "host")
	hub.bindRoom(host, session.Code(), "", true)

	gameService.HandleBroadcastQuestion(hub, host, BroadcastQuestionEvent{
		RoomCode: session.Code(),
		Question: models.Question{Question: "q"},
	})
	nextEvent(t, host)

	gameService.HandleShowFeedback(hub, host, RoomEvent{RoomCode: session.Code()})
	gameService.HandleShowFeedback(hub, host, RoomEvent{RoomCode: session.Code()})

	eventType, payload := nextEvent(t, host)
	assert.Equal(t, "show_feedback", eventType)
	assert.NotNil(t, payload["answers"])
	assertNoEvent(t, host)
}

func TestClearFeedbackBroadcast(t *testing.T) {
	hub, gameService, registry := newTestHub()
	session := registry.Create("vid123", models.Settings{})
	session.StartGame()

	host := addTestClient(hub, "host")
	hub.bindRoom(host, session.Code(), "", true)

	gameService.HandleBroadcastQuestion(hub, host, BroadcastQuestionEvent{
		RoomCode: session.Code(),
		Question: models.Question{Question: "q"},
	})
	nextEvent(t, host)
	gameService.HandleShowFeedback(hub, host, RoomEvent{RoomCode: session.Code()})
	nextEvent(t, host)

	gameService.HandleClearFeedback(hub, host, RoomEvent{RoomCode: session.Code()})
	eventType, _ := nextEvent(t, host)
	assert.Equal(t, "feedback_cleared", eventType)
	assert.Equal(t, models.PhasePlaying, session.Phase())

	// a second clear outside the feedback phase broadcasts nothing
	gameService.HandleClearFeedback(hub, host, RoomEvent{RoomCode: session.Code()})
	assertNoEvent(t, host)
}

func TestAnswerResultScoresAndBroadcasts(t *testing.T) {
	hub, gameService, registry := newTestHub()
	session := registry.Create("vid123", models.Settings{})
	player := session.AddPlayer("alice")

	host := addTestClient(hub, "host")
	hub.bindRoom(host, session.Code(), "", true)

	gameService.HandleAnswerResult(hub, host, AnswerResultEvent{
		RoomCode:  session.Code(),
		PlayerID:  player.ID,
		IsCorrect: true,
	})

	eventType, payload := nextEvent(t, host)
	assert.Equal(t, "answer_result", eventType)
	assert.Equal(t, player.ID, payload["player_id"])
	assert.Equal(t, true, payload["is_correct"])
	assert.Equal(t, float64(100), payload["score"])
}

func TestDisconnectFlagsPlayerOfflineOnce(t *testing.T) {
	hub, gameService, registry := newTestHub()
	session := registry.Create("vid123", models.Settings{})
	player := session.AddPlayer("alice")

	observer := addTestClient(hub, "observer")
	hub.bindRoom(observer, session.Code(), "", true)

	client := addTestClient(hub, "c1")
	hub.bindRoom(client, session.Code(), player.ID, false)

	// mirror Run's unregister branch
	require.True(t, hub.removeClient(client))
	gameService.HandleDisconnect(hub, client)

	eventType, payload := nextEvent(t, observer)
	assert.Equal(t, "player_disconnected", eventType)
	assert.Equal(t, player.ID, payload["player_id"])

	snap := session.Snapshot()
	require.Len(t, snap.Players, 1)
	assert.False(t, snap.Players[0].Connected)

	// an already removed client is not removed twice
	assert.False(t, hub.removeClient(client))
}

func TestDisconnectOfUnboundConnectionIsSilent(t *testing.T) {
	hub, gameService, registry := newTestHub()
	session := registry.Create("vid123", models.Settings{})

	observer := addTestClient(hub, "observer")
	hub.bindRoom(observer, session.Code(), "", true)

	client := addTestClient(hub, "c1")
	require.True(t, hub.removeClient(client))
	gameService.HandleDisconnect(hub, client)

	assertNoEvent(t, observer)
}

func TestSendToRemovedClientIsDropped(t *testing.T) {
	hub, _, _ := newTestHub()
	client := addTestClient(hub, "c1")
	require.True(t, hub.removeClient(client))

	// must not panic on the closed send channel
	hub.SendToClient(client, "pong", nil)
}
