package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/game-leaderboard/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSummary() domain.StatsSummary {
	return domain.StatsSummary{
		Subject: "GameLeaderboard - Ranking Update",
		Body:    "Rankings calculated successfully!",
		Result: domain.BatchStatsResult{
			GamesProcessed: 2,
			TotalScores:    3,
			GameStats: map[string]domain.GameStats{
				"g1": {TotalPlayers: 2, TopScore: 90, TopPlayer: "Alice", TopPlayerID: "p1", AverageScore: 60},
				"g2": {TotalPlayers: 1, TopScore: 10, TopPlayer: "Bob", TopPlayerID: "p2", AverageScore: 10},
			},
		},
	}
}

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(discardLogger())
	go hub.Run()
	t.Cleanup(hub.Stop)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, discardLogger(), w, r)
	}))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_SubscriberReceivesGameStats(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeSubscribe, GameID: "g1"}))
	ack := readMessage(t, conn)
	assert.Equal(t, MessageTypeSubscribed, ack["type"])
	assert.Equal(t, "g1", ack["gameId"])
	require.Eventually(t, func() bool { return hub.SubscriberCount("g1") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Notify(context.Background(), testSummary()))

	summary := readMessage(t, conn)
	assert.Equal(t, MessageTypeStatsSummary, summary["type"])
	data := summary["data"].(map[string]any)
	assert.Equal(t, "GameLeaderboard - Ranking Update", data["subject"])
	assert.Equal(t, float64(2), data["gamesProcessed"])

	game := readMessage(t, conn)
	assert.Equal(t, MessageTypeGameStats, game["type"])
	assert.Equal(t, "g1", game["gameId"])
	assert.Equal(t, float64(90), game["data"].(map[string]any)["topScore"])
}

func TestHub_PingAndBadInput(t *testing.T) {
	_, srv := startHub(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, MessageTypeError, readMessage(t, conn)["type"])

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeSubscribe}))
	assert.Equal(t, MessageTypeError, readMessage(t, conn)["type"])

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypePing}))
	assert.Equal(t, MessageTypePong, readMessage(t, conn)["type"])
}

func TestHub_UnregisterOnDisconnect(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv)

	require.Eventually(t, func() bool { return hub.TotalConnections() == 1 }, time.Second, 10*time.Millisecond)
	conn.Close()
	assert.Eventually(t, func() bool { return hub.TotalConnections() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_NotifyAfterStop(t *testing.T) {
	hub := NewHub(discardLogger())
	hub.Stop()

	err := hub.Notify(context.Background(), testSummary())
	assert.ErrorIs(t, err, ErrHubStopped)
}

func TestHub_NotifyQueueFull(t *testing.T) {
	hub := NewHub(discardLogger())
	defer hub.Stop()

	for i := 0; i < cap(hub.broadcast); i++ {
		require.NoError(t, hub.Notify(context.Background(), testSummary()))
	}
	assert.ErrorIs(t, hub.Notify(context.Background(), testSummary()), ErrBroadcastFull)
}
