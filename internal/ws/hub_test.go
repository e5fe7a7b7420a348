package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialTestHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	// Wait for the hub to register the client
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.ClientCount() == 0 {
		t.Fatal("Client never registered with hub")
	}
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("Failed to read envelope: %v", err)
	}
	return env
}

func TestBroadcastReachesSubscribedClient(t *testing.T) {
	hub := NewHub()
	conn := dialTestHub(t, hub)

	hub.Broadcast(TopicTrades, map[string]any{"symbol": "AAPL", "action": "buy"})

	env := readEnvelope(t, conn)
	if env.Topic != TopicTrades {
		t.Errorf("Expected topic %q, got %q", TopicTrades, env.Topic)
	}
	if env.Timestamp == "" {
		t.Error("Expected timestamp on envelope")
	}
	data, ok := env.Data.(map[string]any)
	if !ok || data["symbol"] != "AAPL" {
		t.Errorf("Unexpected envelope data: %+v", env.Data)
	}
}

func TestUnsubscribeStopsTopic(t *testing.T) {
	hub := NewHub()
	conn := dialTestHub(t, hub)

	if err := conn.WriteJSON(controlMsg{Action: "unsubscribe", Topic: TopicNews}); err != nil {
		t.Fatalf("Failed to send control message: %v", err)
	}
	// Give the read loop time to apply the change
	time.Sleep(100 * time.Millisecond)

	hub.Broadcast(TopicNews, "ignored")
	hub.Broadcast(TopicPortfolio, "delivered")

	env := readEnvelope(t, conn)
	if env.Topic != TopicPortfolio {
		t.Errorf("Expected only %q after unsubscribe, got %q", TopicPortfolio, env.Topic)
	}
}

func TestPingGetsPong(t *testing.T) {
	hub := NewHub()
	conn := dialTestHub(t, hub)

	if err := conn.WriteJSON(controlMsg{Action: "ping"}); err != nil {
		t.Fatalf("Failed to send ping: %v", err)
	}

	env := readEnvelope(t, conn)
	if env.Topic != "pong" {
		t.Errorf("Expected pong, got %q", env.Topic)
	}
}

func TestSlowClientEvictedAndClosed(t *testing.T) {
	hub := NewHub()
	conn := dialTestHub(t, hub)

	// Flood a client that never reads until its send buffer backs up and
	// Broadcast drops it.
	payload := strings.Repeat("x", 1<<16)
	deadline := time.Now().Add(5 * time.Second)
	for hub.ClientCount() != 0 && time.Now().Before(deadline) {
		hub.Broadcast(TopicMarketData, payload)
	}
	if hub.ClientCount() != 0 {
		t.Fatal("Expected slow client to be evicted")
	}

	// A control message racing the eviction must not crash the hub.
	conn.WriteJSON(controlMsg{Action: "ping"})
	hub.Broadcast(TopicTrades, "after eviction")

	// The server side must actually close the connection, so draining the
	// buffered frames ends in a read error rather than hanging.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func TestClientCountTracksDisconnect(t *testing.T) {
	hub := NewHub()
	conn := dialTestHub(t, hub)

	if hub.ClientCount() != 1 {
		t.Fatalf("Expected 1 client, got %d", hub.ClientCount())
	}

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.ClientCount() != 0 {
		t.Errorf("Expected 0 clients after disconnect, got %d", hub.ClientCount())
	}
}
