package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testFeedConfig(url string) FeedConfig {
	cfg := DefaultFeedConfig(url)
	cfg.ReconnectBaseWait = 10 * time.Millisecond
	cfg.ReconnectMaxWait = 50 * time.Millisecond
	return cfg
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSubscribeOnlySendsUnsubscribeFirst(t *testing.T) {
	var mu sync.Mutex
	var requests []request

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req request
			if err := json.Unmarshal(msg, &req); err != nil {
				continue
			}
			mu.Lock()
			requests = append(requests, req)
			mu.Unlock()
		}
	})
	defer server.Close()

	feed := NewFeed(testFeedConfig(wsURL(server)), Handlers{}, nil)
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer feed.Stop(context.Background())

	if err := feed.SubscribeOnly("BTC/USD"); err != nil {
		t.Fatalf("SubscribeOnly failed: %v", err)
	}
	if err := feed.SubscribeOnly("ETH/USD"); err != nil {
		t.Fatalf("SubscribeOnly (switch) failed: %v", err)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(requests) >= 4
	}, "server never saw all subscription frames")

	mu.Lock()
	defer mu.Unlock()
	want := []request{
		{Event: "unsubscribe_all"},
		{Event: "subscribe", Symbol: "BTC/USD"},
		{Event: "unsubscribe_all"},
		{Event: "subscribe", Symbol: "ETH/USD"},
	}
	for i, w := range want {
		if requests[i] != w {
			t.Errorf("requests[%d] = %+v, want %+v", i, requests[i], w)
		}
	}
	if feed.Symbol() != "ETH/USD" {
		t.Errorf("Symbol() = %q, want ETH/USD", feed.Symbol())
	}
}

func TestMarketDataForCurrentSymbolDispatched(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		// Wait for the subscribe, then emit one matching and one stale tick.
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req request
			if json.Unmarshal(msg, &req) == nil && req.Event == "subscribe" {
				conn.WriteMessage(websocket.TextMessage,
					[]byte(`{"event": "market_data", "data": {"symbol": "ETH/USD", "price": 3000}}`))
				conn.WriteMessage(websocket.TextMessage,
					[]byte(`{"event": "market_data", "data": {"symbol": "BTC/USD", "price": 65000, "timestamp": 1700000000000}}`))
			}
		}
	})
	defer server.Close()

	var mu sync.Mutex
	var ticks []MarketData
	handlers := Handlers{MarketData: func(md MarketData) {
		mu.Lock()
		ticks = append(ticks, md)
		mu.Unlock()
	}}

	feed := NewFeed(testFeedConfig(wsURL(server)), handlers, nil)
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer feed.Stop(context.Background())

	if err := feed.SubscribeOnly("BTC/USD"); err != nil {
		t.Fatalf("SubscribeOnly failed: %v", err)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ticks) >= 1
	}, "handler never received the BTC tick")

	mu.Lock()
	defer mu.Unlock()
	if len(ticks) != 1 {
		t.Fatalf("delivered %d ticks, want 1 (ETH tick dropped)", len(ticks))
	}
	if ticks[0].Symbol != "BTC/USD" || ticks[0].Price != 65000 {
		t.Errorf("tick = %+v, want the BTC tick", ticks[0])
	}

	_, dropped := feed.Stats()
	if dropped != 1 {
		t.Errorf("droppedStale = %d, want 1", dropped)
	}
}

func TestReconnectResubscribes(t *testing.T) {
	var mu sync.Mutex
	var subscribes int
	var dropped bool

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req request
			if json.Unmarshal(msg, &req) != nil || req.Event != "subscribe" {
				continue
			}
			mu.Lock()
			subscribes++
			first := subscribes == 1 && !dropped
			if first {
				dropped = true
			}
			mu.Unlock()
			// Kill the first connection right after its subscribe; the feed
			// must come back and subscribe again on its own.
			if first {
				conn.Close()
				return
			}
		}
	})
	defer server.Close()

	feed := NewFeed(testFeedConfig(wsURL(server)), Handlers{}, nil)
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer feed.Stop(context.Background())

	if err := feed.SubscribeOnly("BTC/USD"); err != nil {
		t.Fatalf("SubscribeOnly failed: %v", err)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return subscribes >= 2
	}, "feed never re-subscribed after reconnect")
}

func TestStartWithUnreachableServerIsNotFatal(t *testing.T) {
	feed := NewFeed(testFeedConfig("ws://127.0.0.1:1/ws"), Handlers{}, nil)
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start failed for unreachable server: %v", err)
	}

	// A subscription made while disconnected is recorded for replay.
	if err := feed.SubscribeOnly("SOL/USD"); err != nil {
		t.Fatalf("SubscribeOnly while disconnected failed: %v", err)
	}
	if feed.Symbol() != "SOL/USD" {
		t.Errorf("Symbol() = %q, want SOL/USD", feed.Symbol())
	}
	if feed.Connected() {
		t.Error("Connected() = true, want false")
	}

	if err := feed.Stop(context.Background()); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}
