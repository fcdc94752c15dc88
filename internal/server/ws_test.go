package server

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/createMonster/arbradar-sub000/internal/domain"
)

func TestWebsocketReceivesRefreshBroadcast(t *testing.T) {
	srv := newTestServer(t)

	wsURL := strings.Replace(srv.URL, "http://", "ws://", 1) + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// A fresh aggregation fans out to connected clients via OnRefresh.
	resp, err := http.Post(srv.URL+"/api/update", "application/json", nil)
	if err != nil {
		t.Fatalf("trigger update: %v", err)
	}
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg refreshMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if msg.Type != "spreads" {
		t.Fatalf("message type = %q", msg.Type)
	}
	if len(msg.Spreads) != 1 || msg.Spreads[0].Symbol != "BTC/USDT" {
		t.Fatalf("spreads = %v", msg.Spreads)
	}
}

func TestHubBroadcastAndCloseAreSafeWithoutClients(t *testing.T) {
	hub := newHub(zerolog.Nop())
	hub.Broadcast(domain.AggregationResult{
		RouteSets: []domain.SymbolRouteSet{{Symbol: "BTC/USDT"}},
		Timestamp: time.Now(),
	})
	hub.Close()
	hub.Broadcast(domain.AggregationResult{Timestamp: time.Now()})
}
