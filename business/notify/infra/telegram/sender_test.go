package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cryptoking82/evm-arbitrage-bot/business/notify/app"
)

func testEvent() app.Event {
	return app.Event{
		Type:          app.EventExecutionCompleted,
		OpportunityID: "opp-1",
		DetectionKey:  "testnet:WETH-USDC:uni/sushi",
		Network:       "testnet",
		ProfitPct:     decimal.RequireFromString("1.5"),
		Profit:        decimal.RequireFromString("0.05"),
		Timestamp:     time.Now().UTC(),
	}
}

func TestSendPostsMessage(t *testing.T) {
	var got map[string]string
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	s, err := New("bot-token", "chat-42")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.baseURL = srv.URL

	if err := s.Send(context.Background(), testEvent()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if path != "/botbot-token/sendMessage" {
		t.Fatalf("path = %q", path)
	}
	if got["chat_id"] != "chat-42" {
		t.Fatalf("chat_id = %q", got["chat_id"])
	}
	if got["parse_mode"] != "Markdown" {
		t.Fatalf("parse_mode = %q", got["parse_mode"])
	}
	if !strings.Contains(got["text"], "opp-1") {
		t.Fatalf("text missing opportunity id: %q", got["text"])
	}
}

func TestSendSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"ok":false,"description":"bot was blocked"}`))
	}))
	defer srv.Close()

	s, err := New("bot-token", "chat-42")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.baseURL = srv.URL

	err = s.Send(context.Background(), testEvent())
	if err == nil {
		t.Fatal("expected error for 403 response")
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "blocked") {
		t.Fatalf("error missing status and body: %v", err)
	}
}
