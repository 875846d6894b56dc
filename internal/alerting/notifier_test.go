package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"coinsentry/internal/dedup"
	"coinsentry/internal/detector"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]any)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, 0, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), Message{Text: "<b>hello</b>"}); err != nil {
		t.Fatalf("notify should succeed: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("unexpected chat_id: %#v", received)
	}
	if received["parse_mode"] != "HTML" {
		t.Fatalf("expected HTML parse mode: %#v", received)
	}
	if received["text"] == "" {
		t.Fatal("text should be non-empty")
	}
}

func TestTelegramNotifierNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, 0, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), Message{Text: "x"}); err == nil {
		t.Fatal("ok=false should return an error")
	}
}

func TestTelegramNotifierThrottles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	delay := 50 * time.Millisecond
	notifier := NewTelegramNotifier("token", "chat", srv.URL, delay, time.Second, testLogger())

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := notifier.Notify(context.Background(), Message{Text: "x"}); err != nil {
			t.Fatalf("notify %d failed: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 2*delay {
		t.Fatalf("three sends should take at least two delays, took %s", elapsed)
	}
}

func TestRenderNewsEscapesHTML(t *testing.T) {
	msg := RenderNews(dedup.Item{
		Title: "Bitcoin <up> & away",
		Link:  "https://example.com/a",
	}, "A summary with <tags>.")

	if strings.Contains(msg.Text, "<up>") {
		t.Fatalf("title not escaped: %q", msg.Text)
	}
	if !strings.Contains(msg.Text, "&lt;tags&gt;") {
		t.Fatalf("summary not escaped: %q", msg.Text)
	}
	if !strings.Contains(msg.Text, `<a href="https://example.com/a">`) {
		t.Fatalf("link missing: %q", msg.Text)
	}
}

func TestRenderAlertDirection(t *testing.T) {
	down := RenderAlert(detector.AlertEvent{
		AssetID:   "bitcoin",
		Kind:      detector.ShortWindow,
		OldPrice:  decimal.NewFromInt(100),
		NewPrice:  decimal.NewFromInt(94),
		PctChange: decimal.NewFromInt(-6),
		Elapsed:   time.Minute,
	})
	if !strings.HasPrefix(down.Text, "📉") {
		t.Fatalf("negative change should use the down emoji: %q", down.Text)
	}
	if !strings.Contains(down.Text, "-6.00%") {
		t.Fatalf("pct change missing: %q", down.Text)
	}
	if !strings.Contains(down.Text, "short window") {
		t.Fatalf("rule description missing: %q", down.Text)
	}
}
