package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func rssDocument(entries ...[2]string) string {
	body := `<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>test</title>`
	for _, entry := range entries {
		body += fmt.Sprintf("<item><title>%s</title><link>%s</link></item>", entry[0], entry[1])
	}
	return body + "</channel></rss>"
}

func TestFetchNewsFiltersByKeyword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssDocument(
			[2]string{"Bitcoin breaks new high", "https://example.com/btc"},
			[2]string{"Local football results", "https://example.com/sports"},
			[2]string{"SEC delays ETF ruling", "https://example.com/etf"},
		))
	}))
	defer srv.Close()

	src := NewRSS(Options{
		URLs:     []string{srv.URL},
		Keywords: []string{"bitcoin", "etf"},
		Timeout:  time.Second,
	}, zerolog.Nop())

	items, err := src.FetchNews(context.Background())
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 matching items, got %d", len(items))
	}
	if items[0].Link != "https://example.com/btc" || items[1].Link != "https://example.com/etf" {
		t.Fatalf("unexpected items: %#v", items)
	}
}

func TestFetchNewsDropsInvalidEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssDocument(
			[2]string{"", "https://example.com/untitled"},
			[2]string{"Bitcoin dips", ""},
			[2]string{"Bitcoin recovers", "https://example.com/ok"},
		))
	}))
	defer srv.Close()

	src := NewRSS(Options{URLs: []string{srv.URL}, Timeout: time.Second}, zerolog.Nop())

	items, err := src.FetchNews(context.Background())
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}
	if len(items) != 1 || items[0].Link != "https://example.com/ok" {
		t.Fatalf("entries without title or link must be dropped: %#v", items)
	}
}

func TestFetchNewsCapsEntriesPerFeed(t *testing.T) {
	entries := make([][2]string, 0, 10)
	for i := 0; i < 10; i++ {
		entries = append(entries, [2]string{
			fmt.Sprintf("Bitcoin story %d", i),
			fmt.Sprintf("https://example.com/%d", i),
		})
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssDocument(entries...))
	}))
	defer srv.Close()

	src := NewRSS(Options{URLs: []string{srv.URL}, MaxPerFeed: 3, Timeout: time.Second}, zerolog.Nop())

	items, err := src.FetchNews(context.Background())
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected the per-feed cap to apply, got %d items", len(items))
	}
}

func TestFetchNewsSkipsFailingFeed(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssDocument([2]string{"Bitcoin steady", "https://example.com/steady"}))
	}))
	defer good.Close()

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	src := NewRSS(Options{URLs: []string{bad.URL, good.URL}, Timeout: time.Second}, zerolog.Nop())

	items, err := src.FetchNews(context.Background())
	if err != nil {
		t.Fatalf("one failing feed must not fail the pass: %v", err)
	}
	if len(items) != 1 || items[0].Link != "https://example.com/steady" {
		t.Fatalf("expected items from the healthy feed only: %#v", items)
	}
}
