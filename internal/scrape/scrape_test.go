package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestSummarizeJoinsParagraphs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<script>var tracking = true;</script>
			<p>Short.</p>
			<p>Bitcoin rallied sharply after the announcement this morning.</p>
			<p>Analysts   expect further    volatility in the coming days ahead.</p>
		</body></html>`)
	}))
	defer srv.Close()

	ex := NewExtractor(Options{MaxChars: 420, Timeout: time.Second})
	summary, err := ex.Summarize(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("summarize should succeed: %v", err)
	}
	want := "Bitcoin rallied sharply after the announcement this morning. Analysts expect further volatility in the coming days ahead."
	if summary != want {
		t.Fatalf("unexpected summary:\n got: %q\nwant: %q", summary, want)
	}
}

func TestSummarizeTruncatesWithEllipsis(t *testing.T) {
	long := strings.Repeat("Markets keep moving higher and higher today. ", 30)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<html><body><p>%s</p></body></html>", long)
	}))
	defer srv.Close()

	ex := NewExtractor(Options{MaxChars: 100, Timeout: time.Second})
	summary, err := ex.Summarize(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("summarize should succeed: %v", err)
	}
	if !strings.HasSuffix(summary, "…") {
		t.Fatalf("truncated summary should end with an ellipsis: %q", summary)
	}
	if got := utf8.RuneCountInString(summary); got != 101 {
		t.Fatalf("expected 100 runes plus ellipsis, got %d", got)
	}
}

func TestSummarizeEmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div>no paragraphs here</div></body></html>`)
	}))
	defer srv.Close()

	ex := NewExtractor(Options{Timeout: time.Second})
	if _, err := ex.Summarize(context.Background(), srv.URL); !errors.Is(err, ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
}

func TestSummarizeHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ex := NewExtractor(Options{Timeout: time.Second})
	if _, err := ex.Summarize(context.Background(), srv.URL); err == nil {
		t.Fatal("HTTP 404 should return an error")
	}
}
