package market

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestFetchPricesSuccess(t *testing.T) {
	updatedAt := int64(1756300000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if ids := r.URL.Query().Get("ids"); ids != "bitcoin,ethereum" {
			t.Fatalf("unexpected ids %q", ids)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]map[string]any{
			"bitcoin":  {"usd": 64250.12, "last_updated_at": updatedAt},
			"ethereum": {"usd": 3120.5, "last_updated_at": updatedAt},
		})
	}))
	defer srv.Close()

	client := NewClient(Options{
		BaseURL: srv.URL,
		Assets:  []string{"bitcoin", "ethereum"},
		Timeout: time.Second,
	}, noopLogger())

	observations, err := client.FetchPrices(context.Background())
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}
	if len(observations) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(observations))
	}
	if observations[0].AssetID != "bitcoin" {
		t.Fatalf("expected tracked-asset order, got %s first", observations[0].AssetID)
	}
	if !observations[0].Price.Equal(decimal.NewFromFloat(64250.12)) {
		t.Fatalf("unexpected price %s", observations[0].Price)
	}
	if observations[0].ObservedAt.Unix() != updatedAt {
		t.Fatalf("expected observed_at from last_updated_at, got %s", observations[0].ObservedAt)
	}
}

func TestFetchPricesSkipsMissingAsset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]map[string]any{
			"bitcoin": {"usd": 64000},
		})
	}))
	defer srv.Close()

	client := NewClient(Options{
		BaseURL: srv.URL,
		Assets:  []string{"bitcoin", "delisted-coin"},
		Timeout: time.Second,
	}, noopLogger())

	observations, err := client.FetchPrices(context.Background())
	if err != nil {
		t.Fatalf("missing asset is not an error: %v", err)
	}
	if len(observations) != 1 || observations[0].AssetID != "bitcoin" {
		t.Fatalf("expected only the present asset: %#v", observations)
	}
}

func TestFetchPricesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": map[string]string{"error_message": "rate limited"},
		})
	}))
	defer srv.Close()

	client := NewClient(Options{
		BaseURL: srv.URL,
		Assets:  []string{"bitcoin"},
		Timeout: time.Second,
	}, noopLogger())

	if _, err := client.FetchPrices(context.Background()); err == nil {
		t.Fatal("HTTP 429 should return an error")
	}
}

func TestFetchPricesNoAssets(t *testing.T) {
	client := NewClient(Options{Assets: nil}, noopLogger())
	observations, err := client.FetchPrices(context.Background())
	if err != nil {
		t.Fatalf("no assets should be a no-op: %v", err)
	}
	if len(observations) != 0 {
		t.Fatalf("expected no observations, got %d", len(observations))
	}
}
