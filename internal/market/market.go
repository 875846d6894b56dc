// Package market supplies price observations for tracked assets, either from
// a spot price HTTP API or from on-chain Chainlink aggregators.
package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"coinsentry/internal/detector"
)

// Source supplies fresh price observations for one pass.
type Source interface {
	FetchPrices(ctx context.Context) ([]detector.Observation, error)
}

// Options parameterise the spot price client.
type Options struct {
	BaseURL    string
	Assets     []string
	VsCurrency string
	Timeout    time.Duration
	UserAgent  string
}

// Client fetches spot prices from a CoinGecko-compatible simple price API.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs a spot price client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}
	if opts.VsCurrency == "" {
		opts.VsCurrency = "usd"
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "market_source").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchPrices retrieves one observation per tracked asset. An asset absent
// from the response is skipped for this pass; that is missing data, not an
// error.
func (c *Client) FetchPrices(ctx context.Context) ([]detector.Observation, error) {
	if len(c.opts.Assets) == 0 {
		return nil, nil
	}

	query := url.Values{}
	query.Set("ids", strings.Join(c.opts.Assets, ","))
	query.Set("vs_currencies", c.opts.VsCurrency)
	query.Set("include_last_updated_at", "true")

	endpoint := c.baseURL + "/simple/price?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}

	var quotes map[string]map[string]json.Number
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	if err := decoder.Decode(&quotes); err != nil {
		return nil, fmt.Errorf("decode price response: %w", err)
	}

	now := time.Now().UTC()
	observations := make([]detector.Observation, 0, len(c.opts.Assets))
	for _, asset := range c.opts.Assets {
		quote, ok := quotes[asset]
		if !ok {
			c.logger.Debug().Str("asset", asset).Msg("asset missing from price response, skipping")
			continue
		}

		raw, ok := quote[c.opts.VsCurrency]
		if !ok {
			c.logger.Warn().Str("asset", asset).Str("currency", c.opts.VsCurrency).
				Msg("currency missing from quote, skipping asset")
			continue
		}
		price, convErr := decimal.NewFromString(raw.String())
		if convErr != nil {
			c.logger.Warn().Err(convErr).Str("asset", asset).Msg("unparseable price, skipping asset")
			continue
		}

		observedAt := now
		if ts, ok := quote["last_updated_at"]; ok {
			if unix, err := ts.Int64(); err == nil && unix > 0 {
				observedAt = time.Unix(unix, 0).UTC()
			}
		}

		observations = append(observations, detector.Observation{
			AssetID:    asset,
			Price:      price,
			ObservedAt: observedAt,
		})
	}

	return observations, nil
}

type errorResponse struct {
	Error  string `json:"error"`
	Status struct {
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Status.ErrorMessage != "" {
			return fmt.Errorf("price api error (%d): %s", status, apiErr.Status.ErrorMessage)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("price api error (%d): %s", status, apiErr.Error)
		}
	}
	return fmt.Errorf("price api error (%d)", status)
}

var _ Source = (*Client)(nil)
