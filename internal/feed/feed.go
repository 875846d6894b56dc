// Package feed supplies candidate news items from RSS sources, filtered by
// title keywords before they reach the dedup engine.
package feed

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"coinsentry/internal/dedup"
)

// Source supplies candidate news items for one pass.
type Source interface {
	FetchNews(ctx context.Context) ([]dedup.Item, error)
}

// Options parameterise the RSS source.
type Options struct {
	URLs       []string
	Keywords   []string
	MaxPerFeed int
	Timeout    time.Duration
	UserAgent  string
}

// RSS fetches and filters entries from configured feeds.
type RSS struct {
	opts     Options
	keywords []string
	parser   *gofeed.Parser
	logger   zerolog.Logger
}

// NewRSS constructs an RSS source.
func NewRSS(opts Options, logger zerolog.Logger) *RSS {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if opts.MaxPerFeed <= 0 {
		opts.MaxPerFeed = 40
	}

	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	if ua := strings.TrimSpace(opts.UserAgent); ua != "" {
		parser.UserAgent = ua
	}

	keywords := make([]string, 0, len(opts.Keywords))
	for _, keyword := range opts.Keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword != "" {
			keywords = append(keywords, keyword)
		}
	}

	return &RSS{
		opts:     opts,
		keywords: keywords,
		parser:   parser,
		logger:   logger.With().Str("component", "feed").Logger(),
	}
}

// FetchNews pulls every configured feed. A feed that fails to download or
// parse is skipped for this pass; the remaining feeds still contribute.
// Entries with an empty title or link never reach the caller.
func (r *RSS) FetchNews(ctx context.Context) ([]dedup.Item, error) {
	items := make([]dedup.Item, 0)
	succeeded := 0

	for _, url := range r.opts.URLs {
		parsed, err := r.parser.ParseURLWithContext(url, ctx)
		if err != nil {
			r.logger.Warn().Err(err).Str("feed", url).Msg("feed unavailable, skipping")
			continue
		}
		succeeded++

		entries := parsed.Items
		if len(entries) > r.opts.MaxPerFeed {
			entries = entries[:r.opts.MaxPerFeed]
		}

		accepted := 0
		for _, entry := range entries {
			title := strings.TrimSpace(entry.Title)
			link := strings.TrimSpace(entry.Link)
			if title == "" || link == "" {
				continue
			}
			if !r.matches(title) {
				continue
			}
			items = append(items, dedup.Item{Title: title, Link: link})
			accepted++
		}

		r.logger.Debug().Str("feed", url).
			Int("entries", len(entries)).
			Int("accepted", accepted).
			Msg("feed processed")
	}

	r.logger.Info().Int("feeds_ok", succeeded).
		Int("feeds_total", len(r.opts.URLs)).
		Int("candidates", len(items)).
		Msg("feeds fetched")
	return items, nil
}

// matches reports whether the title contains any configured keyword. An empty
// keyword list accepts everything.
func (r *RSS) matches(title string) bool {
	if len(r.keywords) == 0 {
		return true
	}
	lowered := strings.ToLower(title)
	for _, keyword := range r.keywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}

var _ Source = (*RSS)(nil)
