// Package scrape extracts a short plain-text summary from an article page.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoContent indicates the page yielded no usable paragraph text. The
// caller decides whether to send a degraded payload or skip the item.
var ErrNoContent = errors.New("scrape: no usable content")

// Paragraphs shorter than this are navigation chrome, not prose.
const minParagraphLen = 30

// Summarizer produces a summary for an article URL.
type Summarizer interface {
	Summarize(ctx context.Context, url string) (string, error)
}

// Options parameterise the extractor.
type Options struct {
	MaxChars  int
	Timeout   time.Duration
	UserAgent string
}

// Extractor builds summaries from paragraph text.
type Extractor struct {
	opts   Options
	client *http.Client
}

// NewExtractor constructs an extractor.
func NewExtractor(opts Options) *Extractor {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = 420
	}
	return &Extractor{
		opts:   opts,
		client: &http.Client{Timeout: timeout},
	}
}

// Summarize fetches the page and joins its paragraph text, capped at MaxChars
// runes with a trailing ellipsis when truncated.
func (e *Extractor) Summarize(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	if ua := strings.TrimSpace(e.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch article: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse article: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	var parts []string
	doc.Find("p").Each(func(_ int, sel *goquery.Selection) {
		text := strings.Join(strings.Fields(sel.Text()), " ")
		if len(text) > minParagraphLen {
			parts = append(parts, text)
		}
	})

	text := strings.TrimSpace(strings.Join(parts, " "))
	if text == "" {
		return "", ErrNoContent
	}

	runes := []rune(text)
	if len(runes) > e.opts.MaxChars {
		return string(runes[:e.opts.MaxChars]) + "…", nil
	}
	return text, nil
}

var _ Summarizer = (*Extractor)(nil)
