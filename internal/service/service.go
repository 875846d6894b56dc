// Package service orchestrates one aggregation pass: news through the dedup
// engine, price observations through the change detector, notifications out,
// and the persistent store updated once at the end.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"coinsentry/internal/alerting"
	"coinsentry/internal/dedup"
	"coinsentry/internal/detector"
	"coinsentry/internal/feed"
	"coinsentry/internal/market"
	"coinsentry/internal/scheduler"
	"coinsentry/internal/scrape"
	"coinsentry/internal/state"
)

// Sent when the scraper fails or is disabled. Choosing a degraded payload
// over skipping the item is an orchestrator policy, not a scraper default.
const fallbackSummary = "Summary unavailable."

// Service drives the aggregation passes.
type Service struct {
	news     feed.Source
	prices   []market.Source
	scraper  scrape.Summarizer
	store    state.Store
	notifier alerting.Notifier
	detector *detector.Detector
	sched    *scheduler.Scheduler
	logger   zerolog.Logger
}

// New constructs the service. scraper and sched may be nil: no scraper means
// every news item carries the fallback summary, no scheduler restricts the
// service to single passes via RunOnce.
func New(news feed.Source, prices []market.Source, scraper scrape.Summarizer, store state.Store, notifier alerting.Notifier, det *detector.Detector, sched *scheduler.Scheduler, logger zerolog.Logger) *Service {
	return &Service{
		news:     news,
		prices:   prices,
		scraper:  scraper,
		store:    store,
		notifier: notifier,
		detector: det,
		sched:    sched,
		logger:   logger.With().Str("component", "service").Logger(),
	}
}

// Run executes passes on the configured schedule until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.sched == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.sched.Run(ctx, func(ctx context.Context, _ time.Time) error {
		return s.RunOnce(ctx)
	})
}

// RunOnce performs one linear pass. Per-item and per-source failures are
// isolated; store corruption and the final save abort the pass.
func (s *Service) RunOnce(ctx context.Context) error {
	seen, records, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	sent := s.processNews(ctx, seen)
	fired, points := s.processPrices(ctx, records)

	if len(points) > 0 {
		if err := s.store.AppendHistory(ctx, points); err != nil {
			s.logger.Error().Err(err).Msg("failed to append price history")
		}
	}

	if err := s.store.Save(ctx, seen, records); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	s.logger.Info().Int("news_sent", sent).
		Int("alerts_fired", fired).
		Int("seen_total", seen.Len()).
		Msg("pass complete")
	return nil
}

// processNews delivers fresh items one at a time. An id is committed after
// its delivery attempt completes, successfully or not; a failed delivery is
// never retried on a later pass.
func (s *Service) processNews(ctx context.Context, seen state.SeenSet) int {
	if s.news == nil {
		return 0
	}

	items, err := s.news.FetchNews(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("news source unavailable, skipping news path")
		return 0
	}

	fresh := dedup.FilterNew(items, seen)
	s.logger.Debug().Int("candidates", len(items)).Int("fresh", len(fresh)).Msg("news deduplicated")

	sent := 0
	for _, item := range fresh {
		summary := s.summarize(ctx, item.Link)
		message := alerting.RenderNews(item, summary)

		if err := s.notifier.Notify(ctx, message); err != nil {
			s.logger.Error().Err(err).Str("link", item.Link).Msg("news delivery failed")
		} else {
			sent++
		}
		dedup.Commit(item.Link, seen)
	}
	return sent
}

func (s *Service) summarize(ctx context.Context, url string) string {
	if s.scraper == nil {
		return fallbackSummary
	}
	summary, err := s.scraper.Summarize(ctx, url)
	if err != nil {
		s.logger.Warn().Err(err).Str("link", url).Msg("summary extraction failed, sending degraded payload")
		return fallbackSummary
	}
	return summary
}

// processPrices folds observations into the price records and notifies every
// triggered alert. The record advances whether or not a rule fired.
func (s *Service) processPrices(ctx context.Context, records map[string]state.PriceRecord) (int, []state.PricePoint) {
	fired := 0
	var points []state.PricePoint

	for _, source := range s.prices {
		observations, err := source.FetchPrices(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("price source unavailable, skipping")
			continue
		}

		for _, obs := range observations {
			var rec *state.PriceRecord
			if existing, ok := records[obs.AssetID]; ok {
				rec = &existing
			}

			events, updated := s.detector.Evaluate(rec, obs)
			records[obs.AssetID] = updated
			points = append(points, state.PricePoint{
				AssetID:    obs.AssetID,
				Price:      obs.Price,
				ObservedAt: obs.ObservedAt,
			})

			for _, event := range events {
				if err := s.notifier.Notify(ctx, alerting.RenderAlert(event)); err != nil {
					s.logger.Error().Err(err).Str("asset", event.AssetID).
						Str("kind", string(event.Kind)).Msg("alert delivery failed")
					continue
				}
				fired++
				s.logger.Info().Str("asset", event.AssetID).
					Str("kind", string(event.Kind)).
					Str("pct_change", event.PctChange.StringFixed(2)).
					Msg("alert delivered")
			}
		}
	}

	return fired, points
}
