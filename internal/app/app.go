package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"coinsentry/internal/alerting"
	"coinsentry/internal/config"
	"coinsentry/internal/detector"
	"coinsentry/internal/feed"
	"coinsentry/internal/market"
	"coinsentry/internal/scheduler"
	"coinsentry/internal/scrape"
	"coinsentry/internal/service"
	"coinsentry/internal/state"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newNewsSource() feed.Source {
	if len(a.Config.Feeds.URLs) == 0 {
		return nil
	}
	return feed.NewRSS(feed.Options{
		URLs:       a.Config.Feeds.URLs,
		Keywords:   a.Config.Feeds.Keywords,
		MaxPerFeed: a.Config.Feeds.MaxPerFeed,
		Timeout:    a.Config.Feeds.RequestTimeout,
		UserAgent:  a.Config.Feeds.UserAgent,
	}, a.Logger)
}

func (a *App) newPriceSources() []market.Source {
	var sources []market.Source
	if len(a.Config.Market.Assets) > 0 {
		sources = append(sources, market.NewClient(market.Options{
			BaseURL:    a.Config.Market.BaseURL,
			Assets:     a.Config.Market.Assets,
			VsCurrency: a.Config.Market.VsCurrency,
			Timeout:    a.Config.Market.RequestTimeout,
			UserAgent:  a.Config.Market.UserAgent,
		}, a.Logger))
	}
	if a.Config.Onchain.Enabled {
		sources = append(sources, market.NewOnchain(market.OnchainOptions{
			RPCURL:      a.Config.Onchain.RPCURL,
			Aggregators: a.Config.Onchain.Aggregators,
			Timeout:     a.Config.Onchain.RequestTimeout,
		}, a.Logger))
	}
	return sources
}

func (a *App) newScraper() scrape.Summarizer {
	if !a.Config.Scrape.Enabled {
		return nil
	}
	return scrape.NewExtractor(scrape.Options{
		MaxChars:  a.Config.Scrape.MaxChars,
		Timeout:   a.Config.Scrape.RequestTimeout,
		UserAgent: a.Config.Scrape.UserAgent,
	})
}

func (a *App) newNotifier() alerting.Notifier {
	cfg := a.Config.Telegram
	return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.SendDelay, cfg.Timeout, a.Logger)
}

func (a *App) newDetector() *detector.Detector {
	cfg := a.Config.Detector
	return detector.New(detector.Options{
		ShortWindow:       cfg.ShortWindow,
		ShortThresholdPct: decimal.NewFromFloat(cfg.ShortThresholdPct),
		LongWindow:        cfg.LongWindow,
		LongThresholdPct:  decimal.NewFromFloat(cfg.LongThresholdPct),
	})
}

func (a *App) openStore(ctx context.Context) (state.Store, error) {
	switch a.Config.State.Backend {
	case "file":
		return state.NewFileStore(a.Config.State.Dir)
	case "postgres":
		pool, err := state.NewPool(ctx, a.Config.Database)
		if err != nil {
			return nil, err
		}
		store, err := state.NewPostgresStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", a.Config.State.Backend)
	}
}

func (a *App) newService(store state.Store, sched *scheduler.Scheduler) *service.Service {
	return service.New(
		a.newNewsSource(),
		a.newPriceSources(),
		a.newScraper(),
		store,
		a.newNotifier(),
		a.newDetector(),
		sched,
		a.Logger,
	)
}

// RunOnce executes a single aggregation pass, the mode used under an
// external scheduler such as cron or CI.
func (a *App) RunOnce(ctx context.Context) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	return a.newService(store, nil).RunOnce(ctx)
}

// Run executes the long-running daemon mode.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc := a.newService(store, sched)

	a.Logger.Info().Msg("starting aggregation service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("aggregation service stopped")
	return nil
}

// ExportOptions hold parameters for exporting price history.
type ExportOptions struct {
	Asset     string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Asset string
	Limit int
}
