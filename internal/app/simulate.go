package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"coinsentry/internal/alerting"
	"coinsentry/internal/detector"
	"coinsentry/internal/state"
)

// SimulateAlert 用给定的新旧价格模拟一次检测并触发告警。 The stored state is
// not touched; the synthetic record exists only for this evaluation.
func (a *App) SimulateAlert(ctx context.Context, asset string, oldPrice, newPrice decimal.Decimal, elapsed time.Duration) error {
	det := a.newDetector()
	notifier := a.newNotifier()

	now := time.Now().UTC()
	rec := &state.PriceRecord{LastPrice: oldPrice, LastCheck: now.Add(-elapsed)}
	obs := detector.Observation{AssetID: asset, Price: newPrice, ObservedAt: now}

	events, _ := det.Evaluate(rec, obs)
	if len(events) == 0 {
		a.Logger.Info().Str("asset", asset).Dur("elapsed", elapsed).Msg("no rule fired for the simulated change")
		return nil
	}

	for _, event := range events {
		if err := notifier.Notify(ctx, alerting.RenderAlert(event)); err != nil {
			return err
		}
		a.Logger.Info().Str("asset", asset).Str("kind", string(event.Kind)).Msg("simulated alert delivered")
	}
	return nil
}
