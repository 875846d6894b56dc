// Package detector implements the per-asset price-change rules: two
// independent percentage thresholds evaluated over short and long time
// windows against the last stored observation.
package detector

import (
	"time"

	"github.com/shopspring/decimal"

	"coinsentry/internal/state"
)

// Kind labels which window rule produced an alert.
type Kind string

const (
	// ShortWindow fires on fast moves: elapsed below the short window and
	// the absolute change at or above the short threshold.
	ShortWindow Kind = "short_window"
	// LongWindow fires on sustained moves: elapsed at or above the long
	// window and the absolute change at or above the long threshold.
	LongWindow Kind = "long_window"
)

// Observation is one fresh price reading for a tracked asset.
type Observation struct {
	AssetID    string
	Price      decimal.Decimal
	ObservedAt time.Time
}

// AlertEvent is a detected threshold crossing, handed to the notifier and
// never persisted.
type AlertEvent struct {
	AssetID   string
	Kind      Kind
	OldPrice  decimal.Decimal
	NewPrice  decimal.Decimal
	PctChange decimal.Decimal
	Elapsed   time.Duration
}

// Options parameterise the detector rules.
type Options struct {
	ShortWindow       time.Duration
	ShortThresholdPct decimal.Decimal
	LongWindow        time.Duration
	LongThresholdPct  decimal.Decimal
}

// Detector evaluates observations against stored price records.
type Detector struct {
	opts Options
}

var hundred = decimal.NewFromInt(100)

// New constructs a detector.
func New(opts Options) *Detector {
	return &Detector{opts: opts}
}

// Evaluate compares obs against the stored record and returns any alerts plus
// the advanced record. A nil record means the asset was never observed: no
// alert is possible and the observation becomes the first record.
//
// The reference point always advances to the latest observation, even when no
// rule fires. Known limitation: an asset drifting through many sub-threshold
// steps inside the long window resets its comparison baseline on every pass
// and never alerts.
func (d *Detector) Evaluate(rec *state.PriceRecord, obs Observation) ([]AlertEvent, state.PriceRecord) {
	updated := state.PriceRecord{LastPrice: obs.Price, LastCheck: obs.ObservedAt}
	if rec == nil {
		return nil, updated
	}

	// A non-positive stored price leaves the change undefined; recover by
	// advancing the record as if this were a first observation.
	if !rec.LastPrice.IsPositive() {
		return nil, updated
	}

	elapsed := obs.ObservedAt.Sub(rec.LastCheck)
	pctChange := obs.Price.Sub(rec.LastPrice).Div(rec.LastPrice).Mul(hundred)
	absChange := pctChange.Abs()

	var events []AlertEvent
	if elapsed < d.opts.ShortWindow && absChange.GreaterThanOrEqual(d.opts.ShortThresholdPct) {
		events = append(events, AlertEvent{
			AssetID:   obs.AssetID,
			Kind:      ShortWindow,
			OldPrice:  rec.LastPrice,
			NewPrice:  obs.Price,
			PctChange: pctChange,
			Elapsed:   elapsed,
		})
	}
	if elapsed >= d.opts.LongWindow && absChange.GreaterThanOrEqual(d.opts.LongThresholdPct) {
		events = append(events, AlertEvent{
			AssetID:   obs.AssetID,
			Kind:      LongWindow,
			OldPrice:  rec.LastPrice,
			NewPrice:  obs.Price,
			PctChange: pctChange,
			Elapsed:   elapsed,
		})
	}

	return events, updated
}
