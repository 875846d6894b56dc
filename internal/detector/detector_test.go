package detector

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"coinsentry/internal/state"
)

func defaultDetector() *Detector {
	return New(Options{
		ShortWindow:       4 * time.Hour,
		ShortThresholdPct: decimal.NewFromInt(5),
		LongWindow:        24 * time.Hour,
		LongThresholdPct:  decimal.NewFromInt(10),
	})
}

func record(price int64, at time.Time) *state.PriceRecord {
	return &state.PriceRecord{LastPrice: decimal.NewFromInt(price), LastCheck: at}
}

func TestFirstObservationNeverAlerts(t *testing.T) {
	d := defaultDetector()
	now := time.Now().UTC()

	obs := Observation{AssetID: "bitcoin", Price: decimal.NewFromInt(1000000), ObservedAt: now}
	events, updated := d.Evaluate(nil, obs)
	if len(events) != 0 {
		t.Fatalf("first observation must not alert, got %d events", len(events))
	}
	if !updated.LastPrice.Equal(obs.Price) || !updated.LastCheck.Equal(now) {
		t.Fatalf("record not initialised from observation: %+v", updated)
	}
}

func TestShortWindowFires(t *testing.T) {
	d := defaultDetector()
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	obs := Observation{AssetID: "bitcoin", Price: decimal.NewFromInt(106), ObservedAt: start.Add(time.Minute)}
	events, updated := d.Evaluate(record(100, start), obs)

	if len(events) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(events))
	}
	ev := events[0]
	if ev.Kind != ShortWindow {
		t.Fatalf("expected short window alert, got %s", ev.Kind)
	}
	if !ev.PctChange.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("expected pct change 6, got %s", ev.PctChange)
	}
	if ev.Elapsed != time.Minute {
		t.Fatalf("expected elapsed 1m, got %s", ev.Elapsed)
	}
	if !updated.LastPrice.Equal(obs.Price) {
		t.Fatalf("record did not advance: %s", updated.LastPrice)
	}
}

func TestLongWindowFires(t *testing.T) {
	d := defaultDetector()
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	obs := Observation{AssetID: "bitcoin", Price: decimal.NewFromInt(111), ObservedAt: start.Add(25 * time.Hour)}
	events, _ := d.Evaluate(record(100, start), obs)

	if len(events) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(events))
	}
	ev := events[0]
	if ev.Kind != LongWindow {
		t.Fatalf("expected long window alert, got %s", ev.Kind)
	}
	if !ev.PctChange.Equal(decimal.NewFromInt(11)) {
		t.Fatalf("expected pct change 11, got %s", ev.PctChange)
	}
}

func TestSubThresholdAdvancesWithoutAlert(t *testing.T) {
	d := defaultDetector()
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	at := start.Add(time.Minute)

	obs := Observation{AssetID: "bitcoin", Price: decimal.NewFromInt(104), ObservedAt: at}
	events, updated := d.Evaluate(record(100, start), obs)

	if len(events) != 0 {
		t.Fatalf("4%% change below both thresholds must not alert, got %d events", len(events))
	}
	if !updated.LastPrice.Equal(decimal.NewFromInt(104)) || !updated.LastCheck.Equal(at) {
		t.Fatalf("record must still advance: %+v", updated)
	}
}

func TestThresholdIsInclusive(t *testing.T) {
	d := defaultDetector()
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// Exactly 5% within the short window.
	obs := Observation{AssetID: "bitcoin", Price: decimal.NewFromInt(105), ObservedAt: start.Add(time.Hour)}
	events, _ := d.Evaluate(record(100, start), obs)
	if len(events) != 1 || events[0].Kind != ShortWindow {
		t.Fatalf("change of exactly the threshold must fire: %#v", events)
	}
}

func TestNegativeChangeUsesAbsoluteValue(t *testing.T) {
	d := defaultDetector()
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	obs := Observation{AssetID: "bitcoin", Price: decimal.NewFromInt(94), ObservedAt: start.Add(time.Minute)}
	events, _ := d.Evaluate(record(100, start), obs)
	if len(events) != 1 {
		t.Fatalf("-6%% should fire the short rule, got %d events", len(events))
	}
	if events[0].PctChange.Sign() >= 0 {
		t.Fatalf("pct change should keep its sign, got %s", events[0].PctChange)
	}
}

func TestBothRulesMayFire(t *testing.T) {
	// Overlapping windows: short window longer than the long window.
	d := New(Options{
		ShortWindow:       48 * time.Hour,
		ShortThresholdPct: decimal.NewFromInt(5),
		LongWindow:        24 * time.Hour,
		LongThresholdPct:  decimal.NewFromInt(10),
	})
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	obs := Observation{AssetID: "bitcoin", Price: decimal.NewFromInt(112), ObservedAt: start.Add(25 * time.Hour)}
	events, _ := d.Evaluate(record(100, start), obs)

	if len(events) != 2 {
		t.Fatalf("expected both rules to fire, got %d events", len(events))
	}
	if events[0].Kind != ShortWindow || events[1].Kind != LongWindow {
		t.Fatalf("unexpected kinds: %s, %s", events[0].Kind, events[1].Kind)
	}
}

func TestGapBetweenWindowsNeverAlerts(t *testing.T) {
	d := defaultDetector()
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// 12h is past the short window but before the long one.
	obs := Observation{AssetID: "bitcoin", Price: decimal.NewFromInt(150), ObservedAt: start.Add(12 * time.Hour)}
	events, _ := d.Evaluate(record(100, start), obs)
	if len(events) != 0 {
		t.Fatalf("elapsed between the windows must not alert, got %d events", len(events))
	}
}

func TestZeroBaselineRecovers(t *testing.T) {
	d := defaultDetector()
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rec := &state.PriceRecord{LastPrice: decimal.Zero, LastCheck: start}

	obs := Observation{AssetID: "bitcoin", Price: decimal.NewFromInt(100), ObservedAt: start.Add(time.Minute)}
	events, updated := d.Evaluate(rec, obs)
	if len(events) != 0 {
		t.Fatalf("zero baseline must not alert, got %d events", len(events))
	}
	if !updated.LastPrice.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("record must advance past the zero baseline: %+v", updated)
	}
}
