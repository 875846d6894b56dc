package state

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceRecord is the rolling reference point for one tracked asset. It is
// created on the first observation, advanced on every later one, and never
// deleted; a record for an untracked asset is simply left alone.
type PriceRecord struct {
	LastPrice decimal.Decimal `json:"last_price"`
	LastCheck time.Time       `json:"last_check_time"`
}

// PricePoint is one historical observation kept for show/export.
type PricePoint struct {
	AssetID    string          `json:"asset_id"`
	Price      decimal.Decimal `json:"price"`
	ObservedAt time.Time       `json:"observed_at"`
}
