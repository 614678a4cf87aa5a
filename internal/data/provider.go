// Package data supplies the market inputs the analysis core consumes: spot
// prices, a scalar implied volatility, and per-strike liquidity. Every value
// crosses the boundary tagged with its source so callers can always tell a
// live exchange number from an estimate or a fallback.
package data

import (
	"errors"

	"github.com/secbitchris/optionscalculator/internal/pricing"
)

// Source tags where a market value came from.
type Source string

const (
	SourceLive      Source = "live"
	SourceFallback  Source = "fallback"
	SourceReal      Source = "real"
	SourceEstimated Source = "estimated"
)

// ErrUpstreamUnavailable marks a data feed that could not be reached or
// returned nothing usable. Providers wrap it so the core can degrade to its
// documented fallbacks instead of failing a whole analysis.
var ErrUpstreamUnavailable = errors.New("upstream market data unavailable")

// SpotQuote is a spot price plus its provenance.
type SpotQuote struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Source Source  `json:"source"`
}

// IVQuote is a scalar implied volatility plus the name of the strategy that
// produced it (vix, vix9d, historical, default).
type IVQuote struct {
	Symbol string  `json:"symbol"`
	IV     float64 `json:"iv"`
	Source string  `json:"source"`
}

// Liquidity is the per-strike liquidity record. Open interest may be real
// (exchange-reported) or estimated; volume is always estimated on the free
// data tier and is labeled as such rather than hidden.
type Liquidity struct {
	OpenInterest int64   `json:"open_interest"`
	Volume       int64   `json:"volume"`
	Score        float64 `json:"liquidity_score"`
	OISource     Source  `json:"oi_source"`
	VolumeSource Source  `json:"volume_source"`
	Tier         string  `json:"liquidity_tier"`
}

// PriceSource resolves the current spot price for a symbol.
type PriceSource interface {
	SpotPrice(symbol string) (SpotQuote, error)
}

// IVSource resolves a scalar implied volatility for a symbol.
type IVSource interface {
	MarketIV(symbol string) (IVQuote, error)
}

// LiquiditySource resolves per-strike liquidity. Implementations must always
// return some record - estimation is the documented fallback - so one thin
// strike never sinks a whole grid. RealDataDTEs reports which expiries carry
// exchange-reported open interest, for callers running real-data-only mode.
type LiquiditySource interface {
	Liquidity(symbol string, spot, strike float64, typ pricing.OptionType, dte int) (Liquidity, error)
	RealDataDTEs(symbol string) ([]int, error)
}

// fallbackPriceSource chains a primary source with a secondary used when the
// primary fails. Quotes served by the secondary keep the secondary's own
// source tag (normally "fallback").
type fallbackPriceSource struct {
	primary   PriceSource
	secondary PriceSource
}

// NewFallbackPriceSource wraps primary so that upstream failures degrade to
// secondary instead of erroring.
func NewFallbackPriceSource(primary, secondary PriceSource) PriceSource {
	return &fallbackPriceSource{primary: primary, secondary: secondary}
}

func (f *fallbackPriceSource) SpotPrice(symbol string) (SpotQuote, error) {
	q, err := f.primary.SpotPrice(symbol)
	if err == nil {
		return q, nil
	}
	return f.secondary.SpotPrice(symbol)
}

// LiquidityTier buckets a liquidity score the way the dashboard displays it.
func LiquidityTier(score float64) string {
	switch {
	case score > 0.8:
		return "HIGH"
	case score > 0.5:
		return "MEDIUM"
	case score > 0.2:
		return "LOW"
	default:
		return "VERY_LOW"
	}
}
