package analysis

import (
	"math"
	"strings"
)

// ExpectedMoves are the dollar move scenarios contracts are evaluated
// against. Target drives the primary risk/reward input to scoring.
type ExpectedMoves struct {
	Conservative float64 `json:"conservative"`
	Target       float64 `json:"target"`
	Aggressive   float64 `json:"aggressive"`
}

// ClassConfig describes the strike-grid policy for one underlying class.
// Cheap, narrow-increment products get a fine grid; high-notional products a
// coarse one. New classes register through Config.Register.
type ClassConfig struct {
	Increment  float64       `json:"strike_increment"`
	Width      float64       `json:"strike_range_width"` // +/- from ATM before DTE scaling
	Moves      ExpectedMoves `json:"expected_moves"`
	MinPremium float64       `json:"min_premium"`
	MaxPremium float64       `json:"max_premium"`
}

// Config is the full per-call configuration of the analyzer: the class
// registry and the scoring weights. It is an explicit value passed into each
// analysis, never shared mutable state.
type Config struct {
	Classes      map[string]ClassConfig
	DefaultClass string
	Weights      Weights
}

// DefaultConfig returns the canonical configuration: an SPY-style fine grid,
// an SPX-style coarse grid, and the canonical scoring weights.
func DefaultConfig() Config {
	return Config{
		Classes: map[string]ClassConfig{
			"SPY": {
				Increment:  2.5,
				Width:      35,
				Moves:      ExpectedMoves{Conservative: 1.0, Target: 2.0, Aggressive: 3.0},
				MinPremium: 0.05,
				MaxPremium: 50.0,
			},
			"SPX": {
				Increment:  25,
				Width:      350,
				Moves:      ExpectedMoves{Conservative: 10.0, Target: 20.0, Aggressive: 30.0},
				MinPremium: 0.50,
				MaxPremium: 500.0,
			},
		},
		DefaultClass: "SPY",
		Weights:      DefaultWeights(),
	}
}

// Register adds or replaces an underlying class.
func (c *Config) Register(name string, cfg ClassConfig) {
	c.Classes[strings.ToUpper(name)] = cfg
}

// ClassFor resolves the grid policy for a symbol, falling back to the
// default class for unregistered symbols.
func (c Config) ClassFor(symbol string) ClassConfig {
	if cfg, ok := c.Classes[strings.ToUpper(symbol)]; ok {
		return cfg
	}
	return c.Classes[c.DefaultClass]
}

// Strikes generates the ordered strike grid for one analysis: spot rounded
// to the nearest increment, extended symmetrically by the class window. The
// window widens with DTE (clamped to [0.5x, 2x], exactly 1x at 7 DTE) since
// longer-dated chains trade meaningfully further from spot.
func (cfg ClassConfig) Strikes(spot float64, dte int) []float64 {
	mult := math.Max(0.5, math.Min(2.0, float64(dte)/7))
	width := cfg.Width * mult

	atm := math.Round(spot/cfg.Increment) * cfg.Increment
	steps := int(math.Round(width / cfg.Increment))

	strikes := make([]float64, 0, 2*steps+1)
	for i := -steps; i <= steps; i++ {
		k := atm + float64(i)*cfg.Increment
		if k <= 0 {
			continue
		}
		strikes = append(strikes, k)
	}
	return strikes
}

// ATMStrike returns spot rounded to the class increment.
func (cfg ClassConfig) ATMStrike(spot float64) float64 {
	return math.Round(spot/cfg.Increment) * cfg.Increment
}

// RestrictOffsets filters a generated grid to strikes whose signed offset
// from spot lies within the window. The result always keeps at least one
// strike on each side of spot where the unfiltered grid has one, so both an
// ITM and an OTM contract survive for either option type.
func RestrictOffsets(strikes []float64, spot float64, w OffsetWindow) []float64 {
	kept := make([]float64, 0, len(strikes))
	var hasBelow, hasAbove bool
	for _, k := range strikes {
		off := k - spot
		if off < w.Low || off > w.High {
			continue
		}
		kept = append(kept, k)
		if k < spot {
			hasBelow = true
		}
		if k > spot {
			hasAbove = true
		}
	}

	if !hasBelow {
		if k, ok := nearestBelow(strikes, spot); ok {
			kept = append([]float64{k}, kept...)
		}
	}
	if !hasAbove {
		if k, ok := nearestAbove(strikes, spot); ok {
			kept = append(kept, k)
		}
	}
	return kept
}

func nearestBelow(strikes []float64, spot float64) (float64, bool) {
	best, found := 0.0, false
	for _, k := range strikes {
		if k < spot && (!found || k > best) {
			best, found = k, true
		}
	}
	return best, found
}

func nearestAbove(strikes []float64, spot float64) (float64, bool) {
	best, found := 0.0, false
	for _, k := range strikes {
		if k > spot && (!found || k < best) {
			best, found = k, true
		}
	}
	return best, found
}
