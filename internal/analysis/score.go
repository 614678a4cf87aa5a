package analysis

import (
	"math"

	"github.com/secbitchris/optionscalculator/internal/data"
)

// Weights are the fixed linear coefficients of the composite day-trade
// score. They sum to 1.0; the defaults are empirical tuning constants and
// are treated as configuration, not as values to re-derive.
type Weights struct {
	Delta         float64 `json:"delta"`
	RiskReward    float64 `json:"risk_reward"`
	Affordability float64 `json:"affordability"`
	Liquidity     float64 `json:"liquidity"`
	Probability   float64 `json:"probability"`
}

// DefaultWeights returns the canonical scoring weights. Changing these
// shifts the score ranges existing consumers calibrate thresholds against.
func DefaultWeights() Weights {
	return Weights{
		Delta:         0.35,
		RiskReward:    0.25,
		Affordability: 0.15,
		Liquidity:     0.15,
		Probability:   0.10,
	}
}

// estimatedLiquidityCeiling discounts liquidity built on estimated open
// interest so that a contract backed by exchange-reported data always
// outscores an otherwise-identical estimated one.
const estimatedLiquidityCeiling = 0.6

// rrPremiumFloor guards the risk/reward division: premiums at or below it
// contribute zero R/R instead of a blow-up.
const rrPremiumFloor = 0.01

// Score combines a contract's signals into its day_trade_score. Contracts
// with non-positive premium score zero; affordability and R/R are undefined
// for them and they are excluded from ranking by the analyzer.
func (w Weights) Score(c *Contract) float64 {
	if c.Premium <= 0 {
		return 0
	}
	return w.Delta*math.Abs(c.Delta) +
		w.RiskReward*c.TargetRR +
		w.Affordability*affordability(c.Premium) +
		w.Liquidity*liquidityFactor(liquidityOf(c)) +
		w.Probability*c.ProbITM
}

// affordability is a decreasing function of premium bounded to (0, 1]:
// cheaper contracts are easier to size.
func affordability(premium float64) float64 {
	return 1 / (1 + premium)
}

// riskReward is the scenario payoff change per dollar of premium, floored
// against near-zero premiums.
func riskReward(priceChange, premium float64) float64 {
	if premium <= rrPremiumFloor {
		return 0
	}
	return priceChange / premium
}

// liquidityFactor maps a liquidity record into [0, 1]. Open interest and
// volume saturate at the levels a liquid SPY weekly shows; records whose
// open interest is estimated rather than exchange-reported are capped by
// estimatedLiquidityCeiling.
func liquidityFactor(liq data.Liquidity) float64 {
	oiN := math.Min(1, float64(liq.OpenInterest)/2000)
	volN := math.Min(1, float64(liq.Volume)/500)
	f := 0.5*liq.Score + 0.3*oiN + 0.2*volN
	if liq.OISource != data.SourceReal {
		f *= estimatedLiquidityCeiling
	}
	return clamp01(f)
}

func liquidityOf(c *Contract) data.Liquidity {
	return data.Liquidity{
		OpenInterest: c.OpenInterest,
		Volume:       c.Volume,
		Score:        c.LiquidityScore,
		OISource:     c.OISource,
		VolumeSource: c.VolumeSource,
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
