package analysis

import (
	"time"

	"github.com/secbitchris/optionscalculator/internal/data"
	"github.com/secbitchris/optionscalculator/internal/pricing"
)

// AnalysisRequest is the scalar input bundle for one analysis pass. It is
// supplied per call and never retained.
type AnalysisRequest struct {
	Underlying        string  `json:"underlying" validate:"required"`
	SpotPrice         float64 `json:"spot_price" validate:"gt=0"`
	DaysToExpiration  int     `json:"days_to_expiration" validate:"gte=0"`
	ImpliedVolatility float64 `json:"implied_volatility" validate:"gt=0"`
	RiskFreeRate      float64 `json:"risk_free_rate" validate:"gte=0"`
}

// OffsetWindow restricts the strike grid to strikes whose signed offset from
// spot falls within [Low, High].
type OffsetWindow struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// AnalyzeOptions are the per-call switches of Analyze.
type AnalyzeOptions struct {
	// RealDataOnly excludes contracts whose open interest is estimated
	// instead of exchange-reported. When the filter empties the grid the
	// call fails with *NoLiquidContractsError rather than returning an
	// empty table.
	RealDataOnly bool

	// Offsets optionally narrows the generated grid; applied after grid
	// generation, preserving at least one ITM and one OTM strike.
	Offsets *OffsetWindow

	// Moves overrides the class's configured expected-move scenarios.
	Moves *ExpectedMoves
}

// Contract is one fully analyzed option: theoretical price, Greeks,
// probability and risk/reward metrics, liquidity, and the composite ranking
// score. Contracts are immutable result rows, created fresh on every call.
type Contract struct {
	Underlying string             `json:"underlying"`
	Strike     float64            `json:"strike"`
	Type       pricing.OptionType `json:"type"`

	Premium   float64 `json:"premium"`
	Moneyness float64 `json:"moneyness"` // strike - spot, signed
	Delta     float64 `json:"delta"`
	Gamma     float64 `json:"gamma"`
	Theta     float64 `json:"theta"`
	Vega      float64 `json:"vega"`
	Rho       float64 `json:"rho"`

	Breakeven  float64 `json:"breakeven"`
	ProbProfit float64 `json:"prob_profit"`
	ProbITM    float64 `json:"prob_itm"`
	MaxLoss    float64 `json:"max_loss"`

	OpenInterest   int64       `json:"open_interest"`
	Volume         int64       `json:"volume"`
	LiquidityScore float64     `json:"liquidity_score"`
	OISource       data.Source `json:"oi_source"`
	VolumeSource   data.Source `json:"volume_source"`
	LiquidityTier  string      `json:"liquidity_tier"`

	ConservativeChange float64 `json:"conservative_change"`
	ConservativeRR     float64 `json:"conservative_rr"`
	TargetChange       float64 `json:"target_change"`
	TargetRR           float64 `json:"target_rr"`
	AggressiveChange   float64 `json:"aggressive_change"`
	AggressiveRR       float64 `json:"aggressive_rr"`

	DayTradeScore float64 `json:"day_trade_score"`

	// Rankable marks contracts eligible for best-contract selection:
	// positive premium within the class premium band. Non-rankable rows
	// stay in the table but never win a ranking.
	Rankable bool `json:"-"`
}

// Summary aggregates one analysis pass.
type Summary struct {
	Underlying        string    `json:"underlying"`
	SpotPrice         float64   `json:"current_price"`
	DaysToExpiration  int       `json:"dte_days"`
	ImpliedVolatility float64   `json:"implied_vol"`
	RiskFreeRate      float64   `json:"risk_free_rate"`
	TotalContracts    int       `json:"total_contracts"`
	BestCall          *Contract `json:"best_call,omitempty"`
	BestPut           *Contract `json:"best_put,omitempty"`
	ATMStrike         float64   `json:"atm_strike"`
	ATMCallPremium    float64   `json:"atm_call_premium"`
	ATMPutPremium     float64   `json:"atm_put_premium"`
	DroppedContracts  int       `json:"dropped_contracts,omitempty"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// AnalysisResult is the ordered contract table plus its summary, handed to
// the caller for serialization or export; the core keeps no reference.
type AnalysisResult struct {
	Contracts []Contract `json:"contracts"`
	Summary   Summary    `json:"summary"`
}
