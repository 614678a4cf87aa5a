package analysis

import (
	"math"

	"github.com/secbitchris/optionscalculator/internal/pricing"
)

// ScenarioLeg is one side of a what-if evaluation: the ATM quote before and
// after the hypothetical spot move.
type ScenarioLeg struct {
	Before           pricing.Quote `json:"before"`
	After            pricing.Quote `json:"after"`
	PremiumChange    float64       `json:"premium_change"`
	PremiumChangePct float64       `json:"premium_change_pct"`
}

// ScenarioResult answers "what happens to the ATM call and put if spot moves
// by Move". Pure re-evaluation; no state.
type ScenarioResult struct {
	BasePrice     float64     `json:"base_price"`
	Move          float64     `json:"adjustment"`
	AdjustedPrice float64     `json:"adjusted_price"`
	Direction     string      `json:"scenario_type"` // bullish, bearish, neutral
	PercentChange float64     `json:"percentage_change"`
	ATMStrike     float64     `json:"atm_strike"`
	Call          ScenarioLeg `json:"call"`
	Put           ScenarioLeg `json:"put"`
}

// Scenario re-prices the ATM straddle legs at spot+move with T, r, sigma
// unchanged and classifies the move by its sign.
func (a *Analyzer) Scenario(underlying string, spot, move float64, dte int, iv, rate float64) (*ScenarioResult, error) {
	if spot <= 0 || math.IsNaN(spot) {
		return nil, invalidInputf("spot_price", "must be positive, got %v", spot)
	}
	if spot+move <= 0 {
		return nil, invalidInputf("adjustment", "moves spot to %v, which is not positive", spot+move)
	}
	if dte < 0 {
		return nil, invalidInputf("days_to_expiration", "must be non-negative, got %d", dte)
	}

	class := a.cfg.ClassFor(underlying)
	atm := class.ATMStrike(spot)
	T := yearsToExpiry(dte)
	adjusted := spot + move

	res := &ScenarioResult{
		BasePrice:     spot,
		Move:          move,
		AdjustedPrice: adjusted,
		Direction:     direction(move),
		PercentChange: move / spot * 100,
		ATMStrike:     atm,
	}

	for _, typ := range []pricing.OptionType{pricing.Call, pricing.Put} {
		before, err := pricing.Price(spot, atm, T, rate, iv, typ)
		if err != nil {
			return nil, err
		}
		after, err := pricing.Price(adjusted, atm, T, rate, iv, typ)
		if err != nil {
			return nil, err
		}
		leg := ScenarioLeg{
			Before:        before,
			After:         after,
			PremiumChange: after.Price - before.Price,
		}
		if before.Price > 0 {
			leg.PremiumChangePct = leg.PremiumChange / before.Price * 100
		}
		if typ == pricing.Call {
			res.Call = leg
		} else {
			res.Put = leg
		}
	}
	return res, nil
}

func direction(move float64) string {
	switch {
	case move > 0:
		return "bullish"
	case move < 0:
		return "bearish"
	default:
		return "neutral"
	}
}

// ExpectedMove is the standard 1-sigma move bands: S * sigma * sqrt(T).
type ExpectedMove struct {
	OneSigma   float64 `json:"one_sigma"`   // ~68% of outcomes
	TwoSigma   float64 `json:"two_sigma"`   // ~95%
	HalfSigma  float64 `json:"half_sigma"`  // ~38%
	PctOfSpot  float64 `json:"pct_of_spot"` // 1-sigma as a percentage
	LowerBound float64 `json:"lower_bound"` // spot - 1-sigma
	UpperBound float64 `json:"upper_bound"` // spot + 1-sigma
}

// ExpectedMoveFormula computes the IV-based expected move for the given
// horizon.
func ExpectedMoveFormula(spot, sigma, T float64) ExpectedMove {
	oneSigma := spot * sigma * math.Sqrt(T)
	return ExpectedMove{
		OneSigma:   oneSigma,
		TwoSigma:   oneSigma * 2,
		HalfSigma:  oneSigma * 0.5,
		PctOfSpot:  oneSigma / spot * 100,
		LowerBound: spot - oneSigma,
		UpperBound: spot + oneSigma,
	}
}

// Straddle is the ATM call+put package; its price is the market's own
// expected-move estimate.
type Straddle struct {
	Strike         float64 `json:"atm_strike"`
	CallPrice      float64 `json:"call_price"`
	PutPrice       float64 `json:"put_price"`
	Price          float64 `json:"straddle_price"`
	BreakevenUpper float64 `json:"breakeven_upper"`
	BreakevenLower float64 `json:"breakeven_lower"`
	TotalVega      float64 `json:"total_vega"`
	TotalTheta     float64 `json:"total_theta"`
}

// ATMStraddle prices the at-the-money straddle for an underlying.
func (a *Analyzer) ATMStraddle(underlying string, spot float64, dte int, iv, rate float64) (*Straddle, error) {
	class := a.cfg.ClassFor(underlying)
	atm := class.ATMStrike(spot)
	T := yearsToExpiry(dte)

	call, err := pricing.Price(spot, atm, T, rate, iv, pricing.Call)
	if err != nil {
		return nil, err
	}
	put, err := pricing.Price(spot, atm, T, rate, iv, pricing.Put)
	if err != nil {
		return nil, err
	}

	price := call.Price + put.Price
	return &Straddle{
		Strike:         atm,
		CallPrice:      call.Price,
		PutPrice:       put.Price,
		Price:          price,
		BreakevenUpper: atm + price,
		BreakevenLower: atm - price,
		TotalVega:      call.Vega + put.Vega,
		TotalTheta:     call.Theta + put.Theta,
	}, nil
}

// MovesFromIV derives the move scenarios from the 1-sigma expected move
// instead of the class's fixed dollar constants: half for conservative,
// 1.5x for aggressive.
func MovesFromIV(spot, sigma, T float64) ExpectedMoves {
	oneSigma := spot * sigma * math.Sqrt(T)
	return ExpectedMoves{
		Conservative: oneSigma * 0.5,
		Target:       oneSigma,
		Aggressive:   oneSigma * 1.5,
	}
}
