package pricing

import (
	"fmt"
	"math"
)

// Volatility search domain and convergence budget for ImpliedVolatility.
const (
	ivFloor   = 0.0001 // 0.01% annual vol
	ivCeiling = 5.0    // 500% annual vol
	ivMaxIter = 200
	ivTol     = 1e-4 // absolute price error
)

// ConvergenceError reports an implied-volatility solve that failed, either
// because the market price violates no-arbitrage bounds or because the
// root-finder exhausted its iteration budget. The attempted bounds and
// iteration count are carried for diagnosis; the solver never substitutes a
// best-guess vol.
type ConvergenceError struct {
	MarketPrice float64
	LowerBound  float64
	UpperBound  float64
	Iterations  int
	Reason      string
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("implied volatility did not converge: %s (market=%.4f bounds=[%.4f, %.4f] iterations=%d)",
		e.Reason, e.MarketPrice, e.LowerBound, e.UpperBound, e.Iterations)
}

// IVReport is the solver output: the recovered vol, the quote it implies,
// and a ±10% vol band showing the price sensitivity around the solution.
type IVReport struct {
	ImpliedVolatility float64 `json:"implied_volatility"`
	MarketPrice       float64 `json:"market_price"`
	TheoreticalPrice  float64 `json:"theoretical_price"`
	PriceDifference   float64 `json:"price_difference"`
	IVHigh            float64 `json:"iv_high"`
	IVLow             float64 `json:"iv_low"`
	PriceAtIVHigh     float64 `json:"price_at_iv_high"`
	PriceAtIVLow      float64 `json:"price_at_iv_low"`
	Quote             Quote   `json:"quote"`
	Iterations        int     `json:"iterations"`
}

// ImpliedVolatility inverts Price to recover the volatility that reproduces
// marketPrice for the given contract.
//
// The solve is a bisection over [0.01%, 500%] with Newton steps via vega
// whenever the step stays inside the current bracket; it converges within
// ivMaxIter iterations to an absolute price error of ivTol or fails with a
// *ConvergenceError.
func ImpliedVolatility(marketPrice, S, K, T, r float64, typ OptionType) (*IVReport, error) {
	if err := validate(S, K, T, r, typ); err != nil {
		return nil, err
	}
	if T == 0 {
		return nil, fmt.Errorf("%w: time to expiry must be positive for IV recovery", ErrInvalidInput)
	}
	if math.IsNaN(marketPrice) || marketPrice <= 0 {
		return nil, fmt.Errorf("%w: market price must be positive, got %v", ErrInvalidInput, marketPrice)
	}

	lower, upper := noArbBounds(S, K, T, r, typ)
	if marketPrice < lower-ivTol || marketPrice > upper+ivTol {
		return nil, &ConvergenceError{
			MarketPrice: marketPrice,
			LowerBound:  lower,
			UpperBound:  upper,
			Reason:      "price outside no-arbitrage bounds",
		}
	}

	lo, hi := ivFloor, ivCeiling
	sigma := 0.20 // standard initial guess
	var iterations int

	for iterations = 1; iterations <= ivMaxIter; iterations++ {
		q, _ := Price(S, K, T, r, sigma, typ)
		diff := q.Price - marketPrice
		if math.Abs(diff) < ivTol {
			return buildIVReport(marketPrice, S, K, T, r, sigma, typ, q, iterations), nil
		}

		// Maintain the bracket. Price is monotone increasing in vol.
		if diff > 0 {
			hi = sigma
		} else {
			lo = sigma
		}

		// Newton step when vega supports it, bisection otherwise.
		next := sigma
		rawVega := q.Vega * 100
		if rawVega > 1e-8 {
			next = sigma - diff/rawVega
		}
		if next <= lo || next >= hi || math.IsNaN(next) {
			next = (lo + hi) / 2
		}
		sigma = next

		if hi-lo < 1e-12 {
			break
		}
	}

	return nil, &ConvergenceError{
		MarketPrice: marketPrice,
		LowerBound:  lower,
		UpperBound:  upper,
		Iterations:  iterations,
		Reason:      "iteration budget exhausted",
	}
}

func buildIVReport(marketPrice, S, K, T, r, sigma float64, typ OptionType, q Quote, iterations int) *IVReport {
	ivHigh := sigma * 1.1
	ivLow := sigma * 0.9
	qHigh, _ := Price(S, K, T, r, ivHigh, typ)
	qLow, _ := Price(S, K, T, r, ivLow, typ)

	return &IVReport{
		ImpliedVolatility: sigma,
		MarketPrice:       marketPrice,
		TheoreticalPrice:  q.Price,
		PriceDifference:   marketPrice - q.Price,
		IVHigh:            ivHigh,
		IVLow:             ivLow,
		PriceAtIVHigh:     qHigh.Price,
		PriceAtIVLow:      qLow.Price,
		Quote:             q,
		Iterations:        iterations,
	}
}

// noArbBounds returns the static no-arbitrage price bounds for a European
// option: discounted intrinsic value below, the (discounted) underlying or
// strike above.
func noArbBounds(S, K, T, r float64, typ OptionType) (lower, upper float64) {
	disc := math.Exp(-r * T)
	if typ == Call {
		return math.Max(S-K*disc, 0), S
	}
	return math.Max(K*disc-S, 0), K * disc
}
