// Package pricing implements closed-form European option pricing and Greeks
// under the Black-Scholes model, together with an implied-volatility solver.
//
// Design goals:
//   - Pure functions, no state, safe for concurrent use
//   - Never return NaN/Inf to callers: invalid inputs fail with ErrInvalidInput,
//     degenerate-but-priceable inputs (expired, zero vol) take documented
//     fallback branches
//   - Theta is reported per calendar day, vega per 1 vol point, matching the
//     conventions of the dashboards and bots that consume these numbers
package pricing

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// OptionType identifies the side of a contract.
type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// MinVolatility is the floor applied when a caller passes a non-positive or
// non-finite volatility. Flooring instead of failing keeps the d1/d2 terms
// well defined for grid sweeps that brush against zero vol.
const MinVolatility = 1e-4

// ErrInvalidInput marks pricing inputs that are outside the model's domain
// (non-positive spot or strike, negative expiry). Wrapped errors name the
// offending field.
var ErrInvalidInput = errors.New("invalid input")

// stdNorm is the standard normal distribution used for all CDF/PDF
// evaluations. distuv's implementation has stable tails, so deep ITM/OTM
// strikes saturate cleanly at 0/1 instead of overflowing.
var stdNorm = distuv.Normal{Mu: 0, Sigma: 1}

// Quote is the full closed-form output for a single contract.
type Quote struct {
	Price float64 `json:"price"`
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"` // per calendar day
	Vega  float64 `json:"vega"`  // per 1 percentage-point of vol
	Rho   float64 `json:"rho"`
	D1    float64 `json:"d1"`
	D2    float64 `json:"d2"`
}

// Price computes the Black-Scholes price and Greeks for one European option.
//
// Parameters:
//   - S: spot price of the underlying (must be > 0)
//   - K: strike price (must be > 0)
//   - T: time to expiry in years (>= 0; 0 means expired / past cutoff)
//   - r: annual risk-free rate (0 or negative allowed)
//   - sigma: annual volatility as a decimal; non-positive or non-finite
//     values are floored to MinVolatility
//   - typ: Call or Put
//
// At T == 0 the price collapses to intrinsic value, delta becomes the step
// function at the strike (1/0 for calls, -1/0 for puts) and the remaining
// Greeks are zero.
func Price(S, K, T, r, sigma float64, typ OptionType) (Quote, error) {
	if err := validate(S, K, T, r, typ); err != nil {
		return Quote{}, err
	}

	if T <= 0 {
		return expiredQuote(S, K, typ), nil
	}

	if sigma <= 0 || math.IsNaN(sigma) || math.IsInf(sigma, 0) {
		sigma = MinVolatility
	}

	sqrtT := math.Sqrt(T)
	d1 := (math.Log(S/K) + (r+0.5*sigma*sigma)*T) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT
	disc := math.Exp(-r * T)
	pdfD1 := stdNorm.Prob(d1)

	q := Quote{
		Gamma: pdfD1 / (S * sigma * sqrtT),
		Vega:  S * pdfD1 * sqrtT / 100,
		D1:    d1,
		D2:    d2,
	}

	switch typ {
	case Call:
		q.Price = S*stdNorm.CDF(d1) - K*disc*stdNorm.CDF(d2)
		q.Delta = stdNorm.CDF(d1)
		q.Theta = (-S*pdfD1*sigma/(2*sqrtT) - r*K*disc*stdNorm.CDF(d2)) / 365
		q.Rho = K * T * disc * stdNorm.CDF(d2)
	case Put:
		q.Price = K*disc*stdNorm.CDF(-d2) - S*stdNorm.CDF(-d1)
		q.Delta = stdNorm.CDF(d1) - 1
		q.Theta = (-S*pdfD1*sigma/(2*sqrtT) + r*K*disc*stdNorm.CDF(-d2)) / 365
		q.Rho = -K * T * disc * stdNorm.CDF(-d2)
	}

	// Closed-form output can round to a hair below zero for far OTM strikes.
	if q.Price < 0 {
		q.Price = 0
	}
	return q, nil
}

// Intrinsic returns the exercise value of the option at spot S.
func Intrinsic(S, K float64, typ OptionType) float64 {
	if typ == Call {
		return math.Max(S-K, 0)
	}
	return math.Max(K-S, 0)
}

// NormCDF exposes the standard normal CDF used by the pricer so that
// probability metrics computed elsewhere share the same distribution.
func NormCDF(x float64) float64 {
	return stdNorm.CDF(x)
}

func expiredQuote(S, K float64, typ OptionType) Quote {
	q := Quote{Price: Intrinsic(S, K, typ)}
	switch typ {
	case Call:
		if S > K {
			q.Delta = 1
		}
	case Put:
		if S < K {
			q.Delta = -1
		}
	}
	return q
}

func validate(S, K, T, r float64, typ OptionType) error {
	switch {
	case math.IsNaN(S) || S <= 0:
		return fmt.Errorf("%w: spot price must be positive, got %v", ErrInvalidInput, S)
	case math.IsNaN(K) || K <= 0:
		return fmt.Errorf("%w: strike must be positive, got %v", ErrInvalidInput, K)
	case math.IsNaN(T) || T < 0:
		return fmt.Errorf("%w: time to expiry must be non-negative, got %v", ErrInvalidInput, T)
	case math.IsNaN(r) || math.IsInf(r, 0):
		return fmt.Errorf("%w: risk-free rate must be finite, got %v", ErrInvalidInput, r)
	case typ != Call && typ != Put:
		return fmt.Errorf("%w: option type must be %q or %q, got %q", ErrInvalidInput, Call, Put, typ)
	}
	return nil
}
