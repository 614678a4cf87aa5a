// Package analysis is the options analysis engine: strike-grid generation,
// per-contract pricing and probability metrics, composite scoring, and the
// orchestration that turns one AnalysisRequest into a ranked results table.
package analysis

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/secbitchris/optionscalculator/internal/data"
	"github.com/secbitchris/optionscalculator/internal/pricing"
)

// Analyzer composes the grid generator, pricer, and scoring engine into one
// pass over all strikes and types. It is stateless per call: the only fields
// are the immutable configuration and collaborators, so concurrent Analyze
// calls are independent.
type Analyzer struct {
	cfg       Config
	liquidity data.LiquiditySource
	validate  *validator.Validate
	log       *logrus.Logger
}

// NewAnalyzer builds an analyzer over a config value and a liquidity
// collaborator.
func NewAnalyzer(cfg Config, liquidity data.LiquiditySource, log *logrus.Logger) *Analyzer {
	return &Analyzer{
		cfg:       cfg,
		liquidity: liquidity,
		validate:  validator.New(),
		log:       log,
	}
}

// Config returns the analyzer's configuration value.
func (a *Analyzer) Config() Config {
	return a.cfg
}

func yearsToExpiry(dte int) float64 {
	return float64(dte) / 365
}

// Analyze runs the end-to-end pass: validate the request, generate the
// grid, price and score every strike as both a call and a put, and
// aggregate the summary. Per-contract numerical failures drop that single
// contract with a logged reason; request-level validation failures abort
// the whole call.
func (a *Analyzer) Analyze(req AnalysisRequest, opts AnalyzeOptions) (*AnalysisResult, error) {
	if err := a.validateRequest(req); err != nil {
		return nil, err
	}

	class := a.cfg.ClassFor(req.Underlying)
	moves := class.Moves
	if opts.Moves != nil {
		moves = *opts.Moves
	}

	strikes := class.Strikes(req.SpotPrice, req.DaysToExpiration)
	if opts.Offsets != nil {
		strikes = RestrictOffsets(strikes, req.SpotPrice, *opts.Offsets)
	}

	T := yearsToExpiry(req.DaysToExpiration)
	contracts := make([]Contract, 0, 2*len(strikes))
	var dropped, filtered int

	for _, strike := range strikes {
		for _, typ := range []pricing.OptionType{pricing.Call, pricing.Put} {
			c, err := a.buildContract(req, class, moves, strike, typ, T)
			if err != nil {
				dropped++
				a.log.WithFields(logrus.Fields{
					"underlying": req.Underlying,
					"strike":     strike,
					"type":       typ,
				}).WithError(err).Warn("dropping contract from result set")
				continue
			}
			if opts.RealDataOnly && c.OISource != data.SourceReal {
				filtered++
				continue
			}
			contracts = append(contracts, *c)
		}
	}

	if opts.RealDataOnly && len(contracts) == 0 {
		available, err := a.liquidity.RealDataDTEs(req.Underlying)
		if err != nil {
			a.log.WithError(err).Debug("could not list real-data expiries")
		}
		return nil, &NoLiquidContractsError{
			Underlying:    req.Underlying,
			DTE:           req.DaysToExpiration,
			AvailableDTEs: available,
		}
	}

	sortContracts(contracts)

	summary := a.summarize(req, class, contracts)
	summary.DroppedContracts = dropped
	a.log.WithFields(logrus.Fields{
		"underlying": req.Underlying,
		"contracts":  len(contracts),
		"dropped":    dropped,
		"filtered":   filtered,
	}).Info("analysis complete")

	return &AnalysisResult{Contracts: contracts, Summary: summary}, nil
}

func (a *Analyzer) buildContract(req AnalysisRequest, class ClassConfig, moves ExpectedMoves, strike float64, typ pricing.OptionType, T float64) (*Contract, error) {
	q, err := pricing.Price(req.SpotPrice, strike, T, req.RiskFreeRate, req.ImpliedVolatility, typ)
	if err != nil {
		return nil, err
	}
	if !finiteQuote(q) {
		return nil, invalidInputf("quote", "non-finite pricing output at strike %v", strike)
	}

	liq, err := a.liquidity.Liquidity(req.Underlying, req.SpotPrice, strike, typ, req.DaysToExpiration)
	if err != nil {
		// Liquidity must never sink a strike; degrade to the lowest tier.
		a.log.WithError(err).WithField("strike", strike).Debug("liquidity lookup failed, using lowest tier")
		liq = data.Liquidity{OISource: data.SourceEstimated, VolumeSource: data.SourceEstimated, Tier: data.LiquidityTier(0)}
	}

	c := &Contract{
		Underlying:     req.Underlying,
		Strike:         strike,
		Type:           typ,
		Premium:        q.Price,
		Moneyness:      strike - req.SpotPrice,
		Delta:          q.Delta,
		Gamma:          q.Gamma,
		Theta:          q.Theta,
		Vega:           q.Vega,
		Rho:            q.Rho,
		MaxLoss:        q.Price,
		OpenInterest:   liq.OpenInterest,
		Volume:         liq.Volume,
		LiquidityScore: liq.Score,
		OISource:       liq.OISource,
		VolumeSource:   liq.VolumeSource,
		LiquidityTier:  liq.Tier,
	}

	a.probabilities(c, req, q, T)

	for _, sc := range []struct {
		move   float64
		change *float64
		rr     *float64
	}{
		{moves.Conservative, &c.ConservativeChange, &c.ConservativeRR},
		{moves.Target, &c.TargetChange, &c.TargetRR},
		{moves.Aggressive, &c.AggressiveChange, &c.AggressiveRR},
	} {
		change, err := a.scenarioChange(req, strike, typ, T, sc.move, q.Price)
		if err != nil {
			return nil, err
		}
		*sc.change = change
		*sc.rr = riskReward(change, q.Price)
	}

	c.Rankable = c.Premium > 0 && c.Premium >= class.MinPremium && c.Premium <= class.MaxPremium
	c.DayTradeScore = a.cfg.Weights.Score(c)
	return c, nil
}

// scenarioChange is the premium change under a favorable move of the given
// size: spot up for calls, spot down for puts.
func (a *Analyzer) scenarioChange(req AnalysisRequest, strike float64, typ pricing.OptionType, T, move, premium float64) (float64, error) {
	moved := req.SpotPrice + move
	if typ == pricing.Put {
		moved = req.SpotPrice - math.Abs(move)
	}
	if moved <= 0 {
		return -premium, nil
	}
	q, err := pricing.Price(moved, strike, T, req.RiskFreeRate, req.ImpliedVolatility, typ)
	if err != nil {
		return 0, err
	}
	return q.Price - premium, nil
}

// probabilities fills prob_itm (terminal N(d2)/N(-d2)), the breakeven, and
// prob_profit (chance of expiring past the breakeven).
func (a *Analyzer) probabilities(c *Contract, req AnalysisRequest, q pricing.Quote, T float64) {
	S := req.SpotPrice
	sigma := req.ImpliedVolatility
	r := req.RiskFreeRate

	if c.Type == pricing.Call {
		c.Breakeven = c.Strike + c.Premium
	} else {
		c.Breakeven = c.Strike - c.Premium
	}

	if T <= 0 {
		intrinsic := pricing.Intrinsic(S, c.Strike, c.Type)
		c.ProbITM = boolProb(intrinsic > 0)
		c.ProbProfit = boolProb(intrinsic > c.Premium)
		return
	}

	if c.Type == pricing.Call {
		c.ProbITM = pricing.NormCDF(q.D2)
	} else {
		c.ProbITM = pricing.NormCDF(-q.D2)
	}

	if c.Breakeven <= 0 {
		// A put premium at or above the strike: spot cannot fall past zero.
		c.ProbProfit = 0
	} else {
		sqrtT := math.Sqrt(T)
		d := (math.Log(S/c.Breakeven) + (r-0.5*sigma*sigma)*T) / (sigma * sqrtT)
		if c.Type == pricing.Call {
			c.ProbProfit = pricing.NormCDF(d)
		} else {
			c.ProbProfit = pricing.NormCDF(-d)
		}
	}

	c.ProbITM = clamp01(c.ProbITM)
	c.ProbProfit = clamp01(c.ProbProfit)
}

func (a *Analyzer) summarize(req AnalysisRequest, class ClassConfig, contracts []Contract) Summary {
	s := Summary{
		Underlying:        req.Underlying,
		SpotPrice:         req.SpotPrice,
		DaysToExpiration:  req.DaysToExpiration,
		ImpliedVolatility: req.ImpliedVolatility,
		RiskFreeRate:      req.RiskFreeRate,
		TotalContracts:    len(contracts),
		ATMStrike:         class.ATMStrike(req.SpotPrice),
		GeneratedAt:       time.Now().UTC(),
	}

	for i := range contracts {
		c := &contracts[i]
		if c.Strike == s.ATMStrike {
			if c.Type == pricing.Call {
				s.ATMCallPremium = c.Premium
			} else {
				s.ATMPutPremium = c.Premium
			}
		}
		if !c.Rankable {
			continue
		}
		if c.Type == pricing.Call {
			if s.BestCall == nil || c.DayTradeScore > s.BestCall.DayTradeScore {
				s.BestCall = c
			}
		} else {
			if s.BestPut == nil || c.DayTradeScore > s.BestPut.DayTradeScore {
				s.BestPut = c
			}
		}
	}
	return s
}

// sortContracts orders the table by score descending; ties break by strike
// ascending with calls before puts, keeping output deterministic.
func sortContracts(contracts []Contract) {
	sort.SliceStable(contracts, func(i, j int) bool {
		if contracts[i].DayTradeScore != contracts[j].DayTradeScore {
			return contracts[i].DayTradeScore > contracts[j].DayTradeScore
		}
		if contracts[i].Strike != contracts[j].Strike {
			return contracts[i].Strike < contracts[j].Strike
		}
		return contracts[i].Type == pricing.Call && contracts[j].Type == pricing.Put
	})
}

func (a *Analyzer) validateRequest(req AnalysisRequest) error {
	if err := a.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return invalidInputf(jsonField(f.Field()), "failed %q validation, got %v", f.Tag(), f.Value())
		}
		return invalidInputf("request", "%v", err)
	}
	if math.IsNaN(req.SpotPrice) || math.IsInf(req.SpotPrice, 0) {
		return invalidInputf("spot_price", "must be finite")
	}
	if math.IsNaN(req.RiskFreeRate) || math.IsInf(req.RiskFreeRate, 0) {
		return invalidInputf("risk_free_rate", "must be finite")
	}
	return nil
}

// jsonField maps the Go struct field names validator reports back to the
// wire names callers supplied.
func jsonField(name string) string {
	switch name {
	case "Underlying":
		return "underlying"
	case "SpotPrice":
		return "spot_price"
	case "DaysToExpiration":
		return "days_to_expiration"
	case "ImpliedVolatility":
		return "implied_volatility"
	case "RiskFreeRate":
		return "risk_free_rate"
	}
	return name
}

// CalculateIV recovers the implied volatility that reproduces a market
// price for one contract.
func (a *Analyzer) CalculateIV(marketPrice, spot, strike float64, dte int, rate float64, typ pricing.OptionType) (*pricing.IVReport, error) {
	if dte <= 0 {
		return nil, invalidInputf("days_to_expiration", "must be positive for IV recovery, got %d", dte)
	}
	return pricing.ImpliedVolatility(marketPrice, spot, strike, yearsToExpiry(dte), rate, typ)
}

// CompareGreeks prices one contract and reports its Greeks under each
// requested scaling. An empty scalings list means all supported scalings.
func (a *Analyzer) CompareGreeks(spot, strike float64, dte int, iv, rate float64, typ pricing.OptionType, scalings []pricing.GreeksScaling) (map[pricing.GreeksScaling]pricing.Quote, error) {
	q, err := pricing.Price(spot, strike, yearsToExpiry(dte), rate, iv, typ)
	if err != nil {
		return nil, err
	}
	if len(scalings) == 0 {
		scalings = pricing.Scalings
	}
	out := make(map[pricing.GreeksScaling]pricing.Quote, len(scalings))
	for _, s := range scalings {
		scaled, err := pricing.ScaleGreeks(q, s)
		if err != nil {
			return nil, err
		}
		out[s] = scaled
	}
	return out, nil
}

func finiteQuote(q pricing.Quote) bool {
	for _, v := range []float64{q.Price, q.Delta, q.Gamma, q.Theta, q.Vega, q.Rho} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func boolProb(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
