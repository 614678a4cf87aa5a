// Polygon-backed market data. The free tier exposes previous-close
// aggregates, index values, and an options snapshot with real open interest;
// everything the tier does not expose (per-contract volume) is estimated and
// labeled estimated.
package data

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/secbitchris/optionscalculator/internal/pricing"
)

const (
	polygonBaseURL   = "https://api.polygon.io"
	snapshotCacheTTL = 5 * time.Minute
)

// PolygonClient is a thin resty wrapper over the Polygon REST endpoints the
// providers below need.
type PolygonClient struct {
	http *resty.Client
	log  *logrus.Logger
}

// NewPolygonClient builds an authenticated client. The API key is sent as a
// bearer token on every request.
func NewPolygonClient(apiKey string, log *logrus.Logger) *PolygonClient {
	http := resty.New().
		SetBaseURL(polygonBaseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetAuthToken(apiKey)
	return &PolygonClient{http: http, log: log}
}

type aggBar struct {
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
	Time   int64   `json:"t"`
}

type aggsResponse struct {
	Results []aggBar `json:"results"`
	Status  string   `json:"status"`
}

type snapshotDetails struct {
	StrikePrice    float64 `json:"strike_price"`
	ContractType   string  `json:"contract_type"`
	ExpirationDate string  `json:"expiration_date"`
}

type snapshotContract struct {
	Details      snapshotDetails `json:"details"`
	OpenInterest *int64          `json:"open_interest"`
}

type snapshotResponse struct {
	Results []snapshotContract `json:"results"`
	Status  string             `json:"status"`
}

// PrevClose returns the previous session's closing price for a ticker.
// Index tickers use the "I:" prefix (e.g. "I:VIX").
func (c *PolygonClient) PrevClose(ticker string) (float64, error) {
	var out aggsResponse
	resp, err := c.http.R().
		SetResult(&out).
		Get(fmt.Sprintf("/v2/aggs/ticker/%s/prev", ticker))
	if err != nil {
		return 0, fmt.Errorf("%w: prev close for %s: %v", ErrUpstreamUnavailable, ticker, err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("%w: prev close for %s: status %d", ErrUpstreamUnavailable, ticker, resp.StatusCode())
	}
	if len(out.Results) == 0 {
		return 0, fmt.Errorf("%w: prev close for %s: empty result", ErrUpstreamUnavailable, ticker)
	}
	return out.Results[0].Close, nil
}

// DailyCloses returns up to `days` daily closing prices ending today,
// oldest first.
func (c *PolygonClient) DailyCloses(ticker string, days int) ([]float64, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -(days + 10)) // pad for weekends/holidays

	var out aggsResponse
	resp, err := c.http.R().
		SetResult(&out).
		Get(fmt.Sprintf("/v2/aggs/ticker/%s/range/1/day/%s/%s",
			ticker, start.Format("2006-01-02"), end.Format("2006-01-02")))
	if err != nil {
		return nil, fmt.Errorf("%w: daily bars for %s: %v", ErrUpstreamUnavailable, ticker, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: daily bars for %s: status %d", ErrUpstreamUnavailable, ticker, resp.StatusCode())
	}
	closes := make([]float64, 0, len(out.Results))
	for _, b := range out.Results {
		closes = append(closes, b.Close)
	}
	if len(closes) > days {
		closes = closes[len(closes)-days:]
	}
	return closes, nil
}

// OptionsSnapshot returns the full options snapshot for an underlying:
// exchange-reported open interest keyed by strike and type, plus the set of
// expiration dates present in the chain.
func (c *PolygonClient) OptionsSnapshot(underlying string) ([]snapshotContract, error) {
	var out snapshotResponse
	resp, err := c.http.R().
		SetResult(&out).
		Get(fmt.Sprintf("/v3/snapshot/options/%s", strings.ToUpper(underlying)))
	if err != nil {
		return nil, fmt.Errorf("%w: options snapshot for %s: %v", ErrUpstreamUnavailable, underlying, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: options snapshot for %s: status %d", ErrUpstreamUnavailable, underlying, resp.StatusCode())
	}
	return out.Results, nil
}

// --------------------------------------------------------------------------
// PriceSource
// --------------------------------------------------------------------------

// PolygonPrices serves live spot quotes from previous-close aggregates.
type PolygonPrices struct {
	client *PolygonClient
}

func NewPolygonPrices(client *PolygonClient) *PolygonPrices {
	return &PolygonPrices{client: client}
}

func (p *PolygonPrices) SpotPrice(symbol string) (SpotQuote, error) {
	price, err := p.client.PrevClose(strings.ToUpper(symbol))
	if err != nil {
		return SpotQuote{}, err
	}
	return SpotQuote{Symbol: strings.ToUpper(symbol), Price: price, Source: SourceLive}, nil
}

// --------------------------------------------------------------------------
// IV strategies
// --------------------------------------------------------------------------

// VIXStrategy reads a volatility index level (VIX for 30-day IV, VIX9D for
// short-dated) and converts it to a decimal vol. Only meaningful for broad
// index underlyings; Applicable gates it to SPY/SPX.
type VIXStrategy struct {
	Client *PolygonClient
	Ticker string // "I:VIX" or "I:VIX9D"
}

func (v VIXStrategy) Name() string {
	return strings.ToLower(strings.TrimPrefix(v.Ticker, "I:"))
}

func (v VIXStrategy) IV(symbol string) (float64, error) {
	if !vixApplicable(symbol) {
		return 0, fmt.Errorf("%s is not a VIX-proxied underlying", symbol)
	}
	level, err := v.Client.PrevClose(v.Ticker)
	if err != nil {
		return 0, err
	}
	if level <= 0 {
		return 0, fmt.Errorf("%w: non-positive %s level %f", ErrUpstreamUnavailable, v.Ticker, level)
	}
	return level / 100, nil
}

func vixApplicable(symbol string) bool {
	switch strings.ToUpper(symbol) {
	case "SPY", "SPX":
		return true
	}
	return false
}

// HistoricalVolStrategy estimates IV from realized volatility: the standard
// deviation of daily log returns over a trailing window, annualized by
// sqrt(252).
type HistoricalVolStrategy struct {
	Client *PolygonClient
	Days   int // trailing window, 20 if zero
}

func (h HistoricalVolStrategy) Name() string { return "historical" }

func (h HistoricalVolStrategy) IV(symbol string) (float64, error) {
	days := h.Days
	if days <= 0 {
		days = 20
	}
	closes, err := h.Client.DailyCloses(strings.ToUpper(symbol), days)
	if err != nil {
		return 0, err
	}
	return AnnualizedVolatility(closes)
}

// AnnualizedVolatility computes annualized log-return volatility from a
// series of closing prices, oldest first.
func AnnualizedVolatility(closes []float64) (float64, error) {
	if len(closes) < 2 {
		return 0, fmt.Errorf("%w: need at least 2 closes, got %d", ErrUpstreamUnavailable, len(closes))
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			return 0, fmt.Errorf("%w: non-positive close in series", ErrUpstreamUnavailable)
		}
		returns = append(returns, math.Log(closes[i]/closes[i-1]))
	}
	daily := stat.StdDev(returns, nil)
	return daily * math.Sqrt(252), nil
}

// --------------------------------------------------------------------------
// LiquiditySource
// --------------------------------------------------------------------------

type oiKey struct {
	strike float64
	typ    string
}

type snapshotCache struct {
	fetchedAt time.Time
	oi        map[oiKey]int64
	expiries  []time.Time
}

// PolygonLiquidity serves per-strike liquidity: real open interest from the
// options snapshot where the chain has it, the estimation fallback
// everywhere else. One snapshot fetch is cached per underlying so a full
// grid pass costs a single upstream call.
type PolygonLiquidity struct {
	client *PolygonClient
	log    *logrus.Logger
	est    *LiquidityEstimator

	mu    sync.Mutex
	cache map[string]*snapshotCache
}

func NewPolygonLiquidity(client *PolygonClient, est *LiquidityEstimator, log *logrus.Logger) *PolygonLiquidity {
	return &PolygonLiquidity{
		client: client,
		log:    log,
		est:    est,
		cache:  make(map[string]*snapshotCache),
	}
}

func (p *PolygonLiquidity) snapshot(symbol string) (*snapshotCache, error) {
	symbol = strings.ToUpper(symbol)

	p.mu.Lock()
	cached, ok := p.cache[symbol]
	p.mu.Unlock()
	if ok && time.Since(cached.fetchedAt) < snapshotCacheTTL {
		return cached, nil
	}

	contracts, err := p.client.OptionsSnapshot(symbol)
	if err != nil {
		return nil, err
	}

	sc := &snapshotCache{
		fetchedAt: time.Now(),
		oi:        make(map[oiKey]int64, len(contracts)),
	}
	seen := make(map[string]bool)
	for _, c := range contracts {
		if c.OpenInterest == nil {
			continue
		}
		sc.oi[oiKey{strike: c.Details.StrikePrice, typ: strings.ToLower(c.Details.ContractType)}] = *c.OpenInterest
		if exp, err := time.Parse("2006-01-02", c.Details.ExpirationDate); err == nil && !seen[c.Details.ExpirationDate] {
			seen[c.Details.ExpirationDate] = true
			sc.expiries = append(sc.expiries, exp)
		}
	}
	p.log.WithFields(logrus.Fields{"symbol": symbol, "contracts": len(sc.oi)}).
		Debug("cached real open interest snapshot")

	p.mu.Lock()
	p.cache[symbol] = sc
	p.mu.Unlock()
	return sc, nil
}

// Liquidity implements LiquiditySource. It never fails the caller: when the
// snapshot is unreachable or has no entry for this strike, it falls back to
// the estimator and tags the record estimated.
func (p *PolygonLiquidity) Liquidity(symbol string, spot, strike float64, typ pricing.OptionType, dte int) (Liquidity, error) {
	score := p.est.Score(spot, strike, typ, dte)

	sc, err := p.snapshot(symbol)
	if err != nil {
		p.log.WithError(err).WithField("symbol", symbol).
			Debug("snapshot unavailable, estimating open interest")
		return p.est.Estimate(spot, strike, typ, dte), nil
	}

	oi, found := lookupOI(sc.oi, strike, string(typ))
	if !found {
		return p.est.Estimate(spot, strike, typ, dte), nil
	}

	return Liquidity{
		OpenInterest: oi,
		Volume:       p.est.EstimateVolume(oi, score),
		Score:        score,
		OISource:     SourceReal,
		VolumeSource: SourceEstimated,
		Tier:         LiquidityTier(score),
	}, nil
}

// RealDataDTEs reports the days-to-expiration values for which the snapshot
// carries exchange-reported open interest.
func (p *PolygonLiquidity) RealDataDTEs(symbol string) ([]int, error) {
	sc, err := p.snapshot(symbol)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	dtes := make([]int, 0, len(sc.expiries))
	seen := make(map[int]bool)
	for _, exp := range sc.expiries {
		d := int(math.Ceil(exp.Sub(now).Hours() / 24))
		if d >= 0 && !seen[d] {
			seen[d] = true
			dtes = append(dtes, d)
		}
	}
	sort.Ints(dtes)
	return dtes, nil
}

func lookupOI(oi map[oiKey]int64, strike float64, typ string) (int64, bool) {
	if v, ok := oi[oiKey{strike: strike, typ: typ}]; ok {
		return v, true
	}
	// Snapshot strikes can carry sub-cent float noise.
	for k, v := range oi {
		if k.typ == typ && math.Abs(k.strike-strike) < 0.01 {
			return v, true
		}
	}
	return 0, false
}
