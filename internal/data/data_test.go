package data

import (
	"errors"
	"fmt"
	"io"
	"math"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/secbitchris/optionscalculator/internal/pricing"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type stubStrategy struct {
	name string
	iv   float64
	err  error
}

func (s stubStrategy) Name() string { return s.name }
func (s stubStrategy) IV(string) (float64, error) {
	return s.iv, s.err
}

// The chain returns the first strategy that succeeds, tagged with its name.
func TestIVChainOrder(t *testing.T) {
	chain := NewIVChain(testLogger(),
		stubStrategy{name: "vix", err: errors.New("feed down")},
		stubStrategy{name: "historical", iv: 0.22},
		stubStrategy{name: "default", iv: 0.15},
	)
	q, err := chain.MarketIV("SPY")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.IV != 0.22 || q.Source != "historical" {
		t.Fatalf("expected historical 0.22, got %s %f", q.Source, q.IV)
	}
}

func TestIVChainExhausted(t *testing.T) {
	chain := NewIVChain(testLogger(),
		stubStrategy{name: "vix", err: errors.New("down")},
		stubStrategy{name: "historical", err: errors.New("also down")},
	)
	_, err := chain.MarketIV("SPY")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestIVChainDefaultTerminates(t *testing.T) {
	chain := NewIVChain(testLogger(),
		stubStrategy{name: "vix", err: errors.New("down")},
		DefaultIV{IVValue: 0.15},
	)
	q, err := chain.MarketIV("ANY")
	if err != nil {
		t.Fatalf("the default strategy must always succeed: %v", err)
	}
	if q.IV != 0.15 || q.Source != "default" {
		t.Fatalf("expected default 0.15, got %s %f", q.Source, q.IV)
	}
}

func TestVIXStrategyGating(t *testing.T) {
	v := VIXStrategy{Ticker: "I:VIX"}
	if _, err := v.IV("TSLA"); err == nil {
		t.Fatalf("VIX strategy must reject non-index underlyings")
	}
	if v.Name() != "vix" {
		t.Fatalf("expected name vix, got %s", v.Name())
	}
	if (VIXStrategy{Ticker: "I:VIX9D"}).Name() != "vix9d" {
		t.Fatalf("VIX9D name mismatch")
	}
}

func TestAnnualizedVolatility(t *testing.T) {
	// Constant prices: zero vol.
	flat := []float64{100, 100, 100, 100, 100}
	v, err := AnnualizedVolatility(flat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0 {
		t.Fatalf("flat series must have zero vol, got %f", v)
	}

	// A 1% daily alternating series: sigma_daily ~ 0.01 annualized by sqrt(252).
	series := make([]float64, 50)
	p := 100.0
	for i := range series {
		series[i] = p
		if i%2 == 0 {
			p *= 1.01
		} else {
			p /= 1.01
		}
	}
	v, err = AnnualizedVolatility(series)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := math.Log(1.01) * math.Sqrt(252)
	if math.Abs(v-want) > want*0.05 {
		t.Fatalf("annualized vol %f not close to %f", v, want)
	}

	if _, err := AnnualizedVolatility([]float64{100}); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("short series must fail, got %v", err)
	}
	if _, err := AnnualizedVolatility([]float64{100, -5, 100}); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("non-positive close must fail, got %v", err)
	}
}

func TestLiquidityEstimatorShape(t *testing.T) {
	est := NewLiquidityEstimator(1)

	atm := est.Score(600, 600, pricing.Call, 14)
	otm := est.Score(600, 700, pricing.Call, 14)
	if atm <= otm {
		t.Fatalf("ATM must outscore far OTM: %f vs %f", atm, otm)
	}

	sweet := est.Score(600, 600, pricing.Call, 20)
	zeroDte := est.Score(600, 600, pricing.Call, 0)
	leap := est.Score(600, 600, pricing.Call, 200)
	if sweet <= zeroDte || sweet <= leap {
		t.Fatalf("7-45 DTE must score best: sweet=%f 0dte=%f leap=%f", sweet, zeroDte, leap)
	}

	if est.Score(0, 600, pricing.Call, 14) != 0 || est.Score(600, 0, pricing.Put, 14) != 0 {
		t.Fatalf("degenerate inputs must score 0")
	}
}

func TestLiquidityEstimatorRecords(t *testing.T) {
	est := NewLiquidityEstimator(7)
	liq := est.Estimate(600, 600, pricing.Call, 14)
	if liq.OISource != SourceEstimated || liq.VolumeSource != SourceEstimated {
		t.Fatalf("estimator output must be tagged estimated: %+v", liq)
	}
	if liq.OpenInterest < 1000 || liq.OpenInterest >= 5000 {
		t.Fatalf("ATM sweet-spot open interest out of tier: %d", liq.OpenInterest)
	}
	if liq.Volume <= 0 || liq.Volume > liq.OpenInterest {
		t.Fatalf("implausible estimated volume %d for OI %d", liq.Volume, liq.OpenInterest)
	}
	if liq.Tier != "HIGH" {
		t.Fatalf("ATM sweet spot should be HIGH, got %s", liq.Tier)
	}
}

// Same seed, same sequence.
func TestLiquidityEstimatorDeterministic(t *testing.T) {
	a := NewLiquidityEstimator(99)
	b := NewLiquidityEstimator(99)
	for i := 0; i < 5; i++ {
		strike := 590 + float64(i)*5
		la := a.Estimate(600, strike, pricing.Put, 7)
		lb := b.Estimate(600, strike, pricing.Put, 7)
		if la != lb {
			t.Fatalf("estimates diverged at strike %v: %+v vs %+v", strike, la, lb)
		}
	}
}

func TestStaticProvider(t *testing.T) {
	est := NewLiquidityEstimator(1)
	p := NewStaticProvider(map[string]float64{"spy": 604.53}, est)

	q, err := p.SpotPrice("SPY")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Price != 604.53 || q.Source != SourceFallback {
		t.Fatalf("bad static quote: %+v", q)
	}

	if _, err := p.SpotPrice("TSLA"); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("unknown symbol must fail with ErrUpstreamUnavailable, got %v", err)
	}

	dtes, err := p.RealDataDTEs("SPY")
	if err != nil || len(dtes) != 0 {
		t.Fatalf("offline provider must report no real-data expiries")
	}
}

type flakyPrices struct {
	fail bool
}

func (f *flakyPrices) SpotPrice(symbol string) (SpotQuote, error) {
	if f.fail {
		return SpotQuote{}, fmt.Errorf("%w: primary down", ErrUpstreamUnavailable)
	}
	return SpotQuote{Symbol: symbol, Price: 600, Source: SourceLive}, nil
}

func TestFallbackPriceSource(t *testing.T) {
	primary := &flakyPrices{}
	secondary := NewStaticProvider(map[string]float64{"SPY": 604.53}, NewLiquidityEstimator(1))
	src := NewFallbackPriceSource(primary, secondary)

	q, err := src.SpotPrice("SPY")
	if err != nil || q.Source != SourceLive {
		t.Fatalf("healthy primary must serve live quotes: %+v (%v)", q, err)
	}

	primary.fail = true
	q, err = src.SpotPrice("SPY")
	if err != nil {
		t.Fatalf("fallback should have served: %v", err)
	}
	if q.Source != SourceFallback || q.Price != 604.53 {
		t.Fatalf("expected fallback quote, got %+v", q)
	}
}

func TestLiquidityTier(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{0.9, "HIGH"},
		{0.8, "MEDIUM"},
		{0.6, "MEDIUM"},
		{0.5, "LOW"},
		{0.3, "LOW"},
		{0.2, "VERY_LOW"},
		{0, "VERY_LOW"},
	}
	for _, c := range cases {
		if got := LiquidityTier(c.score); got != c.want {
			t.Fatalf("LiquidityTier(%v): want %s, got %s", c.score, c.want, got)
		}
	}
}
