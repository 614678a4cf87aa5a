package analysis

import (
	"testing"

	"github.com/secbitchris/optionscalculator/internal/data"
	"github.com/secbitchris/optionscalculator/internal/pricing"
)

func scoredContract(premium float64, oiSource data.Source) *Contract {
	return &Contract{
		Type:           pricing.Call,
		Premium:        premium,
		Delta:          0.52,
		TargetRR:       0.8,
		ProbITM:        0.51,
		OpenInterest:   2500,
		Volume:         600,
		LiquidityScore: 0.9,
		OISource:       oiSource,
		VolumeSource:   data.SourceEstimated,
	}
}

// A contract backed by exchange-reported open interest must strictly outscore
// an otherwise-identical estimated one.
func TestScoreRealBeatsEstimated(t *testing.T) {
	w := DefaultWeights()
	real := w.Score(scoredContract(3.50, data.SourceReal))
	est := w.Score(scoredContract(3.50, data.SourceEstimated))
	if real <= est {
		t.Fatalf("real-data score %f should exceed estimated score %f", real, est)
	}
}

func TestScoreNonPositivePremium(t *testing.T) {
	w := DefaultWeights()
	if s := w.Score(scoredContract(0, data.SourceReal)); s != 0 {
		t.Fatalf("zero premium must score 0, got %f", s)
	}
	if s := w.Score(scoredContract(-1, data.SourceReal)); s != 0 {
		t.Fatalf("negative premium must score 0, got %f", s)
	}
}

// Cheaper contracts earn a higher affordability component.
func TestScoreAffordability(t *testing.T) {
	if affordability(0.50) <= affordability(5.00) {
		t.Fatalf("affordability must decrease with premium")
	}
	if a := affordability(0); a != 1 {
		t.Fatalf("affordability at zero premium: want 1, got %f", a)
	}
}

func TestRiskRewardFloor(t *testing.T) {
	if rr := riskReward(1.5, 0.005); rr != 0 {
		t.Fatalf("premium below floor must give 0 R/R, got %f", rr)
	}
	if rr := riskReward(1.0, 2.0); rr != 0.5 {
		t.Fatalf("want R/R 0.5, got %f", rr)
	}
	if rr := riskReward(-0.8, 2.0); rr != -0.4 {
		t.Fatalf("losing scenarios keep their sign, got %f", rr)
	}
}

func TestLiquidityFactorBounds(t *testing.T) {
	// Saturated real record: factor caps at 1.
	f := liquidityFactor(data.Liquidity{
		OpenInterest: 100000, Volume: 100000, Score: 1, OISource: data.SourceReal,
	})
	if f != 1 {
		t.Fatalf("saturated real record: want 1, got %f", f)
	}

	// The same record estimated is capped by the ceiling.
	f = liquidityFactor(data.Liquidity{
		OpenInterest: 100000, Volume: 100000, Score: 1, OISource: data.SourceEstimated,
	})
	if f != estimatedLiquidityCeiling {
		t.Fatalf("estimated ceiling: want %f, got %f", estimatedLiquidityCeiling, f)
	}

	// Empty record scores 0.
	if f := liquidityFactor(data.Liquidity{}); f != 0 {
		t.Fatalf("empty record: want 0, got %f", f)
	}
}

func TestDefaultWeightsSumToOne(t *testing.T) {
	w := DefaultWeights()
	sum := w.Delta + w.RiskReward + w.Affordability + w.Liquidity + w.Probability
	if sum != 1.0 {
		t.Fatalf("weights must sum to 1.0, got %f", sum)
	}
}
