package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/secbitchris/optionscalculator/internal/analysis"
	"github.com/secbitchris/optionscalculator/internal/data"
	"github.com/secbitchris/optionscalculator/internal/logging"
	"github.com/secbitchris/optionscalculator/internal/pricing"
	"github.com/secbitchris/optionscalculator/internal/report"
	"github.com/secbitchris/optionscalculator/internal/server"
	"github.com/secbitchris/optionscalculator/internal/store"
)

// Offline spot prices used when no Polygon API key is configured, and as the
// fallback when the live feed is down.
var staticPrices = map[string]float64{
	"SPY": 604.53,
	"SPX": 6045.26,
}

func main() {
	underlying := flag.String("underlying", "SPY", "underlying symbol (SPY, SPX)")
	price := flag.Float64("price", 0, "spot price; 0 fetches from the data provider")
	dte := flag.Int("dte", 7, "days to expiration")
	iv := flag.Float64("iv", 0, "implied volatility in percent (15 = 15%); 0 resolves via the IV chain")
	rate := flag.Float64("rate", 4.4, "risk-free rate in percent")
	realOnly := flag.Bool("real-data-only", false, "keep only contracts with exchange-reported open interest")
	ivMoves := flag.Bool("iv-moves", false, "derive move scenarios from the expected move instead of class defaults")
	scaling := flag.String("scaling", "daily", "greeks scaling: daily, per_minute, annual")
	outdir := flag.String("out", "", "write CSV and JSON reports to this directory")
	save := flag.Bool("save", false, "persist the run to the local database")
	dbPath := flag.String("db", "data/analyses.db", "SQLite database path")
	serve := flag.Bool("serve", false, "run as REST server instead of a one-shot analysis")
	addr := flag.String("addr", ":8090", "REST server listen address")
	verbosity := flag.Int("v", 1, "log verbosity: 0 errors, 1 info, 2 debug, 3 trace")
	flag.Parse()

	_ = godotenv.Load()
	log := logging.New(*verbosity)

	prices, ivSource, liquidity := buildProviders(log)

	cfg := analysis.DefaultConfig()
	analyzer := analysis.NewAnalyzer(cfg, liquidity, log)

	var st *store.Store
	if *save || *serve {
		var err error
		st, err = store.New(*dbPath, log)
		if err != nil {
			log.WithError(err).Fatal("opening analysis store")
		}
	}

	if *serve {
		srv := server.New(analyzer, prices, ivSource, st, log)
		if err := srv.Run(*addr); err != nil {
			log.WithError(err).Fatal("REST server stopped")
		}
		return
	}

	req := analysis.AnalysisRequest{
		Underlying:       strings.ToUpper(*underlying),
		SpotPrice:        *price,
		DaysToExpiration: *dte,
		RiskFreeRate:     *rate / 100,
	}

	if req.SpotPrice == 0 {
		quote, err := prices.SpotPrice(req.Underlying)
		if err != nil {
			log.WithError(err).Fatal("resolving spot price")
		}
		req.SpotPrice = quote.Price
		log.WithFields(logrus.Fields{"price": quote.Price, "source": quote.Source}).Info("spot price resolved")
	}

	req.ImpliedVolatility = *iv / 100
	if *iv == 0 {
		quote, err := ivSource.MarketIV(req.Underlying)
		if err != nil {
			log.WithError(err).Fatal("resolving implied volatility")
		}
		req.ImpliedVolatility = quote.IV
		log.WithFields(logrus.Fields{"iv": quote.IV, "source": quote.Source}).Info("implied volatility resolved")
	}

	opts := analysis.AnalyzeOptions{RealDataOnly: *realOnly}
	if *ivMoves {
		moves := analysis.MovesFromIV(req.SpotPrice, req.ImpliedVolatility, float64(req.DaysToExpiration)/365)
		opts.Moves = &moves
	}

	res, err := analyzer.Analyze(req, opts)
	if err != nil {
		log.WithError(err).Fatal("analysis failed")
	}

	printResult(res, pricing.GreeksScaling(*scaling))

	if *outdir != "" {
		if path, err := report.WriteJSON(res, *outdir); err != nil {
			log.WithError(err).Error("writing JSON report")
		} else {
			log.WithField("path", path).Info("JSON report written")
		}
		if path, err := report.WriteCSV(res, *outdir); err != nil {
			log.WithError(err).Error("writing CSV report")
		} else {
			log.WithField("path", path).Info("CSV report written")
		}
	}

	if *save {
		run, err := st.SaveResult(res)
		if err != nil {
			log.WithError(err).Fatal("saving analysis run")
		}
		fmt.Printf("\nsaved as run %d\n", run.ID)
	}
}

// buildProviders wires the data layer: Polygon with offline fallback when an
// API key is configured, fully offline otherwise.
func buildProviders(log *logrus.Logger) (data.PriceSource, data.IVSource, data.LiquiditySource) {
	est := data.NewLiquidityEstimator(42)
	static := data.NewStaticProvider(staticPrices, est)

	apiKey := os.Getenv("POLYGON_API_KEY")
	if apiKey == "" {
		log.Info("POLYGON_API_KEY not set, running offline")
		ivChain := data.NewIVChain(log, data.DefaultIV{IVValue: 0.15})
		return static, ivChain, static
	}

	log.Info("polygon provider enabled")
	client := data.NewPolygonClient(apiKey, log)
	prices := data.NewFallbackPriceSource(data.NewPolygonPrices(client), static)
	ivChain := data.NewIVChain(log,
		data.VIXStrategy{Client: client, Ticker: "I:VIX"},
		data.VIXStrategy{Client: client, Ticker: "I:VIX9D"},
		data.HistoricalVolStrategy{Client: client},
		data.DefaultIV{IVValue: 0.15},
	)
	liquidity := data.NewPolygonLiquidity(client, est, log)
	return prices, ivChain, liquidity
}

func printResult(res *analysis.AnalysisResult, scaling pricing.GreeksScaling) {
	s := res.Summary
	fmt.Printf("\n%s  spot=%.2f  dte=%d  iv=%.1f%%  rate=%.2f%%\n",
		s.Underlying, s.SpotPrice, s.DaysToExpiration, s.ImpliedVolatility*100, s.RiskFreeRate*100)
	fmt.Printf("ATM strike %.2f  call %.2f / put %.2f  (%d contracts, %d dropped)\n\n",
		s.ATMStrike, s.ATMCallPremium, s.ATMPutPremium, s.TotalContracts, s.DroppedContracts)

	fmt.Printf("%-6s %8s %5s %9s %7s %8s %8s %7s %7s %7s\n",
		"", "strike", "type", "premium", "delta", "theta", "vega", "p(itm)", "tgt RR", "score")
	shown := 0
	for i := range res.Contracts {
		c := &res.Contracts[i]
		q := pricing.Quote{Delta: c.Delta, Gamma: c.Gamma, Theta: c.Theta, Vega: c.Vega, Rho: c.Rho}
		if scaled, err := pricing.ScaleGreeks(q, scaling); err == nil {
			q = scaled
		}
		marker := ""
		if s.BestCall != nil && c.Strike == s.BestCall.Strike && c.Type == s.BestCall.Type {
			marker = "call*"
		}
		if s.BestPut != nil && c.Strike == s.BestPut.Strike && c.Type == s.BestPut.Type {
			marker = "put*"
		}
		fmt.Printf("%-6s %8.2f %5s %9.2f %7.3f %8.4f %8.4f %7.3f %7.2f %7.4f\n",
			marker, c.Strike, c.Type, c.Premium, q.Delta, q.Theta, q.Vega, c.ProbITM, c.TargetRR, c.DayTradeScore)
		shown++
		if shown >= 10 {
			break
		}
	}
	if len(res.Contracts) > shown {
		fmt.Printf("... %d more\n", len(res.Contracts)-shown)
	}
}
