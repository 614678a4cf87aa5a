// Package report exports analysis results to CSV and JSON files for
// download and offline inspection.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/secbitchris/optionscalculator/internal/analysis"
)

func filename(prefix, underlying, ext string) string {
	ts := time.Now().Format("20060102_150405")
	return fmt.Sprintf("%s_%s_%s.%s", prefix, strings.ToUpper(underlying), ts, ext)
}

// WriteJSON writes the full result (summary + contracts) as indented JSON
// and returns the file path.
func WriteJSON(res *analysis.AnalysisResult, outdir string) (string, error) {
	if err := os.MkdirAll(outdir, 0755); err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(outdir, filename("options_analysis", res.Summary.Underlying, "json"))
	if err := os.WriteFile(path, b, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// WriteCSV writes one row per contract and returns the file path.
func WriteCSV(res *analysis.AnalysisResult, outdir string) (string, error) {
	if err := os.MkdirAll(outdir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(outdir, filename("options_analysis", res.Summary.Underlying, "csv"))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	headers := []string{
		"underlying", "strike", "type", "premium", "moneyness",
		"delta", "gamma", "theta", "vega", "rho",
		"breakeven", "prob_profit", "prob_itm", "max_loss",
		"open_interest", "volume", "liquidity_score", "oi_source",
		"conservative_rr", "target_rr", "aggressive_rr", "day_trade_score",
	}
	if err := w.Write(headers); err != nil {
		return "", err
	}

	for _, c := range res.Contracts {
		row := []string{
			c.Underlying,
			fmt.Sprintf("%.2f", c.Strike),
			string(c.Type),
			fmt.Sprintf("%.4f", c.Premium),
			fmt.Sprintf("%.2f", c.Moneyness),
			fmt.Sprintf("%.4f", c.Delta),
			fmt.Sprintf("%.6f", c.Gamma),
			fmt.Sprintf("%.6f", c.Theta),
			fmt.Sprintf("%.4f", c.Vega),
			fmt.Sprintf("%.4f", c.Rho),
			fmt.Sprintf("%.2f", c.Breakeven),
			fmt.Sprintf("%.3f", c.ProbProfit),
			fmt.Sprintf("%.3f", c.ProbITM),
			fmt.Sprintf("%.2f", c.MaxLoss),
			fmt.Sprintf("%d", c.OpenInterest),
			fmt.Sprintf("%d", c.Volume),
			fmt.Sprintf("%.3f", c.LiquidityScore),
			string(c.OISource),
			fmt.Sprintf("%.3f", c.ConservativeRR),
			fmt.Sprintf("%.3f", c.TargetRR),
			fmt.Sprintf("%.3f", c.AggressiveRR),
			fmt.Sprintf("%.4f", c.DayTradeScore),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	return path, nil
}
