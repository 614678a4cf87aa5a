package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/secbitchris/optionscalculator/internal/analysis"
	"github.com/secbitchris/optionscalculator/internal/data"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	est := data.NewLiquidityEstimator(1)
	static := data.NewStaticProvider(map[string]float64{"SPY": 604.53, "SPX": 6045.26}, est)
	ivChain := data.NewIVChain(log, data.DefaultIV{IVValue: 0.15})
	analyzer := analysis.NewAnalyzer(analysis.DefaultConfig(), static, log)

	return New(analyzer, static, ivChain, nil, log)
}

func postJSON(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("encoding request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func getPath(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestAnalyzeEndpoint(t *testing.T) {
	s := testServer(t)
	w := postJSON(t, s, "/api/analyze", map[string]any{
		"underlying":    "SPY",
		"current_price": 597.44,
		"dte":           7,
		"iv":            20.14, // percent on the wire
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	out := decode(t, w)
	if out["success"] != true {
		t.Fatalf("expected success, got %v", out)
	}
	results, ok := out["results"].([]any)
	if !ok || len(results) != 58 {
		t.Fatalf("expected 58 contracts, got %d", len(results))
	}
	summary, ok := out["summary"].(map[string]any)
	if !ok {
		t.Fatalf("missing summary: %v", out)
	}
	if summary["implied_vol"].(float64) != 0.2014 {
		t.Fatalf("percent iv was not converted: %v", summary["implied_vol"])
	}
}

// Blank market inputs resolve through the data layer, with visible sources.
func TestAnalyzeEndpointResolvesInputs(t *testing.T) {
	s := testServer(t)
	w := postJSON(t, s, "/api/analyze", map[string]any{"underlying": "SPY"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	out := decode(t, w)
	sources := out["sources"].(map[string]any)
	if sources["price"] != "fallback" || sources["iv"] != "default" {
		t.Fatalf("expected resolved sources, got %v", sources)
	}
	summary := out["summary"].(map[string]any)
	if summary["current_price"].(float64) != 604.53 {
		t.Fatalf("spot not resolved from provider: %v", summary["current_price"])
	}
}

func TestAnalyzeEndpointRejectsBadInput(t *testing.T) {
	s := testServer(t)
	w := postJSON(t, s, "/api/analyze", map[string]any{
		"underlying":    "SPY",
		"current_price": -5,
		"iv":            20,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	out := decode(t, w)
	if out["success"] != false {
		t.Fatalf("expected failure envelope, got %v", out)
	}
}

func TestAnalyzeEndpointRealDataOnly(t *testing.T) {
	// The offline provider has no exchange data, so real-data-only mode is a
	// guaranteed 404 with the (empty) alternatives attached.
	s := testServer(t)
	w := postJSON(t, s, "/api/analyze", map[string]any{
		"underlying":     "SPY",
		"current_price":  597.44,
		"iv":             20,
		"real_data_only": true,
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestIVCalculatorEndpoint(t *testing.T) {
	s := testServer(t)
	w := postJSON(t, s, "/api/iv-calculator", map[string]any{
		"market_price":  8.50,
		"current_price": 597.44,
		"strike":        595,
		"dte":           7,
		"option_type":   "call",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	out := decode(t, w)
	result := out["result"].(map[string]any)
	iv := result["implied_volatility"].(float64)
	if iv < 0.15 || iv > 0.30 {
		t.Fatalf("implausible recovered vol %f", iv)
	}
}

// A market price above the no-arbitrage ceiling maps to 422.
func TestIVCalculatorEndpointNoConvergence(t *testing.T) {
	s := testServer(t)
	w := postJSON(t, s, "/api/iv-calculator", map[string]any{
		"market_price":  700,
		"current_price": 597.44,
		"strike":        595,
		"dte":           7,
		"option_type":   "call",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
	out := decode(t, w)
	if _, ok := out["upper_bound"]; !ok {
		t.Fatalf("422 body must carry the bounds: %v", out)
	}
}

func TestPriceScenarioEndpoint(t *testing.T) {
	s := testServer(t)
	w := postJSON(t, s, "/api/price-scenario", map[string]any{
		"underlying":    "SPY",
		"current_price": 600,
		"adjustment":    5,
		"dte":           7,
		"iv":            20,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	out := decode(t, w)
	result := out["result"].(map[string]any)
	if result["scenario_type"] != "bullish" {
		t.Fatalf("expected bullish, got %v", result["scenario_type"])
	}
}

func TestGreeksComparisonEndpoint(t *testing.T) {
	s := testServer(t)
	w := postJSON(t, s, "/api/greeks-comparison", map[string]any{
		"current_price": 597.44,
		"strike":        595,
		"dte":           7,
		"iv":            20.14,
		"option_type":   "call",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	out := decode(t, w)
	result := out["result"].(map[string]any)
	for _, scaling := range []string{"daily", "per_minute", "annual"} {
		if _, ok := result[scaling]; !ok {
			t.Fatalf("missing %s scaling in %v", scaling, result)
		}
	}
}

func TestExpectedMovesEndpoint(t *testing.T) {
	s := testServer(t)
	w := postJSON(t, s, "/api/expected-moves", map[string]any{
		"underlying":    "SPY",
		"current_price": 600,
		"dte":           7,
		"iv":            20,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	out := decode(t, w)
	if _, ok := out["formula"]; !ok {
		t.Fatalf("missing formula block: %v", out)
	}
	if _, ok := out["straddle"]; !ok {
		t.Fatalf("missing straddle block: %v", out)
	}
}

func TestLiveEndpoints(t *testing.T) {
	s := testServer(t)

	w := getPath(t, s, "/api/live-price/SPY")
	if w.Code != http.StatusOK {
		t.Fatalf("live-price: expected 200, got %d", w.Code)
	}
	quote := decode(t, w)["quote"].(map[string]any)
	if quote["price"].(float64) != 604.53 {
		t.Fatalf("bad live price: %v", quote)
	}

	// Unknown symbol walks through to the upstream error.
	w = getPath(t, s, "/api/live-price/TSLA")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("unknown symbol: expected 502, got %d", w.Code)
	}

	w = getPath(t, s, "/api/live-iv/SPY")
	if w.Code != http.StatusOK {
		t.Fatalf("live-iv: expected 200, got %d", w.Code)
	}

	w = getPath(t, s, "/api/health")
	if w.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", w.Code)
	}

	w = getPath(t, s, "/api/config/SPX")
	if w.Code != http.StatusOK {
		t.Fatalf("config: expected 200, got %d", w.Code)
	}
	cfg := decode(t, w)["config"].(map[string]any)
	if cfg["strike_increment"].(float64) != 25 {
		t.Fatalf("expected SPX increment 25, got %v", cfg["strike_increment"])
	}
}

// Store endpoints are only mounted when a store is configured.
func TestStoreEndpointsAbsentWithoutStore(t *testing.T) {
	s := testServer(t)
	w := getPath(t, s, "/api/analyses")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a store, got %d", w.Code)
	}
}
