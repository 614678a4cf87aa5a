package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/secbitchris/optionscalculator/internal/analysis"
	"github.com/secbitchris/optionscalculator/internal/data"
	"github.com/secbitchris/optionscalculator/internal/pricing"
)

// The dashboard sends iv and risk_free_rate as percentages (15 means 15%),
// matching the existing consumers; handlers convert to decimals at the
// boundary.
const defaultRatePct = 4.4

type analyzeRequest struct {
	Underlying   string   `json:"underlying"`
	CurrentPrice float64  `json:"current_price"`
	DTE          int      `json:"dte"`
	IV           float64  `json:"iv"`             // percent
	RiskFreeRate *float64 `json:"risk_free_rate"` // percent
	RealDataOnly bool     `json:"real_data_only"`
	OffsetLow    *float64 `json:"offset_low"`
	OffsetHigh   *float64 `json:"offset_high"`
	UseIVMoves   bool     `json:"use_iv_moves"`
}

// resolve fills the request's market inputs from the data layer when the
// caller left them blank, and returns the core request plus source tags.
func (s *Server) resolve(req *analyzeRequest) (analysis.AnalysisRequest, map[string]string, error) {
	sources := map[string]string{"price": "request", "iv": "request"}
	if req.Underlying == "" {
		req.Underlying = "SPY"
	}
	if req.DTE == 0 {
		req.DTE = 7
	}

	if req.CurrentPrice == 0 {
		quote, err := s.prices.SpotPrice(req.Underlying)
		if err != nil {
			return analysis.AnalysisRequest{}, nil, err
		}
		req.CurrentPrice = quote.Price
		sources["price"] = string(quote.Source)
	}

	iv := req.IV / 100
	if req.IV == 0 {
		quote, err := s.iv.MarketIV(req.Underlying)
		if err != nil {
			return analysis.AnalysisRequest{}, nil, err
		}
		iv = quote.IV
		sources["iv"] = quote.Source
	}

	ratePct := defaultRatePct
	if req.RiskFreeRate != nil {
		ratePct = *req.RiskFreeRate
	}

	return analysis.AnalysisRequest{
		Underlying:        req.Underlying,
		SpotPrice:         req.CurrentPrice,
		DaysToExpiration:  req.DTE,
		ImpliedVolatility: iv,
		RiskFreeRate:      ratePct / 100,
	}, sources, nil
}

func (s *Server) runAnalysis(c *gin.Context) (*analysis.AnalysisResult, bool) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body: " + err.Error()})
		return nil, false
	}

	coreReq, sources, err := s.resolve(&req)
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}

	opts := analysis.AnalyzeOptions{RealDataOnly: req.RealDataOnly}
	if req.OffsetLow != nil && req.OffsetHigh != nil {
		opts.Offsets = &analysis.OffsetWindow{Low: *req.OffsetLow, High: *req.OffsetHigh}
	}
	if req.UseIVMoves {
		moves := analysis.MovesFromIV(coreReq.SpotPrice, coreReq.ImpliedVolatility, float64(coreReq.DaysToExpiration)/365)
		opts.Moves = &moves
	}

	res, err := s.analyzer.Analyze(coreReq, opts)
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}
	c.Set("sources", sources)
	return res, true
}

// POST /api/analyze
func (s *Server) handleAnalyze(c *gin.Context) {
	res, ok := s.runAnalysis(c)
	if !ok {
		return
	}
	sources, _ := c.Get("sources")
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"results":   res.Contracts,
		"summary":   res.Summary,
		"sources":   sources,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type ivCalcRequest struct {
	MarketPrice  float64  `json:"market_price"`
	CurrentPrice float64  `json:"current_price"`
	Strike       float64  `json:"strike"`
	DTE          int      `json:"dte"`
	RiskFreeRate *float64 `json:"risk_free_rate"` // percent
	OptionType   string   `json:"option_type"`
}

// POST /api/iv-calculator
func (s *Server) handleIVCalculator(c *gin.Context) {
	var req ivCalcRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body: " + err.Error()})
		return
	}
	ratePct := defaultRatePct
	if req.RiskFreeRate != nil {
		ratePct = *req.RiskFreeRate
	}
	report, err := s.analyzer.CalculateIV(req.MarketPrice, req.CurrentPrice, req.Strike,
		req.DTE, ratePct/100, pricing.OptionType(req.OptionType))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": report})
}

type scenarioRequest struct {
	Underlying   string   `json:"underlying"`
	CurrentPrice float64  `json:"current_price"`
	Adjustment   float64  `json:"adjustment"`
	DTE          int      `json:"dte"`
	IV           float64  `json:"iv"`             // percent
	RiskFreeRate *float64 `json:"risk_free_rate"` // percent
}

// POST /api/price-scenario
func (s *Server) handlePriceScenario(c *gin.Context) {
	var req scenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body: " + err.Error()})
		return
	}
	if req.Underlying == "" {
		req.Underlying = "SPY"
	}
	ratePct := defaultRatePct
	if req.RiskFreeRate != nil {
		ratePct = *req.RiskFreeRate
	}
	res, err := s.analyzer.Scenario(req.Underlying, req.CurrentPrice, req.Adjustment,
		req.DTE, req.IV/100, ratePct/100)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": res})
}

type greeksRequest struct {
	CurrentPrice float64  `json:"current_price"`
	Strike       float64  `json:"strike"`
	DTE          int      `json:"dte"`
	IV           float64  `json:"iv"`             // percent
	RiskFreeRate *float64 `json:"risk_free_rate"` // percent
	OptionType   string   `json:"option_type"`
	Scalings     []string `json:"scalings"`
}

// POST /api/greeks-comparison
func (s *Server) handleGreeksComparison(c *gin.Context) {
	var req greeksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body: " + err.Error()})
		return
	}
	ratePct := defaultRatePct
	if req.RiskFreeRate != nil {
		ratePct = *req.RiskFreeRate
	}
	scalings := make([]pricing.GreeksScaling, 0, len(req.Scalings))
	for _, sc := range req.Scalings {
		scalings = append(scalings, pricing.GreeksScaling(sc))
	}
	res, err := s.analyzer.CompareGreeks(req.CurrentPrice, req.Strike, req.DTE,
		req.IV/100, ratePct/100, pricing.OptionType(req.OptionType), scalings)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": res})
}

type expectedMovesRequest struct {
	Underlying   string   `json:"underlying"`
	CurrentPrice float64  `json:"current_price"`
	DTE          int      `json:"dte"`
	IV           float64  `json:"iv"`             // percent
	RiskFreeRate *float64 `json:"risk_free_rate"` // percent
}

// POST /api/expected-moves
func (s *Server) handleExpectedMoves(c *gin.Context) {
	var req expectedMovesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body: " + err.Error()})
		return
	}
	if req.Underlying == "" {
		req.Underlying = "SPY"
	}
	ratePct := defaultRatePct
	if req.RiskFreeRate != nil {
		ratePct = *req.RiskFreeRate
	}
	T := float64(req.DTE) / 365
	formula := analysis.ExpectedMoveFormula(req.CurrentPrice, req.IV/100, T)
	straddle, err := s.analyzer.ATMStraddle(req.Underlying, req.CurrentPrice, req.DTE, req.IV/100, ratePct/100)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"formula":  formula,
		"straddle": straddle,
		"formula_vs_straddle_diff": abs(formula.OneSigma - straddle.Price),
	})
}

// GET /api/live-price/:symbol
func (s *Server) handleLivePrice(c *gin.Context) {
	quote, err := s.prices.SpotPrice(c.Param("symbol"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "quote": quote})
}

// GET /api/live-iv/:symbol
func (s *Server) handleLiveIV(c *gin.Context) {
	quote, err := s.iv.MarketIV(c.Param("symbol"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "quote": quote})
}

// GET /api/config/:underlying
func (s *Server) handleConfig(c *gin.Context) {
	class := s.analyzer.Config().ClassFor(c.Param("underlying"))
	c.JSON(http.StatusOK, gin.H{"success": true, "config": class})
}

// GET /api/health
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// POST /api/save-analysis
func (s *Server) handleSaveAnalysis(c *gin.Context) {
	res, ok := s.runAnalysis(c)
	if !ok {
		return
	}
	run, err := s.store.SaveResult(res)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": run.ID, "summary": res.Summary})
}

// GET /api/analyses
func (s *Server) handleListAnalyses(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := s.store.List(limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(runs), "analyses": runs})
}

// GET /api/analyses/:id
func (s *Server) handleGetAnalysis(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid analysis id"})
		return
	}
	run, err := s.store.Get(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
		return
	}
	contracts, err := run.Contracts()
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "run": run, "results": contracts})
}

// respondError maps core error kinds to HTTP statuses.
func (s *Server) respondError(c *gin.Context, err error) {
	var noLiquid *analysis.NoLiquidContractsError
	var convergence *pricing.ConvergenceError

	switch {
	case errors.Is(err, pricing.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	case errors.As(err, &noLiquid):
		c.JSON(http.StatusNotFound, gin.H{
			"success":        false,
			"error":          noLiquid.Error(),
			"available_dtes": noLiquid.AvailableDTEs,
		})
	case errors.As(err, &convergence):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success":      false,
			"error":        convergence.Error(),
			"lower_bound":  convergence.LowerBound,
			"upper_bound":  convergence.UpperBound,
			"iterations":   convergence.Iterations,
			"market_price": convergence.MarketPrice,
		})
	case errors.Is(err, data.ErrUpstreamUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": err.Error()})
	default:
		s.log.WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
