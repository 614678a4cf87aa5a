// Package server exposes the analysis engine over a JSON REST API for the
// dashboard and trading-bot consumers.
package server

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/secbitchris/optionscalculator/internal/analysis"
	"github.com/secbitchris/optionscalculator/internal/data"
	"github.com/secbitchris/optionscalculator/internal/store"
)

// Server wires the core analyzer and its collaborators to HTTP routes.
type Server struct {
	analyzer *analysis.Analyzer
	prices   data.PriceSource
	iv       data.IVSource
	store    *store.Store // nil disables the save/list endpoints
	log      *logrus.Logger
	engine   *gin.Engine
}

// New builds the server and registers all routes.
func New(analyzer *analysis.Analyzer, prices data.PriceSource, iv data.IVSource, st *store.Store, log *logrus.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		analyzer: analyzer,
		prices:   prices,
		iv:       iv,
		store:    st,
		log:      log,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.engine.Group("/api")

	api.POST("/analyze", s.handleAnalyze)
	api.POST("/iv-calculator", s.handleIVCalculator)
	api.POST("/price-scenario", s.handlePriceScenario)
	api.POST("/greeks-comparison", s.handleGreeksComparison)
	api.POST("/expected-moves", s.handleExpectedMoves)

	api.GET("/live-price/:symbol", s.handleLivePrice)
	api.GET("/live-iv/:symbol", s.handleLiveIV)
	api.GET("/config/:underlying", s.handleConfig)
	api.GET("/health", s.handleHealth)

	if s.store != nil {
		api.POST("/save-analysis", s.handleSaveAnalysis)
		api.GET("/analyses", s.handleListAnalyses)
		api.GET("/analyses/:id", s.handleGetAnalysis)
	}
}

// Engine exposes the router, mainly for httptest.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run blocks serving HTTP on addr.
func (s *Server) Run(addr string) error {
	s.log.WithField("addr", addr).Info("starting REST server")
	return s.engine.Run(addr)
}
