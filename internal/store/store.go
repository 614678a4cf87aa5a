// Package store persists completed analysis runs to a local SQLite database
// so the dashboard can list and reload past results.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/secbitchris/optionscalculator/internal/analysis"
)

// AnalysisRun is one saved analysis: the summary columns queried by the
// listing view plus the full contract table as a JSON blob.
type AnalysisRun struct {
	ID                uint      `gorm:"primarykey" json:"id"`
	CreatedAt         time.Time `json:"created_at"`
	Underlying        string    `gorm:"index" json:"underlying"`
	SpotPrice         float64   `json:"spot_price"`
	DaysToExpiration  int       `json:"dte"`
	ImpliedVolatility float64   `json:"implied_volatility"`
	RiskFreeRate      float64   `json:"risk_free_rate"`
	TotalContracts    int       `json:"total_contracts"`
	BestCallStrike    float64   `json:"best_call_strike"`
	BestCallScore     float64   `json:"best_call_score"`
	BestPutStrike     float64   `json:"best_put_strike"`
	BestPutScore      float64   `json:"best_put_score"`
	ContractsJSON     string    `gorm:"type:text" json:"-"`
}

// Store wraps the SQLite database.
type Store struct {
	db  *gorm.DB
	log *logrus.Logger
}

// New opens (creating if needed) the database at dbPath and migrates the
// schema.
func New(dbPath string, log *logrus.Logger) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.AutoMigrate(&AnalysisRun{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &Store{db: db, log: log}, nil
}

// SaveResult persists one analysis result and returns the stored run.
func (s *Store) SaveResult(res *analysis.AnalysisResult) (*AnalysisRun, error) {
	blob, err := json.Marshal(res.Contracts)
	if err != nil {
		return nil, fmt.Errorf("encoding contracts: %w", err)
	}

	run := &AnalysisRun{
		Underlying:        res.Summary.Underlying,
		SpotPrice:         res.Summary.SpotPrice,
		DaysToExpiration:  res.Summary.DaysToExpiration,
		ImpliedVolatility: res.Summary.ImpliedVolatility,
		RiskFreeRate:      res.Summary.RiskFreeRate,
		TotalContracts:    res.Summary.TotalContracts,
		ContractsJSON:     string(blob),
	}
	if res.Summary.BestCall != nil {
		run.BestCallStrike = res.Summary.BestCall.Strike
		run.BestCallScore = res.Summary.BestCall.DayTradeScore
	}
	if res.Summary.BestPut != nil {
		run.BestPutStrike = res.Summary.BestPut.Strike
		run.BestPutScore = res.Summary.BestPut.DayTradeScore
	}

	if err := s.db.Create(run).Error; err != nil {
		return nil, fmt.Errorf("saving analysis run: %w", err)
	}
	s.log.WithFields(logrus.Fields{"id": run.ID, "underlying": run.Underlying}).
		Info("analysis run saved")
	return run, nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(limit int) ([]AnalysisRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []AnalysisRun
	err := s.db.
		Select("id", "created_at", "underlying", "spot_price", "days_to_expiration",
			"implied_volatility", "risk_free_rate", "total_contracts",
			"best_call_strike", "best_call_score", "best_put_strike", "best_put_score").
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("listing analysis runs: %w", err)
	}
	return runs, nil
}

// Get loads one run including its contract table.
func (s *Store) Get(id uint) (*AnalysisRun, error) {
	var run AnalysisRun
	if err := s.db.First(&run, id).Error; err != nil {
		return nil, fmt.Errorf("loading analysis run %d: %w", id, err)
	}
	return &run, nil
}

// Contracts decodes the stored contract table.
func (r *AnalysisRun) Contracts() ([]analysis.Contract, error) {
	var contracts []analysis.Contract
	if err := json.Unmarshal([]byte(r.ContractsJSON), &contracts); err != nil {
		return nil, fmt.Errorf("decoding contracts for run %d: %w", r.ID, err)
	}
	return contracts, nil
}
