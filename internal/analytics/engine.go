package analytics

import (
	"time"

	"github.com/refina-analytics/internal/models"
)

// Engine bundles the four transforms configured for one reference location
type Engine struct {
	grouper       *TransactionGrouper
	reconstructor *BalanceReconstructor
	calculator    *SummaryCalculator
	builder       *CompositionBuilder
}

// NewEngine creates an engine whose calendar days and months are cut in loc
func NewEngine(loc *time.Location) *Engine {
	return &Engine{
		grouper:       NewTransactionGrouper(loc),
		reconstructor: NewBalanceReconstructor(loc),
		calculator:    NewSummaryCalculator(loc),
		builder:       NewCompositionBuilder(),
	}
}

// CategoryDaily groups the snapshot's transactions into daily category buckets
func (e *Engine) CategoryDaily(s *models.Snapshot) []models.CategoryDailyAggregate {
	return e.grouper.Group(s.Transactions, s.Wallets)
}

// Balances reconstructs the daily balance history of every active wallet
func (e *Engine) Balances(s *models.Snapshot) []models.BalanceSnapshot {
	return e.reconstructor.Reconstruct(s.Transactions, s.Wallets)
}

// Summaries calculates the monthly financial summaries
func (e *Engine) Summaries(s *models.Snapshot) []models.FinancialSummary {
	return e.calculator.Calculate(s)
}

// Compositions builds the current net-worth composition per user
func (e *Engine) Compositions(s *models.Snapshot) []models.NetWorthComposition {
	return e.builder.Build(s.Wallets, s.Investments)
}
