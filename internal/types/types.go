// Package types provides common type definitions for the analytics service.
package types

// CategoryType classifies a transaction category as money in or money out
type CategoryType string

const (
	// CategoryIncome marks an income transaction
	CategoryIncome CategoryType = "income"
	// CategoryExpense marks an expense transaction
	CategoryExpense CategoryType = "expense"
)

// IsIncome reports whether the category counts as income.
// Anything that is not income is treated as an expense.
func (c CategoryType) IsIncome() bool {
	return c == CategoryIncome
}

// PeriodType represents the granularity of a financial summary
type PeriodType string

const (
	// PeriodMonthly is the only period type materialized today
	PeriodMonthly PeriodType = "monthly"
)

// Aggregation represents the roll-up level for balance queries
type Aggregation string

const (
	// AggregationDaily returns the raw daily snapshots
	AggregationDaily Aggregation = "daily"
	// AggregationWeekly rolls daily snapshots up to ISO weeks
	AggregationWeekly Aggregation = "weekly"
	// AggregationMonthly rolls daily snapshots up to calendar months
	AggregationMonthly Aggregation = "monthly"
)

// Valid reports whether the aggregation is one of the supported values
func (a Aggregation) Valid() bool {
	switch a {
	case AggregationDaily, AggregationWeekly, AggregationMonthly:
		return true
	}
	return false
}

// Composition slice labels
const (
	SliceCash        = "Cash & Bank Accounts"
	SliceInvestments = "Investments"
)

// Projection names one of the four materialized output sets. The value is
// also the name of the table holding it.
type Projection string

const (
	ProjectionCategoryDaily Projection = "transaction_category_summaries"
	ProjectionBalance       Projection = "balance_snapshots"
	ProjectionSummary       Projection = "user_financial_summaries"
	ProjectionComposition   Projection = "user_net_worth_compositions"
)

// SyncStatus represents the lifecycle state of a sync run
type SyncStatus string

const (
	SyncStatusRunning   SyncStatus = "running"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
