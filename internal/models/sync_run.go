package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/refina-analytics/internal/types"
)

// SyncRun is the audit record of one materialization run
type SyncRun struct {
	ID                 uuid.UUID        `json:"id" db:"id"`
	UserID             *string          `json:"userId,omitempty" db:"user_id"`
	Status             types.SyncStatus `json:"status" db:"status"`
	StartedAt          time.Time        `json:"startedAt" db:"started_at"`
	FinishedAt         *time.Time       `json:"finishedAt,omitempty" db:"finished_at"`
	WalletCount        int              `json:"walletCount" db:"wallet_count"`
	TransactionCount   int              `json:"transactionCount" db:"transaction_count"`
	InvestmentCount    int              `json:"investmentCount" db:"investment_count"`
	CategoryDailyCount int              `json:"categoryDailyCount" db:"category_daily_count"`
	BalanceCount       int              `json:"balanceCount" db:"balance_count"`
	SummaryCount       int              `json:"summaryCount" db:"summary_count"`
	CompositionCount   int              `json:"compositionCount" db:"composition_count"`
	Error              *string          `json:"error,omitempty" db:"error"`
}
