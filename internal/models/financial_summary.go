package models

import (
	"time"

	"github.com/refina-analytics/internal/types"
)

// FinancialSummary is the per-user summary of one populated period
type FinancialSummary struct {
	UserID      string           `json:"UserID"`
	PeriodType  types.PeriodType `json:"PeriodType"`
	PeriodKey   string           `json:"PeriodKey"`
	PeriodStart time.Time        `json:"PeriodStart"`
	PeriodEnd   time.Time        `json:"PeriodEnd"`

	IncomeNow  float64 `json:"IncomeNow"`
	ExpenseNow float64 `json:"ExpenseNow"`
	ProfitNow  float64 `json:"ProfitNow"`
	BalanceNow float64 `json:"BalanceNow"`

	IncomePrev  float64 `json:"IncomePrev"`
	ExpensePrev float64 `json:"ExpensePrev"`
	ProfitPrev  float64 `json:"ProfitPrev"`
	BalancePrev float64 `json:"BalancePrev"`

	IncomeGrowthPct  float64 `json:"IncomeGrowthPct"`
	ExpenseGrowthPct float64 `json:"ExpenseGrowthPct"`
	ProfitGrowthPct  float64 `json:"ProfitGrowthPct"`
	BalanceGrowthPct float64 `json:"BalanceGrowthPct"`

	SavingsRate          float64 `json:"SavingsRate"`
	ExpenseToIncomeRatio float64 `json:"ExpenseToIncomeRatio"`
	BurnRateDaily        float64 `json:"BurnRateDaily"`
	AvgIncomeDaily       float64 `json:"AvgIncomeDaily"`
	AvgExpenseDaily      float64 `json:"AvgExpenseDaily"`
	RunwayDays           int64   `json:"RunwayDays"`

	TotalTransactions       int     `json:"TotalTransactions"`
	IncomeTransactionCount  int     `json:"IncomeTransactionCount"`
	ExpenseTransactionCount int     `json:"ExpenseTransactionCount"`
	AvgTransactionAmount    float64 `json:"AvgTransactionAmount"`
	LargestIncome           float64 `json:"LargestIncome"`
	LargestExpense          float64 `json:"LargestExpense"`

	InvestmentSummary    InvestmentSummary   `json:"InvestmentSummary"`
	NetWorth             NetWorthSummary     `json:"NetWorth"`
	TopExpenseCategories []CategoryBreakdown `json:"TopExpenseCategories"`
	TopIncomeCategories  []CategoryBreakdown `json:"TopIncomeCategories"`
	WalletSummaries      []WalletSummary     `json:"WalletSummaries"`
}

// InvestmentSummary is the whole-portfolio roll-up of a user.
// It is not scoped to the summary's period.
type InvestmentSummary struct {
	TotalInvested         float64 `json:"TotalInvested"`
	TotalCurrentValuation float64 `json:"TotalCurrentValuation"`
	TotalSoldAmount       float64 `json:"TotalSoldAmount"`
	TotalDeficit          float64 `json:"TotalDeficit"`
	UnrealizedGain        float64 `json:"UnrealizedGain"`
	RealizedGain          float64 `json:"RealizedGain"`
	InvestmentGrowthPct   float64 `json:"InvestmentGrowthPct"`
	BuyCount              int     `json:"BuyCount"`
	SellCount             int     `json:"SellCount"`
	ActivePositions       int     `json:"ActivePositions"`
}

// NetWorthSummary combines wallet balances and investment valuation
type NetWorthSummary struct {
	Total             float64 `json:"Total"`
	WalletPortion     float64 `json:"WalletPortion"`
	InvestmentPortion float64 `json:"InvestmentPortion"`
	NetWorthPrev      float64 `json:"NetWorthPrev"`
	NetWorthGrowthPct float64 `json:"NetWorthGrowthPct"`
}

// CategoryBreakdown is one ranked category of a period
type CategoryBreakdown struct {
	CategoryID       string  `json:"CategoryID"`
	CategoryName     string  `json:"CategoryName"`
	Amount           float64 `json:"Amount"`
	Percentage       float64 `json:"Percentage"`
	TransactionCount int     `json:"TransactionCount"`
}

// WalletSummary is the activity of one wallet within a period
type WalletSummary struct {
	WalletID          string  `json:"WalletID"`
	WalletName        string  `json:"WalletName"`
	WalletType        string  `json:"WalletType"`
	OpeningBalance    float64 `json:"OpeningBalance"`
	ClosingBalance    float64 `json:"ClosingBalance"`
	Income            float64 `json:"Income"`
	Expense           float64 `json:"Expense"`
	NetChange         float64 `json:"NetChange"`
	ShareOfBalancePct float64 `json:"ShareOfBalancePct"`
}

// SummaryKey is the natural key of a FinancialSummary
type SummaryKey struct {
	UserID     string
	PeriodType types.PeriodType
	PeriodKey  string
}

// Key returns the natural key used for idempotent upserts
func (s *FinancialSummary) Key() SummaryKey {
	return SummaryKey{UserID: s.UserID, PeriodType: s.PeriodType, PeriodKey: s.PeriodKey}
}

// HasWallet reports whether the wallet had activity in the period
func (s *FinancialSummary) HasWallet(walletID string) bool {
	for _, w := range s.WalletSummaries {
		if w.WalletID == walletID {
			return true
		}
	}
	return false
}
