package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/refina-analytics/internal/models"
)

// ClickHouseAnalyticsRepository mirrors the projections into ClickHouse.
// The tables are ReplacingMergeTree keyed like their Postgres counterparts, so
// re-inserting a document with a newer version replaces it on merge.
type ClickHouseAnalyticsRepository struct {
	db  *ClickHouseDB
	now func() time.Time
}

// NewClickHouseAnalyticsRepository creates a new ClickHouse mirror repository
func NewClickHouseAnalyticsRepository(db *ClickHouseDB) *ClickHouseAnalyticsRepository {
	return &ClickHouseAnalyticsRepository{db: db, now: time.Now}
}

// UpsertCategoryDaily implements AnalyticsStore
func (r *ClickHouseAnalyticsRepository) UpsertCategoryDaily(ctx context.Context, aggregates []models.CategoryDailyAggregate) error {
	if len(aggregates) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO transaction_category_summaries (user_id, wallet_id, category_id, date, wallet_name, wallet_type, category_name, category_type, total_amount, transaction_count, transactions, version)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	version := r.now()
	for _, a := range aggregates {
		txJSON, err := json.Marshal(a.Transactions)
		if err != nil {
			return fmt.Errorf("failed to marshal transactions: %w", err)
		}
		if err := batch.Append(
			a.UserID, a.WalletID, a.CategoryID, dateOnly(a.Date), a.WalletName, a.WalletType,
			a.CategoryName, string(a.CategoryType), a.TotalAmount, uint32(a.TransactionCount),
			string(txJSON), version,
		); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	return batch.Send()
}

// UpsertBalances implements AnalyticsStore
func (r *ClickHouseAnalyticsRepository) UpsertBalances(ctx context.Context, snapshots []models.BalanceSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO balance_snapshots (wallet_id, date, user_id, wallet_name, opening_balance, closing_balance, total_income, total_expense, net_change, transaction_count, cumulative_income, cumulative_expense, version)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	version := r.now()
	for _, s := range snapshots {
		if err := batch.Append(
			s.WalletID, dateOnly(s.Date), s.UserID, s.WalletName,
			s.OpeningBalance, s.ClosingBalance, s.TotalIncome, s.TotalExpense, s.NetChange,
			uint32(s.TransactionCount), s.CumulativeIncome, s.CumulativeExpense, version,
		); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	return batch.Send()
}

// UpsertSummaries implements AnalyticsStore
func (r *ClickHouseAnalyticsRepository) UpsertSummaries(ctx context.Context, summaries []models.FinancialSummary) error {
	if len(summaries) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO user_financial_summaries (user_id, period_type, period_key, period_start, period_end, income_now, expense_now, profit_now, balance_now, document, version)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	version := r.now()
	for i := range summaries {
		s := &summaries[i]
		doc, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to marshal summary %s: %w", s.PeriodKey, err)
		}
		if err := batch.Append(
			s.UserID, string(s.PeriodType), s.PeriodKey, dateOnly(s.PeriodStart), dateOnly(s.PeriodEnd),
			s.IncomeNow, s.ExpenseNow, s.ProfitNow, s.BalanceNow, string(doc), version,
		); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	return batch.Send()
}

// UpsertCompositions implements AnalyticsStore
func (r *ClickHouseAnalyticsRepository) UpsertCompositions(ctx context.Context, compositions []models.NetWorthComposition) error {
	if len(compositions) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO user_net_worth_compositions (user_id, total, slices, version)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	version := r.now()
	for _, c := range compositions {
		slicesJSON, err := json.Marshal(c.Slices)
		if err != nil {
			return fmt.Errorf("failed to marshal slices for user %s: %w", c.UserID, err)
		}
		if err := batch.Append(c.UserID, c.Total, string(slicesJSON), version); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	return batch.Send()
}
