package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/refina-analytics/internal/models"
	"github.com/refina-analytics/internal/types"
)

// AnalyticsRepository persists the projections in Postgres. Every bulk upsert
// runs as a single batch inside one transaction, so a run either replaces all
// of a projection's documents or none of them.
type AnalyticsRepository struct {
	db *PostgresDB
}

// NewAnalyticsRepository creates a new analytics repository
func NewAnalyticsRepository(db *PostgresDB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

func (r *AnalyticsRepository) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	return pgx.BeginFunc(ctx, r.db.Pool(), func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
}

const upsertCategoryDailySQL = `
	INSERT INTO transaction_category_summaries (
		user_id, wallet_id, category_id, date, wallet_name, wallet_type,
		category_name, category_type, year, month, week, day,
		total_amount, transaction_count, transactions, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
	ON CONFLICT (user_id, wallet_id, category_id, date) DO UPDATE SET
		wallet_name = EXCLUDED.wallet_name,
		wallet_type = EXCLUDED.wallet_type,
		category_name = EXCLUDED.category_name,
		category_type = EXCLUDED.category_type,
		year = EXCLUDED.year,
		month = EXCLUDED.month,
		week = EXCLUDED.week,
		day = EXCLUDED.day,
		total_amount = EXCLUDED.total_amount,
		transaction_count = EXCLUDED.transaction_count,
		transactions = EXCLUDED.transactions,
		updated_at = NOW()
`

// UpsertCategoryDaily replaces daily category aggregates by natural key
func (r *AnalyticsRepository) UpsertCategoryDaily(ctx context.Context, aggregates []models.CategoryDailyAggregate) error {
	if len(aggregates) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, a := range aggregates {
		refs := a.Transactions
		if refs == nil {
			refs = []models.TransactionRef{}
		}
		txJSON, err := json.Marshal(refs)
		if err != nil {
			return fmt.Errorf("failed to marshal transactions: %w", err)
		}
		batch.Queue(upsertCategoryDailySQL,
			a.UserID, a.WalletID, a.CategoryID, dateOnly(a.Date), a.WalletName, a.WalletType,
			a.CategoryName, string(a.CategoryType), a.Year, a.Month, a.Week, a.Day,
			a.TotalAmount, a.TransactionCount, txJSON,
		)
	}

	if err := r.sendBatch(ctx, batch); err != nil {
		return fmt.Errorf("failed to upsert category aggregates: %w", err)
	}
	return nil
}

const upsertBalanceSQL = `
	INSERT INTO balance_snapshots (
		wallet_id, date, user_id, wallet_name, year, month, week, day,
		is_month_start, is_week_start, opening_balance, closing_balance,
		total_income, total_expense, net_change, transaction_count,
		cumulative_income, cumulative_expense, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NOW())
	ON CONFLICT (wallet_id, date) DO UPDATE SET
		user_id = EXCLUDED.user_id,
		wallet_name = EXCLUDED.wallet_name,
		year = EXCLUDED.year,
		month = EXCLUDED.month,
		week = EXCLUDED.week,
		day = EXCLUDED.day,
		is_month_start = EXCLUDED.is_month_start,
		is_week_start = EXCLUDED.is_week_start,
		opening_balance = EXCLUDED.opening_balance,
		closing_balance = EXCLUDED.closing_balance,
		total_income = EXCLUDED.total_income,
		total_expense = EXCLUDED.total_expense,
		net_change = EXCLUDED.net_change,
		transaction_count = EXCLUDED.transaction_count,
		cumulative_income = EXCLUDED.cumulative_income,
		cumulative_expense = EXCLUDED.cumulative_expense,
		updated_at = NOW()
`

// UpsertBalances replaces daily balance snapshots by (wallet, date)
func (r *AnalyticsRepository) UpsertBalances(ctx context.Context, snapshots []models.BalanceSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, s := range snapshots {
		batch.Queue(upsertBalanceSQL,
			s.WalletID, dateOnly(s.Date), s.UserID, s.WalletName, s.Year, s.Month, s.Week, s.Day,
			s.IsMonthStart, s.IsWeekStart, s.OpeningBalance, s.ClosingBalance,
			s.TotalIncome, s.TotalExpense, s.NetChange, s.TransactionCount,
			s.CumulativeIncome, s.CumulativeExpense,
		)
	}

	if err := r.sendBatch(ctx, batch); err != nil {
		return fmt.Errorf("failed to upsert balance snapshots: %w", err)
	}
	return nil
}

const upsertSummarySQL = `
	INSERT INTO user_financial_summaries (
		user_id, period_type, period_key, period_start, period_end,
		income_now, expense_now, profit_now, balance_now, wallet_ids, document, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
	ON CONFLICT (user_id, period_type, period_key) DO UPDATE SET
		period_start = EXCLUDED.period_start,
		period_end = EXCLUDED.period_end,
		income_now = EXCLUDED.income_now,
		expense_now = EXCLUDED.expense_now,
		profit_now = EXCLUDED.profit_now,
		balance_now = EXCLUDED.balance_now,
		wallet_ids = EXCLUDED.wallet_ids,
		document = EXCLUDED.document,
		updated_at = NOW()
`

// UpsertSummaries replaces financial summaries by (user, period type, period key)
func (r *AnalyticsRepository) UpsertSummaries(ctx context.Context, summaries []models.FinancialSummary) error {
	if len(summaries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range summaries {
		s := &summaries[i]
		doc, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to marshal summary %s: %w", s.PeriodKey, err)
		}
		walletIDs := make([]string, 0, len(s.WalletSummaries))
		for _, w := range s.WalletSummaries {
			walletIDs = append(walletIDs, w.WalletID)
		}
		batch.Queue(upsertSummarySQL,
			s.UserID, string(s.PeriodType), s.PeriodKey, dateOnly(s.PeriodStart), dateOnly(s.PeriodEnd),
			s.IncomeNow, s.ExpenseNow, s.ProfitNow, s.BalanceNow, walletIDs, doc,
		)
	}

	if err := r.sendBatch(ctx, batch); err != nil {
		return fmt.Errorf("failed to upsert financial summaries: %w", err)
	}
	return nil
}

const upsertCompositionSQL = `
	INSERT INTO user_net_worth_compositions (user_id, total, slices, updated_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (user_id) DO UPDATE SET
		total = EXCLUDED.total,
		slices = EXCLUDED.slices,
		updated_at = NOW()
`

// UpsertCompositions replaces net-worth compositions by user
func (r *AnalyticsRepository) UpsertCompositions(ctx context.Context, compositions []models.NetWorthComposition) error {
	if len(compositions) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range compositions {
		slices := c.Slices
		if slices == nil {
			slices = []models.CompositionSlice{}
		}
		slicesJSON, err := json.Marshal(slices)
		if err != nil {
			return fmt.Errorf("failed to marshal slices for user %s: %w", c.UserID, err)
		}
		batch.Queue(upsertCompositionSQL, c.UserID, c.Total, slicesJSON)
	}

	if err := r.sendBatch(ctx, batch); err != nil {
		return fmt.Errorf("failed to upsert net worth compositions: %w", err)
	}
	return nil
}

// ListCategoryDaily returns a user's daily category aggregates ordered by date
func (r *AnalyticsRepository) ListCategoryDaily(ctx context.Context, filter ProjectionFilter) ([]models.CategoryDailyAggregate, error) {
	where := &whereClause{}
	where.add("user_id = $%d", filter.UserID)
	if filter.WalletID != "" {
		where.add("wallet_id = $%d", filter.WalletID)
	}
	if filter.From != nil {
		where.add("date >= $%d", dateOnly(*filter.From))
	}
	if filter.To != nil {
		where.add("date <= $%d", dateOnly(*filter.To))
	}

	query := `
		SELECT user_id, wallet_id, category_id, date, wallet_name, wallet_type,
			category_name, category_type, year, month, week, day,
			total_amount, transaction_count, transactions
		FROM transaction_category_summaries
		WHERE ` + where.String() + `
		ORDER BY date ASC, wallet_id ASC, category_id ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query category aggregates: %w", err)
	}
	defer rows.Close()

	aggregates := []models.CategoryDailyAggregate{}
	for rows.Next() {
		var a models.CategoryDailyAggregate
		var categoryType string
		var txJSON []byte
		if err := rows.Scan(
			&a.UserID, &a.WalletID, &a.CategoryID, &a.Date, &a.WalletName, &a.WalletType,
			&a.CategoryName, &categoryType, &a.Year, &a.Month, &a.Week, &a.Day,
			&a.TotalAmount, &a.TransactionCount, &txJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan category aggregate: %w", err)
		}
		a.CategoryType = types.CategoryType(categoryType)
		if err := json.Unmarshal(txJSON, &a.Transactions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transactions: %w", err)
		}
		aggregates = append(aggregates, a)
	}

	return aggregates, rows.Err()
}

// ListBalances returns a user's daily balance snapshots ordered by wallet then date
func (r *AnalyticsRepository) ListBalances(ctx context.Context, filter ProjectionFilter) ([]models.BalanceSnapshot, error) {
	where := &whereClause{}
	where.add("user_id = $%d", filter.UserID)
	if filter.WalletID != "" {
		where.add("wallet_id = $%d", filter.WalletID)
	}
	if filter.From != nil {
		where.add("date >= $%d", dateOnly(*filter.From))
	}
	if filter.To != nil {
		where.add("date <= $%d", dateOnly(*filter.To))
	}

	query := `
		SELECT wallet_id, date, user_id, wallet_name, year, month, week, day,
			is_month_start, is_week_start, opening_balance, closing_balance,
			total_income, total_expense, net_change, transaction_count,
			cumulative_income, cumulative_expense
		FROM balance_snapshots
		WHERE ` + where.String() + `
		ORDER BY wallet_id ASC, date ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query balance snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []models.BalanceSnapshot{}
	for rows.Next() {
		var s models.BalanceSnapshot
		if err := rows.Scan(
			&s.WalletID, &s.Date, &s.UserID, &s.WalletName, &s.Year, &s.Month, &s.Week, &s.Day,
			&s.IsMonthStart, &s.IsWeekStart, &s.OpeningBalance, &s.ClosingBalance,
			&s.TotalIncome, &s.TotalExpense, &s.NetChange, &s.TransactionCount,
			&s.CumulativeIncome, &s.CumulativeExpense,
		); err != nil {
			return nil, fmt.Errorf("failed to scan balance snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}

	return snapshots, rows.Err()
}

// ListSummaries returns a user's financial summaries ordered by period start.
// A wallet filter keeps only periods in which that wallet had activity; the
// date range keeps periods lying entirely within [From, To].
func (r *AnalyticsRepository) ListSummaries(ctx context.Context, filter ProjectionFilter) ([]models.FinancialSummary, error) {
	where := &whereClause{}
	where.add("user_id = $%d", filter.UserID)
	if filter.WalletID != "" {
		where.add("$%d = ANY(wallet_ids)", filter.WalletID)
	}
	if filter.From != nil {
		where.add("period_start >= $%d", dateOnly(*filter.From))
	}
	if filter.To != nil {
		where.add("period_end <= $%d", dateOnly(*filter.To))
	}

	query := `
		SELECT document
		FROM user_financial_summaries
		WHERE ` + where.String() + `
		ORDER BY period_start ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query financial summaries: %w", err)
	}
	defer rows.Close()

	summaries := []models.FinancialSummary{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan financial summary: %w", err)
		}
		var s models.FinancialSummary
		if err := json.Unmarshal(doc, &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal financial summary: %w", err)
		}
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

// GetComposition returns the net-worth composition of a user
func (r *AnalyticsRepository) GetComposition(ctx context.Context, userID string) (*models.NetWorthComposition, error) {
	query := `
		SELECT user_id, total, slices
		FROM user_net_worth_compositions
		WHERE user_id = $1
	`

	var c models.NetWorthComposition
	var slicesJSON []byte
	err := r.db.Pool().QueryRow(ctx, query, userID).Scan(&c.UserID, &c.Total, &slicesJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get net worth composition: %w", err)
	}
	if err := json.Unmarshal(slicesJSON, &c.Slices); err != nil {
		return nil, fmt.Errorf("failed to unmarshal composition slices: %w", err)
	}

	return &c, nil
}
