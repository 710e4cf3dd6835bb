package service

import (
	"context"
	"errors"
	"sort"
	"time"

	apperrors "github.com/refina-analytics/internal/errors"
	"github.com/refina-analytics/internal/logging"
	"github.com/refina-analytics/internal/models"
	"github.com/refina-analytics/internal/storage"
	"github.com/refina-analytics/internal/types"
)

// ProjectionReader is the read side of the projection store
type ProjectionReader interface {
	ListCategoryDaily(ctx context.Context, filter storage.ProjectionFilter) ([]models.CategoryDailyAggregate, error)
	ListBalances(ctx context.Context, filter storage.ProjectionFilter) ([]models.BalanceSnapshot, error)
	ListSummaries(ctx context.Context, filter storage.ProjectionFilter) ([]models.FinancialSummary, error)
	GetComposition(ctx context.Context, userID string) (*models.NetWorthComposition, error)
}

// QueryCache is the read-through cache in front of ProjectionReader
type QueryCache interface {
	GenerateCacheKey(keyType storage.CacheKeyType, userID string, params interface{}) (string, error)
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
}

// DateRange is an inclusive calendar-date range. It only applies when both
// ends are set.
type DateRange struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

func (r *DateRange) complete() bool {
	return r != nil && r.Start != nil && r.End != nil
}

// DateOption selects the days a category query covers. The first applicable
// filter wins: exact date, range, year+month+day, year+month, year.
// Nothing set means all time.
type DateOption struct {
	Date  *time.Time `json:"date,omitempty"`
	Year  int        `json:"year,omitempty"`
	Month int        `json:"month,omitempty"`
	Day   int        `json:"day,omitempty"`
	Range *DateRange `json:"range,omitempty"`
}

// bounds resolves the option to an inclusive date window
func (o DateOption) bounds() (from, to *time.Time) {
	switch {
	case o.Date != nil:
		d := *o.Date
		return &d, &d
	case o.Range.complete():
		return o.Range.Start, o.Range.End
	case o.Year > 0 && o.Month > 0 && o.Day > 0:
		d := time.Date(o.Year, time.Month(o.Month), o.Day, 0, 0, 0, 0, time.UTC)
		return &d, &d
	case o.Year > 0 && o.Month > 0:
		start := time.Date(o.Year, time.Month(o.Month), 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, -1)
		return &start, &end
	case o.Year > 0:
		start := time.Date(o.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(o.Year, time.December, 31, 0, 0, 0, 0, time.UTC)
		return &start, &end
	}
	return nil, nil
}

// CategoryTotalsQuery is the input of CategoryTotals
type CategoryTotalsQuery struct {
	UserID     string     `json:"userID"`
	WalletID   string     `json:"walletID,omitempty"`
	DateOption DateOption `json:"dateOption"`
}

// CategoryTotal is the sum of one category over the selected days
type CategoryTotal struct {
	CategoryID        string             `json:"CategoryID"`
	CategoryName      string             `json:"CategoryName"`
	CategoryType      types.CategoryType `json:"CategoryType"`
	TotalAmount       float64            `json:"TotalAmount"`
	TotalTransactions int                `json:"TotalTransactions"`
}

// BalanceQuery is the input of Balances
type BalanceQuery struct {
	UserID      string            `json:"userID"`
	WalletID    string            `json:"walletID,omitempty"`
	Aggregation types.Aggregation `json:"aggregation"`
	Range       *DateRange        `json:"range,omitempty"`
}

// BalancePoint is one row of a balance history. Daily rows carry Date and
// Day; weekly rows carry Week; monthly rows carry Month. Wallet fields are
// omitted from roll-ups of a single wallet.
type BalancePoint struct {
	WalletID         string     `json:"WalletID,omitempty"`
	WalletName       string     `json:"WalletName,omitempty"`
	Date             *time.Time `json:"Date,omitempty"`
	Year             int        `json:"Year"`
	Month            int        `json:"Month,omitempty"`
	Week             int        `json:"Week,omitempty"`
	Day              int        `json:"Day,omitempty"`
	OpeningBalance   float64    `json:"OpeningBalance"`
	ClosingBalance   float64    `json:"ClosingBalance"`
	TotalIncome      float64    `json:"TotalIncome"`
	TotalExpense     float64    `json:"TotalExpense"`
	NetChange        float64    `json:"NetChange"`
	TransactionCount int        `json:"TransactionCount"`
}

// SummaryQuery is the input of FinancialSummaries
type SummaryQuery struct {
	UserID   string     `json:"userID"`
	WalletID string     `json:"walletID,omitempty"`
	Range    *DateRange `json:"range,omitempty"`
}

// QueryService serves the materialized projections to the HTTP API.
// Results are cached in Redis until the next sync run invalidates them.
type QueryService struct {
	reader  ProjectionReader
	cache   QueryCache
	monitor *PerformanceMonitor
}

// NewQueryService creates a new query service. cache may be nil.
func NewQueryService(reader ProjectionReader, cache QueryCache) *QueryService {
	return &QueryService{
		reader:  reader,
		cache:   cache,
		monitor: NewPerformanceMonitor(),
	}
}

// Stats returns read-side performance statistics
func (s *QueryService) Stats() *PerformanceStats {
	return s.monitor.GetStats()
}

// cached runs load behind the read-through cache. Cache failures are logged
// and fall through to the database.
func cached[T any](ctx context.Context, s *QueryService, keyType storage.CacheKeyType, userID string, params interface{}, load func() (T, error)) (T, error) {
	start := time.Now()
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"query":   string(keyType),
		"user_id": userID,
	})

	var key string
	if s.cache != nil {
		var err error
		key, err = s.cache.GenerateCacheKey(keyType, userID, params)
		if err != nil {
			logger.WithError(err).Warn("failed to build cache key")
		} else {
			var hit T
			found, err := s.cache.Get(ctx, key, &hit)
			if err != nil {
				logger.WithError(err).Warn("cache read failed")
			} else if found {
				s.monitor.RecordQuery(string(keyType), time.Since(start), true)
				return hit, nil
			}
		}
	}

	value, err := load()
	if err != nil {
		var zero T
		return zero, err
	}

	if key != "" {
		if err := s.cache.Set(ctx, key, value); err != nil {
			logger.WithError(err).Warn("cache write failed")
		}
	}

	elapsed := time.Since(start)
	if s.monitor.RecordQuery(string(keyType), elapsed, false) {
		logger.WithField("duration_ms", elapsed.Milliseconds()).Warn("slow query")
	}
	return value, nil
}

// CategoryTotals sums a user's daily category aggregates per category over
// the selected days, largest total first
func (s *QueryService) CategoryTotals(ctx context.Context, q CategoryTotalsQuery) ([]CategoryTotal, error) {
	return cached(ctx, s, storage.CacheKeyCategoryTotals, q.UserID, q, func() ([]CategoryTotal, error) {
		from, to := q.DateOption.bounds()
		aggregates, err := s.reader.ListCategoryDaily(ctx, storage.ProjectionFilter{
			UserID:   q.UserID,
			WalletID: q.WalletID,
			From:     from,
			To:       to,
		})
		if err != nil {
			return nil, apperrors.NewDatabaseError("list category aggregates", err)
		}
		return totalByCategory(aggregates), nil
	})
}

func totalByCategory(aggregates []models.CategoryDailyAggregate) []CategoryTotal {
	type categoryKey struct {
		id, name string
		kind     types.CategoryType
	}
	index := make(map[categoryKey]int)
	totals := []CategoryTotal{}

	for _, a := range aggregates {
		key := categoryKey{a.CategoryID, a.CategoryName, a.CategoryType}
		i, ok := index[key]
		if !ok {
			i = len(totals)
			index[key] = i
			totals = append(totals, CategoryTotal{
				CategoryID:   a.CategoryID,
				CategoryName: a.CategoryName,
				CategoryType: a.CategoryType,
			})
		}
		totals[i].TotalAmount += a.TotalAmount
		totals[i].TotalTransactions += a.TransactionCount
	}

	sort.SliceStable(totals, func(i, j int) bool {
		if totals[i].TotalAmount != totals[j].TotalAmount {
			return totals[i].TotalAmount > totals[j].TotalAmount
		}
		return totals[i].CategoryID < totals[j].CategoryID
	})
	return totals
}

// Balances returns a user's balance history at the requested granularity
func (s *QueryService) Balances(ctx context.Context, q BalanceQuery) ([]BalancePoint, error) {
	if !q.Aggregation.Valid() {
		return nil, apperrors.NewValidationError("aggregation", "must be one of daily, weekly, monthly")
	}

	return cached(ctx, s, storage.CacheKeyBalances, q.UserID, q, func() ([]BalancePoint, error) {
		filter := storage.ProjectionFilter{UserID: q.UserID, WalletID: q.WalletID}
		if q.Range.complete() {
			filter.From, filter.To = q.Range.Start, q.Range.End
		}

		snapshots, err := s.reader.ListBalances(ctx, filter)
		if err != nil {
			return nil, apperrors.NewDatabaseError("list balance snapshots", err)
		}

		sort.SliceStable(snapshots, func(i, j int) bool {
			return snapshots[i].Date.Before(snapshots[j].Date)
		})

		if q.Aggregation == types.AggregationDaily {
			return dailyPoints(snapshots), nil
		}
		return rollUpBalances(snapshots, q.Aggregation, q.WalletID == ""), nil
	})
}

func dailyPoints(snapshots []models.BalanceSnapshot) []BalancePoint {
	points := make([]BalancePoint, 0, len(snapshots))
	for _, snap := range snapshots {
		date := snap.Date
		points = append(points, BalancePoint{
			WalletID:         snap.WalletID,
			WalletName:       snap.WalletName,
			Date:             &date,
			Year:             snap.Year,
			Month:            snap.Month,
			Day:              snap.Day,
			OpeningBalance:   snap.OpeningBalance,
			ClosingBalance:   snap.ClosingBalance,
			TotalIncome:      snap.TotalIncome,
			TotalExpense:     snap.TotalExpense,
			NetChange:        snap.NetChange,
			TransactionCount: snap.TransactionCount,
		})
	}
	return points
}

type rollupKey struct {
	year, period int
	walletID     string
}

// rollUpBalances folds date-ordered daily snapshots into weekly or monthly
// rows: opening from the first day, closing from the last, flows summed.
// perWallet keeps one row per wallet and period.
func rollUpBalances(snapshots []models.BalanceSnapshot, aggregation types.Aggregation, perWallet bool) []BalancePoint {
	index := make(map[rollupKey]int)
	keys := []rollupKey{}
	points := []BalancePoint{}

	for _, snap := range snapshots {
		key := rollupKey{year: snap.Year, period: snap.Month}
		if aggregation == types.AggregationWeekly {
			key.period = snap.Week
		}
		if perWallet {
			key.walletID = snap.WalletID
		}

		i, ok := index[key]
		if !ok {
			i = len(points)
			index[key] = i
			keys = append(keys, key)
			point := BalancePoint{Year: snap.Year, OpeningBalance: snap.OpeningBalance}
			if aggregation == types.AggregationWeekly {
				point.Week = snap.Week
			} else {
				point.Month = snap.Month
			}
			if perWallet {
				point.WalletID = snap.WalletID
				point.WalletName = snap.WalletName
			}
			points = append(points, point)
		}

		p := &points[i]
		p.ClosingBalance = snap.ClosingBalance
		p.TotalIncome += snap.TotalIncome
		p.TotalExpense += snap.TotalExpense
		p.NetChange += snap.NetChange
		p.TransactionCount += snap.TransactionCount
	}

	order := make([]int, len(points))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ka, kb := keys[order[a]], keys[order[b]]
		if ka.year != kb.year {
			return ka.year < kb.year
		}
		if ka.period != kb.period {
			return ka.period < kb.period
		}
		return ka.walletID < kb.walletID
	})

	sorted := make([]BalancePoint, len(points))
	for i, idx := range order {
		sorted[i] = points[idx]
	}
	return sorted
}

// FinancialSummaries returns a user's monthly summaries ordered by period.
// With a wallet filter only periods in which the wallet was active are kept
// and their wallet breakdown is narrowed to that wallet.
func (s *QueryService) FinancialSummaries(ctx context.Context, q SummaryQuery) ([]models.FinancialSummary, error) {
	return cached(ctx, s, storage.CacheKeySummaries, q.UserID, q, func() ([]models.FinancialSummary, error) {
		filter := storage.ProjectionFilter{UserID: q.UserID, WalletID: q.WalletID}
		if q.Range.complete() {
			filter.From, filter.To = q.Range.Start, q.Range.End
		}

		summaries, err := s.reader.ListSummaries(ctx, filter)
		if err != nil {
			return nil, apperrors.NewDatabaseError("list financial summaries", err)
		}

		if q.WalletID == "" {
			return summaries, nil
		}

		filtered := make([]models.FinancialSummary, 0, len(summaries))
		for _, summary := range summaries {
			if !summary.HasWallet(q.WalletID) {
				continue
			}
			wallets := summary.WalletSummaries
			summary.WalletSummaries = nil
			for _, w := range wallets {
				if w.WalletID == q.WalletID {
					summary.WalletSummaries = append(summary.WalletSummaries, w)
				}
			}
			filtered = append(filtered, summary)
		}
		return filtered, nil
	})
}

// NetWorthComposition returns the current net-worth split of a user
func (s *QueryService) NetWorthComposition(ctx context.Context, userID string) (*models.NetWorthComposition, error) {
	return cached(ctx, s, storage.CacheKeyComposition, userID, struct{}{}, func() (*models.NetWorthComposition, error) {
		composition, err := s.reader.GetComposition(ctx, userID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, apperrors.NewNotFoundError("net worth composition", userID)
			}
			return nil, apperrors.NewDatabaseError("get net worth composition", err)
		}
		return composition, nil
	})
}
