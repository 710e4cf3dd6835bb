package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	apperrors "github.com/refina-analytics/internal/errors"
	"github.com/refina-analytics/internal/models"
	"github.com/refina-analytics/internal/storage"
	"github.com/refina-analytics/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T {
	return &v
}

func newCache(t *testing.T) (*storage.CacheService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return storage.NewCacheService(storage.NewRedisCacheFromClient(client), time.Minute), mr
}

func TestDateOption_Precedence(t *testing.T) {
	exact := date(2024, 3, 5)
	rangeStart, rangeEnd := date(2024, 1, 1), date(2024, 1, 31)

	tests := []struct {
		name     string
		option   DateOption
		wantFrom *time.Time
		wantTo   *time.Time
	}{
		{"all time", DateOption{}, nil, nil},
		{"exact date beats everything", DateOption{Date: &exact, Year: 2023, Range: &DateRange{Start: &rangeStart, End: &rangeEnd}}, &exact, &exact},
		{"range beats year", DateOption{Year: 2023, Range: &DateRange{Start: &rangeStart, End: &rangeEnd}}, &rangeStart, &rangeEnd},
		{"half-open range is ignored", DateOption{Year: 2023, Range: &DateRange{Start: &rangeStart}}, ptr(date(2023, 1, 1)), ptr(date(2023, 12, 31))},
		{"year month day", DateOption{Year: 2024, Month: 2, Day: 29}, ptr(date(2024, 2, 29)), ptr(date(2024, 2, 29))},
		{"year month", DateOption{Year: 2024, Month: 2}, ptr(date(2024, 2, 1)), ptr(date(2024, 2, 29))},
		{"year", DateOption{Year: 2024}, ptr(date(2024, 1, 1)), ptr(date(2024, 12, 31))},
		{"day without month falls back to year", DateOption{Year: 2024, Day: 3}, ptr(date(2024, 1, 1)), ptr(date(2024, 12, 31))},
		{"month without year is all time", DateOption{Month: 4}, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := tt.option.bounds()
			assert.Equal(t, tt.wantFrom, from)
			assert.Equal(t, tt.wantTo, to)
		})
	}
}

func TestQueryService_CategoryTotals(t *testing.T) {
	reader := &fakeReader{aggregates: []models.CategoryDailyAggregate{
		{CategoryID: "food", CategoryName: "Food", CategoryType: types.CategoryExpense, TotalAmount: 40, TransactionCount: 2},
		{CategoryID: "salary", CategoryName: "Salary", CategoryType: types.CategoryIncome, TotalAmount: 500, TransactionCount: 1},
		{CategoryID: "food", CategoryName: "Food", CategoryType: types.CategoryExpense, TotalAmount: 60, TransactionCount: 3},
		{CategoryID: "bills", CategoryName: "Bills", CategoryType: types.CategoryExpense, TotalAmount: 100, TransactionCount: 1},
	}}
	svc := NewQueryService(reader, nil)

	totals, err := svc.CategoryTotals(context.Background(), CategoryTotalsQuery{
		UserID:     "u1",
		WalletID:   "w1",
		DateOption: DateOption{Year: 2024, Month: 3},
	})
	require.NoError(t, err)

	assert.Equal(t, []CategoryTotal{
		{CategoryID: "salary", CategoryName: "Salary", CategoryType: types.CategoryIncome, TotalAmount: 500, TotalTransactions: 1},
		{CategoryID: "bills", CategoryName: "Bills", CategoryType: types.CategoryExpense, TotalAmount: 100, TotalTransactions: 1},
		{CategoryID: "food", CategoryName: "Food", CategoryType: types.CategoryExpense, TotalAmount: 100, TotalTransactions: 5},
	}, totals)

	require.Len(t, reader.filters, 1)
	filter := reader.filters[0]
	assert.Equal(t, "u1", filter.UserID)
	assert.Equal(t, "w1", filter.WalletID)
	assert.Equal(t, ptr(date(2024, 3, 1)), filter.From)
	assert.Equal(t, ptr(date(2024, 3, 31)), filter.To)
}

func TestQueryService_CategoryTotalsEmpty(t *testing.T) {
	svc := NewQueryService(&fakeReader{}, nil)

	totals, err := svc.CategoryTotals(context.Background(), CategoryTotalsQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.NotNil(t, totals)
	assert.Empty(t, totals)
}

func balanceDay(walletID string, d time.Time, week int, opening, income, expense float64) models.BalanceSnapshot {
	return models.BalanceSnapshot{
		UserID: "u1", WalletID: walletID, WalletName: "Wallet " + walletID,
		Date: d, Year: d.Year(), Month: int(d.Month()), Week: week, Day: d.Day(),
		OpeningBalance: opening, ClosingBalance: opening + income - expense,
		TotalIncome: income, TotalExpense: expense, NetChange: income - expense, TransactionCount: 1,
	}
}

func balanceReader() *fakeReader {
	return &fakeReader{balances: []models.BalanceSnapshot{
		balanceDay("w1", date(2024, 1, 30), 5, 1000, 0, 100),
		balanceDay("w1", date(2024, 2, 2), 5, 900, 300, 0),
		balanceDay("w1", date(2024, 2, 12), 7, 1200, 0, 200),
		balanceDay("w2", date(2024, 2, 1), 5, 50, 50, 0),
	}}
}

func TestQueryService_BalancesDaily(t *testing.T) {
	svc := NewQueryService(balanceReader(), nil)

	points, err := svc.Balances(context.Background(), BalanceQuery{UserID: "u1", Aggregation: types.AggregationDaily})
	require.NoError(t, err)
	require.Len(t, points, 4)

	assert.Equal(t, "w1", points[0].WalletID)
	assert.Equal(t, "w2", points[1].WalletID, "rows are ordered by date across wallets")
	assert.Equal(t, ptr(date(2024, 2, 1)), points[1].Date)
	assert.Equal(t, 1, points[1].Day)
	assert.Equal(t, 900.0, points[0].ClosingBalance)
}

func TestQueryService_BalancesMonthlyPerWallet(t *testing.T) {
	svc := NewQueryService(balanceReader(), nil)

	points, err := svc.Balances(context.Background(), BalanceQuery{UserID: "u1", Aggregation: types.AggregationMonthly})
	require.NoError(t, err)

	assert.Equal(t, []BalancePoint{
		{WalletID: "w1", WalletName: "Wallet w1", Year: 2024, Month: 1, OpeningBalance: 1000, ClosingBalance: 900, TotalExpense: 100, NetChange: -100, TransactionCount: 1},
		{WalletID: "w1", WalletName: "Wallet w1", Year: 2024, Month: 2, OpeningBalance: 900, ClosingBalance: 1000, TotalIncome: 300, TotalExpense: 200, NetChange: 100, TransactionCount: 2},
		{WalletID: "w2", WalletName: "Wallet w2", Year: 2024, Month: 2, OpeningBalance: 50, ClosingBalance: 100, TotalIncome: 50, NetChange: 50, TransactionCount: 1},
	}, points)
}

func TestQueryService_BalancesWeeklySingleWallet(t *testing.T) {
	reader := balanceReader()
	svc := NewQueryService(reader, nil)
	rangeStart, rangeEnd := date(2024, 1, 1), date(2024, 2, 29)

	points, err := svc.Balances(context.Background(), BalanceQuery{
		UserID:      "u1",
		WalletID:    "w1",
		Aggregation: types.AggregationWeekly,
		Range:       &DateRange{Start: &rangeStart, End: &rangeEnd},
	})
	require.NoError(t, err)

	assert.Equal(t, []BalancePoint{
		{Year: 2024, Week: 5, OpeningBalance: 1000, ClosingBalance: 1200, TotalIncome: 300, TotalExpense: 100, NetChange: 200, TransactionCount: 2},
		{Year: 2024, Week: 7, OpeningBalance: 1200, ClosingBalance: 1000, TotalExpense: 200, NetChange: -200, TransactionCount: 1},
	}, points)

	require.Len(t, reader.filters, 1)
	assert.Equal(t, &rangeStart, reader.filters[0].From)
	assert.Equal(t, &rangeEnd, reader.filters[0].To)
}

func TestQueryService_BalancesRejectsUnknownAggregation(t *testing.T) {
	reader := balanceReader()
	svc := NewQueryService(reader, nil)

	_, err := svc.Balances(context.Background(), BalanceQuery{UserID: "u1", Aggregation: "yearly"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperrors.GetHTTPStatusCode(err))
	assert.Zero(t, reader.calls)
}

func TestQueryService_FinancialSummariesWalletFilter(t *testing.T) {
	reader := &fakeReader{summaries: []models.FinancialSummary{
		{UserID: "u1", PeriodKey: "2024-01", WalletSummaries: []models.WalletSummary{{WalletID: "w1"}, {WalletID: "w2"}}},
		{UserID: "u1", PeriodKey: "2024-02", WalletSummaries: []models.WalletSummary{{WalletID: "w2"}}},
	}}
	svc := NewQueryService(reader, nil)

	all, err := svc.FinancialSummaries(context.Background(), SummaryQuery{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Len(t, all[0].WalletSummaries, 2)

	filtered, err := svc.FinancialSummaries(context.Background(), SummaryQuery{UserID: "u1", WalletID: "w1"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "2024-01", filtered[0].PeriodKey)
	assert.Equal(t, []models.WalletSummary{{WalletID: "w1"}}, filtered[0].WalletSummaries)

	assert.Len(t, reader.summaries[0].WalletSummaries, 2, "stored documents are not mutated")
}

func TestQueryService_NetWorthComposition(t *testing.T) {
	reader := &fakeReader{composition: &models.NetWorthComposition{UserID: "u1", Total: 1700}}
	svc := NewQueryService(reader, nil)

	composition, err := svc.NetWorthComposition(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1700.0, composition.Total)

	_, err = svc.NetWorthComposition(context.Background(), "u2")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, apperrors.GetHTTPStatusCode(err))
}

func TestQueryService_DatabaseErrors(t *testing.T) {
	reader := &fakeReader{err: errors.New("connection reset")}
	svc := NewQueryService(reader, nil)

	_, err := svc.CategoryTotals(context.Background(), CategoryTotalsQuery{UserID: "u1"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CategoryDatabase, apperrors.Categorize(err).Category)

	_, err = svc.NetWorthComposition(context.Background(), "u1")
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, apperrors.GetHTTPStatusCode(err))
}

func TestQueryService_ReadThroughCache(t *testing.T) {
	cache, mr := newCache(t)
	reader := balanceReader()
	svc := NewQueryService(reader, cache)
	ctx := context.Background()
	query := BalanceQuery{UserID: "u1", Aggregation: types.AggregationMonthly}

	first, err := svc.Balances(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, 1, reader.calls)
	assert.Len(t, mr.Keys(), 1)

	second, err := svc.Balances(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, 1, reader.calls, "second read is served from cache")
	assert.Equal(t, first, second)

	_, err = svc.Balances(ctx, BalanceQuery{UserID: "u1", Aggregation: types.AggregationWeekly})
	require.NoError(t, err)
	assert.Equal(t, 2, reader.calls, "different parameters miss the cache")

	n, err := cache.InvalidateUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = svc.Balances(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, 3, reader.calls)

	stats := svc.Stats()
	assert.Equal(t, int64(4), stats.TotalQueries)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(4), stats.PerQuery[string(storage.CacheKeyBalances)])
}

func TestQueryService_CacheOutageFallsThrough(t *testing.T) {
	cache, mr := newCache(t)
	reader := &fakeReader{composition: &models.NetWorthComposition{UserID: "u1", Total: 10}}
	svc := NewQueryService(reader, cache)
	mr.Close()

	composition, err := svc.NetWorthComposition(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, composition.Total)
	assert.Equal(t, 1, reader.calls)
}
