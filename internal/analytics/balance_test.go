package analytics

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/refina-analytics/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalanceReconstructor_TwoDayHistory(t *testing.T) {
	wallets := []models.Wallet{wallet("W", "u1", 1000)}
	txs := []models.Transaction{
		income("t1", "W", "salary", 300, day(2024, time.January, 1)),
		expense("t2", "W", "food", 100, day(2024, time.January, 2)),
	}

	snapshots := NewBalanceReconstructor(time.UTC).Reconstruct(txs, wallets)
	require.Len(t, snapshots, 2)

	first, second := snapshots[0], snapshots[1]

	assert.Equal(t, 1, first.Day)
	assert.Equal(t, 800.0, first.OpeningBalance)
	assert.Equal(t, 1100.0, first.ClosingBalance)
	assert.Equal(t, 300.0, first.TotalIncome)
	assert.Equal(t, 0.0, first.TotalExpense)
	assert.Equal(t, 300.0, first.NetChange)
	assert.Equal(t, 1, first.TransactionCount)
	assert.True(t, first.IsMonthStart)
	assert.True(t, first.IsWeekStart)

	assert.Equal(t, 2, second.Day)
	assert.Equal(t, 1100.0, second.OpeningBalance)
	assert.Equal(t, 1000.0, second.ClosingBalance)
	assert.Equal(t, -100.0, second.NetChange)
	assert.False(t, second.IsMonthStart)
	assert.False(t, second.IsWeekStart)

	// cumulative totals accrue oldest to newest
	assert.Equal(t, 300.0, first.CumulativeIncome)
	assert.Equal(t, 0.0, first.CumulativeExpense)
	assert.Equal(t, 300.0, second.CumulativeIncome)
	assert.Equal(t, 100.0, second.CumulativeExpense)
}

func TestBalanceReconstructor_FractionalAmounts(t *testing.T) {
	wallets := []models.Wallet{wallet("W", "u1", 0.3)}
	txs := []models.Transaction{
		income("t1", "W", "refund", 0.1, day(2024, time.May, 1)),
		income("t2", "W", "refund", 0.2, day(2024, time.May, 2)),
		expense("t3", "W", "fee", 0.7, day(2024, time.May, 3)),
		income("t4", "W", "refund", 0.1, day(2024, time.May, 3)),
	}

	snapshots := NewBalanceReconstructor(time.UTC).Reconstruct(txs, wallets)
	require.Len(t, snapshots, 3)

	assert.Equal(t, 0.6, snapshots[0].OpeningBalance)
	assert.Equal(t, 0.7, snapshots[0].ClosingBalance)
	assert.Equal(t, 0.7, snapshots[1].OpeningBalance)
	assert.Equal(t, 0.9, snapshots[1].ClosingBalance)
	assert.Equal(t, 0.9, snapshots[2].OpeningBalance)
	assert.Equal(t, 0.3, snapshots[2].ClosingBalance)
	assert.Equal(t, -0.6, snapshots[2].NetChange)

	assert.Equal(t, snapshots[0].TotalIncome, snapshots[0].CumulativeIncome)
	assert.Equal(t, 0.1, snapshots[0].CumulativeIncome)
	assert.Equal(t, 0.3, snapshots[1].CumulativeIncome)
	assert.Equal(t, 0.4, snapshots[2].CumulativeIncome)
	assert.Equal(t, 0.0, snapshots[1].CumulativeExpense)
	assert.Equal(t, 0.7, snapshots[2].CumulativeExpense)
}

func TestBalanceReconstructor_SameDayTransactions(t *testing.T) {
	wallets := []models.Wallet{wallet("W", "u1", 500)}
	txs := []models.Transaction{
		income("t1", "W", "salary", 200, day(2024, time.June, 10)),
		expense("t2", "W", "food", 50, day(2024, time.June, 10)),
		expense("t3", "W", "fuel", 25, day(2024, time.June, 10)),
	}

	snapshots := NewBalanceReconstructor(time.UTC).Reconstruct(txs, wallets)
	require.Len(t, snapshots, 1)
	assert.Equal(t, 375.0, snapshots[0].OpeningBalance)
	assert.Equal(t, 500.0, snapshots[0].ClosingBalance)
	assert.Equal(t, 3, snapshots[0].TransactionCount)
}

func TestBalanceReconstructor_SkipsIdleAndUnknownWallets(t *testing.T) {
	wallets := []models.Wallet{wallet("busy", "u1", 100), wallet("idle", "u1", 9000)}
	txs := []models.Transaction{
		income("t1", "busy", "salary", 40, day(2024, time.February, 3)),
		income("t2", "missing", "salary", 40, day(2024, time.February, 3)),
	}

	snapshots := NewBalanceReconstructor(time.UTC).Reconstruct(txs, wallets)
	require.Len(t, snapshots, 1)
	assert.Equal(t, "busy", snapshots[0].WalletID)
	assert.Equal(t, "u1", snapshots[0].UserID)
}

func TestBalanceReconstructor_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	// amounts encode direction (even = income) and day offset (mod 45)
	build := func(balance int, amounts []int) ([]models.Transaction, []models.Wallet) {
		wallets := []models.Wallet{wallet("W", "u1", float64(balance))}
		base := day(2024, time.March, 1)
		txs := make([]models.Transaction, 0, len(amounts))
		for i, amount := range amounts {
			at := base.AddDate(0, 0, amount%45)
			id := string(rune('a' + i%26))
			if amount%2 == 0 {
				txs = append(txs, income(id, "W", "in", float64(amount), at))
			} else {
				txs = append(txs, expense(id, "W", "out", float64(amount), at))
			}
		}
		return txs, wallets
	}

	properties.Property("each day closes at opening plus net change", prop.ForAll(
		func(balance int, amounts []int) bool {
			txs, wallets := build(balance, amounts)
			for _, s := range NewBalanceReconstructor(time.UTC).Reconstruct(txs, wallets) {
				if s.ClosingBalance != s.OpeningBalance+s.TotalIncome-s.TotalExpense {
					return false
				}
			}
			return true
		},
		gen.IntRange(-1_000_000, 1_000_000),
		gen.SliceOf(gen.IntRange(1, 100_000)),
	))

	properties.Property("newest day closes at the current balance", prop.ForAll(
		func(balance int, amounts []int) bool {
			txs, wallets := build(balance, amounts)
			snapshots := NewBalanceReconstructor(time.UTC).Reconstruct(txs, wallets)
			return snapshots[len(snapshots)-1].ClosingBalance == float64(balance)
		},
		gen.IntRange(-1_000_000, 1_000_000),
		gen.SliceOfN(8, gen.IntRange(1, 100_000)),
	))

	properties.Property("consecutive days chain closing into opening", prop.ForAll(
		func(balance int, amounts []int) bool {
			txs, wallets := build(balance, amounts)
			snapshots := NewBalanceReconstructor(time.UTC).Reconstruct(txs, wallets)
			for i := 1; i < len(snapshots); i++ {
				if !snapshots[i-1].Date.Before(snapshots[i].Date) {
					return false
				}
				if snapshots[i].OpeningBalance != snapshots[i-1].ClosingBalance {
					return false
				}
			}
			return true
		},
		gen.IntRange(-1_000_000, 1_000_000),
		gen.SliceOf(gen.IntRange(1, 100_000)),
	))

	properties.Property("cumulative totals never decrease over time", prop.ForAll(
		func(balance int, amounts []int) bool {
			txs, wallets := build(balance, amounts)
			snapshots := NewBalanceReconstructor(time.UTC).Reconstruct(txs, wallets)
			for i := 1; i < len(snapshots); i++ {
				if snapshots[i].CumulativeIncome < snapshots[i-1].CumulativeIncome ||
					snapshots[i].CumulativeExpense < snapshots[i-1].CumulativeExpense {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 1_000_000),
		gen.SliceOf(gen.IntRange(1, 100_000)),
	))

	properties.TestingRun(t)
}

func TestBalanceReconstructor_CentAmountProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	// cents encode direction (even = income) and day offset (mod 31)
	build := func(balanceCents int64, cents []int64) ([]models.Transaction, []models.Wallet) {
		wallets := []models.Wallet{wallet("W", "u1", float64(balanceCents)/100)}
		base := day(2024, time.July, 1)
		txs := make([]models.Transaction, 0, len(cents))
		for i, c := range cents {
			at := base.AddDate(0, 0, int(c%31))
			id := string(rune('a' + i%26))
			if c%2 == 0 {
				txs = append(txs, income(id, "W", "in", float64(c)/100, at))
			} else {
				txs = append(txs, expense(id, "W", "out", float64(c)/100, at))
			}
		}
		return txs, wallets
	}
	dec := decimal.NewFromFloat

	properties.Property("each day closes at opening plus net change", prop.ForAll(
		func(balanceCents int64, cents []int64) bool {
			txs, wallets := build(balanceCents, cents)
			for _, s := range NewBalanceReconstructor(time.UTC).Reconstruct(txs, wallets) {
				want := dec(s.OpeningBalance).Add(dec(s.TotalIncome)).Sub(dec(s.TotalExpense))
				if !want.Equal(dec(s.ClosingBalance)) {
					return false
				}
			}
			return true
		},
		gen.Int64Range(-10_000_000, 10_000_000),
		gen.SliceOf(gen.Int64Range(1, 10_000_000)),
	))

	properties.Property("newest day closes at the current balance", prop.ForAll(
		func(balanceCents int64, cents []int64) bool {
			txs, wallets := build(balanceCents, cents)
			snapshots := NewBalanceReconstructor(time.UTC).Reconstruct(txs, wallets)
			return snapshots[len(snapshots)-1].ClosingBalance == wallets[0].Balance
		},
		gen.Int64Range(-10_000_000, 10_000_000),
		gen.SliceOfN(8, gen.Int64Range(1, 10_000_000)),
	))

	properties.Property("consecutive days chain closing into opening", prop.ForAll(
		func(balanceCents int64, cents []int64) bool {
			txs, wallets := build(balanceCents, cents)
			snapshots := NewBalanceReconstructor(time.UTC).Reconstruct(txs, wallets)
			for i := 1; i < len(snapshots); i++ {
				if snapshots[i].OpeningBalance != snapshots[i-1].ClosingBalance {
					return false
				}
			}
			return true
		},
		gen.Int64Range(-10_000_000, 10_000_000),
		gen.SliceOf(gen.Int64Range(1, 10_000_000)),
	))

	properties.Property("oldest day accrues only its own flows", prop.ForAll(
		func(balanceCents int64, cents []int64) bool {
			txs, wallets := build(balanceCents, cents)
			oldest := NewBalanceReconstructor(time.UTC).Reconstruct(txs, wallets)[0]
			return oldest.CumulativeIncome == oldest.TotalIncome &&
				oldest.CumulativeExpense == oldest.TotalExpense
		},
		gen.Int64Range(0, 10_000_000),
		gen.SliceOfN(6, gen.Int64Range(1, 10_000_000)),
	))

	properties.TestingRun(t)
}
