package analytics

import (
	"sort"
	"time"

	"github.com/refina-analytics/internal/models"
	"github.com/shopspring/decimal"
)

// walletDay holds the transactions of one wallet on one calendar day
type walletDay struct {
	date         time.Time
	transactions []*models.Transaction
}

// walletHistory collects a wallet's transactions keyed by day
type walletHistory struct {
	wallet *models.Wallet
	days   map[string]*walletDay
}

// BalanceReconstructor rebuilds daily wallet balances backwards from the
// current balance, the only balance the ledger knows
type BalanceReconstructor struct {
	loc *time.Location
}

// NewBalanceReconstructor creates a reconstructor that cuts days in loc
func NewBalanceReconstructor(loc *time.Location) *BalanceReconstructor {
	if loc == nil {
		loc = time.UTC
	}
	return &BalanceReconstructor{loc: loc}
}

// Reconstruct returns one snapshot per wallet per active day, wallets in the
// order they first appear among the transactions, days ascending.
// Wallets without transactions produce nothing.
func (r *BalanceReconstructor) Reconstruct(transactions []models.Transaction, wallets []models.Wallet) []models.BalanceSnapshot {
	walletIndex := models.IndexWallets(wallets)

	histories := make(map[string]*walletHistory)
	var order []string

	for i := range transactions {
		tx := &transactions[i]
		wallet, ok := walletIndex[tx.WalletID]
		if !ok {
			continue
		}

		history, exists := histories[tx.WalletID]
		if !exists {
			history = &walletHistory{wallet: wallet, days: make(map[string]*walletDay)}
			histories[tx.WalletID] = history
			order = append(order, tx.WalletID)
		}

		day := calendarDay(tx.TransactionDate, r.loc)
		key := day.Format(dateKeyLayout)
		wd, exists := history.days[key]
		if !exists {
			wd = &walletDay{date: day}
			history.days[key] = wd
		}
		wd.transactions = append(wd.transactions, tx)
	}

	var snapshots []models.BalanceSnapshot
	for _, walletID := range order {
		history := histories[walletID]
		snapshots = append(snapshots, reconstructWallet(history.wallet, sortedDays(history.days))...)
	}
	return snapshots
}

// sortedDays returns the days in ascending order
func sortedDays(days map[string]*walletDay) []*walletDay {
	keys := make([]string, 0, len(days))
	for key := range days {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]*walletDay, len(keys))
	for i, key := range keys {
		out[i] = days[key]
	}
	return out
}

// dayTotals holds one day's flows and the flows accrued up to that day
type dayTotals struct {
	income            decimal.Decimal
	expense           decimal.Decimal
	cumulativeIncome  decimal.Decimal
	cumulativeExpense decimal.Decimal
}

// reconstructWallet folds a wallet's days, sorted ascending, from the newest
// to the oldest. The carried balance starts at the wallet's current balance
// and after each day becomes that day's opening balance, which is the closing
// balance of the next older day.
//
// Money is carried as decimals so the newest day closes exactly at the
// current balance and each opening equals the previous closing.
func reconstructWallet(wallet *models.Wallet, days []*walletDay) []models.BalanceSnapshot {
	if len(days) == 0 {
		return nil
	}

	totals := make([]dayTotals, len(days))
	var cumulativeIncome, cumulativeExpense decimal.Decimal
	for i, day := range days {
		var income, expense decimal.Decimal
		for _, tx := range day.transactions {
			amount := decimal.NewFromFloat(tx.Amount)
			if tx.CategoryType.IsIncome() {
				income = income.Add(amount)
			} else {
				expense = expense.Add(amount)
			}
		}
		cumulativeIncome = cumulativeIncome.Add(income)
		cumulativeExpense = cumulativeExpense.Add(expense)
		totals[i] = dayTotals{
			income:            income,
			expense:           expense,
			cumulativeIncome:  cumulativeIncome,
			cumulativeExpense: cumulativeExpense,
		}
	}

	closing := decimal.NewFromFloat(wallet.Balance)
	snapshots := make([]models.BalanceSnapshot, len(days))

	for i := len(days) - 1; i >= 0; i-- {
		day, t := days[i], totals[i]
		opening := closing.Sub(t.income).Add(t.expense)

		snapshots[i] = models.BalanceSnapshot{
			UserID:            wallet.UserID,
			WalletID:          wallet.ID,
			WalletName:        wallet.Name,
			Date:              day.date,
			Year:              day.date.Year(),
			Month:             int(day.date.Month()),
			Week:              isoWeek(day.date),
			Day:               day.date.Day(),
			IsMonthStart:      isMonthStart(day.date),
			IsWeekStart:       isWeekStart(day.date),
			OpeningBalance:    opening.InexactFloat64(),
			ClosingBalance:    closing.InexactFloat64(),
			TotalIncome:       t.income.InexactFloat64(),
			TotalExpense:      t.expense.InexactFloat64(),
			NetChange:         t.income.Sub(t.expense).InexactFloat64(),
			TransactionCount:  len(day.transactions),
			CumulativeIncome:  t.cumulativeIncome.InexactFloat64(),
			CumulativeExpense: t.cumulativeExpense.InexactFloat64(),
		}

		closing = opening
	}

	return snapshots
}
