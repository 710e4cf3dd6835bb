package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/refina-analytics/internal/models"
	"github.com/refina-analytics/internal/types"
)

const topCategoryLimit = 5

// monthBucket holds one user's transactions for one YYYY-MM key
type monthBucket struct {
	transactions []*models.Transaction
	wallets      map[string]bool
}

// categoryTotal accumulates one category within a period
type categoryTotal struct {
	id     string
	name   string
	amount float64
	count  int
}

// periodTotals is the income/expense tally of one bucket
type periodTotals struct {
	income       float64
	expense      float64
	incomeCount  int
	expenseCount int
	largestIn    float64
	largestOut   float64
	incomeCats   []*categoryTotal
	expenseCats  []*categoryTotal
	perWalletIn  map[string]float64
	perWalletOut map[string]float64
}

func (p *periodTotals) profit() float64 {
	return p.income - p.expense
}

// SummaryCalculator derives monthly financial summaries per user
type SummaryCalculator struct {
	loc *time.Location
}

// NewSummaryCalculator creates a calculator that buckets months in loc
func NewSummaryCalculator(loc *time.Location) *SummaryCalculator {
	if loc == nil {
		loc = time.UTC
	}
	return &SummaryCalculator{loc: loc}
}

// Calculate produces one summary per user per month that has at least one
// transaction. Users are ordered by id and months ascending.
//
// The previous period of a month is the previous populated month of that
// user, not the calendar month before it.
func (c *SummaryCalculator) Calculate(snapshot *models.Snapshot) []models.FinancialSummary {
	walletIndex := snapshot.WalletIndex()

	userMonths := make(map[string]map[string]*monthBucket)
	for i := range snapshot.Transactions {
		tx := &snapshot.Transactions[i]
		wallet, ok := walletIndex[tx.WalletID]
		if !ok {
			continue
		}

		months, ok := userMonths[wallet.UserID]
		if !ok {
			months = make(map[string]*monthBucket)
			userMonths[wallet.UserID] = months
		}

		key := monthKey(tx.TransactionDate, c.loc)
		bucket, ok := months[key]
		if !ok {
			bucket = &monthBucket{wallets: make(map[string]bool)}
			months[key] = bucket
		}
		bucket.transactions = append(bucket.transactions, tx)
		bucket.wallets[tx.WalletID] = true
	}

	portfolios := investmentRollups(snapshot.Investments)

	userIDs := make([]string, 0, len(userMonths))
	for userID := range userMonths {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)

	var summaries []models.FinancialSummary
	for _, userID := range userIDs {
		months := userMonths[userID]
		keys := make([]string, 0, len(months))
		for key := range months {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		investment := portfolios[userID]

		var prev *periodTotals
		for _, key := range keys {
			bucket := months[key]
			current := tallyPeriod(bucket.transactions)

			summary, ok := c.buildSummary(userID, key, bucket, current, prev, snapshot.Wallets, investment)
			if ok {
				summaries = append(summaries, summary)
			}
			prev = current
		}
	}

	return summaries
}

// buildSummary assembles the summary of one populated month
func (c *SummaryCalculator) buildSummary(
	userID, key string,
	bucket *monthBucket,
	current, prev *periodTotals,
	wallets []models.Wallet,
	investment models.InvestmentSummary,
) (models.FinancialSummary, bool) {
	start, end, err := monthBounds(key, c.loc)
	if err != nil {
		return models.FinancialSummary{}, false
	}
	days := daysInMonth(start)

	touched := make([]*models.Wallet, 0, len(bucket.wallets))
	for i := range wallets {
		if bucket.wallets[wallets[i].ID] {
			touched = append(touched, &wallets[i])
		}
	}

	var balanceNow float64
	for _, w := range touched {
		balanceNow += w.Balance
	}

	incomeNow := current.income
	expenseNow := current.expense
	profitNow := current.profit()

	var incomePrev, expensePrev, profitPrev, balancePrev float64
	if prev != nil {
		incomePrev = prev.income
		expensePrev = prev.expense
		profitPrev = prev.profit()
		// Historical balances are not tracked per month; estimate from profit.
		balancePrev = balanceNow - profitNow + profitPrev
	}

	burnRate := perDay(expenseNow, days)
	var runway int64
	if burnRate > 0 {
		runway = int64(math.Floor(balanceNow / burnRate))
	}

	txCount := len(bucket.transactions)
	var avgTx float64
	if txCount > 0 {
		avgTx = (incomeNow + expenseNow) / float64(txCount)
	}

	netWorthNow := balanceNow + investment.TotalCurrentValuation
	netWorthPrev := balancePrev + investment.TotalInvested

	summary := models.FinancialSummary{
		UserID:      userID,
		PeriodType:  types.PeriodMonthly,
		PeriodKey:   key,
		PeriodStart: start,
		PeriodEnd:   end,

		IncomeNow:  incomeNow,
		ExpenseNow: expenseNow,
		ProfitNow:  profitNow,
		BalanceNow: balanceNow,

		IncomePrev:  incomePrev,
		ExpensePrev: expensePrev,
		ProfitPrev:  profitPrev,
		BalancePrev: balancePrev,

		IncomeGrowthPct:  growthPct(incomeNow, incomePrev),
		ExpenseGrowthPct: growthPct(expenseNow, expensePrev),
		ProfitGrowthPct:  growthPct(profitNow, profitPrev),
		BalanceGrowthPct: growthPct(balanceNow, balancePrev),

		SavingsRate:          percentOf(profitNow, incomeNow),
		ExpenseToIncomeRatio: percentOf(expenseNow, incomeNow),
		BurnRateDaily:        burnRate,
		AvgIncomeDaily:       perDay(incomeNow, days),
		AvgExpenseDaily:      perDay(expenseNow, days),
		RunwayDays:           runway,

		TotalTransactions:       txCount,
		IncomeTransactionCount:  current.incomeCount,
		ExpenseTransactionCount: current.expenseCount,
		AvgTransactionAmount:    avgTx,
		LargestIncome:           current.largestIn,
		LargestExpense:          current.largestOut,

		InvestmentSummary: investment,
		NetWorth: models.NetWorthSummary{
			Total:             netWorthNow,
			WalletPortion:     balanceNow,
			InvestmentPortion: investment.TotalCurrentValuation,
			NetWorthPrev:      netWorthPrev,
			NetWorthGrowthPct: growthPct(netWorthNow, netWorthPrev),
		},
		TopExpenseCategories: rankCategories(current.expenseCats, expenseNow),
		TopIncomeCategories:  rankCategories(current.incomeCats, incomeNow),
		WalletSummaries:      make([]models.WalletSummary, 0, len(touched)),
	}

	for _, w := range touched {
		income := current.perWalletIn[w.ID]
		expense := current.perWalletOut[w.ID]
		net := income - expense
		summary.WalletSummaries = append(summary.WalletSummaries, models.WalletSummary{
			WalletID:          w.ID,
			WalletName:        w.Name,
			WalletType:        w.WalletType,
			OpeningBalance:    w.Balance - net,
			ClosingBalance:    w.Balance,
			Income:            income,
			Expense:           expense,
			NetChange:         net,
			ShareOfBalancePct: percentOf(w.Balance, balanceNow),
		})
	}

	return summary, true
}

// tallyPeriod sums a bucket's transactions by direction and category
func tallyPeriod(transactions []*models.Transaction) *periodTotals {
	totals := &periodTotals{
		perWalletIn:  make(map[string]float64),
		perWalletOut: make(map[string]float64),
	}
	incomeIdx := make(map[string]*categoryTotal)
	expenseIdx := make(map[string]*categoryTotal)

	for _, tx := range transactions {
		if tx.CategoryType.IsIncome() {
			totals.income += tx.Amount
			totals.incomeCount++
			if tx.Amount > totals.largestIn {
				totals.largestIn = tx.Amount
			}
			totals.perWalletIn[tx.WalletID] += tx.Amount
			totals.incomeCats = addToCategory(totals.incomeCats, incomeIdx, tx)
		} else {
			totals.expense += tx.Amount
			totals.expenseCount++
			if tx.Amount > totals.largestOut {
				totals.largestOut = tx.Amount
			}
			totals.perWalletOut[tx.WalletID] += tx.Amount
			totals.expenseCats = addToCategory(totals.expenseCats, expenseIdx, tx)
		}
	}
	return totals
}

func addToCategory(list []*categoryTotal, index map[string]*categoryTotal, tx *models.Transaction) []*categoryTotal {
	cat, ok := index[tx.CategoryID]
	if !ok {
		cat = &categoryTotal{id: tx.CategoryID, name: tx.CategoryName}
		index[tx.CategoryID] = cat
		list = append(list, cat)
	}
	cat.amount += tx.Amount
	cat.count++
	return list
}

// rankCategories returns the top categories by amount, largest first.
// Equal amounts fall back to category id so the order is stable across runs.
func rankCategories(categories []*categoryTotal, periodTotal float64) []models.CategoryBreakdown {
	ranked := make([]*categoryTotal, len(categories))
	copy(ranked, categories)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].amount != ranked[j].amount {
			return ranked[i].amount > ranked[j].amount
		}
		return ranked[i].id < ranked[j].id
	})
	if len(ranked) > topCategoryLimit {
		ranked = ranked[:topCategoryLimit]
	}

	out := make([]models.CategoryBreakdown, 0, len(ranked))
	for _, cat := range ranked {
		out = append(out, models.CategoryBreakdown{
			CategoryID:       cat.id,
			CategoryName:     cat.name,
			Amount:           cat.amount,
			Percentage:       percentOf(cat.amount, periodTotal),
			TransactionCount: cat.count,
		})
	}
	return out
}

// investmentRollups computes each user's whole-portfolio summary once
func investmentRollups(investments []models.Investment) map[string]models.InvestmentSummary {
	rollups := make(map[string]models.InvestmentSummary)
	for i := range investments {
		inv := &investments[i]
		summary := rollups[inv.UserID]
		summary.TotalInvested += inv.Amount
		summary.TotalCurrentValuation += inv.CurrentValuation()
		if inv.Amount > 0 {
			summary.BuyCount++
		} else {
			summary.SellCount++
		}
		summary.ActivePositions++
		rollups[inv.UserID] = summary
	}

	for userID, summary := range rollups {
		summary.UnrealizedGain = summary.TotalCurrentValuation - summary.TotalInvested
		summary.InvestmentGrowthPct = growthPct(summary.TotalCurrentValuation, summary.TotalInvested)
		rollups[userID] = summary
	}
	return rollups
}
