package analytics

import (
	"time"

	"github.com/refina-analytics/internal/models"
)

// categoryDayKey identifies one CategoryDailyAggregate bucket
type categoryDayKey struct {
	userID     string
	walletID   string
	categoryID string
	day        string
}

// TransactionGrouper folds transactions into per-(user, wallet, category, day) buckets
type TransactionGrouper struct {
	loc *time.Location
}

// NewTransactionGrouper creates a grouper that cuts days in loc
func NewTransactionGrouper(loc *time.Location) *TransactionGrouper {
	if loc == nil {
		loc = time.UTC
	}
	return &TransactionGrouper{loc: loc}
}

// Group builds the daily category aggregates. Transactions whose wallet is
// unknown are skipped. Buckets are returned in the order they were first seen.
func (g *TransactionGrouper) Group(transactions []models.Transaction, wallets []models.Wallet) []models.CategoryDailyAggregate {
	walletIndex := models.IndexWallets(wallets)

	positions := make(map[categoryDayKey]int)
	var buckets []models.CategoryDailyAggregate

	for i := range transactions {
		tx := &transactions[i]
		wallet, ok := walletIndex[tx.WalletID]
		if !ok {
			continue
		}

		day := calendarDay(tx.TransactionDate, g.loc)
		key := categoryDayKey{
			userID:     wallet.UserID,
			walletID:   tx.WalletID,
			categoryID: tx.CategoryID,
			day:        day.Format(dateKeyLayout),
		}

		pos, exists := positions[key]
		if !exists {
			pos = len(buckets)
			positions[key] = pos
			buckets = append(buckets, models.CategoryDailyAggregate{
				UserID:       wallet.UserID,
				WalletID:     tx.WalletID,
				WalletName:   wallet.Name,
				WalletType:   wallet.WalletType,
				CategoryID:   tx.CategoryID,
				CategoryName: tx.CategoryName,
				CategoryType: tx.CategoryType,
				Date:         day,
				Year:         day.Year(),
				Month:        int(day.Month()),
				Week:         isoWeek(day),
				Day:          day.Day(),
				Transactions: []models.TransactionRef{},
			})
		}

		bucket := &buckets[pos]
		bucket.TotalAmount += tx.Amount
		bucket.TransactionCount++
		bucket.Transactions = append(bucket.Transactions, models.TransactionRef{
			ID:          tx.ID,
			Description: tx.Description,
			Date:        tx.TransactionDate,
		})
	}

	return buckets
}
