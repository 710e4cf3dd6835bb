package analytics

import (
	"time"

	"github.com/refina-analytics/internal/models"
	"github.com/refina-analytics/internal/types"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 10, 30, 0, 0, time.UTC)
}

func wallet(id, userID string, balance float64) models.Wallet {
	return models.Wallet{
		ID:             id,
		UserID:         userID,
		Name:           "Wallet " + id,
		Balance:        balance,
		WalletType:     "bank",
		WalletTypeName: "Bank Account",
	}
}

func income(id, walletID, categoryID string, amount float64, at time.Time) models.Transaction {
	return models.Transaction{
		ID:              id,
		WalletID:        walletID,
		Amount:          amount,
		CategoryID:      categoryID,
		CategoryName:    "Category " + categoryID,
		CategoryType:    types.CategoryIncome,
		TransactionDate: at,
		Description:     "income " + id,
	}
}

func expense(id, walletID, categoryID string, amount float64, at time.Time) models.Transaction {
	tx := income(id, walletID, categoryID, amount, at)
	tx.CategoryType = types.CategoryExpense
	tx.Description = "expense " + id
	return tx
}

func investment(id, userID, assetName string, quantity, amount, toIDR float64) models.Investment {
	return models.Investment{
		ID:       id,
		Code:     "CODE-" + id,
		UserID:   userID,
		Quantity: quantity,
		Amount:   amount,
		Asset: models.AssetRate{
			Code:  assetName,
			Name:  assetName,
			ToIDR: toIDR,
		},
	}
}
