package models

import (
	"time"

	"github.com/refina-analytics/internal/types"
)

// Transaction is a single ledger entry. Amount is always a non-negative
// magnitude; the direction comes from CategoryType.
type Transaction struct {
	ID              string             `json:"id"`
	WalletID        string             `json:"wallet_id"`
	Amount          float64            `json:"amount"`
	CategoryID      string             `json:"category_id"`
	CategoryName    string             `json:"category_name"`
	CategoryType    types.CategoryType `json:"category_type"`
	TransactionDate time.Time          `json:"transaction_date"`
	Description     string             `json:"description"`
}

// TransactionRef is the lightweight reference embedded in daily aggregates
type TransactionRef struct {
	ID          string    `json:"ID"`
	Description string    `json:"Description"`
	Date        time.Time `json:"Date"`
}
