package models

import (
	"time"

	"github.com/refina-analytics/internal/types"
)

// CategoryDailyAggregate rolls up one day of transactions for a single
// (user, wallet, category) combination
type CategoryDailyAggregate struct {
	UserID           string             `json:"UserID"`
	WalletID         string             `json:"WalletID"`
	WalletName       string             `json:"WalletName"`
	WalletType       string             `json:"WalletType"`
	CategoryID       string             `json:"CategoryID"`
	CategoryName     string             `json:"CategoryName"`
	CategoryType     types.CategoryType `json:"CategoryType"`
	Date             time.Time          `json:"Date"`
	Year             int                `json:"Year"`
	Month            int                `json:"Month"`
	Week             int                `json:"Week"`
	Day              int                `json:"Day"`
	TotalAmount      float64            `json:"TotalAmount"`
	TransactionCount int                `json:"TransactionCount"`
	Transactions     []TransactionRef   `json:"Transactions"`
}

// CategoryDailyKey is the natural key of a CategoryDailyAggregate
type CategoryDailyKey struct {
	UserID     string
	WalletID   string
	CategoryID string
	Date       time.Time
}

// Key returns the natural key used for idempotent upserts
func (a *CategoryDailyAggregate) Key() CategoryDailyKey {
	return CategoryDailyKey{UserID: a.UserID, WalletID: a.WalletID, CategoryID: a.CategoryID, Date: a.Date}
}
