package models

import "time"

// BalanceSnapshot is the reconstructed end-of-day state of a wallet.
// ClosingBalance always equals OpeningBalance + TotalIncome - TotalExpense.
type BalanceSnapshot struct {
	UserID            string    `json:"UserID"`
	WalletID          string    `json:"WalletID"`
	WalletName        string    `json:"WalletName"`
	Date              time.Time `json:"Date"`
	Year              int       `json:"Year"`
	Month             int       `json:"Month"`
	Week              int       `json:"Week"`
	Day               int       `json:"Day"`
	IsMonthStart      bool      `json:"IsMonthStart"`
	IsWeekStart       bool      `json:"IsWeekStart"`
	OpeningBalance    float64   `json:"OpeningBalance"`
	ClosingBalance    float64   `json:"ClosingBalance"`
	TotalIncome       float64   `json:"TotalIncome"`
	TotalExpense      float64   `json:"TotalExpense"`
	NetChange         float64   `json:"NetChange"`
	TransactionCount  int       `json:"TransactionCount"`
	CumulativeIncome  float64   `json:"CumulativeIncome"`
	CumulativeExpense float64   `json:"CumulativeExpense"`
}

// BalanceKey is the natural key of a BalanceSnapshot
type BalanceKey struct {
	WalletID string
	Date     time.Time
}

// Key returns the natural key used for idempotent upserts
func (b *BalanceSnapshot) Key() BalanceKey {
	return BalanceKey{WalletID: b.WalletID, Date: b.Date}
}
