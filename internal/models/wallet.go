// Package models provides the ledger records consumed by the analytics engine
// and the documents it materializes.
package models

// Wallet is a ledger wallet as delivered by the wallet service.
// Balance is the authoritative present-day balance; no history is kept upstream.
type Wallet struct {
	ID             string  `json:"id"`
	UserID         string  `json:"user_id"`
	Name           string  `json:"name"`
	Number         string  `json:"number"`
	Balance        float64 `json:"balance"`
	WalletTypeID   string  `json:"wallet_type_id"`
	WalletType     string  `json:"wallet_type"`
	WalletTypeName string  `json:"wallet_type_name"`
}

// TypeLabel returns the label used when grouping wallets by type
func (w *Wallet) TypeLabel() string {
	if w.WalletTypeName != "" {
		return w.WalletTypeName
	}
	if w.WalletType != "" {
		return w.WalletType
	}
	return "Other"
}
