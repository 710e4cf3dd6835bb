package models

import "time"

// AssetRate holds the conversion rates of one unit of an asset
type AssetRate struct {
	Code  string  `json:"code"`
	Name  string  `json:"name"`
	Unit  string  `json:"unit"`
	ToUSD float64 `json:"toUSD"`
	ToEUR float64 `json:"toEUR"`
	ToIDR float64 `json:"toIDR"`
}

// Investment is one investment position entry of a user
type Investment struct {
	ID               string    `json:"id"`
	Code             string    `json:"code"`
	UserID           string    `json:"userId"`
	Quantity         float64   `json:"quantity"`
	InitialValuation float64   `json:"initialValuation"`
	Amount           float64   `json:"amount"`
	Date             time.Time `json:"date"`
	Description      string    `json:"description"`
	Asset            AssetRate `json:"assetCode"`
}

// CurrentValuation values the position at the current IDR rate
func (i *Investment) CurrentValuation() float64 {
	return i.Quantity * i.Asset.ToIDR
}

// AssetLabel returns the label used when grouping positions by asset
func (i *Investment) AssetLabel() string {
	if i.Asset.Name != "" {
		return i.Asset.Name
	}
	return i.Code
}
