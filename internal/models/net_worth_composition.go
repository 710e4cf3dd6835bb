package models

// NetWorthComposition splits a user's current net worth into labeled slices
type NetWorthComposition struct {
	UserID string             `json:"UserID"`
	Total  float64            `json:"Total"`
	Slices []CompositionSlice `json:"Slices"`
}

// CompositionSlice is one labeled share of net worth
type CompositionSlice struct {
	Label      string       `json:"Label"`
	Amount     float64      `json:"Amount"`
	Percentage float64      `json:"Percentage"`
	Details    SliceDetails `json:"Details"`
}

// SliceDetails carries the per-slice breakdown. Breakdown maps a wallet type
// or asset label to its amount.
type SliceDetails struct {
	ItemCount      int                `json:"ItemCount"`
	Description    string             `json:"Description"`
	UnrealizedGain *float64           `json:"UnrealizedGain,omitempty"`
	Breakdown      map[string]float64 `json:"Breakdown"`
}

// Key returns the natural key used for idempotent upserts
func (c *NetWorthComposition) Key() string {
	return c.UserID
}
