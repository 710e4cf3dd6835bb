package analytics

import (
	"fmt"
	"sort"

	"github.com/refina-analytics/internal/models"
	"github.com/refina-analytics/internal/types"
)

// holdings is one user's wallets and investment positions
type holdings struct {
	wallets     []*models.Wallet
	investments []*models.Investment
}

// CompositionBuilder splits each user's current net worth into cash and investments
type CompositionBuilder struct{}

// NewCompositionBuilder creates a composition builder
func NewCompositionBuilder() *CompositionBuilder {
	return &CompositionBuilder{}
}

// Build returns one composition per user owning a wallet or a position,
// ordered by user id. Records without an owner are ignored.
func (b *CompositionBuilder) Build(wallets []models.Wallet, investments []models.Investment) []models.NetWorthComposition {
	users := make(map[string]*holdings)
	owner := func(userID string) *holdings {
		h, ok := users[userID]
		if !ok {
			h = &holdings{}
			users[userID] = h
		}
		return h
	}

	for i := range wallets {
		if wallets[i].UserID == "" {
			continue
		}
		h := owner(wallets[i].UserID)
		h.wallets = append(h.wallets, &wallets[i])
	}
	for i := range investments {
		if investments[i].UserID == "" {
			continue
		}
		h := owner(investments[i].UserID)
		h.investments = append(h.investments, &investments[i])
	}

	userIDs := make([]string, 0, len(users))
	for userID := range users {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)

	compositions := make([]models.NetWorthComposition, 0, len(userIDs))
	for _, userID := range userIDs {
		compositions = append(compositions, composeUser(userID, users[userID]))
	}
	return compositions
}

func composeUser(userID string, h *holdings) models.NetWorthComposition {
	var walletTotal float64
	byType := make(map[string]float64)
	for _, w := range h.wallets {
		walletTotal += w.Balance
		byType[w.TypeLabel()] += w.Balance
	}

	var investmentTotal, unrealizedGain float64
	byAsset := make(map[string]float64)
	for _, inv := range h.investments {
		value := inv.CurrentValuation()
		investmentTotal += value
		unrealizedGain += value - inv.Amount
		byAsset[inv.AssetLabel()] += value
	}

	total := walletTotal + investmentTotal
	composition := models.NetWorthComposition{
		UserID: userID,
		Total:  total,
		Slices: []models.CompositionSlice{},
	}

	if walletTotal != 0 {
		composition.Slices = append(composition.Slices, models.CompositionSlice{
			Label:      types.SliceCash,
			Amount:     walletTotal,
			Percentage: sliceShare(walletTotal, total),
			Details: models.SliceDetails{
				ItemCount:   len(h.wallets),
				Description: fmt.Sprintf("%d wallet(s)", len(h.wallets)),
				Breakdown:   byType,
			},
		})
	}

	if investmentTotal != 0 {
		gain := unrealizedGain
		composition.Slices = append(composition.Slices, models.CompositionSlice{
			Label:      types.SliceInvestments,
			Amount:     investmentTotal,
			Percentage: sliceShare(investmentTotal, total),
			Details: models.SliceDetails{
				ItemCount:      len(h.investments),
				Description:    fmt.Sprintf("%d investment(s)", len(h.investments)),
				UnrealizedGain: &gain,
				Breakdown:      byAsset,
			},
		})
	}

	return composition
}

// sliceShare is the slice's percentage of total, 0 when total is 0
func sliceShare(amount, total float64) float64 {
	if total == 0 {
		return 0
	}
	return amount / total * 100
}
