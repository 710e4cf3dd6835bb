package models

// Snapshot is the complete set of source records fetched for one sync run.
// It is built once and never mutated afterwards.
type Snapshot struct {
	Wallets      []Wallet
	Transactions []Transaction
	Investments  []Investment
}

// WalletIndex maps wallet id to wallet
func (s *Snapshot) WalletIndex() map[string]*Wallet {
	return IndexWallets(s.Wallets)
}

// IndexWallets builds a wallet lookup keyed by wallet id
func IndexWallets(wallets []Wallet) map[string]*Wallet {
	index := make(map[string]*Wallet, len(wallets))
	for i := range wallets {
		index[wallets[i].ID] = &wallets[i]
	}
	return index
}

// UnresolvedTransactions counts transactions whose wallet is not in the snapshot
func (s *Snapshot) UnresolvedTransactions() int {
	index := s.WalletIndex()
	count := 0
	for i := range s.Transactions {
		if _, ok := index[s.Transactions[i].WalletID]; !ok {
			count++
		}
	}
	return count
}

// ScopeToUser returns a copy holding only the records owned by userID.
// Transactions are kept when their wallet belongs to the user.
func (s *Snapshot) ScopeToUser(userID string) *Snapshot {
	scoped := &Snapshot{}
	owned := make(map[string]bool)
	for _, w := range s.Wallets {
		if w.UserID == userID {
			scoped.Wallets = append(scoped.Wallets, w)
			owned[w.ID] = true
		}
	}
	for _, tx := range s.Transactions {
		if owned[tx.WalletID] {
			scoped.Transactions = append(scoped.Transactions, tx)
		}
	}
	for _, inv := range s.Investments {
		if inv.UserID == userID {
			scoped.Investments = append(scoped.Investments, inv)
		}
	}
	return scoped
}
