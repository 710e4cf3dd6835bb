// Package adapter fetches the ledger records the analytics pipeline consumes
// from the upstream wallet, transaction and investment services.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/refina-analytics/internal/models"
)

// WalletSource streams wallets
type WalletSource interface {
	// Wallets streams every wallet known upstream
	Wallets(ctx context.Context) iter.Seq2[models.Wallet, error]
	// UserWallets streams the wallets owned by one user
	UserWallets(ctx context.Context, userID string) iter.Seq2[models.Wallet, error]
}

// TransactionSource streams transactions
type TransactionSource interface {
	// Transactions streams every transaction known upstream
	Transactions(ctx context.Context) iter.Seq2[models.Transaction, error]
	// WalletTransactions streams the transactions of the given wallets
	WalletTransactions(ctx context.Context, walletIDs []string) iter.Seq2[models.Transaction, error]
}

// InvestmentSource streams investment positions
type InvestmentSource interface {
	// Investments streams every investment position known upstream
	Investments(ctx context.Context) iter.Seq2[models.Investment, error]
	// UserInvestments streams the positions owned by one user
	UserInvestments(ctx context.Context, userID string) iter.Seq2[models.Investment, error]
}

// Collect drains seq into a slice. It stops at the first error and returns it
// together with nothing collected.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for item, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// Slice turns a fixed slice into a sequence. Useful for sources that are
// already materialized.
func Slice[T any](items []T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}

// Fail returns a sequence that yields err once
func Fail[T any](err error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		yield(zero, err)
	}
}

var (
	// ErrMalformedRecord indicates a streamed message could not be decoded
	ErrMalformedRecord = errors.New("malformed record")

	// ErrStream indicates the upstream stream failed
	ErrStream = errors.New("upstream stream failed")
)

// AdapterError wraps errors with the source and operation that produced them
type AdapterError struct {
	Source  string
	Op      string
	Err     error
	Details map[string]interface{}
}

func (e *AdapterError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("adapter error [%s:%s]: %v (details: %+v)", e.Source, e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("adapter error [%s:%s]: %v", e.Source, e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// NewAdapterError creates a new AdapterError
func NewAdapterError(source, op string, err error, details map[string]interface{}) *AdapterError {
	return &AdapterError{
		Source:  source,
		Op:      op,
		Err:     err,
		Details: details,
	}
}
