package adapter

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/refina-analytics/internal/config"
	"github.com/refina-analytics/internal/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
)

// Connections holds one client connection per upstream service
type Connections struct {
	Wallet      *grpc.ClientConn
	Transaction *grpc.ClientConn
	Investment  *grpc.ClientConn
}

// Dial creates the upstream connections. Connections are established lazily;
// use WaitReady to block until they are usable.
func Dial(cfg config.UpstreamConfig, opts ...grpc.DialOption) (*Connections, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)

	conns := &Connections{}
	targets := []struct {
		name string
		addr string
		dst  **grpc.ClientConn
	}{
		{"wallet", cfg.WalletAddress, &conns.Wallet},
		{"transaction", cfg.TransactionAddress, &conns.Transaction},
		{"investment", cfg.InvestmentAddress, &conns.Investment},
	}

	for _, target := range targets {
		conn, err := grpc.NewClient(target.addr, opts...)
		if err != nil {
			_ = conns.Close()
			return nil, fmt.Errorf("failed to create %s client for %s: %w", target.name, target.addr, err)
		}
		*target.dst = conn
	}
	return conns, nil
}

// WaitReady blocks until every connection is ready or ctx is done
func (c *Connections) WaitReady(ctx context.Context) error {
	for _, conn := range c.all() {
		conn.Connect()
		for {
			state := conn.GetState()
			if state == connectivity.Ready {
				break
			}
			if !conn.WaitForStateChange(ctx, state) {
				return fmt.Errorf("upstream %s not ready (%s): %w", conn.Target(), state, ctx.Err())
			}
		}
	}
	return nil
}

// Close closes every open connection
func (c *Connections) Close() error {
	var errs []error
	for _, conn := range c.all() {
		if err := conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Connections) all() []*grpc.ClientConn {
	var out []*grpc.ClientConn
	for _, conn := range []*grpc.ClientConn{c.Wallet, c.Transaction, c.Investment} {
		if conn != nil {
			out = append(out, conn)
		}
	}
	return out
}

// WalletClient streams wallets from the wallet service
type WalletClient struct {
	conn grpc.ClientConnInterface
}

// NewWalletClient creates a wallet client
func NewWalletClient(conn grpc.ClientConnInterface) *WalletClient {
	return &WalletClient{conn: conn}
}

// Wallets streams every wallet
func (c *WalletClient) Wallets(ctx context.Context) iter.Seq2[models.Wallet, error] {
	return call(ctx, c.conn, "wallets", methodGetWallets,
		limitRequest(methodGetWallets), decodeWallet)
}

// UserWallets streams the wallets of one user
func (c *WalletClient) UserWallets(ctx context.Context, userID string) iter.Seq2[models.Wallet, error] {
	return call(ctx, c.conn, "wallets", methodGetUserWallets,
		idRequest(methodGetUserWallets, userID), decodeWallet)
}

// TransactionClient streams transactions from the transaction service
type TransactionClient struct {
	conn grpc.ClientConnInterface
}

// NewTransactionClient creates a transaction client
func NewTransactionClient(conn grpc.ClientConnInterface) *TransactionClient {
	return &TransactionClient{conn: conn}
}

// Transactions streams every transaction
func (c *TransactionClient) Transactions(ctx context.Context) iter.Seq2[models.Transaction, error] {
	return call(ctx, c.conn, "transactions", methodGetTransactions,
		limitRequest(methodGetTransactions), decodeTransaction)
}

// WalletTransactions streams the transactions of the given wallets
func (c *TransactionClient) WalletTransactions(ctx context.Context, walletIDs []string) iter.Seq2[models.Transaction, error] {
	return call(ctx, c.conn, "transactions", methodGetUserTransactions,
		walletIDsRequest(methodGetUserTransactions, walletIDs), decodeTransaction)
}

// InvestmentClient streams positions from the investment service
type InvestmentClient struct {
	conn grpc.ClientConnInterface
}

// NewInvestmentClient creates an investment client
func NewInvestmentClient(conn grpc.ClientConnInterface) *InvestmentClient {
	return &InvestmentClient{conn: conn}
}

// Investments streams every position
func (c *InvestmentClient) Investments(ctx context.Context) iter.Seq2[models.Investment, error] {
	return call(ctx, c.conn, "investments", methodGetInvestments,
		limitRequest(methodGetInvestments), decodeInvestment)
}

// UserInvestments streams the positions of one user
func (c *InvestmentClient) UserInvestments(ctx context.Context, userID string) iter.Seq2[models.Investment, error] {
	return call(ctx, c.conn, "investments", methodGetUserInvestments,
		idRequest(methodGetUserInvestments, userID), decodeInvestment)
}
