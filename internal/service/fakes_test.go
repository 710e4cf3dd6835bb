package service

import (
	"context"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/refina-analytics/internal/adapter"
	"github.com/refina-analytics/internal/models"
	"github.com/refina-analytics/internal/storage"
	"github.com/refina-analytics/internal/types"
)

func at(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 9, 0, 0, 0, time.UTC)
}

func testWallet(id, userID string, balance float64) models.Wallet {
	return models.Wallet{ID: id, UserID: userID, Name: "Wallet " + id, Balance: balance, WalletType: "bank", WalletTypeName: "Bank Account"}
}

func testTx(id, walletID string, kind types.CategoryType, amount float64, when time.Time) models.Transaction {
	return models.Transaction{
		ID: id, WalletID: walletID, Amount: amount,
		CategoryID: "cat-" + string(kind), CategoryName: string(kind), CategoryType: kind,
		TransactionDate: when, Description: id,
	}
}

func testInvestment(id, userID string, quantity, amount, toIDR float64) models.Investment {
	return models.Investment{
		ID: id, Code: "CODE-" + id, UserID: userID, Quantity: quantity, Amount: amount,
		Asset: models.AssetRate{Code: "GOLD", Name: "Gold", ToIDR: toIDR},
	}
}

// fakeUpstream implements the three sources over fixed slices and records
// which stream methods were opened
type fakeUpstream struct {
	mu           sync.Mutex
	calls        []string
	walletIDs    []string
	wallets      []models.Wallet
	transactions []models.Transaction
	investments  []models.Investment
	failOn       string
	err          error
}

func (f *fakeUpstream) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeUpstream) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := slices.Clone(f.calls)
	slices.Sort(out)
	return out
}

func stream[T any](f *fakeUpstream, call string, items []T) iter.Seq2[T, error] {
	f.record(call)
	if f.failOn == call {
		return adapter.Fail[T](f.err)
	}
	return adapter.Slice(items)
}

func (f *fakeUpstream) Wallets(context.Context) iter.Seq2[models.Wallet, error] {
	return stream(f, "Wallets", f.wallets)
}

func (f *fakeUpstream) UserWallets(_ context.Context, userID string) iter.Seq2[models.Wallet, error] {
	var owned []models.Wallet
	for _, w := range f.wallets {
		if w.UserID == userID {
			owned = append(owned, w)
		}
	}
	return stream(f, "UserWallets", owned)
}

func (f *fakeUpstream) Transactions(context.Context) iter.Seq2[models.Transaction, error] {
	return stream(f, "Transactions", f.transactions)
}

func (f *fakeUpstream) WalletTransactions(_ context.Context, walletIDs []string) iter.Seq2[models.Transaction, error] {
	f.mu.Lock()
	f.walletIDs = slices.Clone(walletIDs)
	f.mu.Unlock()

	var matched []models.Transaction
	for _, tx := range f.transactions {
		if slices.Contains(walletIDs, tx.WalletID) {
			matched = append(matched, tx)
		}
	}
	return stream(f, "WalletTransactions", matched)
}

func (f *fakeUpstream) Investments(context.Context) iter.Seq2[models.Investment, error] {
	return stream(f, "Investments", f.investments)
}

func (f *fakeUpstream) UserInvestments(_ context.Context, userID string) iter.Seq2[models.Investment, error] {
	var owned []models.Investment
	for _, inv := range f.investments {
		if inv.UserID == userID {
			owned = append(owned, inv)
		}
	}
	return stream(f, "UserInvestments", owned)
}

func (f *fakeUpstream) sources() Sources {
	return Sources{Wallets: f, Transactions: f, Investments: f}
}

// fakeStore records every bulk upsert and can fail one projection
type fakeStore struct {
	ops          []types.Projection
	aggregates   []models.CategoryDailyAggregate
	balances     []models.BalanceSnapshot
	summaries    []models.FinancialSummary
	compositions []models.NetWorthComposition
	failOn       types.Projection
	err          error
}

func (s *fakeStore) write(p types.Projection) error {
	s.ops = append(s.ops, p)
	if s.failOn == p {
		return s.err
	}
	return nil
}

func (s *fakeStore) UpsertCategoryDaily(_ context.Context, aggregates []models.CategoryDailyAggregate) error {
	if err := s.write(types.ProjectionCategoryDaily); err != nil {
		return err
	}
	s.aggregates = aggregates
	return nil
}

func (s *fakeStore) UpsertBalances(_ context.Context, snapshots []models.BalanceSnapshot) error {
	if err := s.write(types.ProjectionBalance); err != nil {
		return err
	}
	s.balances = snapshots
	return nil
}

func (s *fakeStore) UpsertSummaries(_ context.Context, summaries []models.FinancialSummary) error {
	if err := s.write(types.ProjectionSummary); err != nil {
		return err
	}
	s.summaries = summaries
	return nil
}

func (s *fakeStore) UpsertCompositions(_ context.Context, compositions []models.NetWorthComposition) error {
	if err := s.write(types.ProjectionComposition); err != nil {
		return err
	}
	s.compositions = compositions
	return nil
}

type fakeRunRecorder struct {
	created   []models.SyncRun
	finished  []models.SyncRun
	createErr error
	finishErr error
}

func (r *fakeRunRecorder) Create(_ context.Context, run *models.SyncRun) error {
	r.created = append(r.created, *run)
	return r.createErr
}

func (r *fakeRunRecorder) Finish(_ context.Context, run *models.SyncRun) error {
	r.finished = append(r.finished, *run)
	return r.finishErr
}

type fakeInvalidator struct {
	users []string
	all   int
	err   error
}

func (i *fakeInvalidator) InvalidateUser(_ context.Context, userID string) (int, error) {
	i.users = append(i.users, userID)
	return 1, i.err
}

func (i *fakeInvalidator) InvalidateAll(context.Context) (int, error) {
	i.all++
	return 3, i.err
}

// fakeReader serves fixed projection rows and records the filters it saw
type fakeReader struct {
	aggregates  []models.CategoryDailyAggregate
	balances    []models.BalanceSnapshot
	summaries   []models.FinancialSummary
	composition *models.NetWorthComposition
	filters     []storage.ProjectionFilter
	calls       int
	err         error
}

func (r *fakeReader) ListCategoryDaily(_ context.Context, filter storage.ProjectionFilter) ([]models.CategoryDailyAggregate, error) {
	r.calls++
	r.filters = append(r.filters, filter)
	return r.aggregates, r.err
}

func (r *fakeReader) ListBalances(_ context.Context, filter storage.ProjectionFilter) ([]models.BalanceSnapshot, error) {
	r.calls++
	r.filters = append(r.filters, filter)
	var out []models.BalanceSnapshot
	for _, b := range r.balances {
		if filter.WalletID == "" || b.WalletID == filter.WalletID {
			out = append(out, b)
		}
	}
	return out, r.err
}

func (r *fakeReader) ListSummaries(_ context.Context, filter storage.ProjectionFilter) ([]models.FinancialSummary, error) {
	r.calls++
	r.filters = append(r.filters, filter)
	out := make([]models.FinancialSummary, len(r.summaries))
	copy(out, r.summaries)
	return out, r.err
}

func (r *fakeReader) GetComposition(_ context.Context, userID string) (*models.NetWorthComposition, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	if r.composition == nil || r.composition.UserID != userID {
		return nil, storage.ErrNotFound
	}
	return r.composition, nil
}
